package learning

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Softmax returns p_i ∝ exp(v_i / T). It works in log space so large
// values or tiny temperatures neither overflow nor collapse to NaN.
func Softmax(values []float64, temperature float64) []float64 {
	if len(values) == 0 {
		return nil
	}

	scaled := make([]float64, len(values))
	copy(scaled, values)
	floats.Scale(1/temperature, scaled)

	lse := floats.LogSumExp(scaled)
	probabilities := make([]float64, len(scaled))
	for i, s := range scaled {
		probabilities[i] = math.Exp(s - lse)
	}
	return probabilities
}

// SampleIndex walks the cumulative distribution and returns the first index
// whose cumulative probability reaches draw. Rounding can leave the total
// just under 1, in which case the first index is returned.
func SampleIndex(probabilities []float64, draw float64) int {
	cumulative := 0.0
	for i, p := range probabilities {
		cumulative += p
		if draw <= cumulative {
			return i
		}
	}
	return 0
}
