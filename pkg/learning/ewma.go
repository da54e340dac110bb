package learning

// EWMA smooths a noisy series such as per-episode reward:
//
//	EWMA_t = α X_t + (1 - α) EWMA_{t-1}
type EWMA struct {
	alpha       float64
	current     float64
	initialized bool
	count       int
}

// NewEWMA creates a smoother. An alpha outside (0,1] falls back to 0.167.
func NewEWMA(alpha float64) *EWMA {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.167
	}
	return &EWMA{alpha: alpha}
}

// Update folds a new observation in and returns the smoothed value.
// The first observation seeds the average.
func (e *EWMA) Update(value float64) float64 {
	e.count++
	if !e.initialized {
		e.current = value
		e.initialized = true
		return e.current
	}
	e.current = e.alpha*value + (1-e.alpha)*e.current
	return e.current
}

// Current returns the smoothed value, 0 before any update
func (e *EWMA) Current() float64 {
	if !e.initialized {
		return 0
	}
	return e.current
}

// Count returns the number of observations
func (e *EWMA) Count() int {
	return e.count
}

// Alpha returns the smoothing factor
func (e *EWMA) Alpha() float64 {
	return e.alpha
}
