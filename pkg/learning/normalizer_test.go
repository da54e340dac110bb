package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewardBounds_OnlyGrow(t *testing.T) {
	var b RewardBounds
	assert.False(t, b.Known())

	b.Observe(2.0, 10.0)
	b.Observe(1.0, 20.0)
	assert.True(t, b.Known())
	assert.Equal(t, 2.0, b.MaxLatency)
	assert.Equal(t, 20.0, b.MaxEnergy)
}

func TestRewardBounds_Normalize(t *testing.T) {
	b := RewardBounds{MaxLatency: 4.0, MaxEnergy: 10.0}

	nL, nE := b.Normalize(1.0, 5.0)
	assert.InDelta(t, 0.25, nL, 1e-12)
	assert.InDelta(t, 0.5, nE, 1e-12)

	nL, nE = b.Normalize(8.0, -1.0)
	assert.Equal(t, 1.0, nL)
	assert.Equal(t, 0.0, nE)
}

func TestRewardBounds_UnseededNormalizesToZero(t *testing.T) {
	var b RewardBounds
	nL, nE := b.Normalize(3.0, 7.0)
	assert.Equal(t, 0.0, nL)
	assert.Equal(t, 0.0, nE)
}

func TestEWMA(t *testing.T) {
	e := NewEWMA(0.5)
	assert.Equal(t, 0.0, e.Current())
	assert.Equal(t, 10.0, e.Update(10.0))
	assert.Equal(t, 15.0, e.Update(20.0))
	assert.Equal(t, 2, e.Count())

	assert.Equal(t, 0.167, NewEWMA(0).Alpha())
	assert.Equal(t, 0.167, NewEWMA(1.5).Alpha())
}
