// Package indicator provides streaming technical indicators. Each indicator
// consumes one value per completed bar and keeps O(1) state, so it can run
// against a live feed without historical storage.
package indicator

import "github.com/rxtech-lab/argo-live-trader/pkg/errors"

// EMA is a streaming exponential moving average with smoothing factor
// 2/(period+1). The first observation seeds the average directly.
type EMA struct {
	period int
	alpha  float64
	value  float64
	count  int
}

// NewEMA creates an EMA over the given period.
func NewEMA(period int) (*EMA, error) {
	if period <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "EMA period must be positive, got %d", period)
	}

	return &EMA{
		period: period,
		alpha:  2.0 / (float64(period) + 1),
	}, nil
}

// Update consumes the next value and returns the updated average.
func (e *EMA) Update(value float64) float64 {
	if e.count == 0 {
		e.value = value
	} else {
		e.value += e.alpha * (value - e.value)
	}

	e.count++

	return e.value
}

// Value returns the current average. Zero before the first Update.
func (e *EMA) Value() float64 {
	return e.value
}

// Ready reports whether the average has seen at least one full period of
// observations.
func (e *EMA) Ready() bool {
	return e.count >= e.period
}

// Period returns the configured period.
func (e *EMA) Period() int {
	return e.period
}

// Reset discards all state.
func (e *EMA) Reset() {
	e.value = 0
	e.count = 0
}
