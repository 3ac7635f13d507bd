// Package pricing produces the price quoted for a task at creation time.
package pricing

import (
	"errors"
	"math"
	"math/rand/v2"
)

// Default price bounds, inclusive.
const (
	DefaultMinPrice = 5.00
	DefaultMaxPrice = 50.00
)

// ErrInvalidRange is returned when the minimum price is not below the maximum.
var ErrInvalidRange = errors.New("minimum price must be lower than maximum price")

// Estimator defines the interface for quoting task prices
type Estimator interface {
	// Estimate returns a price rounded to two fractional digits
	Estimate() float64
}

// randomEstimator draws prices uniformly from [min, max]
type randomEstimator struct {
	min    float64
	max    float64
	sample func() float64
}

// NewDefaultEstimator creates an estimator over the default [5.00, 50.00] range
func NewDefaultEstimator() Estimator {
	return &randomEstimator{
		min:    DefaultMinPrice,
		max:    DefaultMaxPrice,
		sample: rand.Float64,
	}
}

// NewEstimator creates an estimator over a custom range
func NewEstimator(minPrice, maxPrice float64) (Estimator, error) {
	if minPrice < 0 || minPrice >= maxPrice {
		return nil, ErrInvalidRange
	}

	return &randomEstimator{
		min:    minPrice,
		max:    maxPrice,
		sample: rand.Float64,
	}, nil
}

// Estimate implements Estimator
func (e *randomEstimator) Estimate() float64 {
	price := e.min + e.sample()*(e.max-e.min)
	return clamp(round2(price), e.min, e.max)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// rounding can never step outside the range for cent-aligned bounds, but
// custom bounds like 0.005 could
func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
