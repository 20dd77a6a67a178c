package indicators

import (
	"context"
	"errors"
	"fmt"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
)

// ErrInsufficientData is returned when a series has no defined value to read.
var ErrInsufficientData = ports.ErrInsufficientData

// Value is one point of an indicator series. Points inside the warm-up
// window are not Defined and must not be compared against prices.
type Value struct {
	Value   float64
	Defined bool
}

// Series is an indicator computed for every kline of a window, same length and order.
type Series []Value

// Last returns the most recent value, or ErrInsufficientData if it is undefined.
func (s Series) Last() (float64, error) {
	return s.At(len(s) - 1)
}

// Prev returns the value before the most recent one.
func (s Series) Prev() (float64, error) {
	return s.At(len(s) - 2)
}

// At returns the value at index i.
func (s Series) At(i int) (float64, error) {
	if i < 0 || i >= len(s) || !s[i].Defined {
		return 0, ErrInsufficientData
	}
	return s[i].Value, nil
}

// DefinedCount returns how many values are defined.
func (s Series) DefinedCount() int {
	n := 0
	for _, v := range s {
		if v.Defined {
			n++
		}
	}
	return n
}

// Indicator represents a technical indicator that can be calculated from price data
type Indicator interface {
	// Series computes the indicator for every kline of the window
	Series(klines []*domain.Kline) Series

	// Calculate returns the latest defined value
	Calculate(ctx context.Context, klines []*domain.Kline) (float64, error)

	// RequiredDataPoints returns the minimum number of klines needed for a defined last value
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of klines needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

func lastOf(name string, s Series) (float64, error) {
	v, err := s.Last()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func validatePeriod(period int) error {
	if period <= 0 {
		return errors.New("indicator period must be positive")
	}
	return nil
}

func closes(klines []*domain.Kline) []float64 {
	out := make([]float64, len(klines))
	for i, k := range klines {
		out[i] = k.Close
	}
	return out
}
