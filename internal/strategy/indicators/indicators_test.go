package indicators

import (
	"context"
	"errors"
	"testing"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeKlines(closes ...float64) []*domain.Kline {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]*domain.Kline, len(closes))
	for i, c := range closes {
		out[i] = &domain.Kline{
			OpenTime: start.Add(time.Duration(i) * time.Minute),
			Open:     c,
			High:     c + 1,
			Low:      c - 1,
			Close:    c,
		}
	}
	return out
}

func TestTrueRange(t *testing.T) {
	klines := []*domain.Kline{
		{High: 10, Low: 8, Close: 9},
		{High: 12, Low: 9.5, Close: 11},   // high-prevClose = 3
		{High: 11.5, Low: 7, Close: 8},    // high-low = 4.5
		{High: 8.5, Low: 8.2, Close: 8.3}, // high-prevClose = 0.5
	}

	tr := TrueRange(klines)
	require.Len(t, tr, 4)
	assert.False(t, tr[0].Defined)
	assert.InDelta(t, 3.0, tr[1].Value, 1e-9)
	assert.InDelta(t, 4.5, tr[2].Value, 1e-9)
	assert.InDelta(t, 0.5, tr[3].Value, 1e-9)
}

func TestATR_Series(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig{Period: 3}})
	klines := makeKlines(100, 101, 102, 103, 104, 105)

	s := atr.Series(klines)
	require.Len(t, s, len(klines))
	for i := 0; i < 3; i++ {
		assert.False(t, s[i].Defined, "index %d should be undefined", i)
	}
	for i := 3; i < len(s); i++ {
		require.True(t, s[i].Defined)
		// each bar: high-prevClose = c+1-(c-1) = 2
		assert.InDelta(t, 2.0, s[i].Value, 1e-9)
	}
	assert.Equal(t, 4, atr.RequiredDataPoints())
}

func TestATR_NonNegative(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig{Period: 5}})
	klines := makeKlines(50, 48, 53, 51, 47, 60, 59, 40, 41, 45, 44, 70)

	for i, v := range atr.Series(klines) {
		if v.Defined {
			assert.GreaterOrEqual(t, v.Value, 0.0, "index %d", i)
		}
	}
}

func TestATR_InsufficientData(t *testing.T) {
	atr := NewATR(ATRConfig{IndicatorConfig{Period: 5}})

	_, err := atr.Calculate(context.Background(), makeKlines(1, 2, 3, 4, 5))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientData))
	assert.True(t, errors.Is(err, ports.ErrInsufficientData))

	v, err := atr.Calculate(context.Background(), makeKlines(1, 2, 3, 4, 5, 6))
	require.NoError(t, err)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestSMA(t *testing.T) {
	tests := []struct {
		name        string
		period      int
		closes      []float64
		expected    float64
		expectError bool
	}{
		{name: "sufficient data", period: 3, closes: []float64{100, 102, 101, 103, 104}, expected: 102.666667},
		{name: "constant series", period: 4, closes: []float64{7, 7, 7, 7, 7, 7}, expected: 7},
		{name: "exact window", period: 2, closes: []float64{1, 3}, expected: 2},
		{name: "insufficient data", period: 6, closes: []float64{1, 2, 3, 4, 5}, expectError: true},
		{name: "invalid period", period: 0, closes: []float64{1, 2, 3}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := NewSMA(tt.period).Calculate(context.Background(), makeKlines(tt.closes...))
			if tt.expectError {
				assert.ErrorIs(t, err, ErrInsufficientData)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, v, 1e-6)
		})
	}
}

func TestSMA_UndefinedPrefix(t *testing.T) {
	s := NewSMA(4).Series(makeKlines(1, 2, 3, 4, 5))
	assert.Equal(t, 2, s.DefinedCount())
	assert.False(t, s[2].Defined)

	prev, err := s.Prev()
	require.NoError(t, err)
	assert.InDelta(t, 2.5, prev, 1e-9)
}

func TestRollingStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}

	s := RollingStdDev(values, 8)
	last, err := s.Last()
	require.NoError(t, err)
	// population std is 2; sample std is sqrt(32/7)
	assert.InDelta(t, 2.13808994, last, 1e-6)
	assert.Equal(t, 1, s.DefinedCount())

	flat := RollingStdDev([]float64{3, 3, 3, 3}, 3)
	v, err := flat.Last()
	require.NoError(t, err)
	assert.Equal(t, 0.0, v)

	assert.Equal(t, 0, RollingStdDev(values, 1).DefinedCount())
}

func TestSeries_At(t *testing.T) {
	var empty Series
	_, err := empty.Last()
	assert.ErrorIs(t, err, ErrInsufficientData)

	s := Series{{}, {Value: 1, Defined: true}}
	_, err = s.Prev()
	assert.ErrorIs(t, err, ErrInsufficientData)
	v, err := s.Last()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
	_, err = s.At(5)
	assert.ErrorIs(t, err, ErrInsufficientData)
}
