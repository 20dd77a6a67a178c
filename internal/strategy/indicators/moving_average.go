package indicators

import (
	"context"

	"klineTrader/internal/domain"
)

// MovingAverage implements the simple moving average of close prices.
type MovingAverage struct {
	BaseIndicator
}

// NewSMA creates a new simple moving average indicator instance
func NewSMA(period int) *MovingAverage {
	return &MovingAverage{BaseIndicator: BaseIndicator{Config: IndicatorConfig{Period: period}}}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return "SMA"
}

// Series computes the SMA for each kline. The first period-1 values are undefined.
func (m *MovingAverage) Series(klines []*domain.Kline) Series {
	return RollingMean(closes(klines), m.Config.Period)
}

// Calculate computes the latest moving average value
func (m *MovingAverage) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	return lastOf(m.Name(), m.Series(klines))
}
