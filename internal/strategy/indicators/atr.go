package indicators

import (
	"context"
	"math"

	"klineTrader/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

// ATR implements the Average True Range indicator as a trailing simple mean of true range.
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints is period+1 since true range needs a previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// TrueRange is undefined for the first kline and otherwise the greatest of
// high-low, |high-prevClose| and |low-prevClose|.
func TrueRange(klines []*domain.Kline) Series {
	out := make(Series, len(klines))
	for i := 1; i < len(klines); i++ {
		high := klines[i].High
		low := klines[i].Low
		prevClose := klines[i-1].Close

		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		out[i] = Value{Value: tr, Defined: true}
	}
	return out
}

// Series computes ATR for each kline. The first period values are undefined.
func (a *ATR) Series(klines []*domain.Kline) Series {
	period := a.Config.Period
	out := make(Series, len(klines))
	if validatePeriod(period) != nil {
		return out
	}

	tr := TrueRange(klines)
	sum := 0.0
	for i := 1; i < len(tr); i++ {
		sum += tr[i].Value
		if i > period {
			sum -= tr[i-period].Value
		}
		if i >= period {
			out[i] = Value{Value: sum / float64(period), Defined: true}
		}
	}
	return out
}

// Calculate computes the latest Average True Range value for the given klines
func (a *ATR) Calculate(ctx context.Context, klines []*domain.Kline) (float64, error) {
	return lastOf(a.Name(), a.Series(klines))
}
