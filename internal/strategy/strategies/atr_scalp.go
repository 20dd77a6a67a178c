package strategies

import (
	"context"
	"fmt"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/strategy/indicators"
)

// ATRScalpConfig holds configuration for the ATR scalping strategy
type ATRScalpConfig struct {
	Period         int           // ATR period (default 5)
	EntryThreshold float64       // Enter while ATR < EntryThreshold * close (default 0.01)
	ExitThreshold  float64       // Target = entry + ExitThreshold * ATR (default 0.005)
	PollInterval   time.Duration // default 5s
}

// ATRScalp buys a rising close in a quiet market and sells once price clears a small ATR-based target.
type ATRScalp struct {
	*BaseStrategy
	config ATRScalpConfig
	atr    *indicators.ATR
}

// NewATRScalp creates a new ATR scalping strategy instance
func NewATRScalp(config ATRScalpConfig, logger ports.Logger) (*ATRScalp, error) {
	if config.Period == 0 {
		config.Period = 5
	}
	if config.EntryThreshold == 0 {
		config.EntryThreshold = 0.01
	}
	if config.ExitThreshold == 0 {
		config.ExitThreshold = 0.005
	}
	if config.Period < 1 {
		return nil, fmt.Errorf("%w: ATR period must be positive", ports.ErrConfigurationError)
	}
	if config.EntryThreshold < 0 || config.ExitThreshold < 0 {
		return nil, fmt.Errorf("%w: ATR thresholds must not be negative", ports.ErrConfigurationError)
	}

	return &ATRScalp{
		BaseStrategy: NewBaseStrategy(logger, CodeATRScalp, durationOr(config.PollInterval, defaultATRPoll), domain.PriceFromCandle),
		config:       config,
		atr:          indicators.NewATR(indicators.ATRConfig{IndicatorConfig: indicators.IndicatorConfig{Period: config.Period}}),
	}, nil
}

// RequiredDataPoints returns the minimum number of klines needed for a defined ATR.
func (s *ATRScalp) RequiredDataPoints() int {
	return s.atr.RequiredDataPoints()
}

// ShouldEnter fires when ATR is below the entry threshold of the close and the close is rising.
func (s *ATRScalp) ShouldEnter(ctx context.Context, snap ports.MarketSnapshot) (ports.EntryDecision, error) {
	atr, err := s.atr.Calculate(ctx, snap.Klines)
	if err != nil {
		return ports.EntryDecision{}, err
	}
	n := len(snap.Klines)
	last, prev := snap.Klines[n-1].Close, snap.Klines[n-2].Close

	decision := ports.EntryDecision{
		Readings: map[string]float64{"ATR": atr, "Close": last},
	}
	if atr < s.config.EntryThreshold*last && last > prev {
		decision.Enter = true
		decision.TargetPrice = last + s.config.ExitThreshold*atr
		s.logger.Debug(ctx, "ATR entry condition met", map[string]interface{}{
			"atr":    atr,
			"close":  last,
			"target": decision.TargetPrice,
		})
	}
	return decision, nil
}

// ShouldExit fires when a candle closed after the entry candle reaches the target.
func (s *ATRScalp) ShouldExit(ctx context.Context, tc domain.TradeContext, snap ports.MarketSnapshot) (ports.ExitDecision, error) {
	after := domain.After(snap.Klines, tc.EntryCandleTime)
	last := domain.Last(after)
	if last == nil {
		return ports.ExitDecision{}, nil
	}

	decision := ports.ExitDecision{
		Readings: map[string]float64{"Close": last.Close, "Target": tc.TargetPrice},
	}
	if tc.TargetPrice > 0 && last.Close >= tc.TargetPrice {
		decision.Exit = true
		decision.Reason = domain.ExitReasonTarget
	}
	return decision, nil
}
