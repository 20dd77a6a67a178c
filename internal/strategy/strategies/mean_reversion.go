package strategies

import (
	"context"
	"fmt"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/strategy/indicators"
)

// MeanReversionConfig holds configuration for the mean reversion strategy
type MeanReversionConfig struct {
	Lookback       int     // default 20
	EntryThreshold float64 // std multiples below the mean (default 1.5)
	ExitThreshold  float64 // std multiples above the mean (default 0.5)
	PollInterval   time.Duration
}

// MeanReversion buys when the best ask drops below the rolling band and sells when the best bid rises above it.
type MeanReversion struct {
	*BaseStrategy
	config MeanReversionConfig
}

// NewMeanReversion creates a new mean reversion strategy instance
func NewMeanReversion(config MeanReversionConfig, logger ports.Logger) (*MeanReversion, error) {
	if config.Lookback == 0 {
		config.Lookback = 20
	}
	if config.EntryThreshold == 0 {
		config.EntryThreshold = 1.5
	}
	if config.ExitThreshold == 0 {
		config.ExitThreshold = 0.5
	}
	if config.Lookback < 2 {
		return nil, fmt.Errorf("%w: mean reversion lookback must be at least 2", ports.ErrConfigurationError)
	}

	return &MeanReversion{
		BaseStrategy: NewBaseStrategy(logger, CodeMeanReversion, durationOr(config.PollInterval, defaultMeanRevPoll), domain.PriceFromOrderBook),
		config:       config,
	}, nil
}

// RequiredDataPoints returns the lookback window.
func (s *MeanReversion) RequiredDataPoints() int {
	return s.config.Lookback
}

func (s *MeanReversion) band(klines []*domain.Kline) (mean, std float64, err error) {
	values := make([]float64, len(klines))
	for i, k := range klines {
		values[i] = k.Close
	}
	if mean, err = indicators.RollingMean(values, s.config.Lookback).Last(); err != nil {
		return 0, 0, fmt.Errorf("mean reversion: %w", err)
	}
	if std, err = indicators.RollingStdDev(values, s.config.Lookback).Last(); err != nil {
		return 0, 0, fmt.Errorf("mean reversion: %w", err)
	}
	return mean, std, nil
}

// ShouldEnter fires when best ask < mean - EntryThreshold*std.
func (s *MeanReversion) ShouldEnter(ctx context.Context, snap ports.MarketSnapshot) (ports.EntryDecision, error) {
	mean, std, err := s.band(snap.Klines)
	if err != nil {
		return ports.EntryDecision{}, err
	}
	ask, ok := snap.OrderBook.BestAsk()
	if !ok {
		return ports.EntryDecision{}, fmt.Errorf("mean reversion: asks: %w", ports.ErrEmptyOrderBook)
	}

	return ports.EntryDecision{
		Enter:    ask < mean-s.config.EntryThreshold*std,
		Readings: map[string]float64{"Mean": mean, "StdDev": std, "BestAsk": ask},
	}, nil
}

// ShouldExit fires when best bid > mean + ExitThreshold*std.
func (s *MeanReversion) ShouldExit(ctx context.Context, tc domain.TradeContext, snap ports.MarketSnapshot) (ports.ExitDecision, error) {
	mean, std, err := s.band(snap.Klines)
	if err != nil {
		return ports.ExitDecision{}, err
	}
	bid, ok := snap.OrderBook.BestBid()
	if !ok {
		return ports.ExitDecision{}, fmt.Errorf("mean reversion: bids: %w", ports.ErrEmptyOrderBook)
	}

	decision := ports.ExitDecision{
		Readings: map[string]float64{"Mean": mean, "StdDev": std, "BestBid": bid},
	}
	if bid > mean+s.config.ExitThreshold*std {
		decision.Exit = true
		decision.Reason = domain.ExitReasonTarget
	}
	return decision, nil
}
