package strategies

import (
	"context"
	"fmt"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/strategy/indicators"
)

// SMACrossoverConfig holds configuration for the SMA crossover strategy
type SMACrossoverConfig struct {
	ShortPeriod  int // default 20
	LongPeriod   int // default 50
	PollInterval time.Duration
}

// SMACrossover enters when the short SMA crosses above the long SMA and exits on the reverse cross.
type SMACrossover struct {
	*BaseStrategy
	config  SMACrossoverConfig
	shortMA *indicators.MovingAverage
	longMA  *indicators.MovingAverage
}

// NewSMACrossover creates a new SMA crossover strategy instance
func NewSMACrossover(config SMACrossoverConfig, logger ports.Logger) (*SMACrossover, error) {
	if config.ShortPeriod == 0 {
		config.ShortPeriod = 20
	}
	if config.LongPeriod == 0 {
		config.LongPeriod = 50
	}
	if config.ShortPeriod < 1 || config.LongPeriod < 1 {
		return nil, fmt.Errorf("%w: SMA periods must be positive", ports.ErrConfigurationError)
	}
	if config.ShortPeriod >= config.LongPeriod {
		return nil, fmt.Errorf("%w: short SMA period must be less than long SMA period", ports.ErrConfigurationError)
	}

	return &SMACrossover{
		BaseStrategy: NewBaseStrategy(logger, CodeSMACrossover, durationOr(config.PollInterval, defaultCrossPoll), domain.PriceFromCandle),
		config:       config,
		shortMA:      indicators.NewSMA(config.ShortPeriod),
		longMA:       indicators.NewSMA(config.LongPeriod),
	}, nil
}

// RequiredDataPoints is long+1: a cross compares the last two long SMA values.
func (s *SMACrossover) RequiredDataPoints() int {
	return s.config.LongPeriod + 1
}

type crossReading struct {
	short, long, prevShort, prevLong float64
}

func (s *SMACrossover) read(klines []*domain.Kline) (crossReading, error) {
	shortS := s.shortMA.Series(klines)
	longS := s.longMA.Series(klines)

	var r crossReading
	var err error
	if r.short, err = shortS.Last(); err != nil {
		return r, err
	}
	if r.long, err = longS.Last(); err != nil {
		return r, err
	}
	if r.prevShort, err = shortS.Prev(); err != nil {
		return r, err
	}
	if r.prevLong, err = longS.Prev(); err != nil {
		return r, err
	}
	return r, nil
}

func (r crossReading) readings() map[string]float64 {
	return map[string]float64{"SMA-Short": r.short, "SMA-Long": r.long}
}

// ShouldEnter fires on the candle where the short SMA crosses above the long SMA.
func (s *SMACrossover) ShouldEnter(ctx context.Context, snap ports.MarketSnapshot) (ports.EntryDecision, error) {
	r, err := s.read(snap.Klines)
	if err != nil {
		return ports.EntryDecision{}, fmt.Errorf("SMA crossover: %w", err)
	}
	return ports.EntryDecision{
		Enter:    r.short > r.long && r.prevShort < r.prevLong,
		Readings: r.readings(),
	}, nil
}

// ShouldExit fires on the reverse cross.
func (s *SMACrossover) ShouldExit(ctx context.Context, tc domain.TradeContext, snap ports.MarketSnapshot) (ports.ExitDecision, error) {
	r, err := s.read(snap.Klines)
	if err != nil {
		return ports.ExitDecision{}, fmt.Errorf("SMA crossover: %w", err)
	}
	decision := ports.ExitDecision{Readings: r.readings()}
	if r.long > r.short && r.prevLong < r.prevShort {
		decision.Exit = true
		decision.Reason = domain.ExitReasonTrendReversal
	}
	return decision, nil
}
