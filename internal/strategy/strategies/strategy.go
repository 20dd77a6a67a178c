package strategies

import (
	"fmt"
	"strings"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
)

// Strategy codes accepted by New and the -strategy flag.
const (
	CodeATRScalp       = "ATR"
	CodeSMACrossover   = "SMA"
	CodeMeanReversion  = "MR"
	defaultATRPoll     = 5 * time.Second
	defaultCrossPoll   = 3 * time.Second
	defaultMeanRevPoll = 3 * time.Second
)

// Config holds the parameters of every strategy; zero values take the defaults.
type Config struct {
	ATRScalp      ATRScalpConfig
	SMACrossover  SMACrossoverConfig
	MeanReversion MeanReversionConfig
}

// BaseStrategy provides common functionality for strategies
type BaseStrategy struct {
	logger ports.Logger
	code   string
	poll   time.Duration
	source domain.PriceSource
}

// NewBaseStrategy creates a new base strategy instance
func NewBaseStrategy(logger ports.Logger, code string, poll time.Duration, source domain.PriceSource) *BaseStrategy {
	return &BaseStrategy{
		logger: logger,
		code:   code,
		poll:   poll,
		source: source,
	}
}

// Code returns the strategy selector.
func (b *BaseStrategy) Code() string { return b.code }

// PollInterval returns the sleep between ticks.
func (b *BaseStrategy) PollInterval() time.Duration { return b.poll }

// PriceSource returns where order prices come from.
func (b *BaseStrategy) PriceSource() domain.PriceSource { return b.source }

// Codes lists the supported strategy codes.
func Codes() []string {
	return []string{CodeATRScalp, CodeSMACrossover, CodeMeanReversion}
}

// New builds the strategy registered under code.
func New(code string, cfg Config, logger ports.Logger) (ports.Strategy, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for strategy")
	}
	switch strings.ToUpper(code) {
	case CodeATRScalp:
		return NewATRScalp(cfg.ATRScalp, logger)
	case CodeSMACrossover:
		return NewSMACrossover(cfg.SMACrossover, logger)
	case CodeMeanReversion:
		return NewMeanReversion(cfg.MeanReversion, logger)
	default:
		return nil, fmt.Errorf("%w: unknown strategy %q (want one of %s)",
			ports.ErrConfigurationError, code, strings.Join(Codes(), ", "))
	}
}

func durationOr(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
