package optimization

import (
	"fmt"
	"strings"

	"klineTrader/internal/ports"
	"klineTrader/internal/strategy/strategies"
)

// DefaultRanges returns the search grid for a strategy code.
func DefaultRanges(code string) ([]ParameterRange, error) {
	switch strings.ToUpper(code) {
	case strategies.CodeATRScalp:
		return []ParameterRange{
			{Name: "period", Min: 3, Max: 14, Step: 1, IsInt: true},
			{Name: "entry", Min: 0.005, Max: 0.02, Step: 0.005},
			{Name: "exit", Min: 0.25, Max: 1, Step: 0.25},
		}, nil
	case strategies.CodeSMACrossover:
		return []ParameterRange{
			{Name: "short", Min: 5, Max: 25, Step: 5, IsInt: true},
			{Name: "long", Min: 30, Max: 60, Step: 10, IsInt: true},
		}, nil
	case strategies.CodeMeanReversion:
		return []ParameterRange{
			{Name: "lookback", Min: 10, Max: 30, Step: 5, IsInt: true},
			{Name: "entry", Min: 1, Max: 2.5, Step: 0.5},
			{Name: "exit", Min: 0.5, Max: 1.5, Step: 0.5},
		}, nil
	default:
		return nil, fmt.Errorf("%w: no parameter grid for strategy %q", ports.ErrConfigurationError, code)
	}
}

// StrategyFactory returns a Factory that overrides base with the grid parameters of code.
func StrategyFactory(code string, base strategies.Config, logger ports.Logger) Factory {
	return func(params map[string]float64) (ports.Strategy, error) {
		cfg := base
		switch strings.ToUpper(code) {
		case strategies.CodeATRScalp:
			setInt(&cfg.ATRScalp.Period, params, "period")
			setFloat(&cfg.ATRScalp.EntryThreshold, params, "entry")
			setFloat(&cfg.ATRScalp.ExitThreshold, params, "exit")
		case strategies.CodeSMACrossover:
			setInt(&cfg.SMACrossover.ShortPeriod, params, "short")
			setInt(&cfg.SMACrossover.LongPeriod, params, "long")
		case strategies.CodeMeanReversion:
			setInt(&cfg.MeanReversion.Lookback, params, "lookback")
			setFloat(&cfg.MeanReversion.EntryThreshold, params, "entry")
			setFloat(&cfg.MeanReversion.ExitThreshold, params, "exit")
		}
		return strategies.New(code, cfg, logger)
	}
}

func setInt(dst *int, params map[string]float64, name string) {
	if v, ok := params[name]; ok {
		*dst = int(v)
	}
}

func setFloat(dst *float64, params map[string]float64, name string) {
	if v, ok := params[name]; ok {
		*dst = v
	}
}
