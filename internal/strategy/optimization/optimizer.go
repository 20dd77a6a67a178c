package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/risk"
	"klineTrader/internal/strategy/analytics"
	"klineTrader/internal/strategy/backtesting"
)

// ParameterRange defines a range for a parameter to optimize
type ParameterRange struct {
	Name  string
	Min   float64
	Max   float64
	Step  float64
	IsInt bool
}

// OptimizationResult holds the results of a parameter optimization
type OptimizationResult struct {
	Parameters map[string]float64
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// Factory builds a strategy from one parameter combination.
type Factory func(params map[string]float64) (ports.Strategy, error)

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []ParameterRange
	Backtest        backtesting.BacktestConfig
	Risk            *risk.RiskManager
	ScoreFunction   func(*analytics.PerformanceMetrics) float64
	MaxWorkers      int // 0 means one goroutine per combination
}

// Optimizer implements strategy parameter optimization
type Optimizer struct {
	config OptimizerConfig
}

// NewOptimizer creates a new optimizer instance
func NewOptimizer(config OptimizerConfig) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	return &Optimizer{
		config: config,
	}
}

// Optimize backtests every parameter combination and returns the results best first.
// Combinations the factory rejects are skipped; the call fails only if none succeed.
func (o *Optimizer) Optimize(ctx context.Context, factory Factory, klines []*domain.Kline) ([]OptimizationResult, error) {
	if o.config.Risk == nil {
		return nil, fmt.Errorf("%w: optimizer needs a risk manager", ports.ErrConfigurationError)
	}
	combinations := o.generateParameterCombinations()
	results := make([]OptimizationResult, 0, len(combinations))

	workers := o.config.MaxWorkers
	if workers <= 0 || workers > len(combinations) {
		workers = len(combinations)
	}
	sem := make(chan struct{}, max(workers, 1))

	var (
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)
	for _, params := range combinations {
		wg.Add(1)
		go func(params map[string]float64) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := o.evaluate(ctx, factory, params, klines)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return
			}
			results = append(results, result)
		}(params)
	}
	wg.Wait()

	if len(results) == 0 && firstErr != nil {
		return nil, firstErr
	}
	sortResultsByScore(results)
	return results, nil
}

func (o *Optimizer) evaluate(ctx context.Context, factory Factory, params map[string]float64, klines []*domain.Kline) (OptimizationResult, error) {
	strat, err := factory(params)
	if err != nil {
		return OptimizationResult{}, fmt.Errorf("parameters %v rejected: %w", params, err)
	}
	bt, err := backtesting.Backtest(ctx, strat, o.config.Risk, klines, o.config.Backtest)
	if err != nil {
		return OptimizationResult{}, fmt.Errorf("backtest with %v failed: %w", params, err)
	}
	return OptimizationResult{
		Parameters: params,
		Metrics:    bt.Metrics,
		Score:      o.config.ScoreFunction(bt.Metrics),
	}, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	var currentCombination map[string]float64

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			// Create a copy of the current combination
			combination := make(map[string]float64, len(currentCombination))
			for k, v := range currentCombination {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		if param.Step <= 0 {
			currentCombination[param.Name] = param.Min
			generate(paramIndex + 1)
			return
		}
		// Count steps up front so float accumulation cannot add or drop a point.
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for i := 0; i <= steps; i++ {
			value := param.Min + float64(i)*param.Step
			if param.IsInt {
				value = math.Round(value)
			}
			currentCombination[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	currentCombination = make(map[string]float64)
	generate(0)
	return combinations
}

// sortResultsByScore sorts optimization results by score in descending order
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

// DefaultScoreFunction provides a default scoring function for optimization
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	if metrics.TotalTrades == 0 {
		return math.Inf(-1)
	}
	score := 0.0

	// Weight different metrics
	score += metrics.WinRate * 0.3
	score += math.Min(metrics.ProfitFactor, 10) * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += math.Min(metrics.RiskRewardRatio, 10) * 0.1

	return score
}
