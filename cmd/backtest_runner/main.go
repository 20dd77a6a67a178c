package main

import (
	"context"
	"flag"
	"log"
	"os"

	"klineTrader/config"
	"klineTrader/internal/adapters/console"
	"klineTrader/internal/adapters/logger"
	"klineTrader/internal/risk"
	"klineTrader/internal/strategy/backtesting"
	"klineTrader/internal/strategy/optimization"
	"klineTrader/internal/strategy/strategies"
	"klineTrader/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "Path to the JSON config file")
	dataFile := flag.String("data", "", "CSV file written by fetch_klines")
	strategyCode := flag.String("strategy", "", "Strategy code: ATR, SMA or MR")
	initialFunds := flag.Float64("funds", 1000, "Initial balance for return metrics")
	optimize := flag.Bool("optimize", false, "Search the default parameter grid instead of a single run")
	top := flag.Int("top", 10, "Number of optimization results to print")
	workers := flag.Int("workers", 4, "Parallel backtests during optimization")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *strategyCode != "" {
		cfg.Strategy = *strategyCode
	}
	if err := cfg.Validate(false); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	if *dataFile == "" {
		log.Fatalf("FATAL: -data is required")
	}

	appLogger := logger.NewZapLogger(cfg.LoggerConfig())
	defer appLogger.Sync()
	ctx := context.Background()

	// 2. Load klines from CSV
	klines, err := utils.ReadKlinesFromCSV(*dataFile)
	if err != nil {
		appLogger.Error(ctx, err, "Error loading klines", map[string]interface{}{"file": *dataFile})
		log.Fatalf("Error loading klines: %v", err)
	}
	appLogger.Info(ctx, "Loaded klines", map[string]interface{}{"file": *dataFile, "count": len(klines)})

	riskManager, err := risk.NewRiskManager(cfg.RiskConfig())
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	btConfig := backtesting.BacktestConfig{
		Symbol:       cfg.Symbol,
		Quantity:     cfg.Quantity,
		InitialFunds: *initialFunds,
		WindowMargin: cfg.WindowMargin,
	}

	// 3. Optimize or run once
	if *optimize {
		ranges, err := optimization.DefaultRanges(cfg.Strategy)
		if err != nil {
			log.Fatalf("FATAL: %v", err)
		}
		optimizer := optimization.NewOptimizer(optimization.OptimizerConfig{
			ParameterRanges: ranges,
			Backtest:        btConfig,
			Risk:            riskManager,
			MaxWorkers:      *workers,
		})
		results, err := optimizer.Optimize(ctx, optimization.StrategyFactory(cfg.Strategy, cfg.StrategyConfig(), appLogger), klines)
		if err != nil {
			appLogger.Error(ctx, err, "Optimization failed")
			log.Fatalf("Optimization failed: %v", err)
		}
		console.RenderOptimization(os.Stdout, cfg.Strategy, results, *top)
		return
	}

	strat, err := strategies.New(cfg.Strategy, cfg.StrategyConfig(), appLogger)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	result, err := backtesting.Backtest(ctx, strat, riskManager, klines, btConfig)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest error")
		log.Fatalf("Backtest error: %v", err)
	}
	appLogger.Info(ctx, "Backtest result", map[string]interface{}{
		"strategy": result.Strategy,
		"trades":   result.Metrics.TotalTrades,
		"profit":   result.Metrics.TotalProfit,
	})
	console.RenderBacktest(os.Stdout, result)
}
