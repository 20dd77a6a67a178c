package main

import (
	"context"
	"errors"
	"flag"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"klineTrader/config"
	"klineTrader/internal/adapters/console"
	"klineTrader/internal/adapters/logger"
	"klineTrader/internal/app"
	"klineTrader/internal/bootstrap"
	"klineTrader/internal/ports"
	"klineTrader/internal/risk"
	"klineTrader/internal/strategy/strategies"
)

const (
	modeTrade  = "trade"
	modeHealth = "health"
)

func main() {
	configPath := flag.String("config", "", "Path to the JSON config file")
	mode := flag.String("mode", modeTrade, "Run mode: trade or health")
	symbol := flag.String("symbol", "", "Trading symbol, overrides the config")
	quantity := flag.Float64("quantity", 0, "Order quantity, overrides the config")
	strategyCode := flag.String("strategy", "", "Strategy code: ATR, SMA or MR")
	trades := flag.Int("trades", 0, "Number of sequential trades to run")
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *quantity > 0 {
		cfg.Quantity = *quantity
	}
	if *strategyCode != "" {
		cfg.Strategy = *strategyCode
	}
	if *trades > 0 {
		cfg.Trades = *trades
	}
	if *mode != modeTrade && *mode != modeHealth {
		log.Fatalf("FATAL: unknown mode %q", *mode)
	}
	if err := cfg.Validate(*mode == modeTrade); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.NewZapLogger(cfg.LoggerConfig())
	defer appLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch *mode {
	case modeHealth:
		runErr = runHealth(ctx, cfg, appLogger)
	default:
		runErr = runTrading(ctx, cfg, appLogger)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		appLogger.Error(context.Background(), runErr, "Application exited with error")
		_ = appLogger.Sync()
		os.Exit(1)
	}
	appLogger.Info(context.Background(), "Application finished gracefully.")
}

func runHealth(ctx context.Context, cfg *config.Config, appLogger ports.Logger) error {
	exchange, err := bootstrap.NewExchange(cfg, appLogger)
	if err != nil {
		return err
	}
	report := app.CheckHealth(ctx, exchange, appLogger, cfg.Symbol)
	console.RenderHealth(os.Stdout, report)
	if !report.Healthy {
		return ports.ErrExchangeUnavailable
	}
	return nil
}

func runTrading(ctx context.Context, cfg *config.Config, appLogger ports.Logger) error {
	// Trade ledger
	ledger, err := bootstrap.NewLedger(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer func() {
		if err := ledger.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade ledger")
		}
	}()

	checkpoints, err := bootstrap.NewCheckpoints(cfg, appLogger)
	if err != nil {
		return err
	}
	if checkpoints != nil {
		defer func() {
			if err := checkpoints.Close(); err != nil {
				appLogger.Error(context.Background(), err, "Error closing checkpoint store")
			}
		}()
	}

	exchange, err := bootstrap.NewExchange(cfg, appLogger)
	if err != nil {
		return err
	}

	strat, err := strategies.New(cfg.Strategy, cfg.StrategyConfig(), appLogger)
	if err != nil {
		return err
	}
	riskManager, err := risk.NewRiskManager(cfg.RiskConfig())
	if err != nil {
		return err
	}

	var reporter ports.StatusReporter
	if cfg.Display {
		reporter = console.NewDashboard(os.Stdout, cfg.WindowMargin+1)
	}

	runner, err := app.NewRunner(app.Config{
		Symbol:       cfg.Symbol,
		Quantity:     cfg.Quantity,
		Interval:     cfg.Interval,
		WindowMargin: cfg.WindowMargin,
		BookDepth:    cfg.BookDepth,
		Retry:        bootstrap.RetryPolicy(cfg),
	}, appLogger, exchange, ledger, checkpoints, reporter, strat, riskManager)
	if err != nil {
		return err
	}

	appLogger.Info(ctx, "Starting trading", map[string]interface{}{
		"strategy": strat.Code(),
		"symbol":   cfg.Symbol,
		"trades":   cfg.Trades,
	})
	started := time.Now()
	runErr := runner.Run(ctx, cfg.Trades)

	if history, ok := ledger.(ports.TradeHistory); ok {
		for _, day := range app.RunDays(started, time.Now()) {
			summary, err := history.TradesForDay(context.Background(), day)
			if err != nil {
				appLogger.Error(context.Background(), err, "Failed to load day summary", map[string]interface{}{"day": day.Format("2006-01-02")})
				continue
			}
			console.RenderTrades(os.Stdout, day, summary)
		}
	}
	return runErr
}
