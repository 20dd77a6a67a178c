package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"klineTrader/config"
	"klineTrader/internal/adapters/console"
	"klineTrader/internal/adapters/logger"
	"klineTrader/internal/bootstrap"
	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/strategy/analytics"
)

func main() {
	configPath := flag.String("config", "", "Path to the JSON config file")
	from := flag.String("from", "", "First day to report, YYYY-MM-DD (defaults to today)")
	days := flag.Int("days", 1, "Number of days to report")
	initialFunds := flag.Float64("funds", 1000, "Initial balance for return metrics")
	orderID := flag.Int64("order", 0, "Show the trade holding this buy or sell order id and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(false); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	start := time.Now().UTC().Truncate(24 * time.Hour)
	if *from != "" {
		if start, err = time.Parse("2006-01-02", *from); err != nil {
			log.Fatalf("FATAL: invalid -from: %v", err)
		}
	}

	appLogger := logger.NewZapLogger(cfg.LoggerConfig())
	defer appLogger.Sync()
	ctx := context.Background()

	ledger, err := bootstrap.NewLedger(ctx, cfg, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to open trade ledger: %v", err)
	}
	defer ledger.Close()

	if *orderID != 0 {
		trade, err := ledger.FindByOrderID(ctx, *orderID)
		if err != nil {
			appLogger.Error(ctx, err, "Error looking up order", map[string]interface{}{"orderID": *orderID})
			return
		}
		console.RenderOrderTrade(os.Stdout, *orderID, trade)
		return
	}

	history, ok := ledger.(ports.TradeHistory)
	if !ok {
		log.Fatalf("FATAL: ledger %q cannot list trades", cfg.Ledger)
	}

	var all []*domain.Trade
	for i := 0; i < *days; i++ {
		day := start.AddDate(0, 0, i)
		trades, err := history.TradesForDay(ctx, day)
		if err != nil {
			appLogger.Error(ctx, err, "Error reading trades", map[string]interface{}{"day": day.Format("2006-01-02")})
			continue
		}
		if len(trades) == 0 {
			continue
		}
		console.RenderTrades(os.Stdout, day, trades)
		all = append(all, trades...)
	}

	if len(all) == 0 {
		log.Println("No trades recorded in the requested period.")
		return
	}
	metrics := analytics.AnalyzePerformance(all, *initialFunds)
	title := fmt.Sprintf("Performance %s +%dd", start.Format("2006-01-02"), *days)
	console.RenderPerformance(os.Stdout, title, metrics)
}
