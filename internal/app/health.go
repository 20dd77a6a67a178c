package app

import (
	"context"
	"time"

	"klineTrader/internal/ports"
)

// HealthReport is the result of a system status and ticker check.
type HealthReport struct {
	Symbol    string
	Healthy   bool
	Status    string // "normal", or the ping error
	Ticker    *ports.Ticker
	TickerErr error
	CheckedAt time.Time
}

// CheckHealth pings the exchange and fetches the 24h ticker for symbol.
// A failing check is reported in the result, never returned.
func CheckHealth(ctx context.Context, exchange ports.ExchangeClient, logger ports.Logger, symbol string) HealthReport {
	op := "CheckHealth"
	report := HealthReport{Symbol: symbol, Status: "normal", Healthy: true, CheckedAt: time.Now().UTC()}

	if err := exchange.Ping(ctx); err != nil {
		logger.Error(ctx, err, op+": system status check failed")
		report.Healthy = false
		report.Status = err.Error()
	}

	ticker, err := exchange.GetTicker(ctx, symbol)
	if err != nil {
		logger.Error(ctx, err, op+": ticker fetch failed", map[string]interface{}{"symbol": symbol})
		report.Healthy = false
		report.TickerErr = err
		return report
	}
	report.Ticker = ticker
	logger.Info(ctx, op+": done", map[string]interface{}{"symbol": symbol, "healthy": report.Healthy, "lastPrice": ticker.LastPrice})
	return report
}
