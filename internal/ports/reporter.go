package ports

import (
	"context"

	"klineTrader/internal/domain"
)

// TickReport describes one evaluated tick for display.
type TickReport struct {
	Phase    string // "Trying to Buy" or "Trying to Sell"
	Trade    domain.TradeContext
	Klines   []*domain.Kline
	BestAsk  float64
	BestBid  float64
	Readings map[string]float64
}

// StatusReporter renders tick progress to an operator.
type StatusReporter interface {
	ReportTick(ctx context.Context, report TickReport)
}
