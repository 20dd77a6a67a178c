package ports

import (
	"context"
	"time"

	"klineTrader/internal/domain"
)

// MarketSnapshot is everything a predicate may look at on one tick.
type MarketSnapshot struct {
	Klines    []*domain.Kline // Ascending; the last element is the most recent closed candle
	OrderBook *domain.OrderBook
	Time      time.Time
}

// EntryDecision is the outcome of an entry predicate.
type EntryDecision struct {
	Enter       bool
	TargetPrice float64            // Optional exit target fixed at entry time
	Readings    map[string]float64 // Latest indicator values, for display
}

// ExitDecision is the outcome of an exit predicate.
type ExitDecision struct {
	Exit     bool
	Reason   domain.ExitReason
	Readings map[string]float64
}

// EntryPredicate decides whether to open a position.
type EntryPredicate interface {
	ShouldEnter(ctx context.Context, snap MarketSnapshot) (EntryDecision, error)
}

// ExitPredicate decides whether to close an open position.
type ExitPredicate interface {
	ShouldExit(ctx context.Context, tc domain.TradeContext, snap MarketSnapshot) (ExitDecision, error)
}

// Strategy pairs an entry and exit predicate with its polling parameters.
type Strategy interface {
	EntryPredicate
	ExitPredicate

	// Code is the CLI selector, e.g. "ATR".
	Code() string
	// RequiredDataPoints returns the minimum number of klines needed for the strategy calculations.
	RequiredDataPoints() int
	// PollInterval is the sleep between ticks.
	PollInterval() time.Duration
	// PriceSource selects whether orders are priced from the candle or the order book.
	PriceSource() domain.PriceSource
}
