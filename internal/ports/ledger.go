package ports

import (
	"context"
	"time"

	"klineTrader/internal/domain"
)

// TradeLedger persists one record per trade attempt.
type TradeLedger interface {
	// CreateTrade stores a new trade and returns its trade id.
	CreateTrade(ctx context.Context, trade *domain.Trade) (string, error)
	// UpdateTrade sets only the given fields. Fields not in the update keep their values.
	UpdateTrade(ctx context.Context, tradeID string, update domain.TradeUpdate) error
	// FindTrade returns nil, nil when no trade has the id.
	FindTrade(ctx context.Context, tradeID string) (*domain.Trade, error)
	// FindByOrderID looks a trade up by its buy or sell order id. Returns nil, nil if not found.
	FindByOrderID(ctx context.Context, orderID int64) (*domain.Trade, error)
	Close() error
}

// TradeHistory is implemented by ledgers that can list a day's trades.
type TradeHistory interface {
	TradesForDay(ctx context.Context, day time.Time) ([]*domain.Trade, error)
}

// CheckpointStore keeps the in-flight TradeContext so a restarted process can resume.
type CheckpointStore interface {
	Save(ctx context.Context, key string, tc domain.TradeContext) error
	// Load returns nil, nil when nothing is stored under key.
	Load(ctx context.Context, key string) (*domain.TradeContext, error)
	Clear(ctx context.Context, key string) error
	Close() error
}
