package ports

import (
	"context"
	"time"

	"klineTrader/internal/domain"
)

// Ticker holds 24 hour price change statistics for a symbol.
type Ticker struct {
	Symbol    string
	LastPrice float64
	Open      float64
	High      float64
	Low       float64
	Volume    float64
	BestBid   float64
	BestAsk   float64
	At        time.Time
}

// ExchangeClient defines the interface for interacting with a cryptocurrency exchange.
// This abstraction allows decoupling the core bot logic from specific exchange implementations.
type ExchangeClient interface {
	// Ping checks the exchange system status.
	Ping(ctx context.Context) error

	// GetTicker retrieves 24h statistics for a symbol.
	GetTicker(ctx context.Context, symbol string) (*Ticker, error)

	// GetKlines retrieves up to limit klines starting at startTime, ascending.
	GetKlines(ctx context.Context, symbol, interval string, startTime time.Time, limit int) ([]*domain.Kline, error)

	// GetOrderBook retrieves a depth snapshot.
	GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error)

	// PlaceOrder submits a new order.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error)

	// GetOrder queries the current state of an order.
	GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error)

	// CancelOrder cancels an existing open order by its ID.
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error)
}
