package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType represents how an order is priced on the exchange.
type OrderType string

const (
	OrderTypeLimit  OrderType = "LIMIT"
	OrderTypeMarket OrderType = "MARKET"
)

// OrderStatus is the normalized lifecycle status of an exchange order.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "open"
	OrderStatusDone      OrderStatus = "done"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// TradeStatus represents the persisted status of a trade attempt.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "pending"
	TradeStatusOpen      TradeStatus = "open"
	TradeStatusClosed    TradeStatus = "closed"
	TradeStatusCancelled TradeStatus = "cancelled"
)

// ExitReason indicates why a position was exited.
type ExitReason string

const (
	ExitReasonNone          ExitReason = ""
	ExitReasonTarget        ExitReason = "TARGET"         // Strategy exit predicate fired
	ExitReasonStopLoss      ExitReason = "SL"             // Stop-loss threshold breached
	ExitReasonTrendReversal ExitReason = "TREND_REVERSAL" // Moving averages crossed back
)

// CancelReasonEntryNotFilled is recorded when the buy leg never completed.
const CancelReasonEntryNotFilled = "BUY_ORDER_NOT_FULFILLED"

// PriceSource selects where order prices come from.
type PriceSource string

const (
	PriceFromCandle    PriceSource = "candle"    // Last closed candle
	PriceFromOrderBook PriceSource = "orderbook" // Best ask for buys, best bid for sells
)
