package domain

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
	"github.com/jxskiss/base62"
)

// OrderRequest describes an order to be placed.
type OrderRequest struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Price         float64
	Quantity      float64
	ClientOrderID string
}

// Order is the exchange-owned view of an order. The bot only reads it.
type Order struct {
	ID            int64
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Status        OrderStatus
	Price         float64 // Limit price
	AvgPrice      float64 // Average fill price, 0 when nothing filled
	OrigQuantity  float64
	ExecutedQty   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsDone reports whether the order filled completely.
func (o *Order) IsDone() bool {
	return o != nil && o.Status == OrderStatusDone
}

// FillPrice returns the average fill price, falling back to the limit price.
func (o *Order) FillPrice() float64 {
	if o.AvgPrice > 0 {
		return o.AvgPrice
	}
	return o.Price
}

// ClientOrderID derives a short, exchange-safe client order id for one leg of a trade.
func ClientOrderID(tradeID string, side OrderSide) string {
	id, err := uuid.Parse(tradeID)
	if err != nil {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(time.Now().UnixNano()))
		return "kt" + string(side[0]) + base62.EncodeToString(buf[:])
	}
	return "kt" + string(side[0]) + base62.EncodeToString(id[:])
}
