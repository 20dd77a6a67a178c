package domain

import "time"

// PriceLevel is a single price+quantity entry of an order book side.
type PriceLevel struct {
	Price    float64
	Quantity float64
}

// OrderBook is a depth snapshot, best price first on both sides.
type OrderBook struct {
	Symbol    string
	Asks      []PriceLevel
	Bids      []PriceLevel
	Timestamp time.Time
}

// BestAsk returns the lowest ask, false when the ask side is empty.
func (b *OrderBook) BestAsk() (float64, bool) {
	if b == nil || len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price, true
}

// BestBid returns the highest bid, false when the bid side is empty.
func (b *OrderBook) BestBid() (float64, bool) {
	if b == nil || len(b.Bids) == 0 {
		return 0, false
	}
	return b.Bids[0].Price, true
}
