package domain

import "time"

// State is a node of the strategy state machine.
type State string

const (
	StateIdle          State = "IDLE"
	StateAwaitingEntry State = "AWAITING_ENTRY"
	StatePositionOpen  State = "POSITION_OPEN"
	StateAwaitingExit  State = "AWAITING_EXIT"
	StateClosed        State = "CLOSED"
	StateCancelled     State = "CANCELLED"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateClosed || s == StateCancelled
}

// TradeContext carries everything a run knows about its trade between transitions.
// It is passed and returned by value.
type TradeContext struct {
	TradeID  string    `json:"trade_id"`
	Strategy string    `json:"strategy"`
	Symbol   string    `json:"symbol"`
	Quantity float64   `json:"quantity"`
	State    State     `json:"state"`
	Started  time.Time `json:"started"`

	SpeculatedEntryPrice float64   `json:"speculated_entry_price,omitempty"`
	OriginalEntryPrice   float64   `json:"original_entry_price,omitempty"`
	EntryPrice           float64   `json:"entry_price,omitempty"` // Price the buy order was placed at
	EntryCandleTime      time.Time `json:"entry_candle_time,omitempty"`
	EntryTime            time.Time `json:"entry_time,omitempty"`
	BuyOrderID           int64     `json:"buy_order_id,omitempty"`
	BuyFillPrice         float64   `json:"buy_fill_price,omitempty"`
	BuyExecutedQty       float64   `json:"buy_executed_qty,omitempty"`
	TargetPrice          float64   `json:"target_price,omitempty"`
	StopLossPrice        float64   `json:"stop_loss_price,omitempty"`

	SpeculatedExitPrice float64    `json:"speculated_exit_price,omitempty"`
	OriginalExitPrice   float64    `json:"original_exit_price,omitempty"`
	ExitPrice           float64    `json:"exit_price,omitempty"`
	ExitTime            time.Time  `json:"exit_time,omitempty"`
	SellOrderID         int64      `json:"sell_order_id,omitempty"`
	SellFillPrice       float64    `json:"sell_fill_price,omitempty"`
	SellExecutedQty     float64    `json:"sell_executed_qty,omitempty"`
	ExitReason          ExitReason `json:"exit_reason,omitempty"`
	CancelReason        string     `json:"cancel_reason,omitempty"`
}
