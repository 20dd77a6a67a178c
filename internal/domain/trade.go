package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is the persisted record of a single trade attempt.
// Field tags are the document keys used by the ledger.
type Trade struct {
	TradeID  string      `bson:"tradeId"`
	Strategy string      `bson:"strategy"`
	Symbol   string      `bson:"assetSymbol"`
	Status   TradeStatus `bson:"status"`
	Quantity float64     `bson:"quantity"`

	SpeculatedBuyPrice float64   `bson:"speculatedBuyPrice,omitempty"`
	OriginalBuyPrice   float64   `bson:"originalBuyPrice,omitempty"`
	BuyPrice           float64   `bson:"buyAssetPrice,omitempty"`
	TotalBuyPrice      float64   `bson:"totalAssetBuyPrice,omitempty"`
	TimeOfBuy          time.Time `bson:"timeOfBuy,omitempty"`
	BuyOrderID         int64     `bson:"buyOrderId,omitempty"`
	BuyFillPrice       float64   `bson:"buyFillPrice,omitempty"` // Average fill reported by the exchange
	BuyExecutedQty     float64   `bson:"buyExecutedQty,omitempty"`

	SpeculatedSellPrice float64   `bson:"speculatedSellPrice,omitempty"`
	OriginalSellPrice   float64   `bson:"originalSellPrice,omitempty"`
	SellPrice           float64   `bson:"sellAssetPrice,omitempty"`
	TotalSellPrice      float64   `bson:"totalAssetSellPrice,omitempty"`
	TimeOfSell          time.Time `bson:"timeOfSell,omitempty"`
	SellOrderID         int64     `bson:"sellOrderId,omitempty"`
	SellFillPrice       float64   `bson:"sellFillPrice,omitempty"`
	SellExecutedQty     float64   `bson:"sellExecutedQty,omitempty"`

	StopLossPrice float64    `bson:"stopLossPrice,omitempty"`
	StopLossHit   bool       `bson:"stopLossHit"`
	ExitReason    ExitReason `bson:"exitReason,omitempty"`

	Cancelled    bool   `bson:"orderCancelled"`
	CancelReason string `bson:"cancelledReason,omitempty"`
	IsDeleted    bool   `bson:"isDeleted"`

	NetPnL float64 `bson:"netProfitLoss,omitempty"`

	CreatedAt time.Time `bson:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// TradeField names a mutable trade attribute. Values match the Trade bson tags.
type TradeField string

const (
	FieldStatus              TradeField = "status"
	FieldQuantity            TradeField = "quantity"
	FieldSpeculatedBuyPrice  TradeField = "speculatedBuyPrice"
	FieldOriginalBuyPrice    TradeField = "originalBuyPrice"
	FieldBuyPrice            TradeField = "buyAssetPrice"
	FieldTotalBuyPrice       TradeField = "totalAssetBuyPrice"
	FieldTimeOfBuy           TradeField = "timeOfBuy"
	FieldBuyOrderID          TradeField = "buyOrderId"
	FieldBuyFillPrice        TradeField = "buyFillPrice"
	FieldBuyExecutedQty      TradeField = "buyExecutedQty"
	FieldSpeculatedSellPrice TradeField = "speculatedSellPrice"
	FieldOriginalSellPrice   TradeField = "originalSellPrice"
	FieldSellPrice           TradeField = "sellAssetPrice"
	FieldTotalSellPrice      TradeField = "totalAssetSellPrice"
	FieldTimeOfSell          TradeField = "timeOfSell"
	FieldSellOrderID         TradeField = "sellOrderId"
	FieldSellFillPrice       TradeField = "sellFillPrice"
	FieldSellExecutedQty     TradeField = "sellExecutedQty"
	FieldStopLossPrice       TradeField = "stopLossPrice"
	FieldStopLossHit         TradeField = "stopLossHit"
	FieldExitReason          TradeField = "exitReason"
	FieldCancelled           TradeField = "orderCancelled"
	FieldCancelReason        TradeField = "cancelledReason"
	FieldIsDeleted           TradeField = "isDeleted"
	FieldNetPnL              TradeField = "netProfitLoss"
)

// TradeUpdate is a partial update: only the listed fields change.
type TradeUpdate map[TradeField]interface{}

// EntryUpdate builds the fields written when the buy order is placed.
func EntryUpdate(tc TradeContext) TradeUpdate {
	return TradeUpdate{
		FieldStatus:             TradeStatusOpen,
		FieldQuantity:           tc.Quantity,
		FieldSpeculatedBuyPrice: tc.SpeculatedEntryPrice,
		FieldOriginalBuyPrice:   tc.OriginalEntryPrice,
		FieldBuyPrice:           tc.EntryPrice,
		FieldTotalBuyPrice:      Total(tc.EntryPrice, tc.Quantity),
		FieldTimeOfBuy:          tc.EntryTime,
		FieldBuyOrderID:         tc.BuyOrderID,
		FieldBuyFillPrice:       tc.BuyFillPrice,
		FieldBuyExecutedQty:     tc.BuyExecutedQty,
		FieldStopLossPrice:      tc.StopLossPrice,
	}
}

// ExitUpdate builds the fields written when the sell order is placed.
func ExitUpdate(tc TradeContext) TradeUpdate {
	return TradeUpdate{
		FieldStatus:              TradeStatusClosed,
		FieldSpeculatedSellPrice: tc.SpeculatedExitPrice,
		FieldOriginalSellPrice:   tc.OriginalExitPrice,
		FieldSellPrice:           tc.ExitPrice,
		FieldTotalSellPrice:      Total(tc.ExitPrice, tc.Quantity),
		FieldTimeOfSell:          tc.ExitTime,
		FieldSellOrderID:         tc.SellOrderID,
		FieldSellFillPrice:       tc.SellFillPrice,
		FieldSellExecutedQty:     tc.SellExecutedQty,
		FieldBuyFillPrice:        tc.BuyFillPrice,
		FieldBuyExecutedQty:      tc.BuyExecutedQty,
		FieldStopLossHit:         tc.ExitReason == ExitReasonStopLoss,
		FieldExitReason:          tc.ExitReason,
		FieldNetPnL:              NetPnL(tc.EntryPrice, tc.ExitPrice, tc.Quantity),
	}
}

// CancelUpdate builds the cancellation-cleanup fields.
func CancelUpdate(reason string) TradeUpdate {
	return TradeUpdate{
		FieldStatus:       TradeStatusCancelled,
		FieldCancelled:    true,
		FieldCancelReason: reason,
		FieldIsDeleted:    true,
	}
}

// Total returns price*quantity rounded through decimal arithmetic.
func Total(price, quantity float64) float64 {
	f, _ := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity)).Float64()
	return f
}

// NetPnL returns sell total minus buy total.
func NetPnL(buyPrice, sellPrice, quantity float64) float64 {
	q := decimal.NewFromFloat(quantity)
	buy := decimal.NewFromFloat(buyPrice).Mul(q)
	sell := decimal.NewFromFloat(sellPrice).Mul(q)
	f, _ := sell.Sub(buy).Float64()
	return f
}

// Apply copies the update into t. Ledgers that keep whole documents in memory use it.
func (t *Trade) Apply(u TradeUpdate) error {
	for field, v := range u {
		var ok bool
		switch field {
		case FieldStatus:
			t.Status, ok = v.(TradeStatus)
		case FieldQuantity:
			t.Quantity, ok = v.(float64)
		case FieldSpeculatedBuyPrice:
			t.SpeculatedBuyPrice, ok = v.(float64)
		case FieldOriginalBuyPrice:
			t.OriginalBuyPrice, ok = v.(float64)
		case FieldBuyPrice:
			t.BuyPrice, ok = v.(float64)
		case FieldTotalBuyPrice:
			t.TotalBuyPrice, ok = v.(float64)
		case FieldTimeOfBuy:
			t.TimeOfBuy, ok = v.(time.Time)
		case FieldBuyOrderID:
			t.BuyOrderID, ok = v.(int64)
		case FieldBuyFillPrice:
			t.BuyFillPrice, ok = v.(float64)
		case FieldBuyExecutedQty:
			t.BuyExecutedQty, ok = v.(float64)
		case FieldSpeculatedSellPrice:
			t.SpeculatedSellPrice, ok = v.(float64)
		case FieldOriginalSellPrice:
			t.OriginalSellPrice, ok = v.(float64)
		case FieldSellPrice:
			t.SellPrice, ok = v.(float64)
		case FieldTotalSellPrice:
			t.TotalSellPrice, ok = v.(float64)
		case FieldTimeOfSell:
			t.TimeOfSell, ok = v.(time.Time)
		case FieldSellOrderID:
			t.SellOrderID, ok = v.(int64)
		case FieldSellFillPrice:
			t.SellFillPrice, ok = v.(float64)
		case FieldSellExecutedQty:
			t.SellExecutedQty, ok = v.(float64)
		case FieldStopLossPrice:
			t.StopLossPrice, ok = v.(float64)
		case FieldStopLossHit:
			t.StopLossHit, ok = v.(bool)
		case FieldExitReason:
			t.ExitReason, ok = v.(ExitReason)
		case FieldCancelled:
			t.Cancelled, ok = v.(bool)
		case FieldCancelReason:
			t.CancelReason, ok = v.(string)
		case FieldIsDeleted:
			t.IsDeleted, ok = v.(bool)
		case FieldNetPnL:
			t.NetPnL, ok = v.(float64)
		default:
			return fmt.Errorf("unknown trade field %q", field)
		}
		if !ok {
			return fmt.Errorf("invalid value %v (%T) for trade field %q", v, v, field)
		}
	}
	return nil
}

// CollectionName returns the per-day ledger collection for t.
func CollectionName(t time.Time) string {
	return "trades-" + t.Format("2006-01-02")
}
