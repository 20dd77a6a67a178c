package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrade_ApplyKeepsEntryFieldsOnExit(t *testing.T) {
	buyTime := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tc := TradeContext{
		TradeID:              uuid.NewString(),
		Symbol:               "btcinr",
		Quantity:             2,
		SpeculatedEntryPrice: 100,
		OriginalEntryPrice:   100.5,
		EntryPrice:           100.5,
		EntryTime:            buyTime,
		BuyOrderID:           11,
		StopLossPrice:        95,
	}
	trade := &Trade{TradeID: tc.TradeID, Symbol: tc.Symbol, Status: TradeStatusPending}

	require.NoError(t, trade.Apply(EntryUpdate(tc)))

	tc.BuyFillPrice = 100.25
	tc.BuyExecutedQty = 2
	tc.SellFillPrice = 109.75
	tc.SellExecutedQty = 1.5
	tc.SpeculatedExitPrice = 110
	tc.OriginalExitPrice = 109.5
	tc.ExitPrice = 109.5
	tc.ExitTime = buyTime.Add(time.Hour)
	tc.SellOrderID = 12
	tc.ExitReason = ExitReasonTarget
	require.NoError(t, trade.Apply(ExitUpdate(tc)))

	assert.Equal(t, TradeStatusClosed, trade.Status)
	assert.Equal(t, 100.0, trade.SpeculatedBuyPrice)
	assert.Equal(t, 100.5, trade.OriginalBuyPrice)
	assert.Equal(t, 201.0, trade.TotalBuyPrice)
	assert.Equal(t, buyTime, trade.TimeOfBuy)
	assert.Equal(t, int64(11), trade.BuyOrderID)
	assert.Equal(t, 95.0, trade.StopLossPrice)
	assert.Equal(t, 219.0, trade.TotalSellPrice)
	assert.Equal(t, int64(12), trade.SellOrderID)
	assert.Equal(t, 100.25, trade.BuyFillPrice)
	assert.Equal(t, 2.0, trade.BuyExecutedQty)
	assert.Equal(t, 109.75, trade.SellFillPrice)
	assert.Equal(t, 1.5, trade.SellExecutedQty)
	assert.InDelta(t, 18.0, trade.NetPnL, 1e-9)
	assert.False(t, trade.StopLossHit)
}

func TestTrade_ApplyRejectsBadValues(t *testing.T) {
	trade := &Trade{}
	assert.Error(t, trade.Apply(TradeUpdate{FieldBuyPrice: "not a number"}))
	assert.Error(t, trade.Apply(TradeUpdate{TradeField("bogus"): 1}))
}

func TestCancelUpdate(t *testing.T) {
	trade := &Trade{Status: TradeStatusOpen, BuyOrderID: 7}
	require.NoError(t, trade.Apply(CancelUpdate(CancelReasonEntryNotFilled)))
	assert.True(t, trade.Cancelled)
	assert.True(t, trade.IsDeleted)
	assert.Equal(t, TradeStatusCancelled, trade.Status)
	assert.Equal(t, CancelReasonEntryNotFilled, trade.CancelReason)
	assert.Equal(t, int64(7), trade.BuyOrderID)
}

func TestNetPnL(t *testing.T) {
	assert.InDelta(t, 0.3, NetPnL(0.1, 0.4, 1), 1e-12)
	assert.InDelta(t, -5.0, NetPnL(10, 9, 5), 1e-12)
}

func TestClientOrderID(t *testing.T) {
	id := uuid.NewString()
	buy := ClientOrderID(id, Buy)
	sell := ClientOrderID(id, Sell)
	assert.NotEqual(t, buy, sell)
	assert.True(t, strings.HasPrefix(buy, "ktB"))
	assert.LessOrEqual(t, len(buy), 36)
	assert.True(t, strings.HasPrefix(ClientOrderID("not-a-uuid", Sell), "ktS"))
}

func TestAfterAndLast(t *testing.T) {
	base := time.Unix(1700000000, 0)
	klines := []*Kline{
		{OpenTime: base},
		{OpenTime: base.Add(time.Minute)},
		{OpenTime: base.Add(2 * time.Minute)},
	}
	assert.Len(t, After(klines, base), 2)
	assert.Empty(t, After(klines, base.Add(2*time.Minute)))
	assert.Equal(t, klines[2], Last(klines))
	assert.Nil(t, Last(nil))
}

func TestOrderBook_Best(t *testing.T) {
	var empty *OrderBook
	_, ok := empty.BestAsk()
	assert.False(t, ok)

	book := &OrderBook{
		Asks: []PriceLevel{{Price: 101, Quantity: 1}, {Price: 102, Quantity: 3}},
		Bids: []PriceLevel{{Price: 99, Quantity: 2}},
	}
	ask, ok := book.BestAsk()
	assert.True(t, ok)
	assert.Equal(t, 101.0, ask)
	bid, ok := book.BestBid()
	assert.True(t, ok)
	assert.Equal(t, 99.0, bid)
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{in: "1m", want: time.Minute},
		{in: "15m", want: 15 * time.Minute},
		{in: "4h", want: 4 * time.Hour},
		{in: "1d", want: 24 * time.Hour},
		{in: "1w", want: 7 * 24 * time.Hour},
		{in: "m", wantErr: true},
		{in: "0m", wantErr: true},
		{in: "3y", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseInterval(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClosedBy(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 30, 0, time.UTC)
	kline := func(open time.Time) *Kline {
		return &Kline{OpenTime: open, CloseTime: open.Add(time.Minute - time.Millisecond)}
	}
	closed := kline(now.Add(-90 * time.Second))
	forming := kline(now.Add(-30 * time.Second))

	assert.Equal(t, []*Kline{closed}, ClosedBy([]*Kline{closed, forming}, now))
	assert.Equal(t, []*Kline{closed}, ClosedBy([]*Kline{closed}, now))
	assert.Empty(t, ClosedBy([]*Kline{forming}, now))
	assert.Empty(t, ClosedBy(nil, now))
}
