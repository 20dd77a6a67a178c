package mongoledger

import (
	"context"
	"testing"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type nopLogger struct{}

func (nopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (nopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (nopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func TestNew_ConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing logger", cfg: Config{URI: "mongodb://localhost:27017", Database: "trading"}},
		{name: "missing uri", cfg: Config{Database: "trading", Logger: nopLogger{}}},
		{name: "missing database", cfg: Config{URI: "mongodb://localhost:27017", Logger: nopLogger{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg)
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
		})
	}
}

func TestSetDocument(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	set, err := setDocument(domain.CancelUpdate(domain.CancelReasonEntryNotFilled), now)
	require.NoError(t, err)

	assert.Equal(t, bson.M{
		"status":          domain.TradeStatusCancelled,
		"orderCancelled":  true,
		"cancelledReason": domain.CancelReasonEntryNotFilled,
		"isDeleted":       true,
		"updatedAt":       now,
	}, set)
}

func TestSetDocument_OnlyGivenFields(t *testing.T) {
	tc := domain.TradeContext{Quantity: 2, EntryPrice: 50, BuyOrderID: 9}
	set, err := setDocument(domain.EntryUpdate(tc), time.Now())
	require.NoError(t, err)

	assert.Equal(t, 100.0, set["totalAssetBuyPrice"])
	assert.Equal(t, int64(9), set["buyOrderId"])
	assert.NotContains(t, set, "sellOrderId")
	assert.NotContains(t, set, "tradeId")
}

func TestSetDocument_Invalid(t *testing.T) {
	_, err := setDocument(domain.TradeUpdate{domain.FieldSellOrderID: "12"}, time.Now())
	assert.Error(t, err)
}

func TestNewestFirst(t *testing.T) {
	got := newestFirst([]string{"trades-2024-05-30", "system.views", "trades-2024-06-01", "trades-2023-12-31"})
	assert.Equal(t, []string{"trades-2024-06-01", "trades-2024-05-30", "trades-2023-12-31"}, got)
}

func TestOrderFilter(t *testing.T) {
	f := orderFilter(77)
	or, ok := f["$or"].(bson.A)
	require.True(t, ok)
	assert.Equal(t, bson.A{bson.M{"buyOrderId": int64(77)}, bson.M{"sellOrderId": int64(77)}}, or)
}
