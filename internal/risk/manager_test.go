package risk

import (
	"context"
	"testing"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRiskManager_Validation(t *testing.T) {
	tests := []struct {
		name        string
		config      RiskConfig
		expectError bool
	}{
		{name: "valid", config: RiskConfig{StopLossPercent: 0.02}},
		{name: "stop disabled", config: RiskConfig{}},
		{name: "negative stop", config: RiskConfig{StopLossPercent: -0.1}, expectError: true},
		{name: "stop of 100%", config: RiskConfig{StopLossPercent: 1}, expectError: true},
		{name: "negative limit", config: RiskConfig{MaxDailyTrades: -1}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRiskManager(tt.config)
			if tt.expectError {
				assert.ErrorIs(t, err, ports.ErrConfigurationError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRiskManager_StopLoss(t *testing.T) {
	manager, err := NewRiskManager(RiskConfig{StopLossPercent: 0.02})
	require.NoError(t, err)

	stop := manager.GetStopLoss(100)
	assert.InDelta(t, 98.0, stop, 1e-9)

	tc := domain.TradeContext{StopLossPrice: stop}
	assert.False(t, manager.StopLossHit(tc, 98.5))
	assert.True(t, manager.StopLossHit(tc, 98))
	assert.True(t, manager.StopLossHit(tc, 90))

	disabled, err := NewRiskManager(RiskConfig{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, disabled.GetStopLoss(100))
	assert.False(t, disabled.StopLossHit(domain.TradeContext{}, 1))
}

func TestRiskManager_ResolveExit(t *testing.T) {
	manager, err := NewRiskManager(RiskConfig{StopLossPercent: 0.05})
	require.NoError(t, err)
	tc := domain.TradeContext{EntryPrice: 100, StopLossPrice: 95}

	tests := []struct {
		name       string
		price      float64
		decision   ports.ExitDecision
		wantExit   bool
		wantReason domain.ExitReason
	}{
		{name: "nothing fires", price: 99, decision: ports.ExitDecision{}},
		{name: "target only", price: 99, decision: ports.ExitDecision{Exit: true, Reason: domain.ExitReasonTarget}, wantExit: true, wantReason: domain.ExitReasonTarget},
		{name: "target without reason", price: 99, decision: ports.ExitDecision{Exit: true}, wantExit: true, wantReason: domain.ExitReasonTarget},
		{name: "stop only", price: 94, decision: ports.ExitDecision{}, wantExit: true, wantReason: domain.ExitReasonStopLoss},
		{name: "stop wins over target", price: 95, decision: ports.ExitDecision{Exit: true, Reason: domain.ExitReasonTarget}, wantExit: true, wantReason: domain.ExitReasonStopLoss},
		{name: "stop wins over reversal", price: 80, decision: ports.ExitDecision{Exit: true, Reason: domain.ExitReasonTrendReversal}, wantExit: true, wantReason: domain.ExitReasonStopLoss},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := manager.ResolveExit(context.Background(), tc, tt.price, tt.decision)
			assert.Equal(t, tt.wantExit, got.Exit)
			assert.Equal(t, tt.wantReason, got.Reason)
		})
	}
}

func TestRiskManager_Limits(t *testing.T) {
	ctx := context.Background()
	manager, err := NewRiskManager(RiskConfig{MaxQuantity: 2, MaxDailyLoss: 10, MaxDailyTrades: 3})
	require.NoError(t, err)
	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return day }
	manager.stats.LastResetTime = day

	assert.NoError(t, manager.ValidateEntry(ctx, 1))
	assert.ErrorIs(t, manager.ValidateEntry(ctx, 3), ports.ErrInvalidRequest)
	assert.ErrorIs(t, manager.ValidateEntry(ctx, 0), ports.ErrInvalidRequest)

	// A losing close of 12 trips the daily loss limit.
	manager.UpdateStats(ctx, domain.TradeContext{State: domain.StateClosed, EntryPrice: 100, ExitPrice: 94, Quantity: 2, ExitReason: domain.ExitReasonStopLoss})
	stats := manager.GetStats()
	assert.InDelta(t, -12.0, stats.DailyPnL, 1e-9)
	assert.Equal(t, 1, stats.StopLossHits)
	assert.ErrorIs(t, manager.CheckRiskLimits(ctx), ports.ErrPermissionDenied)

	// Next day the counters reset.
	manager.now = func() time.Time { return day.Add(24 * time.Hour) }
	assert.NoError(t, manager.CheckRiskLimits(ctx))
	assert.Equal(t, 0, manager.GetStats().DailyTrades)
}

func TestRiskManager_DailyTradeLimit(t *testing.T) {
	ctx := context.Background()
	manager, err := NewRiskManager(RiskConfig{MaxDailyTrades: 2})
	require.NoError(t, err)

	manager.UpdateStats(ctx, domain.TradeContext{State: domain.StateCancelled})
	assert.NoError(t, manager.CheckRiskLimits(ctx))
	manager.UpdateStats(ctx, domain.TradeContext{State: domain.StateClosed, EntryPrice: 1, ExitPrice: 2, Quantity: 1})
	assert.ErrorIs(t, manager.CheckRiskLimits(ctx), ports.ErrPermissionDenied)
	assert.InDelta(t, 1.0, manager.GetStats().DailyPnL, 1e-9)
}
