package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/risk"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx     context.Context
	ex      *mockExchange
	ledger  *memLedger
	cps     *memCheckpoints
	strat   *stubStrategy
	rep     *recordingReporter
	sleeper *sleepRecorder
	logger  *mockLogger
	runner  *Runner
}

func newFixture(t *testing.T, closePrice float64, strat *stubStrategy, riskCfg risk.RiskConfig) *fixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	if strat.required == 0 {
		strat.required = 3
	}
	if strat.source == "" {
		strat.source = domain.PriceFromCandle
	}
	riskManager, err := risk.NewRiskManager(riskCfg)
	require.NoError(t, err)

	f := &fixture{
		ctx:     ctx,
		ex:      newMockExchange(closePrice),
		ledger:  newMemLedger(),
		cps:     newMemCheckpoints(),
		strat:   strat,
		rep:     &recordingReporter{},
		sleeper: &sleepRecorder{cancel: cancel},
		logger:  &mockLogger{},
	}
	f.runner, err = NewRunner(Config{
		Symbol:       "btcinr",
		Quantity:     2,
		Interval:     "1m",
		WindowMargin: 2,
		BookDepth:    5,
		Retry:        RetryPolicy{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond},
	}, f.logger, f.ex, f.ledger, f.cps, f.rep, strat, riskManager)
	require.NoError(t, err)

	f.runner.now = func() time.Time { return testNow }
	f.runner.sleep = f.sleeper.sleep
	return f
}

func (f *fixture) onlyTrade(t *testing.T) *domain.Trade {
	t.Helper()
	require.Len(t, f.ledger.trades, 1)
	for _, tr := range f.ledger.trades {
		return tr
	}
	return nil
}

func defaultRisk() risk.RiskConfig {
	return risk.RiskConfig{StopLossPercent: 0.02}
}

func TestNewRunner_Validation(t *testing.T) {
	rm, err := risk.NewRiskManager(defaultRisk())
	require.NoError(t, err)
	ex := newMockExchange(100)
	strat := &stubStrategy{required: 3}

	tests := []struct {
		name   string
		cfg    Config
		ledger ports.TradeLedger
	}{
		{name: "missing ledger", cfg: Config{Symbol: "btcinr", Quantity: 1, Interval: "1m"}},
		{name: "missing symbol", cfg: Config{Quantity: 1, Interval: "1m"}, ledger: newMemLedger()},
		{name: "zero quantity", cfg: Config{Symbol: "btcinr", Interval: "1m"}, ledger: newMemLedger()},
		{name: "bad interval", cfg: Config{Symbol: "btcinr", Quantity: 1, Interval: "1x"}, ledger: newMemLedger()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRunner(tt.cfg, &mockLogger{}, ex, tt.ledger, nil, nil, strat, rm)
			assert.ErrorIs(t, err, ports.ErrConfigurationError)
		})
	}
}

func TestRunTrade_InsufficientDataStaysAwaitingEntry(t *testing.T) {
	strat := &stubStrategy{enterErr: fmt.Errorf("ATR: %w", ports.ErrInsufficientData)}
	f := newFixture(t, 100, strat, defaultRisk())
	f.sleeper.limit = 3

	tc, err := f.runner.RunTrade(f.ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.StateAwaitingEntry, tc.State)
	assert.Equal(t, 3, strat.entryCalls)
	assert.Empty(t, f.ex.placed, "no order without defined indicators")
	assert.Empty(t, f.rep.phases)

	trade := f.onlyTrade(t)
	assert.Equal(t, domain.TradeStatusPending, trade.Status)
	assert.Equal(t, "STUB", trade.Strategy)
	assert.Equal(t, 2.0, trade.Quantity)
}

func TestRunTrade_ClosedPath(t *testing.T) {
	strat := &stubStrategy{enterAt: 2, target: 105}
	f := newFixture(t, 100, strat, defaultRisk())
	f.ex.klinesFn = func(call int, start time.Time, limit int) ([]*domain.Kline, error) {
		if call <= 2 {
			return window(limit, 100), nil
		}
		return window(limit, 110), nil
	}
	f.ex.buyFill = 99.8
	f.ex.buyExecuted = 2
	f.ex.sellFill = 110.1

	tc, err := f.runner.RunTrade(f.ctx)
	require.NoError(t, err)

	// Window sizing: required + margin candles ending now.
	assert.Equal(t, 5, f.ex.lastLimit)
	assert.True(t, f.ex.lastStart.Equal(testNow.Add(-5*time.Minute)))

	assert.Equal(t, domain.StateClosed, tc.State)
	assert.Equal(t, domain.ExitReasonTarget, tc.ExitReason)
	assert.Equal(t, []time.Duration{time.Second}, f.sleeper.slept)
	assert.Equal(t, []string{phaseEntry, phaseEntry, phaseExit}, f.rep.phases)

	require.Len(t, f.ex.placed, 2)
	buy, sell := f.ex.placed[0], f.ex.placed[1]
	assert.Equal(t, domain.Buy, buy.Side)
	assert.Equal(t, 100.0, buy.Price)
	assert.Equal(t, 2.0, buy.Quantity)
	assert.Equal(t, domain.OrderTypeLimit, buy.Type)
	assert.Equal(t, domain.ClientOrderID(tc.TradeID, domain.Buy), buy.ClientOrderID)
	assert.Equal(t, domain.Sell, sell.Side)
	assert.Equal(t, 110.0, sell.Price)

	trade := f.onlyTrade(t)
	assert.Equal(t, domain.TradeStatusClosed, trade.Status)
	assert.Equal(t, 100.0, trade.BuyPrice)
	assert.Equal(t, 100.0, trade.SpeculatedBuyPrice)
	assert.Equal(t, 101.0, trade.OriginalBuyPrice)
	assert.Equal(t, 200.0, trade.TotalBuyPrice)
	assert.True(t, trade.TimeOfBuy.Equal(testNow))
	assert.Equal(t, int64(101), trade.BuyOrderID)
	assert.InDelta(t, 98.0, trade.StopLossPrice, 1e-9)
	assert.Equal(t, 110.0, trade.SellPrice)
	assert.Equal(t, 99.0, trade.OriginalSellPrice)
	assert.Equal(t, 220.0, trade.TotalSellPrice)
	assert.Equal(t, int64(102), trade.SellOrderID)
	assert.Equal(t, 99.8, trade.BuyFillPrice)
	assert.Equal(t, 2.0, trade.BuyExecutedQty)
	assert.Equal(t, 110.1, trade.SellFillPrice)
	assert.Equal(t, 2.0, trade.SellExecutedQty)
	assert.False(t, trade.StopLossHit)
	assert.Equal(t, domain.ExitReasonTarget, trade.ExitReason)
	assert.InDelta(t, 20.0, trade.NetPnL, 1e-9)

	assert.Equal(t, []domain.State{domain.StateAwaitingEntry, domain.StatePositionOpen, domain.StateAwaitingExit}, f.cps.saves)
	assert.Empty(t, f.cps.saved, "checkpoint cleared once the trade is closed")
}

func TestRunTrade_IgnoresFormingCandle(t *testing.T) {
	strat := &stubStrategy{enterAt: 1}
	f := newFixture(t, 100, strat, defaultRisk())
	f.ex.klinesFn = func(call int, start time.Time, limit int) ([]*domain.Kline, error) {
		open := testNow.Add(-30 * time.Second)
		forming := &domain.Kline{OpenTime: open, CloseTime: open.Add(time.Minute - time.Millisecond), Open: 150, High: 150, Low: 150, Close: 150}
		return append(window(limit-1, 100), forming), nil
	}

	tc, err := f.runner.RunTrade(f.ctx)
	require.NoError(t, err)

	require.Len(t, f.ex.placed, 2)
	assert.Equal(t, 100.0, f.ex.placed[0].Price, "priced from the last closed candle")
	assert.Equal(t, 100.0, tc.SpeculatedEntryPrice)
	assert.True(t, tc.EntryCandleTime.Equal(testNow.Add(-time.Minute)))
}

func TestRunTrade_StopLossTakesPrecedence(t *testing.T) {
	tests := []struct {
		name     string
		decision ports.ExitDecision
	}{
		{name: "both fire", decision: ports.ExitDecision{Exit: true, Reason: domain.ExitReasonTarget}},
		{name: "only stop-loss fires", decision: ports.ExitDecision{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := &stubStrategy{
				enterAt: 1,
				exitFn: func(call int) (ports.ExitDecision, error) {
					return tt.decision, nil
				},
			}
			f := newFixture(t, 100, strat, defaultRisk())
			f.ex.klinesFn = func(call int, start time.Time, limit int) ([]*domain.Kline, error) {
				if call == 1 {
					return window(limit, 100), nil
				}
				return window(limit, 97), nil
			}

			tc, err := f.runner.RunTrade(f.ctx)
			require.NoError(t, err)

			assert.Equal(t, domain.ExitReasonStopLoss, tc.ExitReason)
			trade := f.onlyTrade(t)
			assert.True(t, trade.StopLossHit)
			assert.Equal(t, domain.ExitReasonStopLoss, trade.ExitReason)
			assert.Equal(t, 97.0, trade.SellPrice)
			assert.InDelta(t, -6.0, trade.NetPnL, 1e-9)
		})
	}
}

func TestRunTrade_ExitWaitsForPredicate(t *testing.T) {
	strat := &stubStrategy{
		enterAt: 1,
		exitFn: func(call int) (ports.ExitDecision, error) {
			switch call {
			case 1:
				return ports.ExitDecision{}, ports.ErrEmptyOrderBook
			case 2:
				return ports.ExitDecision{}, nil
			default:
				return ports.ExitDecision{Exit: true, Reason: domain.ExitReasonTrendReversal}, nil
			}
		},
	}
	f := newFixture(t, 100, strat, defaultRisk())

	tc, err := f.runner.RunTrade(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, strat.exitCalls)
	assert.Len(t, f.sleeper.slept, 2)
	assert.Equal(t, domain.ExitReasonTrendReversal, tc.ExitReason)
	assert.Equal(t, domain.ExitReasonTrendReversal, f.onlyTrade(t).ExitReason)
}

func TestRunTrade_CancelsUnfilledBuy(t *testing.T) {
	tests := []struct {
		name        string
		status      domain.OrderStatus
		cancelErr   error
		wantCancels int
	}{
		{name: "open buy is cancelled", status: domain.OrderStatusOpen, wantCancels: 1},
		{name: "already gone on exchange", status: domain.OrderStatusOpen, cancelErr: ports.ErrOrderNotFound, wantCancels: 1},
		{name: "already cancelled", status: domain.OrderStatusCancelled, wantCancels: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			strat := &stubStrategy{enterAt: 1}
			f := newFixture(t, 100, strat, defaultRisk())
			f.ex.buyStatus = tt.status
			f.ex.cancelErr = tt.cancelErr

			tc, err := f.runner.RunTrade(f.ctx)
			require.NoError(t, err)

			assert.Equal(t, domain.StateCancelled, tc.State)
			assert.Equal(t, tt.wantCancels, f.ex.cancelCalls)
			assert.Equal(t, []domain.OrderSide{domain.Buy}, f.ex.sides(), "no sell for an unfilled buy")

			trade := f.onlyTrade(t)
			assert.Equal(t, domain.TradeStatusCancelled, trade.Status)
			assert.True(t, trade.Cancelled)
			assert.True(t, trade.IsDeleted)
			assert.Equal(t, domain.CancelReasonEntryNotFilled, trade.CancelReason)
			assert.Zero(t, trade.SellOrderID)
			assert.Equal(t, 100.0, trade.BuyPrice, "entry fields survive cancellation")
			assert.Empty(t, f.cps.saved)
		})
	}
}

func TestRunTrade_CancelFailureAborts(t *testing.T) {
	f := newFixture(t, 100, &stubStrategy{enterAt: 1}, defaultRisk())
	f.ex.buyStatus = domain.OrderStatusOpen
	f.ex.cancelErr = ports.ErrOrderCancelFailed

	tc, err := f.runner.RunTrade(f.ctx)
	assert.ErrorIs(t, err, ports.ErrOrderCancelFailed)
	assert.Equal(t, domain.StateAwaitingExit, tc.State)
	assert.NotEmpty(t, f.cps.saved, "checkpoint kept for resume")
}

func TestRunTrade_OrderBookPriceSource(t *testing.T) {
	strat := &stubStrategy{enterAt: 1, source: domain.PriceFromOrderBook}
	f := newFixture(t, 100, strat, defaultRisk())

	tc, err := f.runner.RunTrade(f.ctx)
	require.NoError(t, err)

	require.Len(t, f.ex.placed, 2)
	assert.Equal(t, 101.0, f.ex.placed[0].Price, "buy at best ask")
	assert.Equal(t, 99.0, f.ex.placed[1].Price, "sell at best bid")
	assert.Equal(t, 100.0, tc.SpeculatedEntryPrice)
	assert.Equal(t, 101.0, tc.OriginalEntryPrice)
	assert.InDelta(t, 98.98, tc.StopLossPrice, 1e-9)
	assert.Equal(t, domain.ExitReasonTarget, tc.ExitReason)
	assert.InDelta(t, -4.0, f.onlyTrade(t).NetPnL, 1e-9)
}

func TestRunTrade_ResumesFromCheckpoint(t *testing.T) {
	strat := &stubStrategy{enterAt: 1}
	f := newFixture(t, 110, strat, defaultRisk())

	saved := domain.TradeContext{
		TradeID:       "resume-1",
		Strategy:      "STUB",
		Symbol:        "btcinr",
		Quantity:      2,
		State:         domain.StateAwaitingExit,
		EntryPrice:    100,
		BuyOrderID:    55,
		StopLossPrice: 98,
	}
	_, err := f.ledger.CreateTrade(f.ctx, &domain.Trade{TradeID: "resume-1", Strategy: "STUB", Symbol: "btcinr", Status: domain.TradeStatusPending, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, f.ledger.UpdateTrade(f.ctx, "resume-1", domain.EntryUpdate(saved)))
	f.ledger.creates = 0
	require.NoError(t, f.cps.Save(f.ctx, f.runner.checkpointKey(), saved))

	tc, err := f.runner.RunTrade(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, "resume-1", tc.TradeID)
	assert.Equal(t, domain.StateClosed, tc.State)
	assert.Zero(t, f.ledger.creates)
	assert.Zero(t, strat.entryCalls)
	assert.Equal(t, []domain.OrderSide{domain.Sell}, f.ex.sides())

	trade := f.onlyTrade(t)
	assert.Equal(t, domain.TradeStatusClosed, trade.Status)
	assert.Equal(t, int64(55), trade.BuyOrderID)
	assert.InDelta(t, 20.0, trade.NetPnL, 1e-9)
	assert.Empty(t, f.cps.saved)
}

func TestRunTrade_IgnoresCheckpointForUnknownTrade(t *testing.T) {
	f := newFixture(t, 100, &stubStrategy{enterAt: 1}, defaultRisk())
	require.NoError(t, f.cps.Save(f.ctx, f.runner.checkpointKey(), domain.TradeContext{TradeID: "ghost", State: domain.StateAwaitingExit}))

	tc, err := f.runner.RunTrade(f.ctx)
	require.NoError(t, err)
	assert.NotEqual(t, "ghost", tc.TradeID)
	assert.Equal(t, 1, f.ledger.creates)
	assert.Equal(t, []domain.OrderSide{domain.Buy, domain.Sell}, f.ex.sides())
	assert.Contains(t, f.logger.warnMsgs, "resume: checkpoint refers to unknown trade, starting fresh")
}

func TestRunTrade_RetriesTransientReads(t *testing.T) {
	f := newFixture(t, 100, &stubStrategy{enterAt: 1}, defaultRisk())
	f.ex.klinesFn = func(call int, start time.Time, limit int) ([]*domain.Kline, error) {
		if call <= 2 {
			return nil, fmt.Errorf("GetKlines failed: %w", ports.ErrConnectionFailed)
		}
		return window(limit, 100), nil
	}

	tc, err := f.runner.RunTrade(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StateClosed, tc.State)
	require.Len(t, f.sleeper.slept, 2)
	for _, d := range f.sleeper.slept {
		assert.GreaterOrEqual(t, d, time.Millisecond)
		assert.LessOrEqual(t, d, 2*time.Millisecond)
	}
}

func TestRunTrade_ReadFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{name: "transient exhausts attempts", err: ports.ErrTimeout, wantCalls: 3},
		{name: "non-transient aborts at once", err: ports.ErrAuthenticationFailed, wantCalls: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 100, &stubStrategy{enterAt: 1}, defaultRisk())
			f.ex.klinesFn = func(call int, start time.Time, limit int) ([]*domain.Kline, error) {
				return nil, tt.err
			}

			tc, err := f.runner.RunTrade(f.ctx)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.wantCalls, f.ex.klinesCalls)
			assert.Equal(t, domain.StateAwaitingEntry, tc.State)
		})
	}
}

func TestRunTrade_OrderPlacementIsNotRetried(t *testing.T) {
	f := newFixture(t, 100, &stubStrategy{enterAt: 1}, defaultRisk())
	f.ex.placeErr = ports.ErrConnectionFailed

	tc, err := f.runner.RunTrade(f.ctx)
	assert.ErrorIs(t, err, ports.ErrConnectionFailed)
	assert.Len(t, f.ex.placed, 1)
	assert.Equal(t, domain.StateAwaitingEntry, tc.State)
	assert.Equal(t, domain.TradeStatusPending, f.onlyTrade(t).Status)
}

func TestRun_SequentialTrades(t *testing.T) {
	f := newFixture(t, 100, &stubStrategy{enterAt: 1}, defaultRisk())

	require.NoError(t, f.runner.Run(f.ctx, 2))

	assert.Equal(t, 2, f.ledger.creates)
	assert.Equal(t, []domain.OrderSide{domain.Buy, domain.Sell, domain.Buy, domain.Sell}, f.ex.sides())
	for _, tr := range f.ledger.trades {
		assert.Equal(t, domain.TradeStatusClosed, tr.Status)
	}
	assert.Empty(t, f.cps.saved)
}

func TestRun_StopsAtDailyTradeLimit(t *testing.T) {
	f := newFixture(t, 100, &stubStrategy{enterAt: 1}, risk.RiskConfig{StopLossPercent: 0.02, MaxDailyTrades: 1})

	require.NoError(t, f.runner.Run(f.ctx, 3))
	assert.Equal(t, 1, f.ledger.creates)
	assert.Contains(t, f.logger.warnMsgs, "Run: risk limit reached, no further trades")
}

func TestRun_ReturnsTradeError(t *testing.T) {
	f := newFixture(t, 100, &stubStrategy{enterAt: 1}, defaultRisk())
	f.ex.bookErr = ports.ErrInvalidRequest

	err := f.runner.Run(f.ctx, 2)
	assert.True(t, errors.Is(err, ports.ErrInvalidRequest))
	assert.Equal(t, 1, f.ledger.creates)
}
