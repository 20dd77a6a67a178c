package backtesting

import (
	"context"
	"errors"
	"fmt"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/risk"
	"klineTrader/internal/strategy/analytics"
)

// BacktestConfig holds configuration for backtesting
type BacktestConfig struct {
	Symbol       string
	Quantity     float64
	InitialFunds float64
	WindowMargin int // Candles fed to the strategy beyond RequiredDataPoints, as in live polling
}

// BacktestResult holds the results of a backtest
type BacktestResult struct {
	Strategy string
	Symbol   string
	Candles  int
	Trades   []*domain.Trade // Closed trades in entry order
	Open     *domain.Trade   // Position still open when the data ran out
	Metrics  *analytics.PerformanceMetrics
}

// Backtest replays klines through strat one candle at a time. Orders fill at
// the candle close; the candle close stands in for both sides of the book.
func Backtest(ctx context.Context, strat ports.Strategy, riskManager *risk.RiskManager, klines []*domain.Kline, config BacktestConfig) (*BacktestResult, error) {
	required := strat.RequiredDataPoints()
	if len(klines) < required {
		return nil, fmt.Errorf("%w: need %d klines for %s, got %d", ports.ErrInsufficientData, required, strat.Code(), len(klines))
	}
	if config.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest)
	}
	window := required + max(config.WindowMargin, 0)

	result := &BacktestResult{
		Strategy: strat.Code(),
		Symbol:   config.Symbol,
		Candles:  len(klines),
	}

	var open *domain.TradeContext
	for i := required - 1; i < len(klines); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		current := klines[i]
		snap := ports.MarketSnapshot{
			Klines:    klines[max(0, i+1-window) : i+1],
			OrderBook: bookAt(current),
			Time:      current.CloseTime,
		}

		if open == nil {
			decision, err := strat.ShouldEnter(ctx, snap)
			if notReady(err) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("entry evaluation at %s failed: %w", current.HumanTime(), err)
			}
			if decision.Enter {
				open = &domain.TradeContext{
					TradeID:              fmt.Sprintf("bt-%s-%d", strat.Code(), len(result.Trades)+1),
					Strategy:             strat.Code(),
					Symbol:               config.Symbol,
					Quantity:             config.Quantity,
					State:                domain.StateAwaitingExit,
					SpeculatedEntryPrice: current.Close,
					OriginalEntryPrice:   current.Close,
					EntryPrice:           current.Close,
					EntryCandleTime:      current.OpenTime,
					EntryTime:            current.CloseTime,
					TargetPrice:          decision.TargetPrice,
					StopLossPrice:        riskManager.GetStopLoss(current.Close),
				}
			}
			continue
		}

		decision, err := strat.ShouldExit(ctx, *open, snap)
		if notReady(err) {
			decision = ports.ExitDecision{}
		} else if err != nil {
			return nil, fmt.Errorf("exit evaluation at %s failed: %w", current.HumanTime(), err)
		}
		decision = riskManager.ResolveExit(ctx, *open, current.Close, decision)
		if !decision.Exit {
			continue
		}

		open.SpeculatedExitPrice = current.Close
		open.OriginalExitPrice = current.Close
		open.ExitPrice = current.Close
		open.ExitTime = current.CloseTime
		open.ExitReason = decision.Reason
		open.State = domain.StateClosed

		trade, err := record(*open)
		if err != nil {
			return nil, err
		}
		result.Trades = append(result.Trades, trade)
		open = nil
	}

	if open != nil {
		trade, err := record(*open)
		if err != nil {
			return nil, err
		}
		result.Open = trade
	}

	result.Metrics = analytics.AnalyzePerformance(result.Trades, config.InitialFunds)
	return result, nil
}

// record builds the ledger document the live runner would have written.
func record(tc domain.TradeContext) (*domain.Trade, error) {
	t := &domain.Trade{
		TradeID:   tc.TradeID,
		Strategy:  tc.Strategy,
		Symbol:    tc.Symbol,
		Status:    domain.TradeStatusPending,
		Quantity:  tc.Quantity,
		CreatedAt: tc.EntryTime,
		UpdatedAt: tc.EntryTime,
	}
	if err := t.Apply(domain.EntryUpdate(tc)); err != nil {
		return nil, err
	}
	if tc.State == domain.StateClosed {
		if err := t.Apply(domain.ExitUpdate(tc)); err != nil {
			return nil, err
		}
		t.UpdatedAt = tc.ExitTime
	}
	return t, nil
}

func bookAt(k *domain.Kline) *domain.OrderBook {
	level := []domain.PriceLevel{{Price: k.Close, Quantity: k.Volume}}
	return &domain.OrderBook{Symbol: k.Symbol, Asks: level, Bids: level, Timestamp: k.CloseTime}
}

func notReady(err error) bool {
	return errors.Is(err, ports.ErrInsufficientData) || errors.Is(err, ports.ErrEmptyOrderBook)
}
