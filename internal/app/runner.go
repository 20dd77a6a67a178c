// Package app drives a strategy through the trade state machine.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/risk"

	"github.com/google/uuid"
)

const (
	phaseEntry = "Trying to Buy"
	phaseExit  = "Trying to Sell"
)

// Config holds the per-run trading parameters.
type Config struct {
	Symbol       string
	Quantity     float64
	Interval     string // Kline interval, e.g. "1m"
	WindowMargin int    // Extra candles fetched beyond the strategy's minimum
	BookDepth    int
	Retry        RetryPolicy
}

// Runner executes trades one after another with a single strategy.
type Runner struct {
	cfg         Config
	interval    time.Duration
	logger      ports.Logger
	exchange    ports.ExchangeClient
	ledger      ports.TradeLedger
	checkpoints ports.CheckpointStore
	reporter    ports.StatusReporter
	strategy    ports.Strategy
	risk        *risk.RiskManager
	retry       retrier

	now   func() time.Time
	sleep sleepFunc
}

// NewRunner creates a runner. checkpoints and reporter may be nil.
func NewRunner(
	cfg Config,
	logger ports.Logger,
	exchange ports.ExchangeClient,
	ledger ports.TradeLedger,
	checkpoints ports.CheckpointStore,
	reporter ports.StatusReporter,
	strat ports.Strategy,
	riskManager *risk.RiskManager,
) (*Runner, error) {
	if logger == nil || exchange == nil || ledger == nil || strat == nil || riskManager == nil {
		return nil, fmt.Errorf("%w: missing required dependencies for Runner", ports.ErrConfigurationError)
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ports.ErrConfigurationError)
	}
	if cfg.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrConfigurationError)
	}
	interval, err := domain.ParseInterval(cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ports.ErrConfigurationError, err)
	}
	if cfg.WindowMargin < 0 {
		cfg.WindowMargin = 0
	}
	if cfg.BookDepth <= 0 {
		cfg.BookDepth = 5
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy
	}

	r := &Runner{
		cfg:         cfg,
		interval:    interval,
		logger:      logger,
		exchange:    exchange,
		ledger:      ledger,
		checkpoints: checkpoints,
		reporter:    reporter,
		strategy:    strat,
		risk:        riskManager,
		now:         time.Now,
		sleep:       sleepContext,
	}
	r.retry = retrier{policy: cfg.Retry, logger: logger, sleep: r.pause}
	return r, nil
}

// pause defers to the runner's sleep so tests can swap it after construction.
func (r *Runner) pause(ctx context.Context, d time.Duration) error {
	return r.sleep(ctx, d)
}

// Run executes up to trades sequential trades. It stops early, without error,
// once a daily risk limit is reached.
func (r *Runner) Run(ctx context.Context, trades int) error {
	op := "Run"
	r.logger.Info(ctx, op+": starting", map[string]interface{}{
		"strategy": r.strategy.Code(),
		"symbol":   r.cfg.Symbol,
		"quantity": r.cfg.Quantity,
		"trades":   trades,
	})

	for i := 1; i <= trades; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		tc, err := r.RunTrade(ctx)
		if errors.Is(err, ports.ErrPermissionDenied) {
			r.logger.Warn(ctx, op+": risk limit reached, no further trades", map[string]interface{}{"completed": i - 1, "reason": err.Error()})
			return nil
		}
		if err != nil {
			r.logger.Error(ctx, err, op+": trade failed", map[string]interface{}{"trade": i, "tradeID": tc.TradeID, "state": tc.State})
			return err
		}
		r.logger.Info(ctx, op+": trade finished", map[string]interface{}{
			"trade":   i,
			"tradeID": tc.TradeID,
			"state":   tc.State,
			"reason":  tc.ExitReason,
		})
	}
	return nil
}

// RunTrade drives one trade from Idle, or from a saved checkpoint, to a terminal state.
func (r *Runner) RunTrade(ctx context.Context) (domain.TradeContext, error) {
	tc, resumed, err := r.resume(ctx)
	if err != nil {
		return tc, err
	}
	if !resumed {
		if err := r.risk.ValidateEntry(ctx, r.cfg.Quantity); err != nil {
			return tc, err
		}
		if tc, err = r.start(ctx); err != nil {
			return tc, err
		}
	}

	for !tc.State.IsTerminal() {
		switch tc.State {
		case domain.StateAwaitingEntry:
			tc, err = r.awaitEntry(ctx, tc)
		case domain.StatePositionOpen:
			tc.State = domain.StateAwaitingExit
			r.saveCheckpoint(ctx, tc)
		case domain.StateAwaitingExit:
			tc, err = r.awaitExit(ctx, tc)
		default:
			err = fmt.Errorf("%w: unexpected state %s", ports.ErrInvalidRequest, tc.State)
		}
		if err != nil {
			return tc, err
		}
	}

	r.risk.UpdateStats(ctx, tc)
	r.clearCheckpoint(ctx)
	return tc, nil
}

// start creates the ledger record: Idle -> AwaitingEntry.
func (r *Runner) start(ctx context.Context) (domain.TradeContext, error) {
	op := "start"
	now := r.now().UTC()
	tc := domain.TradeContext{
		TradeID:  uuid.NewString(),
		Strategy: r.strategy.Code(),
		Symbol:   r.cfg.Symbol,
		Quantity: r.cfg.Quantity,
		State:    domain.StateIdle,
		Started:  now,
	}

	id, err := r.ledger.CreateTrade(ctx, &domain.Trade{
		TradeID:   tc.TradeID,
		Strategy:  tc.Strategy,
		Symbol:    tc.Symbol,
		Status:    domain.TradeStatusPending,
		Quantity:  tc.Quantity,
		CreatedAt: now,
	})
	if err != nil {
		return tc, fmt.Errorf("%s failed to create trade: %w", op, err)
	}
	tc.TradeID = id
	tc.State = domain.StateAwaitingEntry
	r.saveCheckpoint(ctx, tc)

	r.logger.Info(ctx, op+": trade created", map[string]interface{}{"tradeID": id, "strategy": tc.Strategy, "symbol": tc.Symbol})
	return tc, nil
}

// awaitEntry polls until the entry predicate fires, then buys: AwaitingEntry -> PositionOpen.
func (r *Runner) awaitEntry(ctx context.Context, tc domain.TradeContext) (domain.TradeContext, error) {
	op := "awaitEntry"
	for {
		snap, err := r.snapshot(ctx)
		if err != nil {
			return tc, err
		}

		decision, err := r.strategy.ShouldEnter(ctx, snap)
		switch {
		case notReady(err):
			r.logger.Debug(ctx, op+": market data not ready", map[string]interface{}{"reason": err.Error(), "klines": len(snap.Klines)})
		case err != nil:
			return tc, fmt.Errorf("%s failed: %w", op, err)
		default:
			r.report(ctx, phaseEntry, tc, snap, decision.Readings)
			if decision.Enter {
				return r.enter(ctx, tc, snap, decision)
			}
		}

		if err := r.sleep(ctx, r.strategy.PollInterval()); err != nil {
			return tc, err
		}
	}
}

func (r *Runner) enter(ctx context.Context, tc domain.TradeContext, snap ports.MarketSnapshot, decision ports.EntryDecision) (domain.TradeContext, error) {
	op := "enter"
	last := domain.Last(snap.Klines)
	if last == nil {
		return tc, fmt.Errorf("%s failed: %w", op, ports.ErrInsufficientData)
	}
	bestAsk, hasAsk := snap.OrderBook.BestAsk()

	price := last.Close
	if r.strategy.PriceSource() == domain.PriceFromOrderBook && hasAsk {
		price = bestAsk
	}

	order, err := r.exchange.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:        r.cfg.Symbol,
		Side:          domain.Buy,
		Type:          domain.OrderTypeLimit,
		Price:         price,
		Quantity:      tc.Quantity,
		ClientOrderID: domain.ClientOrderID(tc.TradeID, domain.Buy),
	})
	if err != nil {
		return tc, fmt.Errorf("%s failed to place buy order: %w", op, err)
	}

	tc.SpeculatedEntryPrice = last.Close
	tc.OriginalEntryPrice = bestAsk
	tc.EntryPrice = price
	tc.EntryCandleTime = last.OpenTime
	tc.EntryTime = r.now().UTC()
	tc.BuyOrderID = order.ID
	tc.BuyFillPrice = order.AvgPrice
	tc.BuyExecutedQty = order.ExecutedQty
	tc.TargetPrice = decision.TargetPrice
	tc.StopLossPrice = r.risk.GetStopLoss(price)
	tc.State = domain.StatePositionOpen

	if err := r.ledger.UpdateTrade(ctx, tc.TradeID, domain.EntryUpdate(tc)); err != nil {
		return tc, fmt.Errorf("%s failed to record entry: %w", op, err)
	}
	r.saveCheckpoint(ctx, tc)

	r.logger.Info(ctx, op+": buy order placed", map[string]interface{}{
		"tradeID":  tc.TradeID,
		"orderID":  order.ID,
		"price":    price,
		"target":   tc.TargetPrice,
		"stopLoss": tc.StopLossPrice,
	})
	return tc, nil
}

// awaitExit polls until the exit predicate or the stop-loss fires, then sells or cancels.
func (r *Runner) awaitExit(ctx context.Context, tc domain.TradeContext) (domain.TradeContext, error) {
	op := "awaitExit"
	for {
		snap, err := r.snapshot(ctx)
		if err != nil {
			return tc, err
		}

		decision, err := r.strategy.ShouldExit(ctx, tc, snap)
		if notReady(err) {
			r.logger.Debug(ctx, op+": market data not ready", map[string]interface{}{"reason": err.Error()})
			decision = ports.ExitDecision{}
		} else if err != nil {
			return tc, fmt.Errorf("%s failed: %w", op, err)
		}

		if price, ok := r.exitPrice(snap); ok {
			decision = r.risk.ResolveExit(ctx, tc, price, decision)
		}
		r.report(ctx, phaseExit, tc, snap, decision.Readings)
		if decision.Exit {
			return r.exit(ctx, tc, snap, decision)
		}

		if err := r.sleep(ctx, r.strategy.PollInterval()); err != nil {
			return tc, err
		}
	}
}

func (r *Runner) exit(ctx context.Context, tc domain.TradeContext, snap ports.MarketSnapshot, decision ports.ExitDecision) (domain.TradeContext, error) {
	op := "exit"
	buy, err := retryValue(ctx, r.retry, "GetOrder", func(ctx context.Context) (*domain.Order, error) {
		return r.exchange.GetOrder(ctx, r.cfg.Symbol, tc.BuyOrderID)
	})
	if err != nil {
		return tc, fmt.Errorf("%s failed to fetch buy order: %w", op, err)
	}
	if !buy.IsDone() {
		return r.cancel(ctx, tc, buy)
	}
	tc.BuyFillPrice = buy.FillPrice()
	tc.BuyExecutedQty = buy.ExecutedQty

	last := domain.Last(snap.Klines)
	bestBid, _ := snap.OrderBook.BestBid()
	price, _ := r.exitPrice(snap)

	order, err := r.exchange.PlaceOrder(ctx, domain.OrderRequest{
		Symbol:        r.cfg.Symbol,
		Side:          domain.Sell,
		Type:          domain.OrderTypeLimit,
		Price:         price,
		Quantity:      tc.Quantity,
		ClientOrderID: domain.ClientOrderID(tc.TradeID, domain.Sell),
	})
	if err != nil {
		return tc, fmt.Errorf("%s failed to place sell order: %w", op, err)
	}

	if last != nil {
		tc.SpeculatedExitPrice = last.Close
	}
	tc.OriginalExitPrice = bestBid
	tc.ExitPrice = price
	tc.ExitTime = r.now().UTC()
	tc.SellOrderID = order.ID
	tc.SellFillPrice = order.AvgPrice // Zero until the exchange reports a fill
	tc.SellExecutedQty = order.ExecutedQty
	tc.ExitReason = decision.Reason
	tc.State = domain.StateClosed

	if err := r.ledger.UpdateTrade(ctx, tc.TradeID, domain.ExitUpdate(tc)); err != nil {
		return tc, fmt.Errorf("%s failed to record exit: %w", op, err)
	}

	r.logger.Info(ctx, op+": sell order placed", map[string]interface{}{
		"tradeID": tc.TradeID,
		"orderID": order.ID,
		"price":   price,
		"reason":  tc.ExitReason,
		"pnl":     domain.NetPnL(tc.EntryPrice, tc.ExitPrice, tc.Quantity),
	})
	return tc, nil
}

// cancel abandons a trade whose buy never filled: AwaitingExit -> Cancelled.
func (r *Runner) cancel(ctx context.Context, tc domain.TradeContext, buy *domain.Order) (domain.TradeContext, error) {
	op := "cancel"
	r.logger.Warn(ctx, op+": buy order not filled, cancelling", map[string]interface{}{"tradeID": tc.TradeID, "orderID": tc.BuyOrderID, "status": buy.Status})

	if buy.Status != domain.OrderStatusCancelled {
		_, err := retryValue(ctx, r.retry, "CancelOrder", func(ctx context.Context) (*domain.Order, error) {
			return r.exchange.CancelOrder(ctx, r.cfg.Symbol, tc.BuyOrderID)
		})
		switch {
		case errors.Is(err, ports.ErrOrderNotFound):
			r.logger.Warn(ctx, op+": order not found, likely already cancelled", map[string]interface{}{"orderID": tc.BuyOrderID})
		case err != nil:
			return tc, fmt.Errorf("%s failed to cancel buy order: %w", op, err)
		}
	}

	tc.CancelReason = domain.CancelReasonEntryNotFilled
	tc.State = domain.StateCancelled
	if err := r.ledger.UpdateTrade(ctx, tc.TradeID, domain.CancelUpdate(tc.CancelReason)); err != nil {
		return tc, fmt.Errorf("%s failed to record cancellation: %w", op, err)
	}
	return tc, nil
}

// snapshot fetches the candle window and order book for one tick.
func (r *Runner) snapshot(ctx context.Context) (ports.MarketSnapshot, error) {
	now := r.now()
	window := r.strategy.RequiredDataPoints() + r.cfg.WindowMargin
	start := now.Add(-time.Duration(window) * r.interval)

	klines, err := retryValue(ctx, r.retry, "GetKlines", func(ctx context.Context) ([]*domain.Kline, error) {
		return r.exchange.GetKlines(ctx, r.cfg.Symbol, r.cfg.Interval, start, window)
	})
	if err != nil {
		return ports.MarketSnapshot{}, fmt.Errorf("snapshot failed to fetch klines: %w", err)
	}
	klines = domain.ClosedBy(klines, now)
	book, err := retryValue(ctx, r.retry, "GetOrderBook", func(ctx context.Context) (*domain.OrderBook, error) {
		return r.exchange.GetOrderBook(ctx, r.cfg.Symbol, r.cfg.BookDepth)
	})
	if err != nil {
		return ports.MarketSnapshot{}, fmt.Errorf("snapshot failed to fetch order book: %w", err)
	}
	return ports.MarketSnapshot{Klines: klines, OrderBook: book, Time: now}, nil
}

// exitPrice is the price a sell would be placed at right now.
func (r *Runner) exitPrice(snap ports.MarketSnapshot) (float64, bool) {
	if r.strategy.PriceSource() == domain.PriceFromOrderBook {
		if bid, ok := snap.OrderBook.BestBid(); ok {
			return bid, true
		}
	}
	last := domain.Last(snap.Klines)
	if last == nil {
		return 0, false
	}
	return last.Close, true
}

func (r *Runner) report(ctx context.Context, phase string, tc domain.TradeContext, snap ports.MarketSnapshot, readings map[string]float64) {
	if r.reporter == nil {
		return
	}
	ask, _ := snap.OrderBook.BestAsk()
	bid, _ := snap.OrderBook.BestBid()
	r.reporter.ReportTick(ctx, ports.TickReport{
		Phase:    phase,
		Trade:    tc,
		Klines:   snap.Klines,
		BestAsk:  ask,
		BestBid:  bid,
		Readings: readings,
	})
}

// notReady reports whether a predicate skipped the tick for lack of data.
func notReady(err error) bool {
	return errors.Is(err, ports.ErrInsufficientData) || errors.Is(err, ports.ErrEmptyOrderBook)
}
