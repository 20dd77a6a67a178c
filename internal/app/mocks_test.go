package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// window returns n one-minute candles ending just before testNow, all closing at closePrice.
func window(n int, closePrice float64) []*domain.Kline {
	out := make([]*domain.Kline, n)
	for i := range out {
		open := testNow.Add(time.Duration(i-n) * time.Minute)
		out[i] = &domain.Kline{
			OpenTime:  open,
			CloseTime: open.Add(time.Minute - time.Millisecond),
			Open:      closePrice,
			High:      closePrice + 1,
			Low:       closePrice - 1,
			Close:     closePrice,
		}
	}
	return out
}

type mockExchange struct {
	mu sync.Mutex

	// klinesFn serves the n-th GetKlines call, counting from 1.
	klinesFn    func(call int, start time.Time, limit int) ([]*domain.Kline, error)
	klinesCalls int
	lastStart   time.Time
	lastLimit   int

	book    *domain.OrderBook
	bookErr error

	placed   []domain.OrderRequest
	placeErr error
	nextID   int64

	buyStatus   domain.OrderStatus
	buyFill     float64 // AvgPrice reported for the buy order
	buyExecuted float64
	sellFill    float64 // AvgPrice returned when a sell is placed
	getOrderErr error
	cancelCalls int
	cancelErr   error

	pingErr   error
	ticker    *ports.Ticker
	tickerErr error
}

func newMockExchange(closePrice float64) *mockExchange {
	return &mockExchange{
		klinesFn: func(call int, start time.Time, limit int) ([]*domain.Kline, error) {
			return window(limit, closePrice), nil
		},
		book: &domain.OrderBook{
			Asks: []domain.PriceLevel{{Price: closePrice + 1, Quantity: 3}},
			Bids: []domain.PriceLevel{{Price: closePrice - 1, Quantity: 3}},
		},
		buyStatus: domain.OrderStatusDone,
		nextID:    100,
	}
}

func (m *mockExchange) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockExchange) GetTicker(ctx context.Context, symbol string) (*ports.Ticker, error) {
	return m.ticker, m.tickerErr
}

func (m *mockExchange) GetKlines(ctx context.Context, symbol, interval string, startTime time.Time, limit int) ([]*domain.Kline, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.klinesCalls++
	m.lastStart = startTime
	m.lastLimit = limit
	return m.klinesFn(m.klinesCalls, startTime, limit)
}

func (m *mockExchange) GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	return m.book, m.bookErr
}

func (m *mockExchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed = append(m.placed, req)
	if m.placeErr != nil {
		return nil, m.placeErr
	}
	m.nextID++
	order := &domain.Order{ID: m.nextID, Symbol: req.Symbol, Side: req.Side, Status: domain.OrderStatusOpen, Price: req.Price, OrigQuantity: req.Quantity}
	if req.Side == domain.Sell && m.sellFill > 0 {
		order.AvgPrice = m.sellFill
		order.ExecutedQty = req.Quantity
	}
	return order, nil
}

func (m *mockExchange) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	if m.getOrderErr != nil {
		return nil, m.getOrderErr
	}
	return &domain.Order{ID: orderID, Symbol: symbol, Side: domain.Buy, Status: m.buyStatus, AvgPrice: m.buyFill, ExecutedQty: m.buyExecuted}, nil
}

func (m *mockExchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelCalls++
	if m.cancelErr != nil {
		return nil, m.cancelErr
	}
	return &domain.Order{ID: orderID, Symbol: symbol, Status: domain.OrderStatusCancelled}, nil
}

func (m *mockExchange) sides() []domain.OrderSide {
	out := make([]domain.OrderSide, len(m.placed))
	for i, p := range m.placed {
		out[i] = p.Side
	}
	return out
}

// memLedger keeps whole trade documents in memory.
type memLedger struct {
	mu      sync.Mutex
	trades  map[string]*domain.Trade
	creates int
}

func newMemLedger() *memLedger {
	return &memLedger{trades: make(map[string]*domain.Trade)}
}

func (l *memLedger) CreateTrade(ctx context.Context, trade *domain.Trade) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.trades[trade.TradeID]; ok {
		return "", ports.ErrDuplicateEntry
	}
	cp := *trade
	l.trades[trade.TradeID] = &cp
	l.creates++
	return trade.TradeID, nil
}

func (l *memLedger) UpdateTrade(ctx context.Context, tradeID string, update domain.TradeUpdate) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.trades[tradeID]
	if !ok {
		return fmt.Errorf("trade %s: %w", tradeID, ports.ErrNotFound)
	}
	return t.Apply(update)
}

func (l *memLedger) FindTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.trades[tradeID]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (l *memLedger) FindByOrderID(ctx context.Context, orderID int64) (*domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, t := range l.trades {
		if t.BuyOrderID == orderID || t.SellOrderID == orderID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (l *memLedger) Close() error { return nil }

type memCheckpoints struct {
	saved map[string]domain.TradeContext
	saves []domain.State
}

func newMemCheckpoints() *memCheckpoints {
	return &memCheckpoints{saved: make(map[string]domain.TradeContext)}
}

func (c *memCheckpoints) Save(ctx context.Context, key string, tc domain.TradeContext) error {
	c.saved[key] = tc
	c.saves = append(c.saves, tc.State)
	return nil
}

func (c *memCheckpoints) Load(ctx context.Context, key string) (*domain.TradeContext, error) {
	tc, ok := c.saved[key]
	if !ok {
		return nil, nil
	}
	return &tc, nil
}

func (c *memCheckpoints) Clear(ctx context.Context, key string) error {
	delete(c.saved, key)
	return nil
}

func (c *memCheckpoints) Close() error { return nil }

// stubStrategy enters on the enterAt-th entry evaluation and exits per exitFn.
type stubStrategy struct {
	source     domain.PriceSource
	required   int
	enterAt    int
	enterErr   error
	target     float64
	exitFn     func(call int) (ports.ExitDecision, error)
	entryCalls int
	exitCalls  int
}

func (s *stubStrategy) Code() string                    { return "STUB" }
func (s *stubStrategy) RequiredDataPoints() int         { return s.required }
func (s *stubStrategy) PollInterval() time.Duration     { return time.Second }
func (s *stubStrategy) PriceSource() domain.PriceSource { return s.source }

func (s *stubStrategy) ShouldEnter(ctx context.Context, snap ports.MarketSnapshot) (ports.EntryDecision, error) {
	s.entryCalls++
	if s.enterErr != nil {
		return ports.EntryDecision{}, s.enterErr
	}
	if s.entryCalls < s.enterAt {
		return ports.EntryDecision{Readings: map[string]float64{"tick": float64(s.entryCalls)}}, nil
	}
	return ports.EntryDecision{Enter: true, TargetPrice: s.target}, nil
}

func (s *stubStrategy) ShouldExit(ctx context.Context, tc domain.TradeContext, snap ports.MarketSnapshot) (ports.ExitDecision, error) {
	s.exitCalls++
	if s.exitFn == nil {
		return ports.ExitDecision{Exit: true, Reason: domain.ExitReasonTarget}, nil
	}
	return s.exitFn(s.exitCalls)
}

type recordingReporter struct {
	phases []string
}

func (r *recordingReporter) ReportTick(ctx context.Context, report ports.TickReport) {
	r.phases = append(r.phases, report.Phase)
}

// sleepRecorder replaces time.Sleep; it cancels the run after limit sleeps when limit > 0.
type sleepRecorder struct {
	slept  []time.Duration
	limit  int
	cancel context.CancelFunc
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	if s.limit > 0 && len(s.slept) >= s.limit {
		s.cancel()
		return ctx.Err()
	}
	return nil
}
