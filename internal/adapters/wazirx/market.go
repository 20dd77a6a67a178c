package wazirx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
)

// Ping checks the exchange system status.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	var status systemStatusResponse
	if err := c.doRequest(ctx, http.MethodGet, "/systemStatus", nil, false, &status); err != nil {
		return c.handleError(ctx, err, op, nil)
	}
	if !strings.EqualFold(status.Status, "normal") {
		return fmt.Errorf("%s failed: %w: status=%s, message=%s", op, ports.ErrExchangeUnavailable, status.Status, status.Message)
	}
	c.logger.Debug(ctx, op+": exchange reachable", map[string]interface{}{"message": status.Message})
	return nil
}

// GetTicker retrieves 24h statistics for a symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*ports.Ticker, error) {
	op := "GetTicker"
	params := url.Values{}
	params.Set("symbol", symbol)

	var t tickerResponse
	if err := c.doRequest(ctx, http.MethodGet, "/ticker/24hr", params, false, &t); err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}
	return &ports.Ticker{
		Symbol:    t.Symbol,
		LastPrice: float64(t.LastPrice),
		Open:      float64(t.OpenPrice),
		High:      float64(t.HighPrice),
		Low:       float64(t.LowPrice),
		Volume:    float64(t.Volume),
		BestBid:   float64(t.BidPrice),
		BestAsk:   float64(t.AskPrice),
		At:        time.UnixMilli(t.At).UTC(),
	}, nil
}

// GetKlines retrieves up to limit klines opened at or after startTime.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, startTime time.Time, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	width, err := domain.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %v", op, ports.ErrInvalidRequest, err)
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("interval", interval)
	if !startTime.IsZero() {
		params.Set("startTime", strconv.FormatInt(startTime.Unix(), 10))
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var rows [][]flexFloat
	if err := c.doRequest(ctx, http.MethodGet, "/klines", params, false, &rows); err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}

	now := c.now()
	klines := make([]*domain.Kline, 0, len(rows))
	for i, row := range rows {
		k, err := translateKlineRow(row, symbol, interval, width, now)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("%w: row %d: %v", ports.ErrMalformedPayload, i, err), op, nil)
		}
		klines = append(klines, k)
	}
	return klines, nil
}

// GetOrderBook retrieves a depth snapshot.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	op := "GetOrderBook"
	params := url.Values{}
	params.Set("symbol", symbol)
	if depth > 0 {
		params.Set("limit", strconv.Itoa(depth))
	}

	var d depthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/depth", params, false, &d); err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}

	asks, err := translateLevels(d.Asks)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("%w: asks: %v", ports.ErrMalformedPayload, err), op, nil)
	}
	bids, err := translateLevels(d.Bids)
	if err != nil {
		return nil, c.handleError(ctx, fmt.Errorf("%w: bids: %v", ports.ErrMalformedPayload, err), op, nil)
	}

	ts := c.now().UTC()
	if d.Timestamp > 0 {
		ts = time.Unix(int64(d.Timestamp), 0).UTC()
	}
	return &domain.OrderBook{Symbol: symbol, Asks: asks, Bids: bids, Timestamp: ts}, nil
}
