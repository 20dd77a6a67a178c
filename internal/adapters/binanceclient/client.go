package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/utils"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

const (
	// Base URLs
	baseURLProduction = "https://api.binance.com"
	baseURLTestnet    = "https://testnet.binance.vision"

	pricePrecision    = 8
	quantityPrecision = 8
)

// Client implements the ports.ExchangeClient interface using the go-binance spot client.
type Client struct {
	spotClient *binance.Client
	logger     ports.Logger
	now        func() time.Time
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	BaseURL    string // Overrides the production/testnet choice when set
	Logger     ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
		// Authentication errors will occur if private endpoints are called.
	}

	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)

	// Set BaseURL directly instead of using global binance.UseTestnet
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
	default:
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance spot client configured", map[string]interface{}{"baseURL": client.BaseURL})

	return &Client{
		spotClient: client,
		logger:     cfg.Logger,
		now:        time.Now,
	}, nil
}

// handleError converts Binance API errors to application-specific errors.
// fallback classifies API errors whose code the mapping does not know.
func (c *Client) handleError(ctx context.Context, err error, operation string, fallback error) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		mappedErr := mapAPIErrorCode(apiErr.Code, fallback)
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Handle non-API errors (network, context cancellation, etc.)
	var finalErr error
	switch {
	case errors.Is(err, ports.ErrMalformedPayload):
		finalErr = fmt.Errorf("%s failed: %w", operation, err)
	case errors.Is(err, context.DeadlineExceeded):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	case strings.Contains(err.Error(), "use of closed network connection"),
		strings.Contains(err.Error(), "connection refused"),
		strings.Contains(err.Error(), "connection reset by peer"),
		strings.Contains(err.Error(), "no such host"),
		strings.Contains(err.Error(), "EOF"):
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	default:
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrUnknown, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

func mapAPIErrorCode(code int64, fallback error) error {
	switch code {
	case -1003: // Too many requests
		return ports.ErrRateLimited
	case -1001, -1006, -1016: // Disconnected, unexpected response, service shutting down
		return ports.ErrExchangeUnavailable
	case -1007, -1021: // Backend timeout; timestamp outside of recvWindow
		return ports.ErrTimeout
	case -1022: // Signature for this request is not valid
		return ports.ErrAuthenticationFailed
	case -1100, -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1112, -1114, -1115, -1116, -1117, -1120, -1121, -1125, -1127, -1128, -1130: // Parameter/Request format errors
		return ports.ErrInvalidRequest
	case -2010: // New order rejected
		return ports.ErrOrderPlacementFailed
	case -2011: // Cancel order rejected
		return ports.ErrOrderCancelFailed
	case -2013: // Order does not exist
		return ports.ErrOrderNotFound
	case -2014, -2015: // API-key format invalid; invalid API-key, IP, or permissions
		return ports.ErrInvalidAPIKeys
	case -2018, -2019: // Balance or margin is insufficient
		return ports.ErrInsufficientFunds
	}
	if fallback != nil {
		return fallback
	}
	return ports.ErrUnknown
}

// Ping checks connectivity to the REST API.
func (c *Client) Ping(ctx context.Context) error {
	op := "Ping"
	if err := c.spotClient.NewPingService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op, nil)
	}
	c.logger.Debug(ctx, op+" successful")
	return nil
}

// GetTicker retrieves 24h price change statistics for a symbol.
func (c *Client) GetTicker(ctx context.Context, symbol string) (*ports.Ticker, error) {
	op := "GetTicker"
	stats, err := c.spotClient.NewListPriceChangeStatsService().Symbol(toSymbol(symbol)).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}
	if len(stats) == 0 {
		return nil, c.handleError(ctx, fmt.Errorf("%w: no ticker for %s", ports.ErrNotFound, symbol), op, nil)
	}

	t, err := translateTicker(stats[0])
	if err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}
	return t, nil
}

// GetKlines retrieves historical klines/candlestick data for the given symbol.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, startTime time.Time, limit int) ([]*domain.Kline, error) {
	op := "GetKlines"
	svc := c.spotClient.NewKlinesService().Symbol(toSymbol(symbol)).Interval(interval)
	if !startTime.IsZero() {
		svc = svc.StartTime(startTime.UnixMilli())
	}
	if limit > 0 {
		svc = svc.Limit(limit)
	}

	binanceKlines, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op, ports.ErrInvalidRequest)
	}

	now := c.now()
	domainKlines := make([]*domain.Kline, 0, len(binanceKlines))
	for _, bk := range binanceKlines {
		dk, err := translateBinanceKline(bk, symbol, interval, now)
		if err != nil {
			return nil, c.handleError(ctx, err, op, nil)
		}
		domainKlines = append(domainKlines, dk)
	}
	return domainKlines, nil
}

// GetOrderBook retrieves a depth snapshot.
func (c *Client) GetOrderBook(ctx context.Context, symbol string, depth int) (*domain.OrderBook, error) {
	op := "GetOrderBook"
	svc := c.spotClient.NewDepthService().Symbol(toSymbol(symbol))
	if depth > 0 {
		svc = svc.Limit(depth)
	}
	res, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op, ports.ErrInvalidRequest)
	}

	book, err := translateDepth(res, symbol)
	if err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}
	return book, nil
}

// PlaceOrder places a GTC limit order.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	op := "PlaceOrder"
	if req.Symbol == "" || req.Quantity <= 0 || req.Price <= 0 {
		return nil, fmt.Errorf("%s failed: %w: symbol, positive price and quantity are required", op, ports.ErrInvalidRequest)
	}

	svc := c.spotClient.NewCreateOrderService().
		Symbol(toSymbol(req.Symbol)).
		Side(toSideType(req.Side)).
		Type(binance.OrderTypeLimit).
		TimeInForce(binance.TimeInForceTypeGTC).
		Quantity(utils.FormatDecimal(req.Quantity, quantityPrecision)).
		Price(utils.FormatDecimal(req.Price, pricePrecision))
	if req.ClientOrderID != "" {
		svc = svc.NewClientOrderID(req.ClientOrderID)
	}

	res, err := svc.Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op, ports.ErrOrderPlacementFailed)
	}

	order, err := translateCreateOrderResponse(res)
	if err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{
		"orderId": order.ID, "symbol": req.Symbol, "side": req.Side, "price": req.Price, "quantity": req.Quantity, "status": order.Status,
	})
	return order, nil
}

// GetOrder queries the current state of an order.
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	op := "GetOrder"
	res, err := c.spotClient.NewGetOrderService().Symbol(toSymbol(symbol)).OrderID(orderID).Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op, ports.ErrOrderNotFound)
	}
	order, err := translateOrder(res)
	if err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}
	return order, nil
}

// CancelOrder cancels an open order on Binance.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	op := "CancelOrder"
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": symbol, "orderID": orderID})

	res, err := c.spotClient.NewCancelOrderService().Symbol(toSymbol(symbol)).OrderID(orderID).Do(ctx)
	if err != nil {
		// -2013 maps to ErrOrderNotFound
		return nil, c.handleError(ctx, err, op, ports.ErrOrderCancelFailed)
	}

	order, err := translateCancelOrderResponse(res)
	if err != nil {
		return nil, c.handleError(ctx, err, op, nil)
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "orderID": orderID, "status": order.Status})
	return order, nil
}

var _ ports.ExchangeClient = (*Client)(nil)
