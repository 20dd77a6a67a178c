package wazirx

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/utils"
)

const (
	pricePrecision    = 8
	quantityPrecision = 8
)

// PlaceOrder submits a limit order.
func (c *Client) PlaceOrder(ctx context.Context, req domain.OrderRequest) (*domain.Order, error) {
	op := "PlaceOrder"
	if req.Symbol == "" || req.Quantity <= 0 || req.Price <= 0 {
		return nil, fmt.Errorf("%s failed: %w: symbol, positive price and quantity are required", op, ports.ErrInvalidRequest)
	}
	orderType := req.Type
	if orderType == "" {
		orderType = domain.OrderTypeLimit
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToLower(string(req.Side)))
	params.Set("type", strings.ToLower(string(orderType)))
	params.Set("price", utils.FormatDecimal(req.Price, pricePrecision))
	params.Set("quantity", utils.FormatDecimal(req.Quantity, quantityPrecision))
	if req.ClientOrderID != "" {
		params.Set("clientOrderId", req.ClientOrderID)
	}

	var o orderResponse
	if err := c.doRequest(ctx, http.MethodPost, "/order", params, true, &o); err != nil {
		return nil, c.handleError(ctx, err, op, ports.ErrOrderPlacementFailed)
	}

	order := translateOrder(&o)
	c.logger.Info(ctx, op+": order placed", map[string]interface{}{
		"orderId":  order.ID,
		"symbol":   req.Symbol,
		"side":     req.Side,
		"price":    req.Price,
		"quantity": req.Quantity,
		"status":   order.Status,
	})
	return order, nil
}

// GetOrder queries the current state of an order.
func (c *Client) GetOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	op := "GetOrder"
	params := url.Values{}
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	var o orderResponse
	if err := c.doRequest(ctx, http.MethodGet, "/order", params, true, &o); err != nil {
		return nil, c.handleError(ctx, err, op, ports.ErrOrderNotFound)
	}
	return translateOrder(&o), nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*domain.Order, error) {
	op := "CancelOrder"
	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	var o orderResponse
	if err := c.doRequest(ctx, http.MethodDelete, "/order", params, true, &o); err != nil {
		return nil, c.handleError(ctx, err, op, ports.ErrOrderCancelFailed)
	}

	order := translateOrder(&o)
	c.logger.Info(ctx, op+": order cancelled", map[string]interface{}{"orderId": orderID, "symbol": symbol, "status": order.Status})
	return order, nil
}

var _ ports.ExchangeClient = (*Client)(nil)
