package wazirx

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"klineTrader/internal/domain"
)

// flexFloat decodes a JSON number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return fmt.Errorf("decode number %q: %w", b, err)
	}
	*f = flexFloat(v)
	return nil
}

type systemStatusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type tickerResponse struct {
	Symbol    string    `json:"symbol"`
	OpenPrice flexFloat `json:"openPrice"`
	LowPrice  flexFloat `json:"lowPrice"`
	HighPrice flexFloat `json:"highPrice"`
	LastPrice flexFloat `json:"lastPrice"`
	Volume    flexFloat `json:"volume"`
	BidPrice  flexFloat `json:"bidPrice"`
	AskPrice  flexFloat `json:"askPrice"`
	At        int64     `json:"at"`
}

type depthResponse struct {
	Timestamp flexFloat     `json:"timestamp"`
	Asks      [][]flexFloat `json:"asks"`
	Bids      [][]flexFloat `json:"bids"`
}

type orderResponse struct {
	ID            int64     `json:"id"`
	ClientOrderID string    `json:"clientOrderId"`
	Symbol        string    `json:"symbol"`
	Price         flexFloat `json:"price"`
	AvgPrice      flexFloat `json:"avgPrice"`
	OrigQty       flexFloat `json:"origQty"`
	ExecutedQty   flexFloat `json:"executedQty"`
	Status        string    `json:"status"`
	Side          string    `json:"side"`
	CreatedTime   int64     `json:"createdTime"`
	UpdatedTime   int64     `json:"updatedTime"`
}

// translateKlineRow converts a [time(s), open, high, low, close, volume] row.
// The row is final once its close time has passed at now.
func translateKlineRow(row []flexFloat, symbol, interval string, width time.Duration, now time.Time) (*domain.Kline, error) {
	if len(row) < 6 {
		return nil, fmt.Errorf("kline row has %d fields, want 6", len(row))
	}
	openTime := time.Unix(int64(row[0]), 0).UTC()
	closeTime := openTime.Add(width - time.Millisecond)
	return &domain.Kline{
		OpenTime:  openTime,
		CloseTime: closeTime,
		Symbol:    symbol,
		Interval:  interval,
		Open:      float64(row[1]),
		High:      float64(row[2]),
		Low:       float64(row[3]),
		Close:     float64(row[4]),
		Volume:    float64(row[5]),
		IsFinal:   !closeTime.After(now),
	}, nil
}

func translateLevels(rows [][]flexFloat) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(rows))
	for i, row := range rows {
		if len(row) < 2 {
			return nil, fmt.Errorf("depth level %d has %d fields, want 2", i, len(row))
		}
		levels = append(levels, domain.PriceLevel{Price: float64(row[0]), Quantity: float64(row[1])})
	}
	return levels, nil
}

func translateOrderStatus(status string) domain.OrderStatus {
	switch strings.ToLower(status) {
	case "done":
		return domain.OrderStatusDone
	case "cancel", "cancelled", "canceled":
		return domain.OrderStatusCancelled
	default: // idle, wait
		return domain.OrderStatusOpen
	}
}

func translateOrder(o *orderResponse) *domain.Order {
	side := domain.Buy
	if strings.EqualFold(o.Side, "sell") {
		side = domain.Sell
	}
	return &domain.Order{
		ID:            o.ID,
		ClientOrderID: o.ClientOrderID,
		Symbol:        o.Symbol,
		Side:          side,
		Status:        translateOrderStatus(o.Status),
		Price:         float64(o.Price),
		AvgPrice:      float64(o.AvgPrice),
		OrigQuantity:  float64(o.OrigQty),
		ExecutedQty:   float64(o.ExecutedQty),
		CreatedAt:     time.UnixMilli(o.CreatedTime).UTC(),
		UpdatedAt:     time.UnixMilli(o.UpdatedTime).UTC(),
	}
}
