package binanceclient

import (
	"fmt"
	"strings"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
	"klineTrader/internal/utils"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// --- Translation Helpers ---

func toSymbol(symbol string) string {
	return strings.ToUpper(symbol)
}

func toSideType(side domain.OrderSide) binance.SideType {
	if side == domain.Sell {
		return binance.SideTypeSell
	}
	return binance.SideTypeBuy
}

func fromSideType(side binance.SideType) domain.OrderSide {
	if side == binance.SideTypeSell {
		return domain.Sell
	}
	return domain.Buy
}

func translateStatus(status binance.OrderStatusType) domain.OrderStatus {
	switch status {
	case binance.OrderStatusTypeFilled:
		return domain.OrderStatusDone
	case binance.OrderStatusTypeCanceled, binance.OrderStatusTypeExpired, binance.OrderStatusTypeRejected:
		return domain.OrderStatusCancelled
	default: // NEW, PARTIALLY_FILLED, PENDING_CANCEL
		return domain.OrderStatusOpen
	}
}

// numField names a numeric string and where its parsed value goes.
type numField struct {
	name string
	raw  string
	dst  *float64
}

// parseFields parses every field, failing on the first malformed one.
func parseFields(fields ...numField) error {
	for _, f := range fields {
		v, err := utils.ParseFloat(f.raw)
		if err != nil {
			return fmt.Errorf("%w: parsing %s '%s': %v", ports.ErrMalformedPayload, f.name, f.raw, err)
		}
		*f.dst = v
	}
	return nil
}

func avgFillPrice(quoteQty, executedQty float64) float64 {
	if executedQty == 0 {
		return 0
	}
	return quoteQty / executedQty
}

func translateTicker(s *binance.PriceChangeStats) (*ports.Ticker, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil ticker", ports.ErrMalformedPayload)
	}
	t := &ports.Ticker{Symbol: s.Symbol, At: time.UnixMilli(s.CloseTime).UTC()}
	err := parseFields(
		numField{"lastPrice", s.LastPrice, &t.LastPrice},
		numField{"openPrice", s.OpenPrice, &t.Open},
		numField{"highPrice", s.HighPrice, &t.High},
		numField{"lowPrice", s.LowPrice, &t.Low},
		numField{"volume", s.Volume, &t.Volume},
		numField{"bidPrice", s.BidPrice, &t.BestBid},
		numField{"askPrice", s.AskPrice, &t.BestAsk},
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// translateBinanceKline converts a REST kline. The newest row may still be forming at now.
func translateBinanceKline(bk *binance.Kline, symbol, interval string, now time.Time) (*domain.Kline, error) {
	if bk == nil {
		return nil, fmt.Errorf("%w: received nil historical kline", ports.ErrMalformedPayload)
	}
	k := &domain.Kline{
		OpenTime:  time.UnixMilli(bk.OpenTime).UTC(),
		CloseTime: time.UnixMilli(bk.CloseTime).UTC(),
		Symbol:    symbol,   // Use passed symbol as it's not in binance.Kline
		Interval:  interval, // Use passed interval
	}
	k.IsFinal = !k.CloseTime.After(now)
	err := parseFields(
		numField{"open price", bk.Open, &k.Open},
		numField{"high price", bk.High, &k.High},
		numField{"low price", bk.Low, &k.Low},
		numField{"close price", bk.Close, &k.Close},
		numField{"volume", bk.Volume, &k.Volume},
	)
	if err != nil {
		return nil, err
	}
	return k, nil
}

func translateLevels(levels []common.PriceLevel) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, len(levels))
	for i, l := range levels {
		err := parseFields(
			numField{"price", l.Price, &out[i].Price},
			numField{"quantity", l.Quantity, &out[i].Quantity},
		)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func translateDepth(res *binance.DepthResponse, symbol string) (*domain.OrderBook, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: received nil depth response", ports.ErrMalformedPayload)
	}
	bids, err := translateLevels(res.Bids)
	if err != nil {
		return nil, err
	}
	asks, err := translateLevels(res.Asks)
	if err != nil {
		return nil, err
	}
	return &domain.OrderBook{Symbol: symbol, Bids: bids, Asks: asks, Timestamp: time.Now().UTC()}, nil
}

func translateCreateOrderResponse(res *binance.CreateOrderResponse) (*domain.Order, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil order response", ports.ErrMalformedPayload)
	}
	var quoteQty float64
	o := &domain.Order{
		ID:            res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          fromSideType(res.Side),
		Status:        translateStatus(res.Status),
		CreatedAt:     time.UnixMilli(res.TransactTime).UTC(),
		UpdatedAt:     time.UnixMilli(res.TransactTime).UTC(),
	}
	err := parseFields(
		numField{"price", res.Price, &o.Price},
		numField{"origQty", res.OrigQuantity, &o.OrigQuantity},
		numField{"executedQty", res.ExecutedQuantity, &o.ExecutedQty},
		numField{"cummulativeQuoteQty", res.CummulativeQuoteQuantity, &quoteQty},
	)
	if err != nil {
		return nil, err
	}
	o.AvgPrice = avgFillPrice(quoteQty, o.ExecutedQty)
	return o, nil
}

func translateOrder(res *binance.Order) (*domain.Order, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil order", ports.ErrMalformedPayload)
	}
	var quoteQty float64
	o := &domain.Order{
		ID:            res.OrderID,
		ClientOrderID: res.ClientOrderID,
		Symbol:        res.Symbol,
		Side:          fromSideType(res.Side),
		Status:        translateStatus(res.Status),
		CreatedAt:     time.UnixMilli(res.Time).UTC(),
		UpdatedAt:     time.UnixMilli(res.UpdateTime).UTC(),
	}
	err := parseFields(
		numField{"price", res.Price, &o.Price},
		numField{"origQty", res.OrigQuantity, &o.OrigQuantity},
		numField{"executedQty", res.ExecutedQuantity, &o.ExecutedQty},
		numField{"cummulativeQuoteQty", res.CummulativeQuoteQuantity, &quoteQty},
	)
	if err != nil {
		return nil, err
	}
	o.AvgPrice = avgFillPrice(quoteQty, o.ExecutedQty)
	return o, nil
}

func translateCancelOrderResponse(res *binance.CancelOrderResponse) (*domain.Order, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: nil cancel response", ports.ErrMalformedPayload)
	}
	o := &domain.Order{
		ID:            res.OrderID,
		ClientOrderID: res.OrigClientOrderID,
		Symbol:        res.Symbol,
		Side:          fromSideType(res.Side),
		Status:        translateStatus(res.Status),
		UpdatedAt:     time.UnixMilli(res.TransactTime).UTC(),
	}
	err := parseFields(
		numField{"price", res.Price, &o.Price},
		numField{"origQty", res.OrigQuantity, &o.OrigQuantity},
		numField{"executedQty", res.ExecutedQuantity, &o.ExecutedQty},
	)
	if err != nil {
		return nil, err
	}
	return o, nil
}
