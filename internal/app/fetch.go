package app

import (
	"context"
	"fmt"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"
)

const defaultPageSize = 1000

// KlineFetcher downloads candle ranges page by page.
type KlineFetcher struct {
	exchange ports.ExchangeClient
	logger   ports.Logger
	retry    retrier
	PageSize int
}

// NewKlineFetcher creates a fetcher that retries transient failures with policy.
func NewKlineFetcher(exchange ports.ExchangeClient, logger ports.Logger, policy RetryPolicy) *KlineFetcher {
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy
	}
	return &KlineFetcher{
		exchange: exchange,
		logger:   logger,
		retry:    retrier{policy: policy, logger: logger, sleep: sleepContext},
		PageSize: defaultPageSize,
	}
}

// FetchRange returns the klines opened in [start, end), ascending.
func (f *KlineFetcher) FetchRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Kline, error) {
	op := "FetchRange"
	step, err := domain.ParseInterval(interval)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrInvalidRequest, err)
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("%s failed: %w: start %s is not before end %s", op, ports.ErrInvalidRequest, start, end)
	}
	pageSize := f.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	var out []*domain.Kline
	for cursor := start; cursor.Before(end); {
		page, err := retryValue(ctx, f.retry, "GetKlines", func(ctx context.Context) ([]*domain.Kline, error) {
			return f.exchange.GetKlines(ctx, symbol, interval, cursor, pageSize)
		})
		if err != nil {
			return out, fmt.Errorf("%s failed at %s: %w", op, cursor.Format(time.RFC3339), err)
		}
		if len(page) == 0 {
			break
		}

		for _, k := range page {
			if k.OpenTime.Before(cursor) || !k.OpenTime.Before(end) {
				continue
			}
			out = append(out, k)
		}

		next := domain.Last(page).OpenTime.Add(step)
		if !next.After(cursor) {
			break
		}
		cursor = next
		f.logger.Debug(ctx, op+": page fetched", map[string]interface{}{"symbol": symbol, "count": len(page), "total": len(out)})
	}

	f.logger.Info(ctx, op+": done", map[string]interface{}{"symbol": symbol, "interval": interval, "klines": len(out)})
	return out, nil
}
