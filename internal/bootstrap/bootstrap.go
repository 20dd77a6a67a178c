// Package bootstrap builds the adapters selected by the configuration.
package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"klineTrader/config"
	"klineTrader/internal/adapters/badgerstate"
	"klineTrader/internal/adapters/binanceclient"
	"klineTrader/internal/adapters/mongoledger"
	"klineTrader/internal/adapters/sqlite"
	"klineTrader/internal/adapters/wazirx"
	"klineTrader/internal/app"
	"klineTrader/internal/ports"
)

// NewExchange returns the exchange adapter named by cfg.Exchange.
func NewExchange(cfg *config.Config, logger ports.Logger) (ports.ExchangeClient, error) {
	switch strings.ToLower(cfg.Exchange) {
	case config.ExchangeWazirX:
		return wazirx.New(wazirx.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			BaseURL:    cfg.BaseURL,
			RecvWindow: cfg.RecvWindow,
			Timeout:    time.Duration(cfg.HTTPTimeout) * time.Second,
			Logger:     logger,
		})
	case config.ExchangeBinance:
		return binanceclient.New(binanceclient.Config{
			APIKey:     cfg.APIKey,
			SecretKey:  cfg.SecretKey,
			UseTestnet: cfg.IsTestnet,
			BaseURL:    cfg.BaseURL,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("%w: unknown exchange %q", ports.ErrConfigurationError, cfg.Exchange)
	}
}

// NewLedger opens the trade ledger named by cfg.Ledger. The caller closes it.
func NewLedger(ctx context.Context, cfg *config.Config, logger ports.Logger) (ports.TradeLedger, error) {
	switch strings.ToLower(cfg.Ledger) {
	case config.LedgerMongo:
		return mongoledger.New(ctx, mongoledger.Config{
			URI:      cfg.DatabaseURI,
			Database: cfg.DatabaseName,
			Timeout:  time.Duration(cfg.HTTPTimeout) * time.Second,
			Logger:   logger,
		})
	case config.LedgerSQLite:
		return sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: logger})
	default:
		return nil, fmt.Errorf("%w: unknown ledger %q", ports.ErrConfigurationError, cfg.Ledger)
	}
}

// NewCheckpoints opens the badger checkpoint store, or returns nil when
// cfg.CheckpointDir is empty.
func NewCheckpoints(cfg *config.Config, logger ports.Logger) (ports.CheckpointStore, error) {
	if cfg.CheckpointDir == "" {
		return nil, nil
	}
	store, err := badgerstate.Open(cfg.CheckpointDir, logger)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// RetryPolicy converts the retry settings.
func RetryPolicy(cfg *config.Config) app.RetryPolicy {
	minDelay, maxDelay := cfg.RetryDelays()
	return app.RetryPolicy{MaxAttempts: cfg.RetryMaxAttempts, MinDelay: minDelay, MaxDelay: maxDelay}
}
