// Package badgerstate keeps run checkpoints in an embedded BadgerDB.
package badgerstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"

	"github.com/dgraph-io/badger/v3"
)

const keyPrefix = "checkpoint/"

// Store is the BadgerDB implementation of ports.CheckpointStore.
type Store struct {
	db     *badger.DB
	logger ports.Logger
}

// Open opens (or creates) a store under dir.
func Open(dir string, logger ports.Logger) (*Store, error) {
	return open(badger.DefaultOptions(dir), logger)
}

// OpenInMemory returns a store that lives only as long as the process.
func OpenInMemory(logger ports.Logger) (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true), logger)
}

func open(opts badger.Options, logger ports.Logger) (*Store, error) {
	// Badger's own logging is disabled; errors still come back from every call.
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w: %w", ports.ErrDBConnection, err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Save overwrites the checkpoint under key.
func (s *Store) Save(ctx context.Context, key string, tc domain.TradeContext) error {
	data, err := json.Marshal(tc)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %s: %w", key, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("failed to save checkpoint %s: %w: %w", key, ports.ErrUpdateFailed, err)
	}
	s.logger.Debug(ctx, "Checkpoint saved", map[string]interface{}{"key": key, "state": tc.State, "tradeID": tc.TradeID})
	return nil
}

// Load returns nil, nil when no checkpoint is stored under key.
func (s *Store) Load(ctx context.Context, key string) (*domain.TradeContext, error) {
	var tc domain.TradeContext

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) == 0 {
				return errors.New("checkpoint value is empty")
			}
			return json.Unmarshal(val, &tc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint %s: %w: %w", key, ports.ErrQueryFailed, err)
	}
	return &tc, nil
}

// Clear removes the checkpoint. Clearing a missing key is not an error.
func (s *Store) Clear(ctx context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(keyPrefix + key))
	})
	if err != nil {
		return fmt.Errorf("failed to clear checkpoint %s: %w: %w", key, ports.ErrUpdateFailed, err)
	}
	s.logger.Debug(ctx, "Checkpoint cleared", map[string]interface{}{"key": key})
	return nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

var _ ports.CheckpointStore = (*Store)(nil)
