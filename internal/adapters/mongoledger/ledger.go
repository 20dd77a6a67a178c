// Package mongoledger stores trades in MongoDB, one collection per calendar day.
package mongoledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const collectionPrefix = "trades-"

// Config holds connection settings for the Mongo ledger.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration // Connect and per-call timeout; 0 means 10s
	Logger   ports.Logger
}

// Ledger implements ports.TradeLedger on MongoDB.
type Ledger struct {
	client  *mongo.Client
	db      *mongo.Database
	logger  ports.Logger
	timeout time.Duration
	now     func() time.Time

	mu          sync.Mutex
	collections map[string]string // tradeID -> collection name
}

// New connects to MongoDB and verifies the connection with a ping.
func New(ctx context.Context, cfg Config) (*Ledger, error) {
	op := "mongoledger.New"
	if cfg.Logger == nil {
		return nil, fmt.Errorf("%s failed: %w: logger is required", op, ports.ErrConfigurationError)
	}
	if cfg.URI == "" || cfg.Database == "" {
		return nil, fmt.Errorf("%s failed: %w: URI and database name are required", op, ports.ErrConfigurationError)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w: %w", op, ports.ErrDBConnection, err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%s failed to ping: %w: %w", op, ports.ErrDBConnection, err)
	}

	cfg.Logger.Info(ctx, "MongoDB connection established", map[string]interface{}{"database": cfg.Database})
	return newLedger(client, client.Database(cfg.Database), cfg.Logger, timeout), nil
}

func newLedger(client *mongo.Client, db *mongo.Database, logger ports.Logger, timeout time.Duration) *Ledger {
	return &Ledger{
		client:      client,
		db:          db,
		logger:      logger,
		timeout:     timeout,
		now:         time.Now,
		collections: make(map[string]string),
	}
}

// Close disconnects the client.
func (l *Ledger) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	l.logger.Info(ctx, "Closing MongoDB connection")
	return l.client.Disconnect(ctx)
}

// CreateTrade inserts trade into today's collection.
func (l *Ledger) CreateTrade(ctx context.Context, trade *domain.Trade) (string, error) {
	op := "CreateTrade"
	if trade == nil {
		return "", fmt.Errorf("%s failed: %w: nil trade", op, ports.ErrInvalidRequest)
	}
	if trade.TradeID == "" {
		trade.TradeID = uuid.NewString()
	}
	now := l.now().UTC()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = now
	}
	trade.UpdatedAt = now
	name := domain.CollectionName(trade.CreatedAt.UTC())

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	if _, err := l.db.Collection(name).InsertOne(ctx, trade); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("%s failed: %w: %w", op, ports.ErrDuplicateEntry, err)
		}
		return "", fmt.Errorf("%s failed: %w: %w", op, ports.ErrQueryFailed, err)
	}

	l.remember(trade.TradeID, name)
	l.logger.Debug(ctx, op+": trade created", map[string]interface{}{"tradeID": trade.TradeID, "collection": name})
	return trade.TradeID, nil
}

// UpdateTrade applies a partial $set to the trade document.
func (l *Ledger) UpdateTrade(ctx context.Context, tradeID string, update domain.TradeUpdate) error {
	op := "UpdateTrade"
	if len(update) == 0 {
		return nil
	}
	set, err := setDocument(update, l.now().UTC())
	if err != nil {
		return fmt.Errorf("%s failed for %s: %w: %w", op, tradeID, ports.ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	name, err := l.collectionFor(ctx, tradeID)
	if err != nil {
		return fmt.Errorf("%s failed for %s: %w", op, tradeID, err)
	}
	if name == "" {
		return fmt.Errorf("%s failed for %s: %w", op, tradeID, ports.ErrNotFound)
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	res := l.db.Collection(name).FindOneAndUpdate(ctx, bson.M{"tradeId": tradeID}, bson.M{"$set": set}, opts)
	if err := res.Err(); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("%s failed for %s: %w", op, tradeID, ports.ErrNotFound)
		}
		return fmt.Errorf("%s failed for %s: %w: %w", op, tradeID, ports.ErrUpdateFailed, err)
	}
	l.logger.Debug(ctx, op+": trade updated", map[string]interface{}{"tradeID": tradeID, "fields": len(update)})
	return nil
}

// FindTrade returns nil, nil when no collection holds tradeID.
func (l *Ledger) FindTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	name, err := l.collectionFor(ctx, tradeID)
	if err != nil || name == "" {
		return nil, err
	}
	return l.findOne(ctx, name, bson.M{"tradeId": tradeID})
}

// FindByOrderID searches day collections newest first for a buy or sell order id.
func (l *Ledger) FindByOrderID(ctx context.Context, orderID int64) (*domain.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	names, err := l.tradeCollections(ctx)
	if err != nil {
		return nil, err
	}
	filter := orderFilter(orderID)
	for _, name := range names {
		t, err := l.findOne(ctx, name, filter)
		if err != nil {
			return nil, err
		}
		if t != nil {
			l.remember(t.TradeID, name)
			return t, nil
		}
	}
	return nil, nil
}

// TradesForDay lists the trades in day's collection, oldest first.
func (l *Ledger) TradesForDay(ctx context.Context, day time.Time) ([]*domain.Trade, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	name := domain.CollectionName(day.UTC())
	cur, err := l.db.Collection(name).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("TradesForDay failed for %s: %w: %w", name, ports.ErrQueryFailed, err)
	}
	defer cur.Close(ctx)

	trades := make([]*domain.Trade, 0)
	if err := cur.All(ctx, &trades); err != nil {
		return nil, fmt.Errorf("TradesForDay failed to decode %s: %w: %w", name, ports.ErrQueryFailed, err)
	}
	return trades, nil
}

func (l *Ledger) findOne(ctx context.Context, name string, filter bson.M) (*domain.Trade, error) {
	var t domain.Trade
	err := l.db.Collection(name).FindOne(ctx, filter).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query on %s failed: %w: %w", name, ports.ErrQueryFailed, err)
	}
	return &t, nil
}

// collectionFor returns "" without error when tradeID is in no collection.
func (l *Ledger) collectionFor(ctx context.Context, tradeID string) (string, error) {
	l.mu.Lock()
	name, ok := l.collections[tradeID]
	l.mu.Unlock()
	if ok {
		return name, nil
	}

	names, err := l.tradeCollections(ctx)
	if err != nil {
		return "", err
	}
	for _, name := range names {
		n, err := l.db.Collection(name).CountDocuments(ctx, bson.M{"tradeId": tradeID}, options.Count().SetLimit(1))
		if err != nil {
			return "", fmt.Errorf("lookup in %s failed: %w: %w", name, ports.ErrQueryFailed, err)
		}
		if n > 0 {
			l.remember(tradeID, name)
			return name, nil
		}
	}
	return "", nil
}

func (l *Ledger) tradeCollections(ctx context.Context) ([]string, error) {
	names, err := l.db.ListCollectionNames(ctx, bson.M{"name": bson.M{"$regex": "^" + collectionPrefix}})
	if err != nil {
		return nil, fmt.Errorf("listing trade collections failed: %w: %w", ports.ErrQueryFailed, err)
	}
	return newestFirst(names), nil
}

func (l *Ledger) remember(tradeID, name string) {
	l.mu.Lock()
	l.collections[tradeID] = name
	l.mu.Unlock()
}

// setDocument type-checks update and converts it to a $set document.
func setDocument(update domain.TradeUpdate, now time.Time) (bson.M, error) {
	if err := (&domain.Trade{}).Apply(update); err != nil {
		return nil, err
	}
	set := make(bson.M, len(update)+1)
	for field, v := range update {
		set[string(field)] = v
	}
	set["updatedAt"] = now
	return set, nil
}

func orderFilter(orderID int64) bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"buyOrderId": orderID},
		bson.M{"sellOrderId": orderID},
	}}
}

// newestFirst keeps day collections only and sorts them by date, latest first.
func newestFirst(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, collectionPrefix) {
			out = append(out, n)
		}
	}
	// ISO dates sort lexically.
	sort.Sort(sort.Reverse(sort.StringSlice(out)))
	return out
}

var (
	_ ports.TradeLedger  = (*Ledger)(nil)
	_ ports.TradeHistory = (*Ledger)(nil)
)
