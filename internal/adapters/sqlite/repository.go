package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"klineTrader/internal/domain"
	"klineTrader/internal/ports"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements the ports.TradeLedger interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
	now    func() time.Time
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// columns maps each mutable trade field to its column.
var columns = map[domain.TradeField]string{
	domain.FieldStatus:              "status",
	domain.FieldQuantity:            "quantity",
	domain.FieldSpeculatedBuyPrice:  "speculated_buy_price",
	domain.FieldOriginalBuyPrice:    "original_buy_price",
	domain.FieldBuyPrice:            "buy_price",
	domain.FieldTotalBuyPrice:       "total_buy_price",
	domain.FieldTimeOfBuy:           "time_of_buy",
	domain.FieldBuyOrderID:          "buy_order_id",
	domain.FieldBuyFillPrice:        "buy_fill_price",
	domain.FieldBuyExecutedQty:      "buy_executed_qty",
	domain.FieldSpeculatedSellPrice: "speculated_sell_price",
	domain.FieldOriginalSellPrice:   "original_sell_price",
	domain.FieldSellPrice:           "sell_price",
	domain.FieldTotalSellPrice:      "total_sell_price",
	domain.FieldTimeOfSell:          "time_of_sell",
	domain.FieldSellOrderID:         "sell_order_id",
	domain.FieldSellFillPrice:       "sell_fill_price",
	domain.FieldSellExecutedQty:     "sell_executed_qty",
	domain.FieldStopLossPrice:       "stop_loss_price",
	domain.FieldStopLossHit:         "stop_loss_hit",
	domain.FieldExitReason:          "exit_reason",
	domain.FieldCancelled:           "order_cancelled",
	domain.FieldCancelReason:        "cancelled_reason",
	domain.FieldIsDeleted:           "is_deleted",
	domain.FieldNetPnL:              "net_pnl",
}

const selectColumns = `trade_id, strategy, symbol, status, quantity,
	speculated_buy_price, original_buy_price, buy_price, total_buy_price, time_of_buy, buy_order_id,
	buy_fill_price, buy_executed_qty,
	speculated_sell_price, original_sell_price, sell_price, total_sell_price, time_of_sell, sell_order_id,
	sell_fill_price, sell_executed_qty,
	stop_loss_price, stop_loss_hit, exit_reason, order_cancelled, cancelled_reason, is_deleted,
	net_pnl, created_at, updated_at`

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/trades.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w: %w", filepath.Dir(dbPath), ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Open database connection
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close() // Close the connection if ping fails
		err = fmt.Errorf("failed to ping database at '%s': %w: %w", dbPath, ports.ErrDBConnection, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// Set connection pool settings (important for SQLite)
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger, now: time.Now}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "Database schema initialized/verified")

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		trade_id TEXT PRIMARY KEY,
		trade_day TEXT NOT NULL,
		strategy TEXT NOT NULL,
		symbol TEXT NOT NULL,
		status TEXT NOT NULL,
		quantity REAL NOT NULL,
		speculated_buy_price REAL NOT NULL DEFAULT 0,
		original_buy_price REAL NOT NULL DEFAULT 0,
		buy_price REAL NOT NULL DEFAULT 0,
		total_buy_price REAL NOT NULL DEFAULT 0,
		time_of_buy TIMESTAMP NULL,
		buy_order_id INTEGER NOT NULL DEFAULT 0,
		buy_fill_price REAL NOT NULL DEFAULT 0,
		buy_executed_qty REAL NOT NULL DEFAULT 0,
		speculated_sell_price REAL NOT NULL DEFAULT 0,
		original_sell_price REAL NOT NULL DEFAULT 0,
		sell_price REAL NOT NULL DEFAULT 0,
		total_sell_price REAL NOT NULL DEFAULT 0,
		time_of_sell TIMESTAMP NULL,
		sell_order_id INTEGER NOT NULL DEFAULT 0,
		sell_fill_price REAL NOT NULL DEFAULT 0,
		sell_executed_qty REAL NOT NULL DEFAULT 0,
		stop_loss_price REAL NOT NULL DEFAULT 0,
		stop_loss_hit BOOLEAN NOT NULL DEFAULT 0,
		exit_reason TEXT NOT NULL DEFAULT '',
		order_cancelled BOOLEAN NOT NULL DEFAULT 0,
		cancelled_reason TEXT NOT NULL DEFAULT '',
		is_deleted BOOLEAN NOT NULL DEFAULT 0,
		net_pnl REAL NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_day ON trades (trade_day);
	CREATE INDEX IF NOT EXISTS idx_trades_buy_order ON trades (buy_order_id);
	CREATE INDEX IF NOT EXISTS idx_trades_sell_order ON trades (sell_order_id);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w: %w", ports.ErrQueryFailed, err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing SQLite database connection")
		return r.db.Close()
	}
	return nil
}

// CreateTrade inserts a new trade. An empty TradeID gets a fresh UUID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (string, error) {
	if trade == nil {
		return "", fmt.Errorf("CreateTrade failed: %w: nil trade", ports.ErrInvalidRequest)
	}
	if trade.TradeID == "" {
		trade.TradeID = uuid.NewString()
	}
	now := r.now().UTC()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = now
	}
	trade.UpdatedAt = now

	query := `INSERT INTO trades (` + selectColumns + `, trade_day)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.TradeID, trade.Strategy, trade.Symbol, string(trade.Status), trade.Quantity,
		trade.SpeculatedBuyPrice, trade.OriginalBuyPrice, trade.BuyPrice, trade.TotalBuyPrice, nullTime(trade.TimeOfBuy), trade.BuyOrderID,
		trade.BuyFillPrice, trade.BuyExecutedQty,
		trade.SpeculatedSellPrice, trade.OriginalSellPrice, trade.SellPrice, trade.TotalSellPrice, nullTime(trade.TimeOfSell), trade.SellOrderID,
		trade.SellFillPrice, trade.SellExecutedQty,
		trade.StopLossPrice, trade.StopLossHit, string(trade.ExitReason), trade.Cancelled, trade.CancelReason, trade.IsDeleted,
		trade.NetPnL, trade.CreatedAt, trade.UpdatedAt, tradeDay(trade.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return "", fmt.Errorf("failed to insert trade %s: %w: %w", trade.TradeID, ports.ErrDuplicateEntry, err)
		}
		return "", fmt.Errorf("failed to insert trade %s: %w: %w", trade.TradeID, ports.ErrQueryFailed, err)
	}

	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": trade.TradeID, "symbol": trade.Symbol, "strategy": trade.Strategy})
	return trade.TradeID, nil
}

// UpdateTrade sets only the fields present in update.
func (r *Repository) UpdateTrade(ctx context.Context, tradeID string, update domain.TradeUpdate) error {
	if len(update) == 0 {
		return nil
	}
	// Apply onto a scratch record to type-check the values.
	if err := (&domain.Trade{}).Apply(update); err != nil {
		return fmt.Errorf("failed to update trade %s: %w: %w", tradeID, ports.ErrInvalidRequest, err)
	}

	fields := make([]domain.TradeField, 0, len(update))
	for f := range update {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	sets := make([]string, 0, len(fields)+1)
	args := make([]interface{}, 0, len(fields)+2)
	for _, f := range fields {
		sets = append(sets, columns[f]+" = ?")
		args = append(args, sqlValue(update[f]))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, r.now().UTC(), tradeID)

	query := "UPDATE trades SET " + strings.Join(sets, ", ") + " WHERE trade_id = ?"
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update trade %s: %w: %w", tradeID, ports.ErrUpdateFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for trade %s: %w: %w", tradeID, ports.ErrUpdateFailed, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("trade %s not found for update: %w", tradeID, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade updated", map[string]interface{}{"tradeID": tradeID, "fields": len(fields)})
	return nil
}

// FindTrade retrieves a trade by id. Returns nil, nil when absent.
func (r *Repository) FindTrade(ctx context.Context, tradeID string) (*domain.Trade, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM trades WHERE trade_id = ?`, tradeID)
	return r.scanOne(ctx, row, "tradeID", tradeID)
}

// FindByOrderID retrieves the trade holding orderID as its buy or sell order.
func (r *Repository) FindByOrderID(ctx context.Context, orderID int64) (*domain.Trade, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM trades WHERE buy_order_id = ? OR sell_order_id = ? ORDER BY created_at DESC LIMIT 1`,
		orderID, orderID)
	return r.scanOne(ctx, row, "orderID", orderID)
}

// TradesForDay lists the trades created on day, oldest first.
func (r *Repository) TradesForDay(ctx context.Context, day time.Time) ([]*domain.Trade, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM trades WHERE trade_day = ? ORDER BY created_at ASC`, tradeDay(day))
	if err != nil {
		return nil, fmt.Errorf("failed to query trades for %s: %w: %w", tradeDay(day), ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w: %w", ports.ErrQueryFailed, err)
		}
		trades = append(trades, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating trade rows: %w: %w", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

func (r *Repository) scanOne(ctx context.Context, row *sql.Row, key string, value interface{}) (*domain.Trade, error) {
	t, err := scanTrade(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.logger.Debug(ctx, "Trade not found", map[string]interface{}{key: value})
			return nil, nil // Not an error, just not found
		}
		return nil, fmt.Errorf("failed to query trade by %s %v: %w: %w", key, value, ports.ErrQueryFailed, err)
	}
	return t, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var status, exitReason string
	var timeOfBuy, timeOfSell sql.NullTime
	err := s.Scan(
		&t.TradeID, &t.Strategy, &t.Symbol, &status, &t.Quantity,
		&t.SpeculatedBuyPrice, &t.OriginalBuyPrice, &t.BuyPrice, &t.TotalBuyPrice, &timeOfBuy, &t.BuyOrderID,
		&t.BuyFillPrice, &t.BuyExecutedQty,
		&t.SpeculatedSellPrice, &t.OriginalSellPrice, &t.SellPrice, &t.TotalSellPrice, &timeOfSell, &t.SellOrderID,
		&t.SellFillPrice, &t.SellExecutedQty,
		&t.StopLossPrice, &t.StopLossHit, &exitReason, &t.Cancelled, &t.CancelReason, &t.IsDeleted,
		&t.NetPnL, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err // Handle sql.ErrNoRows in the caller
	}
	t.Status = domain.TradeStatus(status)
	t.ExitReason = domain.ExitReason(exitReason)
	if timeOfBuy.Valid {
		t.TimeOfBuy = timeOfBuy.Time
	}
	if timeOfSell.Valid {
		t.TimeOfSell = timeOfSell.Time
	}
	return t, nil
}

func sqlValue(v interface{}) interface{} {
	switch x := v.(type) {
	case domain.TradeStatus:
		return string(x)
	case domain.ExitReason:
		return string(x)
	case time.Time:
		return nullTime(x)
	default:
		return v
	}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func tradeDay(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

var (
	_ ports.TradeLedger  = (*Repository)(nil)
	_ ports.TradeHistory = (*Repository)(nil)
)
