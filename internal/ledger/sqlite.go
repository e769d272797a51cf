package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
PRAGMA journal_mode=WAL;

CREATE TABLE IF NOT EXISTS trades (
    id TEXT PRIMARY KEY,
    open_time DATETIME NOT NULL,
    close_time DATETIME NOT NULL,
    symbol TEXT NOT NULL,
    side TEXT NOT NULL,
    qty REAL NOT NULL,
    entry_price REAL NOT NULL,
    exit_price REAL NOT NULL,
    realized_pnl REAL NOT NULL,
    fee REAL DEFAULT 0,
    strategy_tag TEXT,
    mode TEXT,
    exchange_order_id TEXT,
    exchange_trade_id TEXT
);

CREATE INDEX IF NOT EXISTS idx_trades_close_time ON trades(close_time);
`

// SQLiteStore persists closed trades to a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (and creates if needed) the ledger database at path.
func NewSQLite(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("ledger: database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." && path != ":memory:" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite prefers single writer.
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply ledger schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// AddTrade appends one closed round-trip.
func (s *SQLiteStore) AddTrade(ctx context.Context, rec TradeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, open_time, close_time, symbol, side, qty,
			entry_price, exit_price, realized_pnl, fee,
			strategy_tag, mode, exchange_order_id, exchange_trade_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID, rec.OpenTime, rec.CloseTime, rec.Symbol, rec.Side, rec.Quantity,
		rec.EntryPrice, rec.ExitPrice, rec.RealizedPnl, rec.Fee,
		rec.StrategyTag, rec.Mode, rec.ExchangeOrderID, rec.ExchangeTradeID,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetAllTrades returns all trades ordered by close time.
func (s *SQLiteStore) GetAllTrades(ctx context.Context) ([]TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, open_time, close_time, symbol, side, qty,
		       entry_price, exit_price, realized_pnl, fee,
		       strategy_tag, mode, exchange_order_id, exchange_trade_id
		FROM trades ORDER BY close_time ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var rec TradeRecord
		if err := rows.Scan(
			&rec.ID, &rec.OpenTime, &rec.CloseTime, &rec.Symbol, &rec.Side, &rec.Quantity,
			&rec.EntryPrice, &rec.ExitPrice, &rec.RealizedPnl, &rec.Fee,
			&rec.StrategyTag, &rec.Mode, &rec.ExchangeOrderID, &rec.ExchangeTradeID,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetDailySummary aggregates trades whose close time falls on date
// (YYYY-MM-DD, UTC).
func (s *SQLiteStore) GetDailySummary(ctx context.Context, date string) (DailySummary, error) {
	sum := DailySummary{Date: date}
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN realized_pnl > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN realized_pnl < 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(realized_pnl), 0),
		       COALESCE(SUM(fee), 0)
		FROM trades WHERE date(close_time) = ?
	`, date)
	if err := row.Scan(&sum.Trades, &sum.Wins, &sum.Losses, &sum.RealizedPnl, &sum.Fees); err != nil {
		return sum, err
	}
	return sum, nil
}

// Close releases the underlying DB handle.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
