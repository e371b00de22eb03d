package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"spotChecklist/internal/domain"
	"spotChecklist/internal/ports"
)

// Repository implements the ports.LedgerRepository interface using SQLite.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository creates a new SQLite repository instance.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/spot_checklist.db" // Default path
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000") // WAL mode for better concurrency
	if err != nil {
		err = fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// SQLite handles concurrency internally; the Go driver benefits from
	// limiting connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}

	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	cfg.Logger.Info(context.Background(), "SQLite database ready", map[string]interface{}{"path": dbPath})

	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS positions (
		id TEXT PRIMARY KEY,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		quantity REAL NOT NULL,
		notional REAL NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		best_gain_pct REAL NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS closed_trades (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		position_id TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		pnl REAL NOT NULL,
		opened_at TIMESTAMP NOT NULL,
		closed_at TIMESTAMP NOT NULL,
		note TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS app_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_closed_trades_closed_at ON closed_trades (closed_at);
	`
	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
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

// ReplacePositions overwrites the stored open-position set in one
// transaction, so a crash mid-write never leaves a partial ledger behind.
func (r *Repository) ReplacePositions(ctx context.Context, positions []*domain.Position) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin positions transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions`); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}

	const query = `
	INSERT INTO positions (id, side, entry_price, quantity, notional, opened_at, note, best_gain_pct)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for _, pos := range positions {
		if _, err := tx.ExecContext(ctx, query,
			pos.ID.String(), string(pos.Side), pos.EntryPrice, pos.Quantity, pos.Notional,
			pos.OpenedAt, pos.Note, pos.BestGainPct); err != nil {
			return fmt.Errorf("failed to insert position %s: %w", pos.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit positions transaction: %w", err)
	}
	r.logger.Debug(ctx, "Positions replaced", map[string]interface{}{"count": len(positions)})
	return nil
}

// FindAllPositions retrieves every stored open position in opening order.
// Rows that fail to parse are skipped with a warning rather than failing the
// whole load.
func (r *Repository) FindAllPositions(ctx context.Context) ([]*domain.Position, error) {
	const query = `
	SELECT id, side, entry_price, quantity, notional, opened_at, note, best_gain_pct
	FROM positions
	ORDER BY opened_at ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := make([]*domain.Position, 0)
	for rows.Next() {
		pos, err := scanPosition(rows)
		if err != nil {
			r.logger.Warn(ctx, "Skipping corrupt position row", map[string]interface{}{"error": err.Error()})
			continue
		}
		positions = append(positions, pos)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position rows: %w", err)
	}
	return positions, nil
}

// CreateTrade appends a closed-trade record.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.ClosedTrade) error {
	const query = `
	INSERT INTO closed_trades (position_id, side, entry_price, exit_price, quantity, pnl, opened_at, closed_at, note)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		trade.PositionID.String(), string(trade.Side), trade.EntryPrice, trade.ExitPrice,
		trade.Quantity, trade.PNL, trade.OpenedAt, trade.ClosedAt, trade.Note)
	if err != nil {
		return fmt.Errorf("failed to insert closed trade for position %s: %w", trade.PositionID, err)
	}
	r.logger.Debug(ctx, "Closed trade stored", map[string]interface{}{"positionID": trade.PositionID.String(), "pnl": trade.PNL})
	return nil
}

// FindAllTrades retrieves the closed-trade history, newest first.
func (r *Repository) FindAllTrades(ctx context.Context) ([]*domain.ClosedTrade, error) {
	const query = `
	SELECT position_id, side, entry_price, exit_price, quantity, pnl, opened_at, closed_at, note
	FROM closed_trades
	ORDER BY closed_at DESC, seq DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	defer rows.Close()

	trades := make([]*domain.ClosedTrade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			r.logger.Warn(ctx, "Skipping corrupt closed-trade row", map[string]interface{}{"error": err.Error()})
			continue
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closed-trade rows: %w", err)
	}
	return trades, nil
}

// GetState retrieves an opaque controller state value by key.
func (r *Repository) GetState(ctx context.Context, key string) (string, error) {
	const query = `SELECT value FROM app_state WHERE key = ?`
	var value string
	err := r.db.QueryRowContext(ctx, query, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil // Absent state is not an error
		}
		return "", fmt.Errorf("failed to query app state key %q: %w", key, err)
	}
	return value, nil
}

// SetState stores an opaque controller state value under key.
func (r *Repository) SetState(ctx context.Context, key, value string) error {
	const query = `
	INSERT INTO app_state (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := r.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to store app state key %q: %w", key, err)
	}
	return nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanPosition scans a row into a domain.Position struct.
func scanPosition(s scanner) (*domain.Position, error) {
	p := &domain.Position{}
	var id, side string
	err := s.Scan(&id, &side, &p.EntryPrice, &p.Quantity, &p.Notional, &p.OpenedAt, &p.Note, &p.BestGainPct)
	if err != nil {
		return nil, err
	}
	p.ID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("position id %q: %w", id, ports.ErrCorruptState)
	}
	p.Side = domain.Side(side)
	return p, nil
}

// scanTrade scans a row into a domain.ClosedTrade struct.
func scanTrade(s scanner) (*domain.ClosedTrade, error) {
	t := &domain.ClosedTrade{}
	var id, side string
	err := s.Scan(&id, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.PNL, &t.OpenedAt, &t.ClosedAt, &t.Note)
	if err != nil {
		return nil, err
	}
	t.PositionID, err = uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("closed-trade position id %q: %w", id, ports.ErrCorruptState)
	}
	t.Side = domain.Side(side)
	return t, nil
}
