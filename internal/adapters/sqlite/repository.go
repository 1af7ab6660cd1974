package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"positionEngine/internal/domain"
	"positionEngine/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.Journal and ports.RunReader using SQLite.
// Every record is keyed by the run that produced it.
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
		return nil, fmt.Errorf("%w: logger is required for SQLite repository", ports.ErrConfigurationError)
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/position_engine.db" // Default path
	}

	// Create data directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		err = fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		err = fmt.Errorf("%w: failed to open database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		err = fmt.Errorf("%w: failed to ping database at '%s': %v", ports.ErrDBConnection, dbPath, err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}

	// parallel optimizer runs share one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cfg.Logger.Info(context.Background(), "SQLite database connection established", map[string]interface{}{"path": dbPath})

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		err = fmt.Errorf("failed to initialize database schema: %w", err)
		cfg.Logger.Error(context.Background(), err, "SQLite repository initialization failed")
		return nil, err
	}
	return repo, nil
}

// initializeSchema creates tables if they don't exist.
func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS fills (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		client_order_id TEXT NOT NULL,
		oco_group_id TEXT NOT NULL DEFAULT '',
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		order_type TEXT NOT NULL,
		quantity REAL NOT NULL,
		price REAL NOT NULL,
		fee REAL NOT NULL,
		slippage REAL NOT NULL,
		maker INTEGER NOT NULL,
		tag TEXT NOT NULL DEFAULT '',
		filled_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS equity_snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		snapshot_time TIMESTAMP NOT NULL,
		cash REAL NOT NULL,
		equity REAL NOT NULL,
		realized_pnl REAL NOT NULL,
		unrealized_pnl REAL NOT NULL,
		drawdown REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		entry_price REAL NOT NULL,
		exit_price REAL NOT NULL,
		quantity REAL NOT NULL,
		pnl REAL NOT NULL,
		fee REAL NOT NULL,
		r_multiple REAL NOT NULL,
		entry_time TIMESTAMP NOT NULL,
		exit_time TIMESTAMP NOT NULL,
		close_reason TEXT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_fills_run ON fills (run_id, id);
	CREATE INDEX IF NOT EXISTS idx_equity_run ON equity_snapshots (run_id, id);
	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades (run_id, id);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("%w: failed to execute schema initialization: %v", ports.ErrQueryFailed, err)
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

// --- Journal Implementation ---

// SaveFill stores a fill and returns its assigned ID.
func (r *Repository) SaveFill(ctx context.Context, fill *domain.Fill) (int64, error) {
	const query = `
	INSERT INTO fills (run_id, order_id, client_order_id, oco_group_id, symbol, side, order_type,
	                   quantity, price, fee, slippage, maker, tag, filled_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		fill.RunID, fill.OrderID, fill.ClientOrderID, fill.OCOGroupID, fill.Symbol, fill.Side, fill.Type,
		fill.Quantity, fill.Price, fill.Fee, fill.Slippage, fill.Maker, fill.Tag, fill.Timestamp.UTC())
	if err != nil {
		return 0, fmt.Errorf("%w: insert fill %s: %v", ports.ErrQueryFailed, fill.OrderID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert ID for fill %s: %v", ports.ErrQueryFailed, fill.OrderID, err)
	}
	fill.ID = id
	r.logger.Debug(ctx, "Fill saved", map[string]interface{}{"fillID": id, "runID": fill.RunID, "orderID": fill.OrderID})
	return id, nil
}

// SaveEquity stores an equity snapshot and returns its assigned ID.
func (r *Repository) SaveEquity(ctx context.Context, snap *domain.EquitySnapshot) (int64, error) {
	const query = `
	INSERT INTO equity_snapshots (run_id, snapshot_time, cash, equity, realized_pnl, unrealized_pnl, drawdown)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	result, err := r.db.ExecContext(ctx, query,
		snap.RunID, snap.Time.UTC(), snap.Cash, snap.Equity, snap.RealizedPnl, snap.UnrealizedPnl, snap.Drawdown)
	if err != nil {
		return 0, fmt.Errorf("%w: insert equity snapshot for run %s: %v", ports.ErrQueryFailed, snap.RunID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert ID for equity snapshot: %v", ports.ErrQueryFailed, err)
	}
	snap.ID = id
	return id, nil
}

// SaveTrade stores a closing trade and returns its assigned ID.
func (r *Repository) SaveTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (run_id, symbol, side, entry_price, exit_price, quantity, pnl, fee, r_multiple,
	                    entry_time, exit_time, close_reason)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var closeReason sql.NullString
	if trade.CloseReason != "" {
		closeReason = sql.NullString{String: string(trade.CloseReason), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, query,
		trade.RunID, trade.Symbol, trade.Side, trade.EntryPrice, trade.ExitPrice, trade.Quantity, trade.PNL,
		trade.Fee, trade.RMultiple, trade.EntryTime.UTC(), trade.ExitTime.UTC(), closeReason)
	if err != nil {
		return 0, fmt.Errorf("%w: insert trade for symbol %s: %v", ports.ErrQueryFailed, trade.Symbol, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: last insert ID for trade %s: %v", ports.ErrQueryFailed, trade.Symbol, err)
	}
	trade.ID = id
	r.logger.Debug(ctx, "Trade saved", map[string]interface{}{"tradeID": id, "runID": trade.RunID, "pnl": trade.PNL})
	return id, nil
}

// --- RunReader Implementation ---

// FillsByRun returns the fills of a run in the order they were saved.
func (r *Repository) FillsByRun(ctx context.Context, runID string) ([]*domain.Fill, error) {
	const query = `
	SELECT id, run_id, order_id, client_order_id, oco_group_id, symbol, side, order_type,
	       quantity, price, fee, slippage, maker, tag, filled_at
	FROM fills WHERE run_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: query fills for run %s: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	fills := make([]*domain.Fill, 0)
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan fill: %v", ports.ErrQueryFailed, err)
		}
		fills = append(fills, f)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate fill rows: %v", ports.ErrQueryFailed, err)
	}
	return fills, nil
}

// TradesByRun returns the closing trades of a run in the order they were saved.
func (r *Repository) TradesByRun(ctx context.Context, runID string) ([]*domain.Trade, error) {
	const query = `
	SELECT id, run_id, symbol, side, entry_price, exit_price, quantity, pnl, fee, r_multiple,
	       entry_time, exit_time, close_reason
	FROM trades WHERE run_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: query trades for run %s: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	trades := make([]*domain.Trade, 0)
	for rows.Next() {
		trade, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan trade: %v", ports.ErrQueryFailed, err)
		}
		trades = append(trades, trade)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate trade rows: %v", ports.ErrQueryFailed, err)
	}
	return trades, nil
}

// EquityByRun returns the equity curve of a run in the order it was saved.
func (r *Repository) EquityByRun(ctx context.Context, runID string) ([]*domain.EquitySnapshot, error) {
	const query = `
	SELECT id, run_id, snapshot_time, cash, equity, realized_pnl, unrealized_pnl, drawdown
	FROM equity_snapshots WHERE run_id = ? ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("%w: query equity for run %s: %v", ports.ErrQueryFailed, runID, err)
	}
	defer rows.Close()

	curve := make([]*domain.EquitySnapshot, 0)
	for rows.Next() {
		s := &domain.EquitySnapshot{}
		if err := rows.Scan(&s.ID, &s.RunID, &s.Time, &s.Cash, &s.Equity, &s.RealizedPnl, &s.UnrealizedPnl, &s.Drawdown); err != nil {
			return nil, fmt.Errorf("%w: scan equity snapshot: %v", ports.ErrQueryFailed, err)
		}
		curve = append(curve, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate equity rows: %v", ports.ErrQueryFailed, err)
	}
	return curve, nil
}

// ListRuns returns the ids of runs with an equity curve, most recently written first.
func (r *Repository) ListRuns(ctx context.Context) ([]string, error) {
	const query = `SELECT run_id FROM equity_snapshots GROUP BY run_id ORDER BY MAX(id) DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list runs: %v", ports.ErrQueryFailed, err)
	}
	defer rows.Close()

	runs := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan run id: %v", ports.ErrQueryFailed, err)
		}
		runs = append(runs, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate run rows: %v", ports.ErrQueryFailed, err)
	}
	return runs, nil
}

// --- Helper Scan Functions ---

// scanner defines an interface compatible with *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanFill(s scanner) (*domain.Fill, error) {
	f := &domain.Fill{}
	var side, orderType string
	err := s.Scan(
		&f.ID, &f.RunID, &f.OrderID, &f.ClientOrderID, &f.OCOGroupID, &f.Symbol, &side, &orderType,
		&f.Quantity, &f.Price, &f.Fee, &f.Slippage, &f.Maker, &f.Tag, &f.Timestamp)
	if err != nil {
		return nil, err
	}
	f.Side = domain.OrderSide(side)
	f.Type = domain.OrderType(orderType)
	return f, nil
}

// scanTrade scans a row into a domain.Trade struct.
func scanTrade(s scanner) (*domain.Trade, error) {
	t := &domain.Trade{}
	var side string
	var closeReason sql.NullString
	err := s.Scan(
		&t.ID, &t.RunID, &t.Symbol, &side, &t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.PNL, &t.Fee,
		&t.RMultiple, &t.EntryTime, &t.ExitTime, &closeReason)
	if err != nil {
		return nil, err
	}
	t.Side = domain.Side(side)
	if closeReason.Valid {
		t.CloseReason = domain.CloseReason(closeReason.String)
	} else {
		t.CloseReason = domain.CloseReasonUnknown // Default if NULL
	}
	return t, nil
}

var (
	_ ports.Journal   = (*Repository)(nil)
	_ ports.RunReader = (*Repository)(nil)
)
