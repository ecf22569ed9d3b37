// Package runstore persists simulation runs and their artifacts to SQLite.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"quantsim/internal/sim"

	_ "modernc.org/sqlite"
)

// Store 管理 sim_runs/orders/trades/snapshots 表。
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("run store root 不能为空")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(root, "runs.db")
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sim_runs (
			id TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			status TEXT NOT NULL,
			initial_capital REAL NOT NULL,
			final_value REAL NOT NULL DEFAULT 0,
			profit REAL NOT NULL DEFAULT 0,
			return_pct REAL NOT NULL DEFAULT 0,
			win_rate REAL NOT NULL DEFAULT 0,
			max_drawdown REAL NOT NULL DEFAULT 0,
			orders INTEGER NOT NULL DEFAULT 0,
			trades INTEGER NOT NULL DEFAULT 0,
			config_json TEXT NOT NULL,
			stats_json TEXT,
			message TEXT,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			completed_at INTEGER
		);`,
		`CREATE TABLE IF NOT EXISTS sim_orders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			order_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			status TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price REAL NOT NULL,
			fill_price REAL NOT NULL,
			commission REAL NOT NULL,
			reason TEXT,
			created_at INTEGER NOT NULL,
			executed_at INTEGER,
			FOREIGN KEY(run_id) REFERENCES sim_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS sim_trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			pnl REAL NOT NULL,
			pnl_pct REAL NOT NULL,
			holding_ms INTEGER NOT NULL,
			opened_at INTEGER NOT NULL,
			closed_at INTEGER NOT NULL,
			FOREIGN KEY(run_id) REFERENCES sim_runs(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS sim_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			ts INTEGER NOT NULL,
			equity REAL NOT NULL,
			cash REAL NOT NULL,
			drawdown REAL NOT NULL,
			exposure REAL NOT NULL,
			FOREIGN KEY(run_id) REFERENCES sim_runs(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sim_orders_run ON sim_orders(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sim_trades_run ON sim_trades(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_sim_snapshots_run ON sim_snapshots(run_id, ts);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InsertRun 写入一条 run 记录。
func (s *Store) InsertRun(ctx context.Context, run sim.Run) error {
	cfgJSON, err := run.MarshalConfig()
	if err != nil {
		return err
	}
	statsJSON, err := run.MarshalStats()
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sim_runs
			(id, strategy, status, initial_capital, final_value, profit, return_pct,
			win_rate, max_drawdown, orders, trades, config_json, stats_json, message,
			created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Status, run.InitialCapital, run.FinalValue,
		run.Profit, run.ReturnPct, run.WinRate, run.MaxDrawdownPct, run.Orders, run.Trades,
		string(cfgJSON), bytesOrNil(statsJSON), run.Message, now, now, nullableTime(run.CompletedAt))
	return err
}

// UpdateRunSummary 更新状态、指标。
func (s *Store) UpdateRunSummary(ctx context.Context, id string, status string, stats sim.RunStats, message string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == sim.RunStatusDone || status == sim.RunStatusFailed {
		completed = now
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE sim_runs
		SET status=?, final_value=?, profit=?, return_pct=?, win_rate=?, max_drawdown=?,
		    orders=?, trades=?, stats_json=?, message=?, updated_at=?,
		    completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`,
		status, stats.FinalValue, stats.Profit, stats.ReturnPct, stats.WinRate,
		stats.MaxDrawdownPct, stats.Orders, stats.Trades, string(statsJSON), message, now,
		completed, completed, id)
	return err
}

// UpdateRunStatus 仅更新状态与提示。
func (s *Store) UpdateRunStatus(ctx context.Context, id, status, message string) error {
	now := time.Now().UnixMilli()
	var completed interface{}
	if status == sim.RunStatusDone || status == sim.RunStatusFailed {
		completed = now
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sim_runs
		SET status=?, message=?, updated_at=?, completed_at=CASE WHEN ? IS NULL THEN completed_at ELSE ? END
		WHERE id=?`, status, message, now, completed, completed, id)
	return err
}

// InsertOrders 批量写入订单，单事务。
func (s *Store) InsertOrders(ctx context.Context, runID string, orders []sim.OrderRecord) error {
	if len(orders) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sim_orders
			(run_id, order_id, symbol, side, status, quantity, price, fill_price,
			 commission, reason, created_at, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, o := range orders {
		if _, err := stmt.ExecContext(ctx, runID, o.OrderID, o.Symbol, o.Side, o.Status,
			o.Quantity, o.Price, o.FillPrice, o.Commission, o.Reason,
			o.CreatedAt.UnixMilli(), nullableTime(o.ExecutedAt)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertTrades 批量写入平仓记录。
func (s *Store) InsertTrades(ctx context.Context, runID string, trades []sim.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sim_trades
			(run_id, symbol, side, quantity, entry_price, exit_price, pnl, pnl_pct,
			 holding_ms, opened_at, closed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, t := range trades {
		if _, err := stmt.ExecContext(ctx, runID, t.Symbol, t.Side, t.Quantity,
			t.EntryPrice, t.ExitPrice, t.PnL, t.PnLPct, t.HoldingMs,
			t.OpenedAt.UnixMilli(), t.ClosedAt.UnixMilli()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// InsertSnapshots 批量写入资金曲线。
func (s *Store) InsertSnapshots(ctx context.Context, runID string, snaps []sim.SnapshotRecord) error {
	if len(snaps) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sim_snapshots (run_id, tick, ts, equity, cash, drawdown, exposure)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, snap := range snaps {
		if _, err := stmt.ExecContext(ctx, runID, snap.Tick, snap.TS, snap.Equity,
			snap.Cash, snap.Drawdown, snap.Exposure); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ListRuns(ctx context.Context, limit int) ([]sim.Run, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, status, initial_capital, final_value, profit, return_pct,
		       win_rate, max_drawdown, orders, trades, config_json, stats_json, message,
		       created_at, updated_at, completed_at
		FROM sim_runs
		ORDER BY created_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []sim.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, run)
	}
	return list, rows.Err()
}

func (s *Store) GetRun(ctx context.Context, id string) (sim.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, strategy, status, initial_capital, final_value, profit, return_pct,
		       win_rate, max_drawdown, orders, trades, config_json, stats_json, message,
		       created_at, updated_at, completed_at
		FROM sim_runs WHERE id=?`, id)
	return scanRun(row)
}

func (s *Store) ListOrders(ctx context.Context, runID string, limit int) ([]sim.OrderRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, symbol, side, status, quantity, price, fill_price,
		       commission, reason, created_at, executed_at
		FROM sim_orders
		WHERE run_id=?
		ORDER BY id ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sim.OrderRecord
	for rows.Next() {
		var o sim.OrderRecord
		var created int64
		var executed sql.NullInt64
		var reason sql.NullString
		if err := rows.Scan(&o.ID, &o.OrderID, &o.Symbol, &o.Side, &o.Status,
			&o.Quantity, &o.Price, &o.FillPrice, &o.Commission, &reason, &created, &executed); err != nil {
			return nil, err
		}
		o.RunID = runID
		o.Reason = reason.String
		o.CreatedAt = timeFromMillis(created)
		if executed.Valid {
			o.ExecutedAt = timeFromMillis(executed.Int64)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) ListTrades(ctx context.Context, runID string, limit int) ([]sim.TradeRecord, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, quantity, entry_price, exit_price, pnl, pnl_pct,
		       holding_ms, opened_at, closed_at
		FROM sim_trades
		WHERE run_id=?
		ORDER BY id ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sim.TradeRecord
	for rows.Next() {
		var t sim.TradeRecord
		var opened, closed int64
		if err := rows.Scan(&t.ID, &t.Symbol, &t.Side, &t.Quantity, &t.EntryPrice,
			&t.ExitPrice, &t.PnL, &t.PnLPct, &t.HoldingMs, &opened, &closed); err != nil {
			return nil, err
		}
		t.RunID = runID
		t.OpenedAt = timeFromMillis(opened)
		t.ClosedAt = timeFromMillis(closed)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) ListSnapshots(ctx context.Context, runID string, limit int) ([]sim.SnapshotRecord, error) {
	if limit <= 0 || limit > 5000 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tick, ts, equity, cash, drawdown, exposure
		FROM sim_snapshots
		WHERE run_id=?
		ORDER BY ts ASC
		LIMIT ?`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []sim.SnapshotRecord
	for rows.Next() {
		var snap sim.SnapshotRecord
		if err := rows.Scan(&snap.ID, &snap.Tick, &snap.TS, &snap.Equity, &snap.Cash,
			&snap.Drawdown, &snap.Exposure); err != nil {
			return nil, err
		}
		snap.RunID = runID
		out = append(out, snap)
	}
	return out, rows.Err()
}

func bytesOrNil(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

func nullableTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UnixMilli()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (sim.Run, error) {
	var run sim.Run
	var cfgStr string
	var statsStr sql.NullString
	var message sql.NullString
	var createdAt, updatedAt int64
	var completedAt sql.NullInt64
	if err := row.Scan(&run.ID, &run.Strategy, &run.Status, &run.InitialCapital,
		&run.FinalValue, &run.Profit, &run.ReturnPct, &run.WinRate, &run.MaxDrawdownPct,
		&run.Orders, &run.Trades, &cfgStr, &statsStr, &message, &createdAt, &updatedAt, &completedAt); err != nil {
		return sim.Run{}, err
	}
	run.Message = message.String
	run.CreatedAt = timeFromMillis(createdAt)
	run.UpdatedAt = timeFromMillis(updatedAt)
	if completedAt.Valid {
		run.CompletedAt = timeFromMillis(completedAt.Int64)
	}
	if err := json.Unmarshal([]byte(cfgStr), &run.Config); err != nil {
		return sim.Run{}, err
	}
	if statsStr.Valid && statsStr.String != "" {
		if err := json.Unmarshal([]byte(statsStr.String), &run.Stats); err != nil {
			return sim.Run{}, err
		}
	}
	return run, nil
}

func timeFromMillis(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.Unix(0, ms*int64(time.Millisecond))
}
