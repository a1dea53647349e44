package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"aster-hedge-bot/internal/store"
	"aster-hedge-bot/internal/trading"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS trades (
			trade_id   TEXT PRIMARY KEY,
			ts         TIMESTAMP NOT NULL,
			round_id   TEXT NOT NULL,
			symbol     TEXT NOT NULL,
			wallet     TEXT NOT NULL,
			side       TEXT NOT NULL,
			phase      TEXT NOT NULL,
			quantity   TEXT NOT NULL,
			price      TEXT NOT NULL,
			usdt_value TEXT NOT NULL,
			order_id   TEXT,
			status     TEXT NOT NULL,
			error      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades (ts)`,
		`CREATE TABLE IF NOT EXISTS positions (
			round_id      TEXT PRIMARY KEY,
			symbol        TEXT NOT NULL,
			long_wallets  TEXT NOT NULL,
			short_wallets TEXT NOT NULL,
			quantity      TEXT NOT NULL,
			notional      TEXT NOT NULL,
			status        TEXT NOT NULL,
			opened_at     TIMESTAMP,
			closed_at     TIMESTAMP,
			hold_seconds  INTEGER NOT NULL DEFAULT 0,
			error         TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_positions_opened ON positions (opened_at)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

func (s *Store) RecordLeg(ctx context.Context, leg trading.Leg) error {
	ts := leg.ExecutedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	usdt := leg.Quantity.Mul(leg.Price)
	_, err := s.db.ExecContext(ctx, `INSERT INTO trades
		(trade_id, ts, round_id, symbol, wallet, side, phase, quantity, price, usdt_value, order_id, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(trade_id) DO UPDATE SET status = excluded.status, error = excluded.error`,
		leg.ID, ts.UTC(), leg.RoundID, leg.Symbol, leg.Wallet, string(leg.Side), string(leg.Phase),
		leg.Quantity.String(), leg.Price.String(), usdt.String(), leg.OrderID, string(leg.Status), leg.Error)
	return err
}

func (s *Store) RecordRound(ctx context.Context, r trading.Round) error {
	var holdSeconds int64
	if !r.Ended.IsZero() {
		holdSeconds = int64(r.Ended.Sub(r.Started).Seconds())
	}
	var closed any
	if !r.Ended.IsZero() {
		closed = r.Ended.UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO positions
		(round_id, symbol, long_wallets, short_wallets, quantity, notional, status, opened_at, closed_at, hold_seconds, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(round_id) DO UPDATE SET
			status = excluded.status, closed_at = excluded.closed_at,
			hold_seconds = excluded.hold_seconds, error = excluded.error`,
		r.ID, r.Symbol, strings.Join(r.Long.Wallets, ","), strings.Join(r.Short.Wallets, ","),
		r.Quantity.String(), r.NotionalUSDT().String(), string(r.Status),
		r.Started.UTC(), closed, holdSeconds, r.Error)
	return err
}

func (s *Store) Trades(ctx context.Context, limit int) ([]store.TradeRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT ts, round_id, symbol, wallet, side, phase, quantity, price, usdt_value,
		COALESCE(order_id, ''), status, COALESCE(error, '')
		FROM trades ORDER BY ts DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.TradeRow
	for rows.Next() {
		var row store.TradeRow
		if err := rows.Scan(&row.Time, &row.RoundID, &row.Symbol, &row.Wallet, &row.Side, &row.Phase,
			&row.Quantity, &row.Price, &row.USDT, &row.OrderID, &row.Status, &row.Error); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) Positions(ctx context.Context, limit int) ([]store.PositionRow, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT round_id, symbol, long_wallets, short_wallets, quantity, notional,
		status, opened_at, COALESCE(closed_at, opened_at), hold_seconds
		FROM positions ORDER BY opened_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.PositionRow
	for rows.Next() {
		var row store.PositionRow
		if err := rows.Scan(&row.RoundID, &row.Symbol, &row.LongWallets, &row.ShortWallets,
			&row.Quantity, &row.Notional, &row.Status, &row.Opened, &row.Closed, &row.HoldSeconds); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (s *Store) DailyStats(ctx context.Context, days int) ([]store.Summary, error) {
	if days <= 0 {
		days = 7
	}
	rows, err := s.db.QueryContext(ctx, `SELECT date(opened_at) AS day,
		COUNT(*),
		SUM(CASE WHEN status = 'CLOSED' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'ROLLED_BACK' THEN 1 ELSE 0 END),
		SUM(CASE WHEN status = 'FAILED' THEN 1 ELSE 0 END),
		(SELECT COUNT(*) FROM trades t WHERE date(t.ts) = date(p.opened_at)),
		COALESCE(SUM(CAST(notional AS REAL)), 0)
		FROM positions p GROUP BY day ORDER BY day DESC LIMIT ?`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []store.Summary
	for rows.Next() {
		var (
			day    string
			volume float64
			s      store.Summary
		)
		if err := rows.Scan(&day, &s.Rounds, &s.Completed, &s.RolledBack, &s.Failed, &s.Legs, &volume); err != nil {
			return nil, err
		}
		if t, err := time.Parse("2006-01-02", day); err == nil {
			s.Day = t
		}
		s.VolumeUSDT = strconv.FormatFloat(volume, 'f', 2, 64)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
