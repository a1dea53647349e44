package timescale

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"aster-hedge-bot/internal/config"
	"aster-hedge-bot/internal/trading"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

const writeTimeout = 3 * time.Second

// Writer mirrors leg and round records into TimescaleDB for dashboards.
// Writes are async over bounded queues; a full queue drops the record
// rather than blocking the sequencing path. A nil *Writer is a no-op.
type Writer struct {
	db        *sql.DB
	log       *zap.Logger
	schema    string
	legs      chan trading.Leg
	rounds    chan trading.Round
	started   atomic.Bool
	dropLeg   atomic.Uint64
	dropRound atomic.Uint64
}

func New(cfg config.TimescaleConfig, log *zap.Logger) (*Writer, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("timescale dsn is required")
	}
	schema := strings.TrimSpace(cfg.Schema)
	if schema == "" {
		schema = "public"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	writer := &Writer{
		db:     db,
		log:    log,
		schema: schema,
		legs:   make(chan trading.Leg, queueSize),
		rounds: make(chan trading.Round, queueSize),
	}
	if err := writer.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return writer, nil
}

func (w *Writer) Start(ctx context.Context) {
	if w == nil {
		return
	}
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	go w.run(ctx)
}

func (w *Writer) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}

func (w *Writer) EnqueueLeg(leg trading.Leg) {
	if w == nil {
		return
	}
	select {
	case w.legs <- leg:
		return
	default:
		if w.dropLeg.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale leg queue full")
		}
	}
}

func (w *Writer) EnqueueRound(r trading.Round) {
	if w == nil {
		return
	}
	select {
	case w.rounds <- r:
		return
	default:
		if w.dropRound.Add(1) == 1 && w.log != nil {
			w.log.Warn("timescale round queue full")
		}
	}
}

func (w *Writer) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case leg := <-w.legs:
			w.writeLeg(ctx, leg)
		case r := <-w.rounds:
			w.writeRound(ctx, r)
		}
	}
}

func (w *Writer) ensureSchema(ctx context.Context) error {
	if w.db == nil {
		return errors.New("timescale db not initialized")
	}
	if w.schema != "public" {
		if err := w.exec(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", w.schema)); err != nil {
			return err
		}
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		leg_id TEXT NOT NULL,
		round_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		wallet TEXT NOT NULL,
		side TEXT NOT NULL,
		phase TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	)`, w.table("hedge_legs"))); err != nil {
		return err
	}
	if err := w.exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		ts TIMESTAMPTZ NOT NULL,
		round_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		quantity DOUBLE PRECISION NOT NULL,
		notional_usd DOUBLE PRECISION NOT NULL,
		long_wallets INTEGER NOT NULL,
		short_wallets INTEGER NOT NULL,
		status TEXT NOT NULL,
		error TEXT NOT NULL DEFAULT ''
	)`, w.table("hedge_rounds"))); err != nil {
		return err
	}
	if err := w.exec(ctx, "CREATE EXTENSION IF NOT EXISTS timescaledb"); err != nil {
		if w.log != nil {
			w.log.Warn("timescale extension ensure failed", zap.Error(err))
		}
		return nil
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("hedge_legs"))); err != nil && w.log != nil {
		w.log.Warn("timescale hedge_legs hypertable create failed", zap.Error(err))
	}
	if err := w.exec(ctx, fmt.Sprintf("SELECT create_hypertable('%s', 'ts', if_not_exists => TRUE)", w.table("hedge_rounds"))); err != nil && w.log != nil {
		w.log.Warn("timescale hedge_rounds hypertable create failed", zap.Error(err))
	}
	return nil
}

func (w *Writer) writeLeg(ctx context.Context, leg trading.Leg) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	ts := leg.ExecutedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, leg_id, round_id, symbol, wallet, side, phase, quantity, price, status, attempts, error
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, w.table("hedge_legs"))
	if _, err := w.db.ExecContext(ctx, query,
		ts,
		leg.ID,
		leg.RoundID,
		leg.Symbol,
		leg.Wallet,
		string(leg.Side),
		string(leg.Phase),
		leg.Quantity.InexactFloat64(),
		leg.Price.InexactFloat64(),
		string(leg.Status),
		leg.Attempts,
		leg.Error,
	); err != nil && w.log != nil {
		w.log.Warn("timescale leg insert failed", zap.Error(err))
	}
}

func (w *Writer) writeRound(ctx context.Context, r trading.Round) {
	if w.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	ts := r.Ended
	if ts.IsZero() {
		ts = r.Started
	}
	query := fmt.Sprintf(`INSERT INTO %s (
		ts, round_id, symbol, quantity, notional_usd, long_wallets, short_wallets, status, error
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, w.table("hedge_rounds"))
	if _, err := w.db.ExecContext(ctx, query,
		ts,
		r.ID,
		r.Symbol,
		r.Quantity.InexactFloat64(),
		r.NotionalUSDT().InexactFloat64(),
		len(r.Long.Wallets),
		len(r.Short.Wallets),
		string(r.Status),
		r.Error,
	); err != nil && w.log != nil {
		w.log.Warn("timescale round insert failed", zap.Error(err))
	}
}

func (w *Writer) exec(ctx context.Context, query string) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *Writer) table(name string) string {
	return w.schema + "." + name
}
