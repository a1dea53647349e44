package store

import (
	"context"
	"time"

	"aster-hedge-bot/internal/trading"
)

// KV is the small durable key-value surface used for wallet bans and
// scheduler metadata.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Store is the durable audit record. It never drives control decisions;
// the in-memory round state is authoritative during execution.
type Store interface {
	KV
	RecordLeg(ctx context.Context, leg trading.Leg) error
	RecordRound(ctx context.Context, r trading.Round) error
	Trades(ctx context.Context, limit int) ([]TradeRow, error)
	Positions(ctx context.Context, limit int) ([]PositionRow, error)
	DailyStats(ctx context.Context, days int) ([]Summary, error)
	Close() error
}

// TradeRow is one executed or failed leg as recorded.
type TradeRow struct {
	Time     time.Time
	RoundID  string
	Symbol   string
	Wallet   string
	Side     string
	Phase    string
	Quantity string
	Price    string
	USDT     string
	OrderID  string
	Status   string
	Error    string
}

// PositionRow is one round's hedge unit: both wallet sets and the
// lifecycle outcome.
type PositionRow struct {
	RoundID      string
	Symbol       string
	LongWallets  string
	ShortWallets string
	Quantity     string
	Notional     string
	Status       string
	Opened       time.Time
	Closed       time.Time
	HoldSeconds  int64
}

// Summary aggregates one UTC day of activity.
type Summary struct {
	Day        time.Time
	Rounds     int
	Completed  int
	RolledBack int
	Failed     int
	Legs       int
	VolumeUSDT string
}
