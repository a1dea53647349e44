package sqlite

import (
	"context"
	"testing"
	"time"

	"aster-hedge-bot/internal/trading"

	"github.com/shopspring/decimal"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestKVRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.Set(ctx, "wallet:banned:wallet_a", "1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	val, ok, err := st.Get(ctx, "wallet:banned:wallet_a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || val != "1" {
		t.Fatalf("unexpected value %q (ok=%v)", val, ok)
	}
	if err := st.Delete(ctx, "wallet:banned:wallet_a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, "wallet:banned:wallet_a"); ok {
		t.Fatalf("expected key deleted")
	}
}

func TestRecordLegAndQuery(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	leg := trading.Leg{
		ID:         "leg-1",
		RoundID:    "round-1",
		Wallet:     "wallet_a",
		Symbol:     "BTCUSDT",
		Side:       trading.SideLong,
		Phase:      trading.PhaseOpen,
		Quantity:   decimal.RequireFromString("0.01"),
		Price:      decimal.RequireFromString("50000"),
		OrderID:    "987",
		Status:     trading.LegSuccess,
		Attempts:   1,
		ExecutedAt: time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
	}
	if err := st.RecordLeg(ctx, leg); err != nil {
		t.Fatalf("record leg: %v", err)
	}

	rows, err := st.Trades(ctx, 10)
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(rows))
	}
	row := rows[0]
	if row.Wallet != "wallet_a" || row.Side != "LONG" || row.Phase != "OPEN" {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.USDT != "500" {
		t.Fatalf("expected notional 500, got %s", row.USDT)
	}

	// Re-recording the same leg upserts rather than duplicating.
	leg.Status = trading.LegFailed
	leg.Error = "late failure"
	if err := st.RecordLeg(ctx, leg); err != nil {
		t.Fatalf("upsert leg: %v", err)
	}
	rows, err = st.Trades(ctx, 10)
	if err != nil {
		t.Fatalf("trades: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != "FAILED" {
		t.Fatalf("expected upserted FAILED row, got %+v", rows)
	}
}

func TestRecordRoundLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	r := trading.Round{
		ID:       "round-1",
		Symbol:   "BTCUSDT",
		Quantity: decimal.RequireFromString("0.02"),
		Price:    decimal.RequireFromString("50000"),
		Long:     trading.Team{Side: trading.SideLong, Wallets: []string{"wallet_a", "wallet_b"}},
		Short:    trading.Team{Side: trading.SideShort, Wallets: []string{"wallet_c"}},
		Status:   trading.RoundOpening,
		Started:  time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC),
	}
	if err := st.RecordRound(ctx, r); err != nil {
		t.Fatalf("record opening: %v", err)
	}

	r.Status = trading.RoundClosed
	r.Ended = r.Started.Add(10 * time.Minute)
	if err := st.RecordRound(ctx, r); err != nil {
		t.Fatalf("record closed: %v", err)
	}

	rows, err := st.Positions(ctx, 10)
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 position, got %d", len(rows))
	}
	row := rows[0]
	if row.Status != "CLOSED" || row.HoldSeconds != 600 {
		t.Fatalf("unexpected row: %+v", row)
	}
	if row.LongWallets != "wallet_a,wallet_b" || row.ShortWallets != "wallet_c" {
		t.Fatalf("wallet lists: %q / %q", row.LongWallets, row.ShortWallets)
	}
	if row.Notional != "1000" {
		t.Fatalf("expected notional 1000, got %s", row.Notional)
	}
}

func TestDailyStats(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	day := time.Date(2026, 8, 27, 9, 0, 0, 0, time.UTC)

	for i, status := range []trading.RoundStatus{trading.RoundClosed, trading.RoundClosed, trading.RoundRolledBack} {
		r := trading.Round{
			ID:       "round-" + string(rune('a'+i)),
			Symbol:   "BTCUSDT",
			Quantity: decimal.RequireFromString("0.01"),
			Price:    decimal.RequireFromString("50000"),
			Status:   status,
			Started:  day.Add(time.Duration(i) * time.Hour),
			Ended:    day.Add(time.Duration(i)*time.Hour + time.Minute),
		}
		if err := st.RecordRound(ctx, r); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	stats, err := st.DailyStats(ctx, 7)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(stats) != 1 {
		t.Fatalf("expected 1 day, got %d", len(stats))
	}
	s := stats[0]
	if s.Rounds != 3 || s.Completed != 2 || s.RolledBack != 1 || s.Failed != 0 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.Day.Format("2006-01-02") != "2026-08-27" {
		t.Fatalf("unexpected day: %v", s.Day)
	}
}
