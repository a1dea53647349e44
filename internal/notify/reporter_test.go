package notify

import (
	"context"
	"testing"
	"time"

	"aster-hedge-bot/internal/store"
	"aster-hedge-bot/internal/wallet"

	"go.uber.org/zap"
)

type reporterClock struct {
	now time.Time
}

func (c *reporterClock) Now() time.Time { return c.now }

func (c *reporterClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

type recordingNotifier struct {
	Nop
	reports   int
	summaries []store.Summary
	low       []string
}

func (r *recordingNotifier) BalanceReport(ctx context.Context, wallets []wallet.Wallet) {
	_ = ctx
	_ = wallets
	r.reports++
}

func (r *recordingNotifier) DailySummary(ctx context.Context, s store.Summary) {
	_ = ctx
	r.summaries = append(r.summaries, s)
}

func (r *recordingNotifier) LowBalance(ctx context.Context, w wallet.Wallet, threshold float64) {
	_ = ctx
	_ = threshold
	r.low = append(r.low, w.ID)
}

type fixedWallets struct {
	wallets []wallet.Wallet
}

func (f *fixedWallets) All() []wallet.Wallet { return f.wallets }

type fixedStats struct {
	stats []store.Summary
}

func (f *fixedStats) DailyStats(ctx context.Context, days int) ([]store.Summary, error) {
	_ = ctx
	_ = days
	return f.stats, nil
}

func TestTickSendsBalanceReportAndWarnsOnce(t *testing.T) {
	clk := &reporterClock{now: time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)}
	n := &recordingNotifier{}
	wallets := &fixedWallets{wallets: []wallet.Wallet{
		{ID: "wallet_a", Balance: 100},
		{ID: "wallet_b", Balance: 5},
	}}
	r := NewReporter(n, wallets, &fixedStats{}, clk, zap.NewNop(), time.Hour, 25, false)

	r.tick(context.Background())
	r.tick(context.Background())
	if n.reports != 2 {
		t.Fatalf("expected 2 balance reports, got %d", n.reports)
	}
	if len(n.low) != 1 || n.low[0] != "wallet_b" {
		t.Fatalf("expected one warning for wallet_b, got %v", n.low)
	}

	// The warning re-arms after the balance recovers.
	wallets.wallets[1].Balance = 50
	r.tick(context.Background())
	wallets.wallets[1].Balance = 5
	r.tick(context.Background())
	if len(n.low) != 2 {
		t.Fatalf("expected a second warning after recovery, got %v", n.low)
	}
}

func TestDailySummarySentOnDayRollover(t *testing.T) {
	clk := &reporterClock{now: time.Date(2026, 8, 27, 23, 0, 0, 0, time.UTC)}
	n := &recordingNotifier{}
	stats := &fixedStats{stats: []store.Summary{
		{Day: time.Date(2026, 8, 27, 0, 0, 0, 0, time.UTC), Rounds: 4, Completed: 3, RolledBack: 1},
	}}
	r := NewReporter(n, &fixedWallets{}, stats, clk, zap.NewNop(), time.Hour, 0, true)

	r.tick(context.Background())
	if len(n.summaries) != 0 {
		t.Fatalf("summary must wait for the day rollover")
	}

	clk.now = time.Date(2026, 8, 28, 0, 30, 0, 0, time.UTC)
	r.tick(context.Background())
	if len(n.summaries) != 1 || n.summaries[0].Rounds != 4 {
		t.Fatalf("expected yesterday's summary, got %+v", n.summaries)
	}

	r.tick(context.Background())
	if len(n.summaries) != 1 {
		t.Fatalf("summary must be sent once per day")
	}
}

var _ Notifier = (*recordingNotifier)(nil)
