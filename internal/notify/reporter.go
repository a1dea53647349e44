package notify

import (
	"context"
	"time"

	"aster-hedge-bot/internal/clock"
	"aster-hedge-bot/internal/store"
	"aster-hedge-bot/internal/wallet"

	"go.uber.org/zap"
)

// WalletSource supplies current wallet snapshots for reports.
type WalletSource interface {
	All() []wallet.Wallet
}

// StatsSource supplies daily aggregates for the summary.
type StatsSource interface {
	DailyStats(ctx context.Context, days int) ([]store.Summary, error)
}

// Reporter runs the periodic balance report, low-balance warnings and
// the daily summary alongside the trading loop. It only reads state.
type Reporter struct {
	notifier   Notifier
	wallets    WalletSource
	stats      StatsSource
	clk        clock.Clock
	log        *zap.Logger
	interval   time.Duration
	lowBalance float64
	daily      bool

	warned  map[string]bool
	lastDay string
}

func NewReporter(notifier Notifier, wallets WalletSource, stats StatsSource, clk clock.Clock, log *zap.Logger, interval time.Duration, lowBalance float64, daily bool) *Reporter {
	return &Reporter{
		notifier:   notifier,
		wallets:    wallets,
		stats:      stats,
		clk:        clk,
		log:        log,
		interval:   interval,
		lowBalance: lowBalance,
		daily:      daily,
		warned:     make(map[string]bool),
		lastDay:    clk.Now().UTC().Format("2006-01-02"),
	}
}

func (r *Reporter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.clk.After(r.interval):
		}
		r.tick(ctx)
	}
}

func (r *Reporter) tick(ctx context.Context) {
	wallets := r.wallets.All()
	r.notifier.BalanceReport(ctx, wallets)

	if r.lowBalance > 0 {
		for _, w := range wallets {
			if w.Banned {
				continue
			}
			if w.Balance < r.lowBalance {
				if !r.warned[w.ID] {
					r.warned[w.ID] = true
					r.notifier.LowBalance(ctx, w, r.lowBalance)
				}
			} else {
				// warn again only after the balance recovered
				delete(r.warned, w.ID)
			}
		}
	}

	if r.daily {
		r.maybeDailySummary(ctx)
	}
}

// maybeDailySummary sends yesterday's aggregate once the UTC day rolls
// over, on the first tick of the new day.
func (r *Reporter) maybeDailySummary(ctx context.Context) {
	today := r.clk.Now().UTC().Format("2006-01-02")
	if today == r.lastDay {
		return
	}
	prev := r.lastDay
	r.lastDay = today

	stats, err := r.stats.DailyStats(ctx, 3)
	if err != nil {
		r.log.Warn("daily stats query failed", zap.Error(err))
		return
	}
	for _, s := range stats {
		if s.Day.Format("2006-01-02") == prev {
			r.notifier.DailySummary(ctx, s)
			return
		}
	}
}
