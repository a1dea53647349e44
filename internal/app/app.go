package app

import (
	"context"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"aster-hedge-bot/internal/aster"
	"aster-hedge-bot/internal/clock"
	"aster-hedge-bot/internal/config"
	"aster-hedge-bot/internal/metrics"
	"aster-hedge-bot/internal/notify"
	"aster-hedge-bot/internal/risk"
	"aster-hedge-bot/internal/round"
	"aster-hedge-bot/internal/sequencer"
	"aster-hedge-bot/internal/sizing"
	"aster-hedge-bot/internal/store/sqlite"
	"aster-hedge-bot/internal/team"
	"aster-hedge-bot/internal/timescale"
	"aster-hedge-bot/internal/trading"
	"aster-hedge-bot/internal/wallet"

	"go.uber.org/zap"
)

type App struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *sqlite.Store
	client    *aster.Client
	feed      *aster.Feed
	registry  *wallet.Registry
	gate      *risk.Gate
	scheduler *round.Scheduler
	reporter  *notify.Reporter
	writer    *timescale.Writer
	metrics   *metrics.Metrics
	handler   http.Handler
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if dir := filepath.Dir(cfg.State.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	st, err := sqlite.New(cfg.State.SQLitePath)
	if err != nil {
		return nil, err
	}

	clk := clock.Real{}
	client := aster.NewClient(cfg.API, clk, log)
	feed := aster.NewFeed(cfg.WS.URL, cfg.WS.ReconnectDelay, cfg.Trading.Symbols, log)
	prices := aster.NewPrices(feed, client, clk)

	wallets, err := wallet.Discover(os.Environ())
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	log.Info("wallets discovered", zap.Int("count", len(wallets)))
	registry := wallet.NewRegistry(wallets, cfg.Trading.MinBalanceUSDT, st, log)

	met := metrics.NewNoop()
	var handler http.Handler
	if cfg.Metrics.Enabled {
		met, handler = metrics.NewPrometheus()
	}

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Discord.Enabled {
		webhook := os.Getenv("DISCORD_WEBHOOK_URL")
		if webhook == "" {
			log.Warn("discord enabled but DISCORD_WEBHOOK_URL is not set")
		} else {
			notifier = notify.NewDiscord(cfg.Discord, webhook, log)
		}
	}
	gate := risk.NewGate(registry, client, notifier, log)

	writer, err := timescale.New(cfg.Timescale, log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	seq := sequencer.New(client, registry, gate, &legRecorder{store: st, writer: writer, log: log}, clk, met, log, sequencer.Config{
		RetryLimit:  cfg.Trading.RetryLimit,
		Backoff:     cfg.Trading.RetryBackoff,
		WalletDelay: cfg.Trading.WalletDelay,
		TeamDelay:   cfg.Trading.TeamDelay,
	})
	scheduler := round.NewScheduler(
		gate,
		team.NewFormer(rng, cfg.Trading.ShapeMemory),
		sizing.NewDistributor(rng),
		seq,
		prices,
		notifier,
		&roundRecorder{store: st, writer: writer, log: log},
		clk, rng, met, log, cfg.Trading,
	)
	reporter := notify.NewReporter(notifier, registry, st, clk, log,
		cfg.Discord.ReportInterval, cfg.Risk.LowBalanceWarnUSDT, cfg.Discord.DailySummary)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		client:    client,
		feed:      feed,
		registry:  registry,
		gate:      gate,
		scheduler: scheduler,
		reporter:  reporter,
		writer:    writer,
		metrics:   met,
		handler:   handler,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	defer a.store.Close()
	defer a.writer.Close()

	if err := a.registry.RestoreBans(ctx); err != nil {
		return err
	}
	if err := a.reconcile(ctx); err != nil {
		a.log.Warn("startup reconcile incomplete", zap.Error(err))
	}

	go func() {
		if err := a.feed.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("price feed stopped", zap.Error(err))
		}
	}()
	a.writer.Start(ctx)
	go func() {
		if err := a.reporter.Run(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("reporter stopped", zap.Error(err))
		}
	}()
	if a.handler != nil {
		srv := &http.Server{Addr: a.cfg.Metrics.ListenAddr, Handler: a.handler}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	return a.scheduler.Run(ctx)
}

// reconcile flags wallets that still hold live positions from an
// earlier run. They stay out of new rounds until closed by hand; the
// bot has no record of what opened them.
func (a *App) reconcile(ctx context.Context) error {
	for _, w := range a.registry.All() {
		if w.Banned {
			continue
		}
		creds, err := a.registry.Credentials(w.ID)
		if err != nil {
			continue
		}
		positions, err := a.client.Positions(ctx, creds)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn("position check failed", zap.String("wallet", w.ID), zap.Error(err))
			continue
		}
		if len(positions) > 0 {
			a.gate.MarkStuck(w.ID)
			a.log.Warn("wallet holds a live position from a previous run, excluded until flat",
				zap.String("wallet", w.ID), zap.Int("positions", len(positions)))
		} else if w.Stuck {
			a.gate.ClearStuck(w.ID)
			a.log.Info("wallet position resolved, re-admitted", zap.String("wallet", w.ID))
		}
	}
	return nil
}

// legRecorder fans leg records out to sqlite and timescale. Audit
// failures are logged, never propagated into sequencing.
type legRecorder struct {
	store  *sqlite.Store
	writer *timescale.Writer
	log    *zap.Logger
}

func (r *legRecorder) RecordLeg(ctx context.Context, leg trading.Leg) {
	if err := r.store.RecordLeg(ctx, leg); err != nil {
		r.log.Warn("leg record failed", zap.String("leg", leg.ID), zap.Error(err))
	}
	r.writer.EnqueueLeg(leg)
}

type roundRecorder struct {
	store  *sqlite.Store
	writer *timescale.Writer
	log    *zap.Logger
}

func (r *roundRecorder) RecordRound(ctx context.Context, round trading.Round) {
	if err := r.store.RecordRound(ctx, round); err != nil {
		r.log.Warn("round record failed", zap.String("round", round.ID), zap.Error(err))
	}
	if round.Status.Terminal() {
		r.writer.EnqueueRound(round)
	}
}
