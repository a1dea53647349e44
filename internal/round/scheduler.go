package round

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"aster-hedge-bot/internal/clock"
	"aster-hedge-bot/internal/config"
	"aster-hedge-bot/internal/metrics"
	"aster-hedge-bot/internal/notify"
	"aster-hedge-bot/internal/risk"
	"aster-hedge-bot/internal/sequencer"
	"aster-hedge-bot/internal/sizing"
	"aster-hedge-bot/internal/team"
	"aster-hedge-bot/internal/trading"
	"aster-hedge-bot/internal/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Gate is the risk surface the scheduler consults.
type Gate interface {
	EligibleForRound(ctx context.Context) ([]wallet.Wallet, error)
	MarkStuck(walletID string)
}

// Sequencer executes one round's legs.
type Sequencer interface {
	OpenRound(ctx context.Context, r *trading.Round) error
	CloseRound(ctx context.Context, r *trading.Round, open []trading.Leg) []trading.Leg
}

// PriceSource resolves the current mark price for a symbol.
type PriceSource interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Recorder persists round snapshots at each status transition.
type Recorder interface {
	RecordRound(ctx context.Context, r trading.Round)
}

// Scheduler is the single control loop: pick a symbol, form teams,
// open, hold, close, cool down, repeat. Rounds run strictly one at a
// time and every wait is a cancellation point.
type Scheduler struct {
	gate     Gate
	former   *team.Former
	dist     *sizing.Distributor
	seq      Sequencer
	prices   PriceSource
	notifier notify.Notifier
	rec      Recorder
	clk      clock.Clock
	rng      *rand.Rand
	met      *metrics.Metrics
	log      *zap.Logger
	cfg      config.TradingConfig
}

func NewScheduler(gate Gate, former *team.Former, dist *sizing.Distributor, seq Sequencer, prices PriceSource, notifier notify.Notifier, rec Recorder, clk clock.Clock, rng *rand.Rand, met *metrics.Metrics, log *zap.Logger, cfg config.TradingConfig) *Scheduler {
	return &Scheduler{
		gate: gate, former: former, dist: dist, seq: seq, prices: prices,
		notifier: notifier, rec: rec, clk: clk, rng: rng, met: met, log: log, cfg: cfg,
	}
}

// Run loops rounds until ctx is cancelled. A cancellation observed
// while a position is open forces an immediate close before returning;
// no position is left open on shutdown.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.runRound(ctx); err != nil {
			return err
		}
		cooldown := s.uniform(s.cfg.MinWait, s.cfg.MaxWait)
		s.log.Info("cooldown before next round", zap.Duration("wait", cooldown))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clk.After(cooldown):
		}
	}
}

func (s *Scheduler) runRound(ctx context.Context) error {
	wallets, err := s.gate.EligibleForRound(ctx)
	if err != nil {
		if errors.Is(err, risk.ErrNotEnoughWallets) {
			s.met.RoundsSkipped.Inc()
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warn("eligibility refresh failed, skipping round", zap.Error(err))
		return nil
	}
	r := s.plan(ctx, wallets)
	if r == nil {
		if err := ctx.Err(); err != nil {
			return err
		}
		return nil
	}
	return s.execute(ctx, r)
}

// plan assembles a fully sized round, or returns nil when this tick
// cannot produce a valid one (no price, notional below minimums).
func (s *Scheduler) plan(ctx context.Context, wallets []wallet.Wallet) *trading.Round {
	symbol := s.cfg.Symbols[s.rng.Intn(len(s.cfg.Symbols))]

	price, err := s.prices.Price(ctx, symbol)
	if err != nil {
		s.log.Warn("no price for symbol, skipping round", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}
	step, err := decimal.NewFromString(s.cfg.StepFor(symbol))
	if err != nil {
		s.log.Error("bad quantity step in config", zap.String("symbol", symbol), zap.Error(err))
		return nil
	}

	notional := s.dist.Jitter(decimal.NewFromFloat(s.cfg.NotionalFor(symbol)), s.cfg.Variance)
	total := sizing.TargetQuantity(notional, price, step)
	minQty := sizing.MinQuantity(decimal.NewFromFloat(s.cfg.MinOrderUSDT), price, step)

	ids := make([]string, len(wallets))
	for i, w := range wallets {
		ids[i] = w.ID
	}
	long, short, err := s.former.Form(ids)
	if err != nil {
		s.log.Warn("team formation failed", zap.Error(err))
		return nil
	}

	// Both teams split the same step-aligned total, so the two sides
	// always hold equal and opposite quantity.
	for _, t := range []*trading.Team{&long, &short} {
		alloc, err := s.dist.Split(total, len(t.Wallets), step, minQty)
		if err != nil {
			s.log.Warn("round notional too small to distribute, skipping",
				zap.String("symbol", symbol), zap.String("total", total.String()), zap.Error(err))
			return nil
		}
		t.Wallets = t.Wallets[:len(alloc)]
		t.Allocations = alloc
	}

	return &trading.Round{
		ID:       uuid.NewString(),
		Symbol:   symbol,
		Quantity: total,
		Price:    price,
		Long:     long,
		Short:    short,
		Hold:     s.uniform(s.cfg.MinHold, s.cfg.MaxHold),
		Status:   trading.RoundPending,
		Started:  s.clk.Now(),
	}
}

func (s *Scheduler) execute(ctx context.Context, r *trading.Round) error {
	sm := NewStateMachine()
	transition := func(ev Event) {
		st, err := sm.Apply(ev)
		if err != nil {
			s.log.Error("state machine rejected event", zap.String("round", r.ID), zap.Error(err))
			return
		}
		r.Status = st
		s.record(ctx, r)
	}

	s.log.Info("starting round",
		zap.String("round", r.ID), zap.String("symbol", r.Symbol),
		zap.String("quantity", r.Quantity.String()), zap.String("price", r.Price.String()),
		zap.Int("long_wallets", len(r.Long.Wallets)), zap.Int("short_wallets", len(r.Short.Wallets)),
		zap.Duration("hold", r.Hold))

	transition(EventStart)
	if err := s.seq.OpenRound(ctx, r); err != nil {
		s.finishFailedOpen(ctx, r, err, transition)
		return ctx.Err()
	}
	transition(EventOpened)
	s.notifier.PositionOpened(ctx, *r)

	// Hold until the window elapses or shutdown forces an early close.
	interrupted := false
	select {
	case <-ctx.Done():
		interrupted = true
		s.log.Info("stop requested, closing position early", zap.String("round", r.ID))
	case <-s.clk.After(r.Hold):
	}

	transition(EventCloseStart)
	// The close phase must finish even during shutdown; an open
	// position outlives the process otherwise.
	closeCtx := context.WithoutCancel(ctx)
	open := r.OpenLegs()
	delay := s.cfg.RetryBackoff
	for tick := 0; tick < s.cfg.CloseRetryLimit && len(open) > 0; tick++ {
		if tick > 0 {
			s.log.Warn("retrying unclosed legs",
				zap.String("round", r.ID), zap.Int("remaining", len(open)), zap.Int("tick", tick))
			<-s.clk.After(delay)
			delay *= 2
		}
		open = s.seq.CloseRound(closeCtx, r, open)
	}

	r.Ended = s.clk.Now()
	if len(open) > 0 {
		var stuck []string
		for _, leg := range open {
			s.gate.MarkStuck(leg.Wallet)
			stuck = append(stuck, leg.Wallet)
		}
		r.Error = "unclosed legs after close retry budget: " + strings.Join(stuck, ", ")
		transition(EventFailed)
		s.met.RoundsFailed.Inc()
		s.notifier.Escalate(closeCtx, "manual intervention required",
			"round "+r.ID+" has unclosed positions on: "+strings.Join(stuck, ", "))
		s.notifier.RoundFailed(closeCtx, *r, errors.New(r.Error))
	} else {
		transition(EventClosed)
		s.met.RoundsCompleted.Inc()
		s.notifier.PositionClosed(closeCtx, *r)
	}

	if interrupted {
		return ctx.Err()
	}
	return nil
}

// finishFailedOpen settles an aborted open phase: ROLLED_BACK when
// every executed leg was reversed, FAILED when compensation left
// exposure behind.
func (s *Scheduler) finishFailedOpen(ctx context.Context, r *trading.Round, cause error, transition func(Event)) {
	r.Ended = s.clk.Now()
	r.Error = cause.Error()

	var openErr *sequencer.OpenError
	if errors.As(cause, &openErr) && openErr.Clean() {
		transition(EventRolledBack)
		s.met.RoundsRolledBack.Inc()
	} else {
		transition(EventFailed)
		s.met.RoundsFailed.Inc()
		if openErr != nil && len(openErr.Stuck) > 0 {
			var stuck []string
			for _, leg := range openErr.Stuck {
				stuck = append(stuck, leg.Wallet)
			}
			s.notifier.Escalate(context.WithoutCancel(ctx), "manual intervention required",
				"round "+r.ID+" rollback left exposure on: "+strings.Join(stuck, ", "))
		}
	}
	s.notifier.RoundFailed(context.WithoutCancel(ctx), *r, cause)
}

func (s *Scheduler) record(ctx context.Context, r *trading.Round) {
	if s.rec != nil {
		s.rec.RecordRound(context.WithoutCancel(ctx), *r)
	}
}

func (s *Scheduler) uniform(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(s.rng.Int63n(int64(max-min)))
}
