package sequencer

import (
	"context"
	"fmt"
	"time"

	"aster-hedge-bot/internal/clock"
	"aster-hedge-bot/internal/metrics"
	"aster-hedge-bot/internal/trading"
	"aster-hedge-bot/internal/wallet"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// OrderClient is the slice of the exchange API the sequencer drives.
// ClosePosition issues the opposite-side reduce-only order for the
// given open side and quantity.
type OrderClient interface {
	PlaceOrder(ctx context.Context, creds wallet.Credentials, symbol string, side trading.Side, qty decimal.Decimal) (trading.OrderResult, error)
	ClosePosition(ctx context.Context, creds wallet.Credentials, symbol string, side trading.Side, qty decimal.Decimal) (trading.OrderResult, error)
}

// LegGate re-validates wallets mid-round and applies failure policy.
type LegGate interface {
	CheckLeg(walletID string) error
	Penalize(ctx context.Context, walletID string, err error) bool
	MarkStuck(walletID string)
}

// CredentialSource resolves a wallet ID to its signing credentials.
type CredentialSource interface {
	Credentials(id string) (wallet.Credentials, error)
}

// Recorder persists leg records as they complete. Persistence is for
// audit only; a recording failure is logged and never fails the leg.
type Recorder interface {
	RecordLeg(ctx context.Context, leg trading.Leg)
}

type Config struct {
	RetryLimit  int
	Backoff     time.Duration
	WalletDelay time.Duration
	TeamDelay   time.Duration
}

// Sequencer executes a round's legs strictly one at a time with
// configured delays, and drives compensation when the open phase
// cannot complete.
type Sequencer struct {
	client OrderClient
	creds  CredentialSource
	gate   LegGate
	rec    Recorder
	clk    clock.Clock
	met    *metrics.Metrics
	log    *zap.Logger
	cfg    Config
}

func New(client OrderClient, creds CredentialSource, gate LegGate, rec Recorder, clk clock.Clock, met *metrics.Metrics, log *zap.Logger, cfg Config) *Sequencer {
	if cfg.RetryLimit < 1 {
		cfg.RetryLimit = 1
	}
	return &Sequencer{client: client, creds: creds, gate: gate, rec: rec, clk: clk, met: met, log: log, cfg: cfg}
}

// OpenError reports an aborted open phase: the leg that failed, the
// legs that were successfully reversed, and any rollback legs that
// themselves failed and left real exposure behind.
type OpenError struct {
	Failed      trading.Leg
	Compensated []trading.Leg
	Stuck       []trading.Leg
	Err         error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open phase aborted at wallet %s: %v (compensated %d, stuck %d)",
		e.Failed.Wallet, e.Err, len(e.Compensated), len(e.Stuck))
}

func (e *OpenError) Unwrap() error { return e.Err }

// Clean reports whether every executed leg was reversed, i.e. the
// round can be marked ROLLED_BACK rather than FAILED.
func (e *OpenError) Clean() bool { return len(e.Stuck) == 0 }

// OpenRound executes both teams' opening legs in order: LONG team,
// inter-team delay, SHORT team, with the wallet delay between legs.
// Any leg failure, including cancellation, stops the phase and
// reverses every leg executed so far in reverse order. On success the
// round holds offsetting positions of equal total quantity.
func (s *Sequencer) OpenRound(ctx context.Context, r *trading.Round) error {
	var journal []trading.Leg

	abort := func(failed trading.Leg, cause error) error {
		if s.gate.Penalize(ctx, failed.Wallet, cause) {
			s.met.WalletsBanned.Inc()
		}
		compensated, stuck := s.compensate(context.WithoutCancel(ctx), r, journal)
		return &OpenError{Failed: failed, Compensated: compensated, Stuck: stuck, Err: cause}
	}

	for ti, team := range []trading.Team{r.Long, r.Short} {
		if ti > 0 {
			if err := s.wait(ctx, s.cfg.TeamDelay); err != nil {
				return abort(trading.Leg{RoundID: r.ID, Symbol: r.Symbol}, err)
			}
		}
		for i, walletID := range team.Wallets {
			if i > 0 {
				if err := s.wait(ctx, s.cfg.WalletDelay); err != nil {
					return abort(trading.Leg{RoundID: r.ID, Wallet: walletID, Symbol: r.Symbol}, err)
				}
			}

			leg := trading.Leg{
				ID:       uuid.NewString(),
				RoundID:  r.ID,
				Wallet:   walletID,
				Symbol:   r.Symbol,
				Side:     team.Side,
				Phase:    trading.PhaseOpen,
				Quantity: team.Allocations[i],
			}
			if err := s.gate.CheckLeg(walletID); err != nil {
				leg.Status = trading.LegFailed
				leg.Error = err.Error()
				s.finish(ctx, r, leg)
				return abort(leg, err)
			}
			if err := s.executeLeg(ctx, &leg); err != nil {
				s.finish(ctx, r, leg)
				return abort(leg, err)
			}
			s.finish(ctx, r, leg)
			journal = append(journal, leg)
		}
	}
	return nil
}

// CloseRound closes the given open legs in their original team order.
// Unlike the open phase, a close failure does not stop the phase: the
// other positions still need closing. Eligibility is not re-checked
// here either; an open position must be closed even on a wallet that
// has since dropped below the balance floor or been flagged. The legs
// still open after this pass are returned so the scheduler can retry
// them on later ticks.
func (s *Sequencer) CloseRound(ctx context.Context, r *trading.Round, open []trading.Leg) []trading.Leg {
	var remaining []trading.Leg
	for i, target := range open {
		if i > 0 {
			if err := s.wait(ctx, s.cfg.WalletDelay); err != nil {
				remaining = append(remaining, open[i:]...)
				return remaining
			}
		}
		leg := trading.Leg{
			ID:       uuid.NewString(),
			RoundID:  r.ID,
			Wallet:   target.Wallet,
			Symbol:   target.Symbol,
			Side:     target.Side,
			Phase:    trading.PhaseClose,
			Quantity: target.Quantity,
		}
		err := s.executeLeg(ctx, &leg)
		s.finish(ctx, r, leg)
		if err != nil {
			if s.gate.Penalize(ctx, target.Wallet, err) {
				s.met.WalletsBanned.Inc()
			}
			s.log.Warn("close leg failed, will retry next tick",
				zap.String("round", r.ID), zap.String("wallet", target.Wallet), zap.Error(err))
			remaining = append(remaining, target)
		}
	}
	return remaining
}

// executeLeg runs one order with the bounded retry budget. Only
// transient failures are retried; auth, precision and balance failures
// surface immediately. Backoff doubles per attempt and honors ctx.
func (s *Sequencer) executeLeg(ctx context.Context, leg *trading.Leg) error {
	creds, err := s.creds.Credentials(leg.Wallet)
	if err != nil {
		leg.Status = trading.LegFailed
		leg.Error = err.Error()
		return err
	}

	backoff := s.cfg.Backoff
	var lastErr error
	for attempt := 1; attempt <= s.cfg.RetryLimit; attempt++ {
		leg.Attempts = attempt
		var res trading.OrderResult
		switch leg.Phase {
		case trading.PhaseOpen:
			res, lastErr = s.client.PlaceOrder(ctx, creds, leg.Symbol, leg.Side, leg.Quantity)
		default:
			res, lastErr = s.client.ClosePosition(ctx, creds, leg.Symbol, leg.Side, leg.Quantity)
		}
		if lastErr == nil {
			leg.OrderID = res.OrderID
			leg.Price = res.AvgPrice
			leg.Status = trading.LegSuccess
			leg.ExecutedAt = s.clk.Now()
			return nil
		}
		if !trading.Retryable(lastErr) || attempt == s.cfg.RetryLimit {
			break
		}
		s.log.Debug("leg attempt failed, backing off",
			zap.String("wallet", leg.Wallet), zap.Int("attempt", attempt), zap.Error(lastErr))
		if err := s.wait(ctx, backoff); err != nil {
			lastErr = err
			break
		}
		backoff *= 2
	}
	leg.Status = trading.LegFailed
	leg.Error = lastErr.Error()
	return lastErr
}

// compensate walks the journal in reverse, reversing each executed
// open leg with an opposite-side order of exactly its quantity. A leg
// whose compensation fails is returned as stuck and its wallet flagged;
// that exposure is escalated by the caller, never dropped.
func (s *Sequencer) compensate(ctx context.Context, r *trading.Round, journal []trading.Leg) (compensated, stuck []trading.Leg) {
	for i := len(journal) - 1; i >= 0; i-- {
		orig := journal[i]
		leg := trading.Leg{
			ID:       uuid.NewString(),
			RoundID:  r.ID,
			Wallet:   orig.Wallet,
			Symbol:   orig.Symbol,
			Side:     orig.Side,
			Phase:    trading.PhaseRollback,
			Quantity: orig.Quantity,
		}
		err := s.executeLeg(ctx, &leg)
		s.finish(ctx, r, leg)
		if err != nil {
			s.met.CompensationsFailed.Inc()
			s.gate.MarkStuck(orig.Wallet)
			s.log.Error("compensation failed, wallet holds unhedged exposure",
				zap.String("round", r.ID), zap.String("wallet", orig.Wallet),
				zap.String("quantity", orig.Quantity.String()), zap.Error(err))
			stuck = append(stuck, orig)
			continue
		}
		compensated = append(compensated, leg)
	}
	return compensated, stuck
}

// finish appends the leg to the round record, counts it, and hands it
// to the audit recorder.
func (s *Sequencer) finish(ctx context.Context, r *trading.Round, leg trading.Leg) {
	r.Legs = append(r.Legs, leg)
	if leg.Status == trading.LegSuccess {
		s.met.LegsPlaced.Inc()
	} else {
		s.met.LegsFailed.Inc()
	}
	if s.rec != nil {
		s.rec.RecordLeg(ctx, leg)
	}
}

func (s *Sequencer) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.clk.After(d):
		return nil
	}
}
