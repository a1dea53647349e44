package wallet

import (
	"context"
	"errors"
	"sync"

	"aster-hedge-bot/internal/trading"

	"go.uber.org/zap"
)

// BalanceClient is the slice of the exchange API the registry needs.
type BalanceClient interface {
	Balance(ctx context.Context, creds Credentials) (float64, error)
}

// KV persists wallet bans across restarts.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

const banKeyPrefix = "wallet:banned:"

// Registry owns all per-wallet mutable state: balances, eligibility,
// bans and stuck flags. The sequencer never mutates wallets directly.
type Registry struct {
	mu         sync.Mutex
	wallets    []*Wallet
	byID       map[string]*Wallet
	minBalance float64
	kv         KV
	log        *zap.Logger
}

func NewRegistry(wallets []*Wallet, minBalance float64, kv KV, log *zap.Logger) *Registry {
	byID := make(map[string]*Wallet, len(wallets))
	for _, w := range wallets {
		byID[w.ID] = w
	}
	return &Registry{
		wallets:    wallets,
		byID:       byID,
		minBalance: minBalance,
		kv:         kv,
		log:        log,
	}
}

// RestoreBans reloads permanent bans persisted by earlier runs.
func (r *Registry) RestoreBans(ctx context.Context) error {
	if r.kv == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		_, banned, err := r.kv.Get(ctx, banKeyPrefix+w.ID)
		if err != nil {
			return err
		}
		if banned {
			w.Banned = true
			w.Eligible = false
			r.log.Warn("wallet ban restored", zap.String("wallet", w.ID))
		}
	}
	return nil
}

// Refresh re-queries every wallet's balance and recomputes eligibility.
// A wallet whose balance query fails is marked ineligible for the round
// rather than aborting the refresh; an auth failure bans it permanently.
// The IDs of wallets banned by this pass are returned so the caller can
// send the one-time alert.
func (r *Registry) Refresh(ctx context.Context, client BalanceClient) ([]string, error) {
	r.mu.Lock()
	wallets := append([]*Wallet(nil), r.wallets...)
	r.mu.Unlock()

	var banned []string
	for _, w := range wallets {
		if w.Banned {
			continue
		}
		balance, err := client.Balance(ctx, w.Credentials)
		if err != nil {
			if ctx.Err() != nil {
				return banned, ctx.Err()
			}
			if trading.KindOf(err) == trading.KindAuth {
				if r.Ban(ctx, w.ID) {
					banned = append(banned, w.ID)
				}
			} else {
				r.mu.Lock()
				w.Eligible = false
				r.mu.Unlock()
				r.log.Warn("balance refresh failed", zap.String("wallet", w.ID), zap.Error(err))
			}
			continue
		}
		r.mu.Lock()
		w.Balance = balance
		w.Eligible = balance >= r.minBalance && !w.Stuck && !w.Banned
		r.mu.Unlock()
	}
	return banned, nil
}

// Eligible returns the current eligible set in discovery order. The
// returned values are snapshots; order is stable within a round.
func (r *Registry) Eligible() []Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Wallet
	for _, w := range r.wallets {
		if w.Eligible {
			out = append(out, *w)
		}
	}
	return out
}

// All returns snapshots of every wallet, banned ones included.
func (r *Registry) All() []Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Wallet, 0, len(r.wallets))
	for _, w := range r.wallets {
		out = append(out, *w)
	}
	return out
}

// IsEligible is the mid-round re-check before each leg.
func (r *Registry) IsEligible(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	return ok && w.Eligible
}

// Credentials resolves a wallet's credential handle for the client.
func (r *Registry) Credentials(id string) (Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return Credentials{}, errors.New("unknown wallet: " + id)
	}
	return w.Credentials, nil
}

// Ban permanently excludes a wallet for the process lifetime and
// persists the ban. Returns true the first time, so callers can send
// the one-time escalated alert.
func (r *Registry) Ban(ctx context.Context, id string) bool {
	r.mu.Lock()
	w, ok := r.byID[id]
	if !ok || w.Banned {
		r.mu.Unlock()
		return false
	}
	w.Banned = true
	w.Eligible = false
	r.mu.Unlock()

	r.log.Error("wallet banned for process lifetime", zap.String("wallet", id))
	if r.kv != nil {
		if err := r.kv.Set(ctx, banKeyPrefix+id, "1"); err != nil {
			r.log.Warn("failed to persist wallet ban", zap.String("wallet", id), zap.Error(err))
		}
	}
	return true
}

// SetStuck flags or clears a wallet with an unresolved open position.
func (r *Registry) SetStuck(id string, stuck bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.byID[id]
	if !ok {
		return
	}
	w.Stuck = stuck
	if stuck {
		w.Eligible = false
	}
}

// MarkIneligible drops a wallet from the current round's eligible set,
// e.g. after a balance error mid-round.
func (r *Registry) MarkIneligible(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if w, ok := r.byID[id]; ok {
		w.Eligible = false
	}
}
