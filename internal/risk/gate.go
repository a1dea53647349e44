package risk

import (
	"context"
	"errors"
	"fmt"

	"aster-hedge-bot/internal/notify"
	"aster-hedge-bot/internal/trading"
	"aster-hedge-bot/internal/wallet"

	"go.uber.org/zap"
)

var (
	ErrNotEnoughWallets = errors.New("fewer than 2 eligible wallets")
	ErrWalletIneligible = errors.New("wallet no longer eligible")
)

// Gate decides which wallets may trade, before and during a round.
type Gate struct {
	registry *wallet.Registry
	client   wallet.BalanceClient
	notifier notify.Notifier
	log      *zap.Logger
}

func NewGate(registry *wallet.Registry, client wallet.BalanceClient, notifier notify.Notifier, log *zap.Logger) *Gate {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &Gate{registry: registry, client: client, notifier: notifier, log: log}
}

// EligibleForRound refreshes balances and returns the wallet set for a
// new round. ErrNotEnoughWallets means the scheduler should skip the
// round and wait a cooldown, not abort.
func (g *Gate) EligibleForRound(ctx context.Context) ([]wallet.Wallet, error) {
	banned, err := g.registry.Refresh(ctx, g.client)
	for _, id := range banned {
		g.escalateBan(ctx, id, nil)
	}
	if err != nil {
		return nil, err
	}
	eligible := g.registry.Eligible()
	if len(eligible) < 2 {
		g.log.Info("skipping round", zap.Int("eligible_wallets", len(eligible)), zap.Error(ErrNotEnoughWallets))
		return nil, ErrNotEnoughWallets
	}
	return eligible, nil
}

// CheckLeg re-validates the target wallet right before its leg is
// issued; balances can drain between round start and execution.
func (g *Gate) CheckLeg(walletID string) error {
	if !g.registry.IsEligible(walletID) {
		return fmt.Errorf("wallet %s: %w", walletID, ErrWalletIneligible)
	}
	return nil
}

// MarkStuck flags a wallet holding an open position that could not be
// closed or compensated. Stuck wallets stay out of new rounds until the
// position is resolved.
func (g *Gate) MarkStuck(walletID string) {
	g.registry.SetStuck(walletID, true)
}

// ClearStuck re-admits a wallet once its position is confirmed flat.
func (g *Gate) ClearStuck(walletID string) {
	g.registry.SetStuck(walletID, false)
}

// Penalize applies the error-kind policy after a leg failure. Auth
// failures ban the wallet for the process lifetime and escalate once;
// balance failures drop it from the current eligible set. Returns true
// when the wallet was newly banned.
func (g *Gate) Penalize(ctx context.Context, walletID string, err error) bool {
	switch trading.KindOf(err) {
	case trading.KindAuth:
		if g.registry.Ban(ctx, walletID) {
			g.escalateBan(ctx, walletID, err)
			return true
		}
	case trading.KindBalance:
		g.registry.MarkIneligible(walletID)
		g.log.Warn("wallet dropped from round after balance error", zap.String("wallet", walletID))
	}
	return false
}

// escalateBan sends the one-time operator alert for a newly banned
// wallet. Registry.Ban returns true exactly once per wallet, so every
// ban produces exactly one escalation across both ban paths.
func (g *Gate) escalateBan(ctx context.Context, walletID string, cause error) {
	detail := "wallet " + walletID + " banned for the process lifetime after an auth failure"
	if cause != nil {
		detail += ": " + cause.Error()
	}
	g.notifier.Escalate(ctx, "wallet banned", detail)
}
