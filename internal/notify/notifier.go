package notify

import (
	"context"

	"aster-hedge-bot/internal/store"
	"aster-hedge-bot/internal/trading"
	"aster-hedge-bot/internal/wallet"
)

// Notifier delivers operational events. Every method is best-effort:
// implementations log delivery failures and never return them, so a
// broken webhook cannot abort a round.
type Notifier interface {
	PositionOpened(ctx context.Context, r trading.Round)
	PositionClosed(ctx context.Context, r trading.Round)
	RoundFailed(ctx context.Context, r trading.Round, cause error)
	LowBalance(ctx context.Context, w wallet.Wallet, threshold float64)
	BalanceReport(ctx context.Context, wallets []wallet.Wallet)
	DailySummary(ctx context.Context, s store.Summary)
	// Escalate flags incidents needing an operator: a permanently
	// banned wallet or a position that could not be closed.
	Escalate(ctx context.Context, subject, detail string)
}

// Nop discards every event; used when Discord is disabled and in tests.
type Nop struct{}

func (Nop) PositionOpened(context.Context, trading.Round)      {}
func (Nop) PositionClosed(context.Context, trading.Round)      {}
func (Nop) RoundFailed(context.Context, trading.Round, error)  {}
func (Nop) LowBalance(context.Context, wallet.Wallet, float64) {}
func (Nop) BalanceReport(context.Context, []wallet.Wallet)     {}
func (Nop) DailySummary(context.Context, store.Summary)        {}
func (Nop) Escalate(context.Context, string, string)           {}
