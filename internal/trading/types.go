package trading

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the market direction of a team or leg.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func (s Side) Opposite() Side {
	if s == SideLong {
		return SideShort
	}
	return SideLong
}

// OrderSide maps a position side onto the order side that opens it.
func (s Side) OrderSide() string {
	if s == SideLong {
		return "BUY"
	}
	return "SELL"
}

// Phase distinguishes what a leg was trying to accomplish.
type Phase string

const (
	PhaseOpen     Phase = "OPEN"
	PhaseClose    Phase = "CLOSE"
	PhaseRollback Phase = "ROLLBACK"
)

type LegStatus string

const (
	LegSuccess LegStatus = "SUCCESS"
	LegFailed  LegStatus = "FAILED"
)

// RoundStatus is the lifecycle state of a coordinated round.
type RoundStatus string

const (
	RoundPending    RoundStatus = "PENDING"
	RoundOpening    RoundStatus = "OPENING"
	RoundOpen       RoundStatus = "OPEN"
	RoundClosing    RoundStatus = "CLOSING"
	RoundClosed     RoundStatus = "CLOSED"
	RoundFailed     RoundStatus = "FAILED"
	RoundRolledBack RoundStatus = "ROLLED_BACK"
)

func (s RoundStatus) Terminal() bool {
	switch s {
	case RoundClosed, RoundFailed, RoundRolledBack:
		return true
	}
	return false
}

// Leg is one order on one wallet within a round.
type Leg struct {
	ID         string
	RoundID    string
	Wallet     string
	Symbol     string
	Side       Side
	Phase      Phase
	Quantity   decimal.Decimal
	Price      decimal.Decimal
	OrderID    string
	Status     LegStatus
	Attempts   int
	ExecutedAt time.Time
	Error      string
}

// Team is one side of a round: the wallets taking a common direction
// and their per-wallet quantity allocations, index-aligned.
type Team struct {
	Side        Side
	Wallets     []string
	Allocations []decimal.Decimal
}

func (t Team) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, a := range t.Allocations {
		sum = sum.Add(a)
	}
	return sum
}

// Round is one full hedged cycle: both teams open offsetting positions,
// hold, then close.
type Round struct {
	ID       string
	Symbol   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Long     Team
	Short    Team
	Hold     time.Duration
	Status   RoundStatus
	Legs     []Leg
	Started  time.Time
	Ended    time.Time
	Error    string
}

// OpenLegs returns the successfully executed open-phase legs in
// execution order. This is the compensation journal.
func (r *Round) OpenLegs() []Leg {
	var out []Leg
	for _, l := range r.Legs {
		if l.Phase == PhaseOpen && l.Status == LegSuccess {
			out = append(out, l)
		}
	}
	return out
}

// NotionalUSDT is the per-side notional at the round's entry price.
func (r *Round) NotionalUSDT() decimal.Decimal {
	return r.Quantity.Mul(r.Price)
}

// OrderResult is the exchange's acknowledgement of a filled order.
type OrderResult struct {
	OrderID     string
	Symbol      string
	Status      string
	ExecutedQty decimal.Decimal
	AvgPrice    decimal.Decimal
}
