package sizing

import (
	"errors"
	"math/rand"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	ErrBelowMinimum = errors.New("total quantity below minimum order size")
	ErrBadStep      = errors.New("quantity step must be positive")
)

// Distributor splits a round's total quantity into per-wallet shares.
// All arithmetic is decimal so step alignment is exact; the random
// source is injected for deterministic tests.
type Distributor struct {
	rng *rand.Rand
}

func NewDistributor(rng *rand.Rand) *Distributor {
	return &Distributor{rng: rng}
}

// Jitter applies a uniform ±variance factor to a base notional.
func (d *Distributor) Jitter(base decimal.Decimal, variance float64) decimal.Decimal {
	if variance <= 0 {
		return base
	}
	factor := 1 + (d.rng.Float64()*2-1)*variance
	return base.Mul(decimal.NewFromFloat(factor))
}

// Split partitions total into at most count shares such that every
// share is an exact multiple of step, every share is >= min, and the
// shares sum exactly to the step-aligned total. When total cannot feed
// count wallets at min each, the share count shrinks instead of
// emitting a sub-minimum order.
func (d *Distributor) Split(total decimal.Decimal, count int, step, min decimal.Decimal) ([]decimal.Decimal, error) {
	if step.Sign() <= 0 {
		return nil, ErrBadStep
	}
	total = AlignDown(total, step)
	if min.LessThanOrEqual(step) {
		min = step
	} else {
		min = AlignUp(min, step)
	}
	if total.LessThan(min) {
		return nil, ErrBelowMinimum
	}
	if count < 1 {
		count = 1
	}
	if maxCount := int(total.Div(min).IntPart()); count > maxCount {
		count = maxCount
	}
	if count == 1 {
		return []decimal.Decimal{total}, nil
	}

	// Random partition of [0,1) into count intervals.
	cuts := make([]float64, count-1)
	for i := range cuts {
		cuts[i] = d.rng.Float64()
	}
	sort.Float64s(cuts)

	shares := make([]decimal.Decimal, count)
	prev := 0.0
	sum := decimal.Zero
	for i := 0; i < count-1; i++ {
		frac := decimal.NewFromFloat(cuts[i] - prev)
		shares[i] = AlignDown(total.Mul(frac), step)
		sum = sum.Add(shares[i])
		prev = cuts[i]
	}
	// The last share absorbs all rounding remainder so the team sum
	// matches the aligned total exactly.
	shares[count-1] = total.Sub(sum)

	// Merge sub-minimum shares into a neighbor rather than emitting
	// orders the exchange would reject.
	for len(shares) > 1 {
		merged := false
		for i := range shares {
			if shares[i].GreaterThanOrEqual(min) {
				continue
			}
			if i+1 < len(shares) {
				shares[i+1] = shares[i+1].Add(shares[i])
			} else {
				shares[i-1] = shares[i-1].Add(shares[i])
			}
			shares = append(shares[:i], shares[i+1:]...)
			merged = true
			break
		}
		if !merged {
			break
		}
	}
	return shares, nil
}

// TargetQuantity converts a USDT notional at the given price into a
// step-aligned base quantity.
func TargetQuantity(notional, price, step decimal.Decimal) decimal.Decimal {
	if price.Sign() <= 0 || step.Sign() <= 0 {
		return decimal.Zero
	}
	return AlignDown(notional.Div(price), step)
}

// MinQuantity converts the minimum order notional into the smallest
// step-aligned quantity satisfying it.
func MinQuantity(minNotional, price, step decimal.Decimal) decimal.Decimal {
	if price.Sign() <= 0 || step.Sign() <= 0 {
		return decimal.Zero
	}
	q := AlignUp(minNotional.Div(price), step)
	if q.Sign() <= 0 {
		return step
	}
	return q
}

func AlignDown(q, step decimal.Decimal) decimal.Decimal {
	return q.Div(step).Floor().Mul(step)
}

func AlignUp(q, step decimal.Decimal) decimal.Decimal {
	return q.Div(step).Ceil().Mul(step)
}
