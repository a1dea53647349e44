package team

import (
	"errors"
	"math/rand"

	"aster-hedge-bot/internal/trading"
)

// Shape is a realized team split: how many wallets took each side.
type Shape struct {
	Long  int
	Short int
}

var ErrNotEnoughWallets = errors.New("need at least 2 wallets for team formation")

// Former partitions the eligible wallet set into two opposing teams.
// The random source is injected so tests can drive it deterministically.
type Former struct {
	rng    *rand.Rand
	memory int
	recent []Shape
}

// NewFormer creates a former that refuses to repeat any of the last
// `memory` shapes when an alternative exists.
func NewFormer(rng *rand.Rand, memory int) *Former {
	if memory < 0 {
		memory = 0
	}
	return &Former{rng: rng, memory: memory}
}

// Form splits wallets into a LONG and a SHORT team covering every
// wallet exactly once, each side non-empty. With exactly 2 wallets the
// only shape is 1v1 and the recency window is ignored.
func (f *Former) Form(wallets []string) (trading.Team, trading.Team, error) {
	n := len(wallets)
	if n < 2 {
		return trading.Team{}, trading.Team{}, ErrNotEnoughWallets
	}

	candidates := make([]Shape, 0, n-1)
	for k := 1; k < n; k++ {
		shape := Shape{Long: k, Short: n - k}
		if f.seenRecently(shape) {
			continue
		}
		candidates = append(candidates, shape)
	}
	if len(candidates) == 0 {
		// The window holds every valid shape. Drop the window but keep
		// the last formed shape excluded so two consecutive rounds never
		// share a shape.
		last, has := f.LastShape()
		for k := 1; k < n; k++ {
			shape := Shape{Long: k, Short: n - k}
			if has && shape == last {
				continue
			}
			candidates = append(candidates, shape)
		}
	}
	if len(candidates) == 0 {
		// n == 2: 1v1 is the only shape, so repetition beats refusing
		// to trade.
		candidates = append(candidates, Shape{Long: 1, Short: n - 1})
	}
	shape := candidates[f.rng.Intn(len(candidates))]

	shuffled := append([]string(nil), wallets...)
	f.rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	long := trading.Team{Side: trading.SideLong, Wallets: shuffled[:shape.Long]}
	short := trading.Team{Side: trading.SideShort, Wallets: shuffled[shape.Long:]}

	f.remember(shape)
	return long, short, nil
}

// LastShape returns the most recently formed shape, if any.
func (f *Former) LastShape() (Shape, bool) {
	if len(f.recent) == 0 {
		return Shape{}, false
	}
	return f.recent[len(f.recent)-1], true
}

func (f *Former) seenRecently(shape Shape) bool {
	for _, s := range f.recent {
		if s == shape {
			return true
		}
	}
	return false
}

func (f *Former) remember(shape Shape) {
	if f.memory == 0 {
		return
	}
	f.recent = append(f.recent, shape)
	if len(f.recent) > f.memory {
		f.recent = f.recent[len(f.recent)-f.memory:]
	}
}
