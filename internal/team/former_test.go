package team

import (
	"errors"
	"math/rand"
	"sort"
	"testing"

	"aster-hedge-bot/internal/trading"
)

func TestFormCoversEveryWalletOnce(t *testing.T) {
	f := NewFormer(rand.New(rand.NewSource(42)), 3)
	wallets := []string{"wallet_a", "wallet_b", "wallet_c", "wallet_d"}

	for i := 0; i < 100; i++ {
		long, short, err := f.Form(wallets)
		if err != nil {
			t.Fatalf("form: %v", err)
		}
		if long.Side != trading.SideLong || short.Side != trading.SideShort {
			t.Fatalf("wrong sides: %s / %s", long.Side, short.Side)
		}
		if len(long.Wallets) == 0 || len(short.Wallets) == 0 {
			t.Fatalf("empty team: %d vs %d", len(long.Wallets), len(short.Wallets))
		}
		all := append(append([]string(nil), long.Wallets...), short.Wallets...)
		if len(all) != len(wallets) {
			t.Fatalf("expected %d wallets, got %d", len(wallets), len(all))
		}
		sort.Strings(all)
		for i, w := range all {
			if w != wallets[i] {
				t.Fatalf("wallet set mismatch: %v", all)
			}
		}
	}
}

func TestFormNoImmediateShapeRepeat(t *testing.T) {
	f := NewFormer(rand.New(rand.NewSource(7)), 1)
	wallets := []string{"a", "b", "c", "d"}

	prev, ok := Shape{}, false
	for i := 0; i < 200; i++ {
		long, short, err := f.Form(wallets)
		if err != nil {
			t.Fatalf("form: %v", err)
		}
		shape := Shape{Long: len(long.Wallets), Short: len(short.Wallets)}
		if ok && shape == prev {
			t.Fatalf("round %d repeated shape %+v", i, shape)
		}
		prev, ok = shape, true
	}
}

func TestFormNoImmediateRepeatWhenWindowSaturates(t *testing.T) {
	// Three wallets yield only two shapes, so a memory of 3 saturates
	// after two rounds; consecutive rounds must still differ.
	f := NewFormer(rand.New(rand.NewSource(5)), 3)
	wallets := []string{"a", "b", "c"}

	prev, ok := Shape{}, false
	for i := 0; i < 200; i++ {
		long, short, err := f.Form(wallets)
		if err != nil {
			t.Fatalf("form: %v", err)
		}
		shape := Shape{Long: len(long.Wallets), Short: len(short.Wallets)}
		if ok && shape == prev {
			t.Fatalf("round %d repeated shape %+v", i, shape)
		}
		prev, ok = shape, true
	}
}

func TestFormTwoWalletsAlwaysOneVsOne(t *testing.T) {
	f := NewFormer(rand.New(rand.NewSource(3)), 3)
	for i := 0; i < 20; i++ {
		long, short, err := f.Form([]string{"a", "b"})
		if err != nil {
			t.Fatalf("form: %v", err)
		}
		if len(long.Wallets) != 1 || len(short.Wallets) != 1 {
			t.Fatalf("expected 1v1, got %dv%d", len(long.Wallets), len(short.Wallets))
		}
	}
}

func TestFormAllShapesEventuallyUsed(t *testing.T) {
	f := NewFormer(rand.New(rand.NewSource(11)), 0)
	seen := map[Shape]bool{}
	for i := 0; i < 500; i++ {
		long, short, err := f.Form([]string{"a", "b", "c", "d"})
		if err != nil {
			t.Fatalf("form: %v", err)
		}
		seen[Shape{Long: len(long.Wallets), Short: len(short.Wallets)}] = true
	}
	for _, shape := range []Shape{{1, 3}, {2, 2}, {3, 1}} {
		if !seen[shape] {
			t.Fatalf("shape %+v never chosen", shape)
		}
	}
}

func TestFormTooFewWallets(t *testing.T) {
	f := NewFormer(rand.New(rand.NewSource(1)), 3)
	if _, _, err := f.Form([]string{"only"}); !errors.Is(err, ErrNotEnoughWallets) {
		t.Fatalf("expected ErrNotEnoughWallets, got %v", err)
	}
}
