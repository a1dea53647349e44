package sizing

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestSplitSumsExactlyAndAligns(t *testing.T) {
	step := dec("0.001")
	min := dec("0.05")
	total := dec("1.234")

	for seed := int64(0); seed < 200; seed++ {
		d := NewDistributor(rand.New(rand.NewSource(seed)))
		for count := 1; count <= 5; count++ {
			shares, err := d.Split(total, count, step, min)
			if err != nil {
				t.Fatalf("seed %d count %d: %v", seed, count, err)
			}
			sum := decimal.Zero
			for _, share := range shares {
				if !share.Mod(step).IsZero() {
					t.Fatalf("seed %d: share %s not aligned to %s", seed, share, step)
				}
				if share.LessThan(min) {
					t.Fatalf("seed %d: share %s below minimum %s", seed, share, min)
				}
				sum = sum.Add(share)
			}
			if !sum.Equal(AlignDown(total, step)) {
				t.Fatalf("seed %d count %d: sum %s != total %s", seed, count, sum, total)
			}
		}
	}
}

func TestSplitBothTeamsEqual(t *testing.T) {
	// 1000 USDT at 50000 with step 0.001: total 0.02, min order 100 USDT
	// so minimum quantity 0.002.
	price := dec("50000")
	total := TargetQuantity(dec("1000"), price, dec("0.001"))
	min := MinQuantity(dec("100"), price, dec("0.001"))

	for seed := int64(0); seed < 100; seed++ {
		d := NewDistributor(rand.New(rand.NewSource(seed)))
		long, err := d.Split(total, 2, dec("0.001"), min)
		if err != nil {
			t.Fatalf("long split: %v", err)
		}
		short, err := d.Split(total, 3, dec("0.001"), min)
		if err != nil {
			t.Fatalf("short split: %v", err)
		}
		sum := func(shares []decimal.Decimal) decimal.Decimal {
			s := decimal.Zero
			for _, v := range shares {
				s = s.Add(v)
			}
			return s
		}
		if !sum(long).Equal(sum(short)) {
			t.Fatalf("seed %d: long %s != short %s", seed, sum(long), sum(short))
		}
	}
}

func TestSplitShrinksCountInsteadOfSubMinimum(t *testing.T) {
	d := NewDistributor(rand.New(rand.NewSource(1)))
	// Total fits only two minimum shares; asking for 5 must shrink.
	shares, err := d.Split(dec("0.005"), 5, dec("0.001"), dec("0.002"))
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if len(shares) > 2 {
		t.Fatalf("expected at most 2 shares, got %d", len(shares))
	}
	for _, share := range shares {
		if share.LessThan(dec("0.002")) {
			t.Fatalf("sub-minimum share %s emitted", share)
		}
	}
}

func TestSplitBelowMinimum(t *testing.T) {
	d := NewDistributor(rand.New(rand.NewSource(1)))
	_, err := d.Split(dec("0.001"), 2, dec("0.001"), dec("0.01"))
	if !errors.Is(err, ErrBelowMinimum) {
		t.Fatalf("expected ErrBelowMinimum, got %v", err)
	}
}

func TestSplitBadStep(t *testing.T) {
	d := NewDistributor(rand.New(rand.NewSource(1)))
	_, err := d.Split(dec("1"), 2, decimal.Zero, dec("0.01"))
	if !errors.Is(err, ErrBadStep) {
		t.Fatalf("expected ErrBadStep, got %v", err)
	}
}

func TestJitterWithinVariance(t *testing.T) {
	d := NewDistributor(rand.New(rand.NewSource(7)))
	base := dec("100")
	low := dec("70")
	high := dec("130")
	for i := 0; i < 500; i++ {
		v := d.Jitter(base, 0.3)
		if v.LessThan(low) || v.GreaterThan(high) {
			t.Fatalf("jitter %s outside [%s, %s]", v, low, high)
		}
	}
	if !d.Jitter(base, 0).Equal(base) {
		t.Fatalf("zero variance must not jitter")
	}
}

func TestTargetQuantity(t *testing.T) {
	got := TargetQuantity(dec("1000"), dec("50000"), dec("0.001"))
	if !got.Equal(dec("0.02")) {
		t.Fatalf("expected 0.02, got %s", got)
	}
	if !TargetQuantity(dec("1000"), decimal.Zero, dec("0.001")).IsZero() {
		t.Fatalf("zero price must yield zero quantity")
	}
}

func TestMinQuantityRoundsUp(t *testing.T) {
	got := MinQuantity(dec("100"), dec("30000"), dec("0.001"))
	// 100/30000 = 0.00333..., aligned up to 0.004
	if !got.Equal(dec("0.004")) {
		t.Fatalf("expected 0.004, got %s", got)
	}
}
