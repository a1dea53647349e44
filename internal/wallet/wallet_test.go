package wallet

import (
	"strings"
	"testing"
)

func TestDiscoverOrderedPairs(t *testing.T) {
	environ := []string{
		"WALLET_C_API_KEY=kc",
		"WALLET_C_API_SECRET=sc",
		"WALLET_A_API_KEY=ka",
		"WALLET_A_API_SECRET=sa",
		"WALLET_B_API_KEY=kb",
		"WALLET_B_API_SECRET=sb",
		"UNRELATED=x",
	}
	wallets, err := Discover(environ)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(wallets) != 3 {
		t.Fatalf("expected 3 wallets, got %d", len(wallets))
	}
	for i, id := range []string{"wallet_a", "wallet_b", "wallet_c"} {
		if wallets[i].ID != id {
			t.Fatalf("expected %s at index %d, got %s", id, i, wallets[i].ID)
		}
	}
	if wallets[0].Credentials.Key != "ka" || wallets[0].Credentials.Secret != "sa" {
		t.Fatalf("credentials mismatch: %+v", wallets[0].Credentials)
	}
	if wallets[1].Name != "Wallet B" {
		t.Fatalf("unexpected name %q", wallets[1].Name)
	}
}

func TestDiscoverIncompletePair(t *testing.T) {
	_, err := Discover([]string{"WALLET_A_API_KEY=ka"})
	if err == nil || !strings.Contains(err.Error(), "incomplete credentials") {
		t.Fatalf("expected incomplete credentials error, got %v", err)
	}
}

func TestDiscoverNone(t *testing.T) {
	if _, err := Discover([]string{"PATH=/bin"}); err == nil {
		t.Fatalf("expected error with no wallets")
	}
}

func TestDiscoverIgnoresNonUppercaseLabels(t *testing.T) {
	environ := []string{
		"WALLET_A_API_KEY=ka",
		"WALLET_A_API_SECRET=sa",
		"WALLET_1_API_KEY=bad",
		"WALLET_1_API_SECRET=bad",
	}
	wallets, err := Discover(environ)
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(wallets) != 1 || wallets[0].ID != "wallet_a" {
		t.Fatalf("unexpected wallets: %+v", wallets)
	}
}
