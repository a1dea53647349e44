package wallet

import (
	"fmt"
	"sort"
	"strings"
)

// Credentials is the opaque handle the exchange client signs with.
// The coordination core never inspects it.
type Credentials struct {
	Key    string
	Secret string
}

type Wallet struct {
	ID          string
	Name        string
	Credentials Credentials
	Balance     float64
	Eligible    bool
	Banned      bool
	// Stuck marks a wallet holding a position whose close is still
	// being retried. Stuck wallets stay out of new rounds.
	Stuck bool
}

const (
	envKeySuffix    = "_API_KEY"
	envSecretSuffix = "_API_SECRET"
	envPrefix       = "WALLET_"
)

// Discover builds wallets from WALLET_<X>_API_KEY / WALLET_<X>_API_SECRET
// pairs in the given environment, ordered by label so wallet identity is
// stable across restarts.
func Discover(environ []string) ([]*Wallet, error) {
	keys := map[string]string{}
	secrets := map[string]string{}
	for _, entry := range environ {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || !strings.HasPrefix(name, envPrefix) {
			continue
		}
		switch {
		case strings.HasSuffix(name, envKeySuffix):
			label := strings.TrimSuffix(strings.TrimPrefix(name, envPrefix), envKeySuffix)
			if isWalletLabel(label) {
				keys[label] = value
			}
		case strings.HasSuffix(name, envSecretSuffix):
			label := strings.TrimSuffix(strings.TrimPrefix(name, envPrefix), envSecretSuffix)
			if isWalletLabel(label) {
				secrets[label] = value
			}
		}
	}

	labels := make([]string, 0, len(keys))
	for label := range keys {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var wallets []*Wallet
	for _, label := range labels {
		secret, ok := secrets[label]
		if !ok || keys[label] == "" || secret == "" {
			return nil, fmt.Errorf("wallet %s: incomplete credentials, need both WALLET_%s_API_KEY and WALLET_%s_API_SECRET", label, label, label)
		}
		wallets = append(wallets, &Wallet{
			ID:          "wallet_" + strings.ToLower(label),
			Name:        "Wallet " + label,
			Credentials: Credentials{Key: keys[label], Secret: secret},
		})
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no wallets found: set WALLET_A_API_KEY / WALLET_A_API_SECRET pairs")
	}
	return wallets, nil
}

func isWalletLabel(label string) bool {
	if label == "" {
		return false
	}
	for _, r := range label {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
