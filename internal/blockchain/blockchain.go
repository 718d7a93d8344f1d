package blockchain

import (
	"fmt"
	"strings"

	"github.com/tonkeeper/tongo/ton"
)

// NormalizeAddress parses a raw ("0:abcd...") or user-friendly address and
// returns its raw form, the representation used as account key everywhere.
func NormalizeAddress(address string) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("empty address")
	}

	accountID, err := ton.ParseAccountID(address)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", address, err)
	}
	return accountID.ToRaw(), nil
}

// HumanAddress renders a raw address in the bounceable user-friendly form.
func HumanAddress(address string) (string, error) {
	accountID, err := ton.ParseAccountID(address)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", address, err)
	}
	return accountID.ToHuman(true, false), nil
}

// NormalizeAll normalizes every address of the slice in place.
func NormalizeAll(addresses []string) error {
	for i, address := range addresses {
		raw, err := NormalizeAddress(address)
		if err != nil {
			return err
		}
		addresses[i] = raw
	}
	return nil
}
