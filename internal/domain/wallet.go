package domain

import (
	"strings"
	"time"
)

// WalletSubscription associates a user with one watched wallet address. The
// protocol is inferred once from the address shape when the subscription is
// created and never changes afterwards. Markets holds the stable identifiers
// (market addresses on Kamino, network names on Aave) of the markets that
// showed activity on the last full scan, so periodic re-checks can skip idle
// markets.
type WalletSubscription struct {
	Address  string
	Protocol Protocol
	Markets  []string
	AddedAt  time.Time
}

// ThresholdSettings is a per-user, per-protocol pair of health-factor
// cutoffs. Danger below warning is expected but deliberately not enforced;
// the evaluator's rule order governs either way.
type ThresholdSettings struct {
	Warning float64
	Danger  float64
}

// DefaultThresholds are applied when a user has not set explicit cutoffs for
// a protocol.
func DefaultThresholds() ThresholdSettings {
	return ThresholdSettings{Warning: 1.5, Danger: 1.3}
}

// User is one registered chat identity with its wallet subscriptions and
// threshold overrides.
type User struct {
	ChatID     int64
	Wallets    []WalletSubscription
	Thresholds map[Protocol]ThresholdSettings
	CreatedAt  time.Time
}

// ThresholdsFor resolves the effective thresholds for a protocol: the user's
// explicit override if present, else the defaults. Kamino and Aave settings
// are independent even for the same user.
func (u User) ThresholdsFor(p Protocol) ThresholdSettings {
	if t, ok := u.Thresholds[p]; ok {
		return t
	}
	return DefaultThresholds()
}

// base58Alphabet is the Bitcoin base58 character set used by Solana pubkeys.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// DetectProtocol infers the protocol from the wallet address shape:
// "0x" + 40 hex characters is an EVM address (Aave); a base58 string of
// 32-44 characters is a Solana pubkey (Kamino). Anything else is rejected
// before any scan is attempted.
func DetectProtocol(address string) (Protocol, error) {
	if isEVMAddress(address) {
		return ProtocolAave, nil
	}
	if isSolanaAddress(address) {
		return ProtocolKamino, nil
	}
	return "", ErrBadAddress
}

func isEVMAddress(s string) bool {
	if len(s) != 42 || !strings.HasPrefix(s, "0x") {
		return false
	}
	for _, c := range s[2:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isSolanaAddress(s string) bool {
	if len(s) < 32 || len(s) > 44 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune(base58Alphabet, c) {
			return false
		}
	}
	return true
}
