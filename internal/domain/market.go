// Package domain defines the core types shared across the monitor: lending
// markets, borrow positions, wallet subscriptions, and risk thresholds.
package domain

// Protocol identifies a supported lending protocol.
type Protocol string

const (
	ProtocolKamino Protocol = "kamino"
	ProtocolAave   Protocol = "aave"
)

// Market is a named lending venue on a protocol. Markets are immutable
// values: the catalog replaces the whole list on every refresh and nothing
// mutates an individual entry afterwards.
type Market struct {
	// Address is the stable identifier: a market account on Solana for
	// Kamino, or the underlying reserve asset address for Aave.
	Address  string
	Name     string
	Protocol Protocol
	// Network is set for Aave markets only (e.g. "Ethereum", "Arbitrum").
	Network string
}
