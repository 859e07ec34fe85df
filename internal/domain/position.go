package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// Position is a single borrow exposure for one wallet in one market. A
// Position only exists when the wallet has a strictly positive borrow balance
// there; zero-debt obligations never become positions.
type Position struct {
	// Market is the display label, e.g. "Main Market" or "Ethereum · WETH".
	Market string

	// MarketID is the stable identifier used for targeted re-scans: the
	// market account address on Kamino, the network name on Aave.
	MarketID string

	// LTV and LiquidationLTV are percentages with 2-decimal precision.
	LTV            decimal.Decimal
	LiquidationLTV decimal.Decimal

	// HealthFactor is the inverse-risk ratio: larger is safer.
	HealthFactor float64

	// Optional protocol-specific metadata.
	Borrowed  decimal.Decimal
	Deposited decimal.Decimal
	NetValue  decimal.Decimal
	Tag       string
}

// HealthFactorValid reports whether the position's health factor is a finite
// positive number. Data sources occasionally emit garbage during indexing
// lag; such positions are filtered, not surfaced as errors.
func (p Position) HealthFactorValid() bool {
	return !math.IsNaN(p.HealthFactor) && !math.IsInf(p.HealthFactor, 0) && p.HealthFactor > 0
}

// ProgressFunc reports incremental scan progress as (current, total). It is
// purely advisory; scans never depend on it for correctness.
type ProgressFunc func(current, total int)
