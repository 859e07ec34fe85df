package kamino

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// apiMarket is one entry of the public market-listing endpoint.
type apiMarket struct {
	LendingMarket string `json:"lendingMarket"`
	Name          string `json:"name"`
	IsPrimary     bool   `json:"isPrimary"`
}

// Obligation is one wallet's borrow/collateral exposure within a single
// lending market, as reported by the obligations endpoint. LoanToValue and
// LiquidationLtv arrive pre-computed as fractions (0.60 means 60%).
type Obligation struct {
	LoanToValue    decimal.Decimal `json:"loanToValue"`
	LiquidationLtv decimal.Decimal `json:"liquidationLtv"`
	Tag            string          `json:"tag"`
	Stats          ObligationStats `json:"refreshedStats"`
}

// ObligationStats carries the USD-denominated aggregates of an obligation.
type ObligationStats struct {
	UserTotalBorrow  decimal.Decimal `json:"userTotalBorrow"`
	UserTotalDeposit decimal.Decimal `json:"userTotalDeposit"`
	NetAccountValue  decimal.Decimal `json:"netAccountValue"`
}

// HasDebt reports whether the obligation carries a strictly positive borrow
// balance. Zero-debt obligations are filtered out before they can become
// positions.
func (o Obligation) HasDebt() bool {
	return o.Stats.UserTotalBorrow.IsPositive()
}

// checkHTTPStatus converts a non-2xx response into an error carrying a
// truncated body for diagnostics.
func checkHTTPStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	const maxBody = 256
	if len(body) > maxBody {
		body = body[:maxBody]
	}
	return fmt.Errorf("unexpected status %d: %s", status, string(body))
}
