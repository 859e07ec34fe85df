package aave

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// On-chain fixed-point scales: base-currency amounts carry 8 decimals,
// thresholds are basis points, the health factor is an 18-decimal wad.
const (
	baseCurrencyDecimals = 8
	wadDecimals          = 18
)

// BaseToDecimal normalizes a base-currency integer (1e8 scale) to a decimal
// USD amount.
func BaseToDecimal(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -baseCurrencyDecimals)
}

// BpsToPercent converts a basis-point integer to a percentage with 2-decimal
// precision (8050 bps -> 80.50).
func BpsToPercent(v *big.Int) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -2)
}

// WadToFloat converts an 18-decimal wad to a float64. Values too large for
// float64 come back as +Inf, which callers reject via the finiteness check.
func WadToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := decimal.NewFromBigInt(v, -wadDecimals).Float64()
	return f
}

// CurrentLTVPercent computes the wallet's current loan-to-value percentage
// (debt / collateral * 100) rounded to 2 decimals. Returns zero when
// collateral is zero; callers skip such networks before getting here.
func CurrentLTVPercent(debt, collateral decimal.Decimal) decimal.Decimal {
	if collateral.IsZero() {
		return decimal.Zero
	}
	return debt.Div(collateral).Mul(decimal.NewFromInt(100)).Round(2)
}
