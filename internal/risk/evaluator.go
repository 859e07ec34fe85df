// Package risk classifies borrow positions into risk tiers and renders the
// status lines delivered to users.
package risk

import (
	"fmt"
	"strings"

	"github.com/defiwatchbot/defiwatch/internal/domain"
)

// Tier is the risk classification of one position. The health factor is
// inverse risk: larger is safer, so a position at or below a threshold has
// reached that severity.
type Tier string

const (
	TierSafe    Tier = "safe"
	TierWarning Tier = "warning"
	TierDanger  Tier = "danger"
)

// Marker returns the visual prefix for the tier.
func (t Tier) Marker() string {
	switch t {
	case TierDanger:
		return "🔴"
	case TierWarning:
		return "🟠"
	default:
		return "🟢"
	}
}

// Classify assigns a tier by checking the danger cutoff first, then warning.
// The order is load-bearing: with inverted settings (danger above warning)
// the danger rule still wins, which is the documented behavior rather than
// something to normalize away.
func Classify(healthFactor float64, t domain.ThresholdSettings) Tier {
	switch {
	case healthFactor <= t.Danger:
		return TierDanger
	case healthFactor <= t.Warning:
		return TierWarning
	default:
		return TierSafe
	}
}

// Format renders one position as a status block with its tier marker.
func Format(p domain.Position, tier Tier) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", tier.Marker(), p.Market)
	fmt.Fprintf(&b, "LTV: %s%% (liquidation at %s%%)\n",
		p.LTV.StringFixed(2), p.LiquidationLTV.StringFixed(2))
	fmt.Fprintf(&b, "Health factor: %.2f", p.HealthFactor)
	if p.Borrowed.IsPositive() {
		fmt.Fprintf(&b, "\nBorrowed: $%s", p.Borrowed.StringFixed(2))
	}
	return b.String()
}

// Evaluate classifies and renders a position in one step. Evaluating the
// same (position, thresholds) pair twice yields identical output.
func Evaluate(p domain.Position, t domain.ThresholdSettings) (Tier, string) {
	tier := Classify(p.HealthFactor, t)
	return tier, Format(p, tier)
}
