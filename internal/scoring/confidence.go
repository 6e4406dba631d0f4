// Package scoring holds the additive decision-confidence rule shared by the
// verdict gate and the pipeline rollup.
package scoring

import "github.com/wonny/mizan/internal/contracts"

// Additive weights
const (
	Base                 = 50
	DeepDiscountBonus    = 20
	LowImpairmentBonus   = 10
	HeadwindPenalty      = 10
	MissingInputsPenalty = 10

	// DeepNegativeMargin is the margin of safety below which the bonus applies
	DeepNegativeMargin = -1.0
)

// Signals are the finalized upstream facts the rule reads.
// Nothing here is recomputed; callers copy values out of envelopes.
type Signals struct {
	MarginOfSafety *float64
	ImpairmentRisk string
	Market         string
	MissingInputs  bool
}

// Confidence applies the additive rule and clamps to [0,100]
func Confidence(s Signals) int {
	c := Base

	// A deeply negative margin makes a REJECT more certain
	if s.MarginOfSafety != nil && *s.MarginOfSafety < DeepNegativeMargin {
		c += DeepDiscountBonus
	}
	if s.ImpairmentRisk == contracts.RiskLow {
		c += LowImpairmentBonus
	}
	if s.Market == contracts.MarketHeadwind {
		c -= HeadwindPenalty
	}
	if s.MissingInputs {
		c -= MissingInputsPenalty
	}

	return clamp(c)
}

// AnyMissing reports whether any of the diagnostics lists missing inputs
func AnyMissing(results ...contracts.Result) bool {
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Diagnostics().HasMissing() {
			return true
		}
	}
	return false
}

func clamp(c int) int {
	if c < 0 {
		return 0
	}
	if c > 100 {
		return 100
	}
	return c
}
