package valuation

import (
	"fmt"

	"github.com/wonny/mizan/internal/contracts"
)

// Pathological flags raised by the mechanical explainer
const (
	FlagNegativeEarnings = "NEGATIVE_OWNER_EARNINGS"
	FlagImpaired         = "NON_POSITIVE_INTRINSIC_VALUE"
	FlagExtremeMargin    = "EXTREME_MARGIN_OF_SAFETY"
	FlagNetCash          = "NET_CASH_POLICY_APPLIED"
)

// Explainer narrates a finalized valuation.
// It receives a copy; the returned Narrative is attached beside the gate
// result and never merged into it.
type Explainer interface {
	Explain(result contracts.ValuationResult) contracts.Narrative
}

// Advise runs the explainer on a usable envelope, or returns nil
func Advise(env contracts.Envelope[contracts.ValuationResult], x Explainer) *contracts.Narrative {
	if x == nil || !env.Usable() {
		return nil
	}
	result, ok := env.Data()
	if !ok {
		return nil
	}
	n := x.Explain(result)
	return &n
}

// MechanicalExplainer builds commentary from fixed templates
type MechanicalExplainer struct{}

// Explain implements Explainer
func (MechanicalExplainer) Explain(r contracts.ValuationResult) contracts.Narrative {
	var flags []string
	if r.OwnerEarnings < 0 {
		flags = append(flags, FlagNegativeEarnings)
	}
	if r.ValuationBand == contracts.BandImpaired {
		flags = append(flags, FlagImpaired)
	}
	if r.MarginOfSafety != nil && (*r.MarginOfSafety <= -1 || *r.MarginOfSafety >= 1) {
		flags = append(flags, FlagExtremeMargin)
	}
	if r.NetDebt <= 0 {
		flags = append(flags, FlagNetCash)
	}

	var text string
	switch {
	case r.MarginOfSafety == nil:
		text = fmt.Sprintf("Owner earnings of %s at %.1fx leave non-positive equity value after %s effective net debt; valuation is impaired.",
			compact(r.OwnerEarnings), r.MultipleUsed, compact(r.EffectiveNetDebt))
	case r.Pass:
		text = fmt.Sprintf("Intrinsic value of %.2f per share against a %.2f market price gives a %s margin of safety, clearing the %.0f%% requirement.",
			r.IntrinsicPrice, r.MarketPrice, displayMargin(*r.MarginOfSafety), r.RequiredMargin*100)
	default:
		text = fmt.Sprintf("Intrinsic value of %.2f per share against a %.2f market price gives a %s margin of safety, short of the %.0f%% requirement.",
			r.IntrinsicPrice, r.MarketPrice, displayMargin(*r.MarginOfSafety), r.RequiredMargin*100)
	}

	return contracts.Narrative{
		Commentary: text,
		Flags:      flags,
		Source:     "mechanical",
	}
}

// displayMargin caps the rendered margin without touching the value
func displayMargin(mos float64) string {
	switch {
	case mos <= -1:
		return "< -100% (very expensive)"
	case mos >= 1:
		return "> 100%"
	default:
		return fmt.Sprintf("%.1f%%", mos*100)
	}
}

// compact renders large USD figures as 1.2B / 340.5M / 12.0K
func compact(v float64) string {
	abs := v
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 1e12:
		return fmt.Sprintf("%.1fT", v/1e12)
	case abs >= 1e9:
		return fmt.Sprintf("%.1fB", v/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.1fM", v/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.1fK", v/1e3)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}
