// Package valuation implements the G2 owner-earnings valuation.
//
// The arithmetic is deterministic and reads its constants from an immutable
// policy given at construction. Explanations are produced afterwards by an
// Explainer that only ever sees a copy of the finalized result.
package valuation

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/internal/policy"
	"github.com/wonny/mizan/pkg/logger"
)

// Error codes
const (
	CodeMissingInputs = "VALUATION_MISSING_INPUTS"
	CodeInvalidShares = "VALUATION_INVALID_SHARES"
)

// Band thresholds on margin of safety
const (
	deepValueMargin = 0.50
	fairMargin      = 0.0
)

// Inputs are the raw values G2 consumes. nil means "not reported".
type Inputs struct {
	MarketPrice       *float64
	NetIncome         *float64
	FreeCashflow      *float64 // optional
	TotalDebt         *float64
	Cash              *float64
	SharesOutstanding *float64
}

// Engine computes valuations under a fixed policy
type Engine struct {
	policy policy.Valuation
	logger *logger.Logger
}

// NewEngine creates a valuation engine
func NewEngine(p policy.Valuation, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		policy: p,
		logger: log.WithGate(contracts.StageValuation.String()),
	}
}

// inputsUsed lists raw inputs then the policy constants, in that order
func inputsUsed() []string {
	return []string{
		"market_price",
		"net_income",
		"free_cashflow",
		"total_debt",
		"cash",
		"shares_outstanding",
		"policy.base_multiple",
		"policy.required_margin",
		"policy(net_debt)",
	}
}

// Policy returns (multiple, requiredMargin) for a net debt figure.
// The only adaptive step: net-cash balance sheets get a higher multiple and
// a relieved margin, floored.
func (e *Engine) Policy(netDebt float64) (float64, float64) {
	multiple := e.policy.BaseMultiple
	required := e.policy.RequiredMargin

	if netDebt <= 0 {
		multiple += e.policy.NetCashMultipleBonus
		required = math.Max(e.policy.RequiredMarginFloor, required-e.policy.NetCashMarginRelief)
	}
	return multiple, required
}

// Compute runs the valuation
// ⭐ SSOT: 내재가치/안전마진 계산은 여기서만
func (e *Engine) Compute(in Inputs) contracts.Envelope[contracts.ValuationResult] {
	diag := contracts.Diag(inputsUsed()...)

	if missing := in.missing(); len(missing) > 0 {
		e.logger.Event("warn", "valuation_missing_inputs", map[string]interface{}{
			"missing_inputs": missing,
		})
		return contracts.Errored[contracts.ValuationResult](
			contracts.StageValuation,
			CodeMissingInputs,
			fmt.Sprintf("Missing required inputs: %s", strings.Join(missing, ", ")),
			diag.Missing(missing...),
		)
	}

	shares := *in.SharesOutstanding
	if !(shares > 0) {
		return contracts.Errored[contracts.ValuationResult](
			contracts.StageValuation,
			CodeInvalidShares,
			fmt.Sprintf("shares_outstanding must be > 0, got %g", shares),
			diag,
		)
	}

	marketPrice := *in.MarketPrice
	netIncome := *in.NetIncome

	// 1. owner earnings: the lesser of NI and FCF when both are known
	ownerEarnings := netIncome
	source := contracts.EarningsFromNetIncome
	if in.FreeCashflow != nil && *in.FreeCashflow < netIncome {
		ownerEarnings = *in.FreeCashflow
		source = contracts.EarningsFromFCF
	}

	// 2. net debt, floored for the intrinsic value subtraction
	netDebt := *in.TotalDebt - *in.Cash
	effectiveNetDebt := math.Max(0, netDebt)

	// 3. policy
	multiple, required := e.Policy(netDebt)

	// 4. intrinsic value
	intrinsicEquity := ownerEarnings*multiple - effectiveNetDebt
	intrinsicPrice := intrinsicEquity / shares

	result := contracts.ValuationResult{
		OwnerEarnings:       ownerEarnings,
		OwnerEarningsSource: source,
		NetDebt:             netDebt,
		EffectiveNetDebt:    effectiveNetDebt,
		MultipleUsed:        multiple,
		IntrinsicEquity:     intrinsicEquity,
		IntrinsicPrice:      intrinsicPrice,
		MarketPrice:         marketPrice,
		RequiredMargin:      required,
	}

	var oneLiner string
	confidence := 85

	if intrinsicPrice <= 0 {
		// 5. non-positive intrinsic value: margin is undefined, never divided
		result.ValuationBand = contracts.BandImpaired
		result.Pass = false
		oneLiner = "FAIL: Intrinsic value is non-positive (IMPAIRED)"
		confidence = 90
	} else {
		// 6. margin of safety and band
		mos := (intrinsicPrice - marketPrice) / intrinsicPrice
		result.MarginOfSafety = &mos
		result.Pass = mos >= required
		result.ValuationBand = band(mos)

		if result.Pass {
			oneLiner = fmt.Sprintf("PASS: %s with MOS %.1f%% (required %.0f%%)",
				result.ValuationBand, mos*100, required*100)
		} else {
			oneLiner = fmt.Sprintf("FAIL: Price is %.1fx intrinsic value (MOS %+.1f%% vs required %.0f%%)",
				marketPrice/intrinsicPrice, mos*100, required*100)
		}
	}

	if result.ValuationBand == contracts.BandImpaired || result.ValuationBand == contracts.BandExpensive {
		diag = diag.Binding(contracts.ConstraintValuation)
	}

	e.logger.Event("info", "valuation_calculated", map[string]interface{}{
		"intrinsic_price":      intrinsicPrice,
		"market_price":         marketPrice,
		"margin_of_safety":     result.MarginOfSafety,
		"valuation_band":       result.ValuationBand,
		"multiple_used":        multiple,
		"required_margin_used": required,
		"pass":                 result.Pass,
	})

	return contracts.OK(contracts.StageValuation, result, confidence, oneLiner, diag)
}

func band(mos float64) string {
	switch {
	case mos >= deepValueMargin:
		return contracts.BandDeepValue
	case mos >= fairMargin:
		return contracts.BandFair
	default:
		return contracts.BandExpensive
	}
}

func (in Inputs) missing() []string {
	var out []string
	check := func(name string, v *float64) {
		if v == nil {
			out = append(out, name)
		}
	}
	check("market_price", in.MarketPrice)
	check("net_income", in.NetIncome)
	check("total_debt", in.TotalDebt)
	check("cash", in.Cash)
	check("shares_outstanding", in.SharesOutstanding)
	return out
}
