// Package sizing implements the G5 multiplicative risk-factor position sizing.
package sizing

import (
	"fmt"
	"math"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/internal/policy"
	"github.com/wonny/mizan/pkg/logger"
)

// Skip reasons
const (
	ReasonUpstreamReject = "Valuation gate failed, position sizing not applicable."
	reasonRateUnits      = "Position sizing skipped: interest_rate must be decimal (e.g., 0.0364 for 3.64%)."
)

// Inputs are the raw values G5 consumes. nil / "" mean absent.
type Inputs struct {
	Volatility       *float64
	MaxDrawdown      *float64
	InterestRate     *float64
	CreditStress     string
	CorrelationIndex *float64
}

// Engine sizes positions within a fixed policy range
type Engine struct {
	policy policy.Sizing
	logger *logger.Logger
}

// NewEngine creates a sizing engine
func NewEngine(p policy.Sizing, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		policy: p,
		logger: log.WithGate(contracts.StageSizing.String()),
	}
}

func inputsUsed() []string {
	return []string{
		"volatility",
		"max_drawdown",
		"interest_rate",
		"credit_stress",
		"correlation_index",
	}
}

// Compute sizes a position.
// upstreamReject forces SKIPPED before any input is looked at.
// ⭐ SSOT: 포지션 사이징 계산은 여기서만
func (e *Engine) Compute(in Inputs, upstreamReject bool) contracts.Envelope[contracts.SizingResult] {
	diag := contracts.Diag(inputsUsed()...)

	if upstreamReject {
		e.logger.Event("info", "position_sizing_skipped", map[string]interface{}{
			"reason": "upstream_reject",
		})
		return skip(ReasonUpstreamReject, diag.Binding(contracts.ConstraintNotApplicable))
	}

	if missing := in.missing(); len(missing) > 0 {
		reason := fmt.Sprintf("Position sizing skipped: missing required inputs: %s.", strings.Join(missing, ", "))
		return skip(reason, diag.Missing(missing...).Binding(contracts.ConstraintDataAvailability))
	}

	stress := strings.ToUpper(strings.TrimSpace(in.CreditStress))
	credit, ok := CreditFactor(stress)
	if !ok {
		reason := fmt.Sprintf("Position sizing skipped: invalid credit_stress: %s", in.CreditStress)
		return skip(reason, diag.Binding(contracts.ConstraintDataAvailability))
	}

	rate := *in.InterestRate
	if rate > 1.0 {
		return skip(reasonRateUnits, diag.Binding(contracts.ConstraintDataAvailability))
	}
	rateFactor := RateFactor(rate)

	factors := contracts.SizingFactors{
		Volatility:  VolatilityFactor(*in.Volatility),
		Drawdown:    DrawdownFactor(*in.MaxDrawdown),
		Correlation: CorrelationFactor(*in.CorrelationIndex),
		Macro:       min(rateFactor, credit),
	}

	size := e.clamp(e.policy.BaseSize * factors.Product())
	binding := BindingConstraint(factors)

	result := contracts.SizingResult{
		MaximumPositionSize: &size,
		BindingConstraint:   binding,
		Factors:             &factors,
		RateFactor:          &rateFactor,
		CreditFactor:        &credit,
		Explanation:         explanation(binding),
	}

	e.logger.Event("info", "position_sized", map[string]interface{}{
		"maximum_position_size": size,
		"binding_constraint":    binding,
	})

	oneLiner := fmt.Sprintf("%.1f%% NAV, bound by %s", size, binding)
	return contracts.OK(contracts.StageSizing, result, 75, oneLiner, diag.Binding(binding))
}

func (e *Engine) clamp(size float64) float64 {
	return math.Max(e.policy.MinSize, math.Min(size, e.policy.MaxSize))
}

func skip(reason string, diag contracts.Diagnostics) contracts.Envelope[contracts.SizingResult] {
	data := contracts.SizingResult{Reason: reason}
	return contracts.Skipped(contracts.StageSizing, &data, reason, diag)
}

func explanation(binding string) string {
	switch binding {
	case contracts.FactorVolatility:
		return "Volatility band set the lowest sizing factor, which bound maximum position size."
	case contracts.FactorDrawdown:
		return "Drawdown band set the lowest sizing factor, which bound maximum position size."
	case contracts.FactorCorrelation:
		return "Correlation band set the lowest sizing factor, which bound maximum position size."
	default:
		return "Macro band from interest_rate and credit_stress set the lowest sizing factor, which bound maximum position size."
	}
}

func (in Inputs) missing() []string {
	var out []string
	if in.Volatility == nil {
		out = append(out, "volatility")
	}
	if in.MaxDrawdown == nil {
		out = append(out, "max_drawdown")
	}
	if in.InterestRate == nil {
		out = append(out, "interest_rate")
	}
	if strings.TrimSpace(in.CreditStress) == "" {
		out = append(out, "credit_stress")
	}
	if in.CorrelationIndex == nil {
		out = append(out, "correlation_index")
	}
	return out
}
