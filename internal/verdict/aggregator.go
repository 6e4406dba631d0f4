// Package verdict implements the G6 final-verdict state machine.
package verdict

import (
	"fmt"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/internal/scoring"
	"github.com/wonny/mizan/pkg/logger"
)

// CodeMissingInputs is returned when an upstream gate left no usable signal
const CodeMissingInputs = "FINAL_VERDICT_MISSING_INPUTS"

// Setup labels per state machine branch
const (
	labelValuationBreached = "Valuation discipline breached"
	labelImpairmentHigh    = "Impairment risk elevated"
	labelUnresolved        = "Impairment unresolved"
	labelAcceptable        = "Risk acceptable"
	labelModerate          = "Risk moderate"
)

// Gate summary keys
const (
	SummaryValuation       = "valuation"
	SummaryMarketStructure = "market_structure"
	SummaryImpairment      = "impairment"
	SummarySizing          = "sizing"
)

// KeyDrivers is the fixed driver list reported with every verdict
var KeyDrivers = []string{"Valuation", "Impairment risk", "Market structure"}

// Inputs are the finalized upstream envelopes
type Inputs struct {
	Valuation       contracts.Envelope[contracts.ValuationResult]
	MarketStructure contracts.Envelope[contracts.MarketStructure]
	Impairment      contracts.Envelope[contracts.Impairment]
	Sizing          contracts.Envelope[contracts.SizingResult]

	// BusinessContext is optional (nil when G1 failed or was absent)
	BusinessContext *contracts.BusinessContext
}

// Aggregator combines upstream envelopes into a terminal verdict
type Aggregator struct {
	logger *logger.Logger
}

// NewAggregator creates an aggregator
func NewAggregator(log *logger.Logger) *Aggregator {
	if log == nil {
		log = logger.Nop()
	}
	return &Aggregator{logger: log.WithGate(contracts.StageVerdict.String())}
}

func inputsUsed() []string {
	return []string{
		"valuation.pass",
		"valuation.margin_of_safety",
		"market_structure.classification",
		"impairment.risk_level",
		"sizing.maximum_position_size",
	}
}

// Decide runs the precedence chain. First match wins.
func Decide(valuationPass bool, impairmentRisk string) (string, string) {
	switch {
	case !valuationPass:
		return contracts.VerdictReject, labelValuationBreached
	case impairmentRisk == contracts.RiskHigh:
		return contracts.VerdictReject, labelImpairmentHigh
	case impairmentRisk == contracts.RiskUndetermined:
		return contracts.VerdictWatch, labelUnresolved
	case impairmentRisk == contracts.RiskLow:
		return contracts.VerdictInvest, labelAcceptable
	default:
		return contracts.VerdictWatch, labelModerate
	}
}

// Aggregate produces the G6 envelope.
// It reads finalized values only; no financial figure is recomputed here.
// ⭐ SSOT: 최종 판정은 여기서만
func (a *Aggregator) Aggregate(in Inputs) contracts.Envelope[contracts.VerdictResult] {
	diag := contracts.Diag(inputsUsed()...)

	valuation, hasValuation := usable(in.Valuation)
	market, hasMarket := usable(in.MarketStructure)
	impairment, hasImpairment := usable(in.Impairment)

	var missing []string
	if !hasValuation {
		missing = append(missing, "valuation.pass")
	}
	if !hasMarket || market.Classification == "" {
		missing = append(missing, "market_structure.classification")
	}
	if !hasImpairment || impairment.RiskLevel == "" {
		missing = append(missing, "impairment.risk_level")
	}
	if len(missing) > 0 {
		return contracts.Errored[contracts.VerdictResult](
			contracts.StageVerdict,
			CodeMissingInputs,
			fmt.Sprintf("Missing required inputs: %s", strings.Join(missing, ", ")),
			diag.Missing(missing...),
		)
	}

	verdict, label := Decide(valuation.Pass, impairment.RiskLevel)

	confidence := scoring.Confidence(scoring.Signals{
		MarginOfSafety: valuation.MarginOfSafety,
		ImpairmentRisk: impairment.RiskLevel,
		Market:         market.Classification,
		MissingInputs:  scoring.AnyMissing(in.Valuation, in.MarketStructure, in.Impairment, in.Sizing),
	})

	var businessSummary, businessComplexity *string
	if bc := in.BusinessContext; bc != nil {
		if bc.BusinessSummary != "" {
			s := bc.BusinessSummary
			businessSummary = &s
		}
		if bc.BusinessComplexity != "" {
			c := bc.BusinessComplexity
			businessComplexity = &c
		}
	}

	summaryText := composeSummary(summaryInput{
		verdict:         verdict,
		businessSummary: deref(businessSummary),
		valuation:       valuation,
		impairment:      impairment,
		market:          market.Classification,
	})

	size, sized := sizedPosition(in.Sizing)

	result := contracts.VerdictResult{
		Verdict:              verdict,
		Confidence:           confidence,
		SetupLabel:           label,
		InvestmentStance:     stances[verdict],
		Summary:              summaryText,
		RiskNotes:            riskNotes(valuation.ValuationBand, impairment.RiskLevel, market.Classification),
		KeyDrivers:           append([]string{}, KeyDrivers...),
		MarginOfSafety:       valuation.MarginOfSafety,
		ValuationBand:        valuation.ValuationBand,
		MarketClassification: market.Classification,
		ImpairmentRisk:       impairment.RiskLevel,
		GateSummary: map[string]string{
			SummaryValuation:       in.Valuation.OneLiner(),
			SummaryMarketStructure: market.Classification,
			SummaryImpairment:      impairment.RiskLevel,
			SummarySizing:          sizingLine(in.Sizing),
		},
		BusinessSummary:    businessSummary,
		BusinessComplexity: businessComplexity,
	}

	// Sizing is attached only to INVEST
	if verdict == contracts.VerdictInvest && sized {
		result.MaxPositionSize = &size
	}

	a.logger.Event("info", "final_verdict_computed", map[string]interface{}{
		"verdict":    verdict,
		"confidence": confidence,
	})

	return contracts.OK(contracts.StageVerdict, result, confidence, fmt.Sprintf("%s: %s", verdict, label), diag)
}

func usable[T any](env contracts.Envelope[T]) (T, bool) {
	if !env.Usable() {
		var zero T
		return zero, false
	}
	return env.Data()
}

// sizedPosition returns the size of a non-skipped sizing result
func sizedPosition(env contracts.Envelope[contracts.SizingResult]) (float64, bool) {
	if env.Status() != contracts.StatusOK {
		return 0, false
	}
	r, ok := env.Data()
	if !ok || r.MaximumPositionSize == nil {
		return 0, false
	}
	return *r.MaximumPositionSize, true
}

func sizingLine(env contracts.Envelope[contracts.SizingResult]) string {
	if env.Status() == contracts.StatusSkipped {
		return "SKIPPED: " + env.OneLiner()
	}
	if size, ok := sizedPosition(env); ok {
		return fmt.Sprintf("%.1f%% NAV", size)
	}
	return "N/A"
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
