package verdict

import (
	"fmt"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
)

// Fixed clauses; the summary never carries decision authority of its own
const (
	clauseNoBusiness = "Business context is limited in this run, so durability assessment is constrained."

	clauseValuationImpaired = "Valuation fails discipline because intrinsic value is non-positive under the deterministic framework."
	clauseValuationDeepFail = "Valuation fails discipline with a deeply negative margin of safety versus the required threshold."
	clauseValuationFail     = "Valuation fails discipline because margin of safety is below the required threshold."
	clauseValuationPass     = "Valuation passes the required margin-of-safety discipline under the deterministic framework."

	clauseImpairmentUndetermined = "Impairment risk is UNDETERMINED due to missing financing disclosures; this uncertainty prevents an INVEST outcome."
	clauseInterestNotReported    = "Impairment context is UNDETERMINED because interest expense is not explicitly reported in SEC filings for this period."

	clauseMarketNoOpinion = "Market-structure signals are not reliable for this period and do not alter the core valuation decision."
)

// interestNotReported marks the impairment reason for an unreported interest burden
const interestNotReported = "Interest expense not explicitly reported"

var decisionClauses = map[string]string{
	contracts.VerdictInvest: "Decision: INVEST, as valuation discipline passes and impairment risk remains acceptable.",
	contracts.VerdictWatch:  "Decision: WATCH, pending clearer risk confirmation under current data constraints.",
	contracts.VerdictReject: "Decision: REJECT on valuation and risk discipline despite any underlying business strengths.",
}

var stances = map[string]string{
	contracts.VerdictInvest: "Valuation discipline met with acceptable impairment risk",
	contracts.VerdictWatch:  "Valuation/risk signals are incomplete or mixed",
	contracts.VerdictReject: "Valuation or impairment discipline not met",
}

// summaryInput is everything the template reads
type summaryInput struct {
	verdict         string
	businessSummary string
	valuation       contracts.ValuationResult
	impairment      contracts.Impairment
	market          string
}

func composeSummary(in summaryInput) string {
	business := clauseNoBusiness
	if in.businessSummary != "" {
		business = fmt.Sprintf("Business context indicates %s.", strings.TrimRight(in.businessSummary, ". "))
	}

	var valuation string
	switch {
	case in.valuation.Pass:
		valuation = clauseValuationPass
	case in.valuation.ValuationBand == contracts.BandImpaired:
		valuation = clauseValuationImpaired
	case in.valuation.MarginOfSafety != nil && *in.valuation.MarginOfSafety < -1.0:
		valuation = clauseValuationDeepFail
	default:
		valuation = clauseValuationFail
	}

	var impairment string
	switch {
	case strings.Contains(in.impairment.Reason, interestNotReported):
		impairment = clauseInterestNotReported
	case in.impairment.RiskLevel == contracts.RiskUndetermined:
		impairment = clauseImpairmentUndetermined
	default:
		impairment = fmt.Sprintf("Impairment context is classified as %s, based on reported balance-sheet and refinancing inputs.", in.impairment.RiskLevel)
	}

	market := clauseMarketNoOpinion
	if !contracts.NoOpinionMarket(in.market) {
		market = fmt.Sprintf("Market-structure context is %s and is treated as a non-veto timing signal.", in.market)
	}

	return strings.Join([]string{business, valuation, impairment, market, decisionClauses[in.verdict]}, " ")
}

func riskNotes(band, impairment, market string) string {
	return strings.Join([]string{
		"Valuation band: " + band,
		"Impairment risk: " + impairment,
		"Market structure: " + market,
	}, " | ")
}
