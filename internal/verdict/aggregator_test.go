package verdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mizan/internal/contracts"
)

func valuationEnv(pass bool, mos float64, band string) contracts.Envelope[contracts.ValuationResult] {
	r := contracts.ValuationResult{Pass: pass, MarginOfSafety: contracts.Float(mos), ValuationBand: band}
	return contracts.OK(contracts.StageValuation, r, 85, "valuation one-liner", contracts.Diag("market_price"))
}

func marketEnv(class string) contracts.Envelope[contracts.MarketStructure] {
	return contracts.OK(contracts.StageMarketStructure, contracts.MarketStructure{Classification: class}, 60, class, contracts.Diag("flow_signal"))
}

func impairmentEnv(level string) contracts.Envelope[contracts.Impairment] {
	return contracts.OK(contracts.StageImpairment, contracts.Impairment{RiskLevel: level}, 70, level, contracts.Diag("cash"))
}

func sizingEnv(size float64) contracts.Envelope[contracts.SizingResult] {
	r := contracts.SizingResult{MaximumPositionSize: contracts.Float(size), BindingConstraint: contracts.FactorVolatility}
	return contracts.OK(contracts.StageSizing, r, 75, "sized", contracts.Diag("volatility"))
}

func skippedSizing() contracts.Envelope[contracts.SizingResult] {
	r := contracts.SizingResult{Reason: "Valuation gate failed, position sizing not applicable."}
	return contracts.Skipped(contracts.StageSizing, &r, r.Reason, contracts.Diag("volatility"))
}

func baseInputs() Inputs {
	return Inputs{
		Valuation:       valuationEnv(true, 0.6, contracts.BandDeepValue),
		MarketStructure: marketEnv(contracts.MarketNeutral),
		Impairment:      impairmentEnv(contracts.RiskLow),
		Sizing:          sizingEnv(4.25),
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		pass        bool
		risk        string
		wantVerdict string
	}{
		{"valuation fail beats low impairment", false, contracts.RiskLow, contracts.VerdictReject},
		{"valuation fail with undetermined", false, contracts.RiskUndetermined, contracts.VerdictReject},
		{"high impairment", true, contracts.RiskHigh, contracts.VerdictReject},
		{"undetermined never invests", true, contracts.RiskUndetermined, contracts.VerdictWatch},
		{"low impairment", true, contracts.RiskLow, contracts.VerdictInvest},
		{"medium impairment", true, contracts.RiskMedium, contracts.VerdictWatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := Decide(tt.pass, tt.risk)
			assert.Equal(t, tt.wantVerdict, got)
		})
	}
}

func TestAggregate_Invest(t *testing.T) {
	env := NewAggregator(nil).Aggregate(baseInputs())
	require.Equal(t, contracts.StatusOK, env.Status())

	r, _ := env.Data()
	assert.Equal(t, contracts.VerdictInvest, r.Verdict)
	assert.Equal(t, "Risk acceptable", r.SetupLabel)
	assert.Equal(t, "INVEST: Risk acceptable", env.OneLiner())
	assert.Equal(t, 60, r.Confidence) // 50 + 10 for LOW
	assert.Equal(t, r.Confidence, env.Confidence())
	require.NotNil(t, r.MaxPositionSize)
	assert.Equal(t, 4.25, *r.MaxPositionSize)
	assert.Equal(t, "4.2% NAV", r.GateSummary[SummarySizing])
	assert.Equal(t, "valuation one-liner", r.GateSummary[SummaryValuation])
	assert.Equal(t, KeyDrivers, r.KeyDrivers)
	assert.Equal(t, "Valuation band: DEEP_VALUE | Impairment risk: LOW | Market structure: NEUTRAL", r.RiskNotes)
}

func TestAggregate_RejectWithLowImpairment(t *testing.T) {
	in := baseInputs()
	in.Valuation = valuationEnv(false, -1.5, contracts.BandExpensive)
	in.Sizing = skippedSizing()

	r, _ := NewAggregator(nil).Aggregate(in).Data()
	assert.Equal(t, contracts.VerdictReject, r.Verdict)
	assert.Equal(t, "Valuation discipline breached", r.SetupLabel)
	assert.Nil(t, r.MaxPositionSize)
	assert.Equal(t, "SKIPPED: Valuation gate failed, position sizing not applicable.", r.GateSummary[SummarySizing])
	// 50 + 20 (MOS < -1) + 10 (LOW)
	assert.Equal(t, 80, r.Confidence)
	assert.Contains(t, r.Summary, clauseValuationDeepFail)
}

func TestAggregate_UndeterminedIsWatch(t *testing.T) {
	in := baseInputs()
	in.Impairment = impairmentEnv(contracts.RiskUndetermined)

	r, _ := NewAggregator(nil).Aggregate(in).Data()
	assert.Equal(t, contracts.VerdictWatch, r.Verdict)
	// sizing never attaches outside INVEST
	assert.Nil(t, r.MaxPositionSize)
	assert.Contains(t, r.Summary, clauseImpairmentUndetermined)
}

func TestAggregate_InterestNotReportedClause(t *testing.T) {
	in := baseInputs()
	imp := contracts.Impairment{
		RiskLevel: contracts.RiskUndetermined,
		Reason:    "Interest expense not explicitly reported in SEC filings for this period.",
	}
	in.Impairment = contracts.OK(contracts.StageImpairment, imp, 0, "UNDETERMINED", contracts.Diag())

	r, _ := NewAggregator(nil).Aggregate(in).Data()
	assert.Contains(t, r.Summary, clauseInterestNotReported)
}

func TestAggregate_MarketStructureNeverVetoes(t *testing.T) {
	in := baseInputs()
	in.MarketStructure = marketEnv(contracts.MarketHeadwind)

	r, _ := NewAggregator(nil).Aggregate(in).Data()
	assert.Equal(t, contracts.VerdictInvest, r.Verdict)
	assert.Equal(t, 50, r.Confidence) // 50 + 10 - 10
	assert.Contains(t, r.Summary, "Market-structure context is HEADWIND")
}

func TestAggregate_NoOpinionMarket(t *testing.T) {
	in := baseInputs()
	in.MarketStructure = marketEnv(contracts.MarketNoRelevantData)

	r, _ := NewAggregator(nil).Aggregate(in).Data()
	assert.Contains(t, r.Summary, clauseMarketNoOpinion)
}

func TestAggregate_MissingInputsPenalty(t *testing.T) {
	in := baseInputs()
	r := contracts.SizingResult{Reason: "missing"}
	in.Sizing = contracts.Skipped(contracts.StageSizing, &r, "missing",
		contracts.Diag("volatility").Missing("volatility").Binding(contracts.ConstraintDataAvailability))

	res, _ := NewAggregator(nil).Aggregate(in).Data()
	assert.Equal(t, contracts.VerdictInvest, res.Verdict)
	assert.Nil(t, res.MaxPositionSize)
	assert.Equal(t, 50, res.Confidence) // 50 + 10 - 10
	assert.Equal(t, "SKIPPED: missing", res.GateSummary[SummarySizing])
}

func TestAggregate_MissingUpstream(t *testing.T) {
	in := baseInputs()
	in.Impairment = contracts.Envelope[contracts.Impairment]{}
	in.Valuation = contracts.Errored[contracts.ValuationResult](contracts.StageValuation, "X", "x", contracts.Diag())

	env := NewAggregator(nil).Aggregate(in)
	require.Equal(t, contracts.StatusError, env.Status())

	gErr, _ := env.Failure()
	assert.Equal(t, CodeMissingInputs, gErr.Code)
	assert.Equal(t, []string{"valuation.pass", "impairment.risk_level"}, env.Diagnostics().MissingInputs)
}

func TestAggregate_BusinessContext(t *testing.T) {
	in := baseInputs()
	in.BusinessContext = &contracts.BusinessContext{
		BusinessSummary:    "a diversified consumer electronics maker",
		BusinessComplexity: contracts.ComplexityMedium,
	}

	r, _ := NewAggregator(nil).Aggregate(in).Data()
	require.NotNil(t, r.BusinessSummary)
	assert.Equal(t, contracts.ComplexityMedium, *r.BusinessComplexity)
	assert.Contains(t, r.Summary, "Business context indicates a diversified consumer electronics maker.")

	in.BusinessContext = nil
	r, _ = NewAggregator(nil).Aggregate(in).Data()
	assert.Nil(t, r.BusinessSummary)
	assert.Contains(t, r.Summary, clauseNoBusiness)
}

func TestAggregate_ImpairedClause(t *testing.T) {
	in := baseInputs()
	v := contracts.ValuationResult{Pass: false, ValuationBand: contracts.BandImpaired}
	in.Valuation = contracts.OK(contracts.StageValuation, v, 90, "impaired", contracts.Diag())

	r, _ := NewAggregator(nil).Aggregate(in).Data()
	assert.Contains(t, r.Summary, clauseValuationImpaired)
	assert.Nil(t, r.MarginOfSafety)
}
