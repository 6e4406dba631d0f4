// Package brain sequences the gates of one decision run.
package brain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/internal/policy"
	"github.com/wonny/mizan/internal/scoring"
	"github.com/wonny/mizan/internal/sizing"
	"github.com/wonny/mizan/internal/valuation"
	"github.com/wonny/mizan/internal/verdict"
	"github.com/wonny/mizan/pkg/logger"
)

// Notes recorded on the pipeline block
const (
	NoteSizingSuppressed = "sizing suppressed: upstream REJECT detected"
	notePipelineHalted   = "Pipeline halted at %s"
	noteBusinessSkipped  = "business_context skipped: %s"
)

// DefaultGateTimeout applies when Options.GateTimeout is unset
const DefaultGateTimeout = 20 * time.Second

// Collaborators are the external gates a run consumes.
// Filings and Business are optional; everything else is required.
type Collaborators struct {
	Identity        contracts.IdentityResolver
	Fundamentals    contracts.FundamentalsFetcher
	Filings         contracts.FilingsFetcher
	Business        contracts.BusinessClassifier
	MarketData      contracts.MarketDataFetcher
	Macro           contracts.MacroFetcher
	MarketStructure contracts.MarketStructureClassifier
	Impairment      contracts.ImpairmentClassifier

	// Advisory explainers; their output never feeds back into a gate
	ValuationExplainer valuation.Explainer
	SizingExplainer    sizing.Explainer
}

// Options holds run-level settings
type Options struct {
	Policy      policy.Policy
	GateTimeout time.Duration
	Now         func() time.Time
	NewRunID    func() string
}

// Orchestrator coordinates the gate sequence
// ⭐ SSOT: 파이프라인 조율은 여기서만
type Orchestrator struct {
	collab Collaborators

	valuation *valuation.Engine
	sizing    *sizing.Engine
	verdict   *verdict.Aggregator

	stamp       policy.Stamp
	gateTimeout time.Duration
	now         func() time.Time
	newRunID    func() string

	logger *logger.Logger
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(collab Collaborators, opts Options, log *logger.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logger.Nop()
	}

	required := []struct {
		stage contracts.Stage
		ok    bool
	}{
		{contracts.StageIdentity, collab.Identity != nil},
		{contracts.StageFundamentals, collab.Fundamentals != nil},
		{contracts.StageMarketData, collab.MarketData != nil},
		{contracts.StageMacro, collab.Macro != nil},
		{contracts.StageMarketStructure, collab.MarketStructure != nil},
		{contracts.StageImpairment, collab.Impairment != nil},
	}
	for _, r := range required {
		if !r.ok {
			return nil, fmt.Errorf("orchestrator: %s collaborator is required", r.stage)
		}
	}

	if err := policy.Validate(opts.Policy); err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	stamp, err := policy.NewStamp(opts.Policy)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: stamp policy: %w", err)
	}

	o := &Orchestrator{
		collab:      collab,
		valuation:   valuation.NewEngine(opts.Policy.Valuation, log),
		sizing:      sizing.NewEngine(opts.Policy.Sizing, log),
		verdict:     verdict.NewAggregator(log),
		stamp:       stamp,
		gateTimeout: opts.GateTimeout,
		now:         opts.Now,
		newRunID:    opts.NewRunID,
		logger:      log,
	}
	if o.gateTimeout <= 0 {
		o.gateTimeout = DefaultGateTimeout
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.newRunID == nil {
		o.newRunID = NewRunID
	}
	return o, nil
}

// Stamp returns the policy stamp every run is tagged with
func (o *Orchestrator) Stamp() policy.Stamp {
	return o.stamp
}

// run carries the state of one execution; nothing here outlives Run
type run struct {
	resp *contracts.PipelineResponse
	log  *logger.Logger
}

// halt records a fatal gate and closes the response
func (r *run) halt(res contracts.Result) *contracts.PipelineResponse {
	gerr, _ := res.Failure()
	r.resp.Status = contracts.StatusError
	r.resp.FailedStage = res.Gate()
	r.resp.Error = &gerr
	r.resp.Pipeline.Notes = append(r.resp.Pipeline.Notes, fmt.Sprintf(notePipelineHalted, res.Gate()))

	r.log.Event("warn", "pipeline_halted", map[string]interface{}{
		"failed_stage": res.Gate().String(),
		"code":         gerr.Code,
		"message":      gerr.Message,
	})
	return r.resp
}

// Run executes the gate sequence for one query.
// identity → fundamentals → business context (non-blocking) → market data → macro
// → valuation → market structure → impairment → sizing → verdict
//
// An ERROR from any blocking gate halts the run and returns an error-shaped
// response. The returned error is non-nil only when ctx itself is done.
func (o *Orchestrator) Run(ctx context.Context, query string) (*contracts.PipelineResponse, error) {
	runID := o.newRunID()
	startTime := o.now()

	r := &run{
		resp: &contracts.PipelineResponse{
			Status: contracts.StatusOK,
			Pipeline: contracts.PipelineMeta{
				GateConfidences: map[contracts.Stage]int{},
				GateOneLiners:   map[contracts.Stage]string{},
				Notes:           []string{},
			},
			Metadata: contracts.Metadata{
				RunID:      runID,
				Timestamp:  startTime.UTC(),
				Query:      query,
				PolicyID:   o.stamp.PolicyID,
				PolicyHash: o.stamp.Hash,
			},
		},
		log: o.logger.WithRun(runID),
	}

	r.log.Event("info", "pipeline_started", map[string]interface{}{
		"query":       query,
		"policy_id":   o.stamp.PolicyID,
		"policy_hash": o.stamp.Hash,
	})

	resp := o.execute(ctx, r)
	if err := ctx.Err(); err != nil {
		// cancellation discards whatever was in flight
		r.log.WithError(err).Warn("pipeline cancelled")
		return nil, err
	}

	o.finish(r)
	return resp, nil
}

func (o *Orchestrator) execute(ctx context.Context, r *run) *contracts.PipelineResponse {
	resp := r.resp

	// G0: identity
	identityEnv := callGate(ctx, o, contracts.StageIdentity, func(ctx context.Context) (contracts.Envelope[contracts.Identity], error) {
		return o.collab.Identity.Resolve(ctx, resp.Metadata.Query)
	})
	resp.Identity = &identityEnv
	if identityEnv.IsFatal() {
		return r.halt(identityEnv)
	}
	ident, _ := identityEnv.Data()

	// fundamentals
	fundamentalsEnv := callGate(ctx, o, contracts.StageFundamentals, func(ctx context.Context) (contracts.Envelope[contracts.Fundamentals], error) {
		return o.collab.Fundamentals.FetchFundamentals(ctx, ident.CIK)
	})
	resp.Fundamentals = &fundamentalsEnv
	if fundamentalsEnv.IsFatal() {
		return r.halt(fundamentalsEnv)
	}
	fundamentals, _ := fundamentalsEnv.Data()

	// G1: business context, never fatal
	business := o.businessContext(ctx, r, ident)

	// market data
	marketEnv := callGate(ctx, o, contracts.StageMarketData, func(ctx context.Context) (contracts.Envelope[contracts.MarketData], error) {
		return o.collab.MarketData.FetchMarketData(ctx, ident.Ticker)
	})
	resp.MarketData = &marketEnv
	if marketEnv.IsFatal() {
		return r.halt(marketEnv)
	}
	market, _ := marketEnv.Data()

	// macro
	macroEnv := callGate(ctx, o, contracts.StageMacro, func(ctx context.Context) (contracts.Envelope[contracts.Macro], error) {
		return o.collab.Macro.FetchMacro(ctx)
	})
	resp.Macro = &macroEnv
	if macroEnv.IsFatal() {
		return r.halt(macroEnv)
	}
	macro, _ := macroEnv.Data()

	// G2: valuation
	valuationEnv := o.valuation.Compute(valuation.Inputs{
		MarketPrice:       market.MarketPrice,
		NetIncome:         fundamentals.NetIncome,
		FreeCashflow:      fundamentals.FreeCashflow,
		TotalDebt:         fundamentals.TotalDebt,
		Cash:              fundamentals.Cash,
		SharesOutstanding: fundamentals.SharesOutstanding,
	})
	resp.Valuation = &valuationEnv
	if valuationEnv.IsFatal() {
		return r.halt(valuationEnv)
	}
	val, _ := valuationEnv.Data()

	if o.collab.ValuationExplainer != nil {
		o.advisory(resp).Valuation = valuation.Advise(valuationEnv, o.collab.ValuationExplainer)
	}

	// G3: market structure (timing only, never a veto)
	msEnv := callGate(ctx, o, contracts.StageMarketStructure, func(ctx context.Context) (contracts.Envelope[contracts.MarketStructure], error) {
		return o.collab.MarketStructure.ClassifyMarket(ctx, contracts.MarketSignals{
			LastPrice:      market.LastPrice,
			LastVolume:     market.LastVolume,
			AvgVolume:      market.AvgVolume,
			VolumeSpike:    market.VolumeSpike,
			PriceDirection: market.PriceDirection,
			FlowSignal:     market.FlowSignal,
			YesPrice:       market.YesPrice,
			NoPrice:        market.NoPrice,
			MacroSignal:    market.MacroSignal,
		})
	})
	resp.MarketStructure = &msEnv
	if msEnv.IsFatal() {
		return r.halt(msEnv)
	}

	// G4: impairment
	impairmentSignals := contracts.ImpairmentSignals{
		NetIncome:         fundamentals.NetIncome,
		FreeCashflow:      fundamentals.FreeCashflow,
		Cash:              fundamentals.Cash,
		TotalDebt:         fundamentals.TotalDebt,
		NetDebt:           contracts.Float(val.NetDebt),
		InterestExpense:   fundamentals.InterestExpense,
		InterestCoverage:  fundamentals.InterestCoverage,
		SharesOutstanding: fundamentals.SharesOutstanding,
		InterestRate:      macro.InterestRate,
		CreditStress:      macro.CreditStress,
		CreditStressIndex: macro.CreditStressIndex,
	}
	if business != nil {
		impairmentSignals.BusinessSummary = business.BusinessSummary
	}
	impEnv := callGate(ctx, o, contracts.StageImpairment, func(ctx context.Context) (contracts.Envelope[contracts.Impairment], error) {
		return o.collab.Impairment.ClassifyImpairment(ctx, impairmentSignals)
	})
	resp.Impairment = &impEnv
	if impEnv.IsFatal() {
		return r.halt(impEnv)
	}

	// G5: sizing, suppressed when valuation already rejected
	upstreamReject := !val.Pass
	sizingEnv := o.sizing.Compute(sizing.Inputs{
		Volatility:       market.Volatility,
		MaxDrawdown:      market.MaxDrawdown,
		InterestRate:     macro.InterestRate,
		CreditStress:     macro.CreditStress,
		CorrelationIndex: market.CorrelationIndex,
	}, upstreamReject)
	resp.Sizing = &sizingEnv
	if sizingEnv.IsFatal() {
		return r.halt(sizingEnv)
	}
	if upstreamReject {
		resp.Pipeline.Notes = append(resp.Pipeline.Notes, NoteSizingSuppressed)
	}
	if o.collab.SizingExplainer != nil {
		if n := sizing.Advise(sizingEnv, o.collab.SizingExplainer); n != nil {
			o.advisory(resp).Sizing = n
		}
	}

	// G6: verdict
	verdictEnv := o.verdict.Aggregate(verdict.Inputs{
		Valuation:       valuationEnv,
		MarketStructure: msEnv,
		Impairment:      impEnv,
		Sizing:          sizingEnv,
		BusinessContext: business,
	})
	resp.Verdict = &verdictEnv
	if verdictEnv.IsFatal() {
		return r.halt(verdictEnv)
	}

	return resp
}

// businessContext fetches filings and classifies them.
// Failures are recorded as notes; the run always continues.
func (o *Orchestrator) businessContext(ctx context.Context, r *run, ident contracts.Identity) *contracts.BusinessContext {
	resp := r.resp
	if o.collab.Business == nil {
		return nil
	}

	filings := contracts.BusinessFilings{CompanyName: ident.CompanyName}
	if o.collab.Filings != nil {
		filingsEnv := callGate(ctx, o, contracts.StageBusinessFilings, func(ctx context.Context) (contracts.Envelope[contracts.BusinessFilings], error) {
			return o.collab.Filings.FetchFilings(ctx, ident.CIK)
		})
		resp.BusinessFilings = &filingsEnv
		if data, ok := filingsEnv.Data(); ok && filingsEnv.Usable() {
			filings = data
			if filings.CompanyName == "" {
				filings.CompanyName = ident.CompanyName
			}
		} else {
			resp.Pipeline.Notes = append(resp.Pipeline.Notes,
				fmt.Sprintf("business_filings unavailable: %s", filingsEnv.OneLiner()))
		}
	}

	bcEnv := callGate(ctx, o, contracts.StageBusinessContext, func(ctx context.Context) (contracts.Envelope[contracts.BusinessContext], error) {
		return o.collab.Business.ClassifyBusiness(ctx, filings)
	})
	resp.BusinessContext = &bcEnv
	if !bcEnv.Usable() {
		resp.Pipeline.Notes = append(resp.Pipeline.Notes, fmt.Sprintf(noteBusinessSkipped, bcEnv.OneLiner()))
		r.log.Event("warn", "business_context_skipped", map[string]interface{}{
			"status": string(bcEnv.Status()),
		})
		return nil
	}
	bc, _ := bcEnv.Data()
	return &bc
}

func (o *Orchestrator) advisory(resp *contracts.PipelineResponse) *contracts.Advisory {
	if resp.Advisory == nil {
		resp.Advisory = &contracts.Advisory{}
	}
	return resp.Advisory
}

// finish fills the per-gate rollups and the pipeline confidence
func (o *Orchestrator) finish(r *run) {
	resp := r.resp
	results := resp.Results()

	seen := map[string]bool{}
	inputs := []string{}
	for _, res := range results {
		resp.Pipeline.GateConfidences[res.Gate()] = res.Confidence()
		if ol := res.OneLiner(); ol != "" {
			resp.Pipeline.GateOneLiners[res.Gate()] = ol
		}
		for _, in := range res.Diagnostics().InputsUsed {
			if !seen[in] {
				seen[in] = true
				inputs = append(inputs, in)
			}
		}
	}
	resp.Metadata.InputsUsed = inputs
	resp.Metadata.Verdict = resp.VerdictLabel()

	// a halted run is scored over the decision gates it reached; none means 0
	resp.Pipeline.Confidence = 0
	if resp.Status != contracts.StatusError || reachedDecisionGate(resp) {
		resp.Pipeline.Confidence = PipelineConfidence(resp)
	}

	fields := map[string]interface{}{
		"status":     string(resp.Status),
		"verdict":    resp.Metadata.Verdict,
		"confidence": resp.Pipeline.Confidence,
		"gates":      len(results),
	}
	r.log.Event("info", "pipeline_completed", fields)
}

// PipelineConfidence applies the additive rule over the finalized valuation,
// market structure and impairment envelopes, located by name.
// It answers "how sure is the overall decision"; gate confidences stay as they are.
func PipelineConfidence(resp *contracts.PipelineResponse) int {
	results := resp.Results()
	if len(results) == 0 {
		return 0
	}

	var s scoring.Signals
	if resp.Valuation != nil {
		if v, ok := resp.Valuation.Data(); ok {
			s.MarginOfSafety = v.MarginOfSafety
		}
	}
	if resp.MarketStructure != nil {
		if m, ok := resp.MarketStructure.Data(); ok {
			s.Market = m.Classification
		}
	}
	if resp.Impairment != nil {
		if i, ok := resp.Impairment.Data(); ok {
			s.ImpairmentRisk = i.RiskLevel
		}
	}
	s.MissingInputs = scoring.AnyMissing(results...)
	return scoring.Confidence(s)
}

// reachedDecisionGate reports whether any gate past data loading produced an envelope
func reachedDecisionGate(resp *contracts.PipelineResponse) bool {
	return resp.BusinessContext != nil || resp.Valuation != nil || resp.MarketStructure != nil ||
		resp.Impairment != nil || resp.Sizing != nil || resp.Verdict != nil
}

// IsCancelled reports whether err came from the caller giving up
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
