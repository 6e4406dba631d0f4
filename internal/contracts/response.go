package contracts

import "time"

// PipelineResponse is the aggregate produced by one run.
// Gate envelopes are keyed by gate name; a gate that never ran is omitted.
type PipelineResponse struct {
	Status      Status     `json:"status"`
	FailedStage Stage      `json:"failed_stage,omitempty"`
	Error       *GateError `json:"error,omitempty"`

	Identity        *Envelope[Identity]        `json:"identity,omitempty"`
	Fundamentals    *Envelope[Fundamentals]    `json:"fundamentals,omitempty"`
	BusinessFilings *Envelope[BusinessFilings] `json:"business_filings,omitempty"`
	BusinessContext *Envelope[BusinessContext] `json:"business_context,omitempty"`
	MarketData      *Envelope[MarketData]      `json:"market_data,omitempty"`
	Macro           *Envelope[Macro]           `json:"macro,omitempty"`
	Valuation       *Envelope[ValuationResult] `json:"valuation,omitempty"`
	MarketStructure *Envelope[MarketStructure] `json:"market_structure,omitempty"`
	Impairment      *Envelope[Impairment]      `json:"impairment,omitempty"`
	Sizing          *Envelope[SizingResult]    `json:"sizing,omitempty"`
	Verdict         *Envelope[VerdictResult]   `json:"verdict,omitempty"`

	// Advisory text lives beside the gate results, never inside them
	Advisory *Advisory `json:"advisory,omitempty"`

	Pipeline PipelineMeta `json:"pipeline"`
	Metadata Metadata     `json:"metadata"`
}

// Advisory groups explainer output produced after the numbers were frozen
type Advisory struct {
	Valuation *Narrative `json:"valuation,omitempty"`
	Sizing    *Narrative `json:"sizing,omitempty"`
}

// PipelineMeta carries run-level confidence and notes
type PipelineMeta struct {
	Confidence      int              `json:"confidence"`
	GateConfidences map[Stage]int    `json:"gate_confidences"`
	GateOneLiners   map[Stage]string `json:"gate_one_liners,omitempty"`
	Notes           []string         `json:"notes"`
}

// Metadata identifies the run and the policy that produced it
type Metadata struct {
	RunID      string    `json:"run_id"`
	Timestamp  time.Time `json:"timestamp"`
	Query      string    `json:"query"`
	InputsUsed []string  `json:"inputs_used"`
	Verdict    string    `json:"verdict,omitempty"`
	PolicyID   string    `json:"policy_id,omitempty"`
	PolicyHash string    `json:"policy_hash,omitempty"`
}

// Results returns every produced envelope in execution order
func (r *PipelineResponse) Results() []Result {
	var out []Result
	add := func(res Result, present bool) {
		if present {
			out = append(out, res)
		}
	}
	add(r.Identity, r.Identity != nil)
	add(r.Fundamentals, r.Fundamentals != nil)
	add(r.BusinessFilings, r.BusinessFilings != nil)
	add(r.BusinessContext, r.BusinessContext != nil)
	add(r.MarketData, r.MarketData != nil)
	add(r.Macro, r.Macro != nil)
	add(r.Valuation, r.Valuation != nil)
	add(r.MarketStructure, r.MarketStructure != nil)
	add(r.Impairment, r.Impairment != nil)
	add(r.Sizing, r.Sizing != nil)
	add(r.Verdict, r.Verdict != nil)
	return out
}

// VerdictLabel returns the terminal verdict, or "" when the run halted
func (r *PipelineResponse) VerdictLabel() string {
	if r.Verdict == nil {
		return ""
	}
	v, ok := r.Verdict.Data()
	if !ok {
		return ""
	}
	return v.Verdict
}
