package contracts

import "context"

// Collaborator contracts consumed by the orchestrator.
// A returned error means the call itself failed (timeout, transport); the
// orchestrator maps it onto the gate's ERROR. Domain failures such as
// "ticker not found" come back as an ERROR envelope with a nil error.

// IdentityResolver resolves free text to a canonical identity (G0)
// ⭐ SSOT: G0 식별 인터페이스
type IdentityResolver interface {
	Resolve(ctx context.Context, query string) (Envelope[Identity], error)
}

// FundamentalsFetcher loads the latest annual fundamentals for a CIK
type FundamentalsFetcher interface {
	FetchFundamentals(ctx context.Context, cik string) (Envelope[Fundamentals], error)
}

// FilingsFetcher loads filing text for business context (non-blocking)
type FilingsFetcher interface {
	FetchFilings(ctx context.Context, cik string) (Envelope[BusinessFilings], error)
}

// MarketDataFetcher loads prices, risk metrics and flow signals for a ticker
type MarketDataFetcher interface {
	FetchMarketData(ctx context.Context, ticker string) (Envelope[MarketData], error)
}

// MacroFetcher loads the current rate and credit-stress regime
type MacroFetcher interface {
	FetchMacro(ctx context.Context) (Envelope[Macro], error)
}

// BusinessClassifier summarises filings (G1, non-blocking)
// ⭐ SSOT: G1 사업 맥락 인터페이스
type BusinessClassifier interface {
	ClassifyBusiness(ctx context.Context, filings BusinessFilings) (Envelope[BusinessContext], error)
}

// MarketSignals is the G3 request
type MarketSignals struct {
	LastPrice      *float64 `json:"last_price"`
	LastVolume     *float64 `json:"last_volume"`
	AvgVolume      *float64 `json:"avg_volume"`
	VolumeSpike    *float64 `json:"volume_spike"`
	PriceDirection string   `json:"price_direction"`
	FlowSignal     string   `json:"flow_signal"`
	YesPrice       *float64 `json:"yes_price"`
	NoPrice        *float64 `json:"no_price"`
	MacroSignal    string   `json:"macro_signal"`
}

// MarketStructureClassifier labels market structure (G3).
// Must answer NO_RELEVANT_DATA_FOUND instead of forcing a label.
// ⭐ SSOT: G3 시장 구조 인터페이스
type MarketStructureClassifier interface {
	ClassifyMarket(ctx context.Context, signals MarketSignals) (Envelope[MarketStructure], error)
}

// ImpairmentSignals is the G4 request
type ImpairmentSignals struct {
	NetIncome         *float64 `json:"net_income"`
	FreeCashflow      *float64 `json:"free_cashflow"`
	Cash              *float64 `json:"cash"`
	TotalDebt         *float64 `json:"total_debt"`
	NetDebt           *float64 `json:"net_debt"`
	InterestExpense   *float64 `json:"interest_expense"`
	InterestCoverage  *float64 `json:"interest_coverage"`
	SharesOutstanding *float64 `json:"shares_outstanding"`
	InterestRate      *float64 `json:"interest_rate"`
	CreditStress      string   `json:"credit_stress"` // "" when absent
	CreditStressIndex *float64 `json:"credit_stress_index"`
	BusinessSummary   string   `json:"business_context,omitempty"`
}

// ImpairmentClassifier labels permanent impairment risk (G4).
// Must answer UNDETERMINED, never an error, when inputs are absent.
// ⭐ SSOT: G4 손상 위험 인터페이스
type ImpairmentClassifier interface {
	ClassifyImpairment(ctx context.Context, signals ImpairmentSignals) (Envelope[Impairment], error)
}
