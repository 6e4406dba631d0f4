package contracts

// Deterministic core payloads (G2, G5, G6)

// Valuation bands
const (
	BandDeepValue = "DEEP_VALUE"
	BandFair      = "FAIR"
	BandExpensive = "EXPENSIVE"
	BandImpaired  = "IMPAIRED"
)

// Owner earnings sources
const (
	EarningsFromNetIncome = "NET_INCOME"
	EarningsFromFCF       = "FREE_CASH_FLOW"
)

// ValuationResult is the G2 payload
type ValuationResult struct {
	OwnerEarnings       float64  `json:"owner_earnings"`
	OwnerEarningsSource string   `json:"owner_earnings_source"`
	NetDebt             float64  `json:"net_debt"`
	EffectiveNetDebt    float64  `json:"effective_net_debt"`
	MultipleUsed        float64  `json:"multiple_used"`
	IntrinsicEquity     float64  `json:"intrinsic_equity"`
	IntrinsicPrice      float64  `json:"intrinsic_price"`
	MarketPrice         float64  `json:"market_price"`
	MarginOfSafety      *float64 `json:"margin_of_safety"` // nil when intrinsic price <= 0
	RequiredMargin      float64  `json:"required_margin"`
	ValuationBand       string   `json:"valuation_band"`
	Pass                bool     `json:"pass"`
}

// Sizing binding constraints in tie-break precedence order
const (
	FactorVolatility  = "VOLATILITY"
	FactorDrawdown    = "DRAWDOWN"
	FactorCorrelation = "CORRELATION"
	FactorMacro       = "MACRO"
)

// FactorPrecedence is the fixed tie-break order for the binding constraint
var FactorPrecedence = []string{FactorVolatility, FactorDrawdown, FactorCorrelation, FactorMacro}

// SizingFactors holds the four multipliers, each in (0,1]
type SizingFactors struct {
	Volatility  float64 `json:"VOLATILITY"`
	Drawdown    float64 `json:"DRAWDOWN"`
	Correlation float64 `json:"CORRELATION"`
	Macro       float64 `json:"MACRO"`
}

// Get returns the factor by constraint name
func (f SizingFactors) Get(name string) float64 {
	switch name {
	case FactorVolatility:
		return f.Volatility
	case FactorDrawdown:
		return f.Drawdown
	case FactorCorrelation:
		return f.Correlation
	default:
		return f.Macro
	}
}

// Product returns the multiplicative combination of all four factors
func (f SizingFactors) Product() float64 {
	return f.Volatility * f.Drawdown * f.Correlation * f.Macro
}

// SizingResult is the G5 payload.
// On SKIPPED only Reason is set and MaximumPositionSize stays nil.
type SizingResult struct {
	MaximumPositionSize *float64       `json:"maximum_position_size"` // percent of NAV in [1,10]
	BindingConstraint   string         `json:"binding_constraint,omitempty"`
	Factors             *SizingFactors `json:"factors,omitempty"`
	RateFactor          *float64       `json:"rate_factor,omitempty"`
	CreditFactor        *float64       `json:"credit_factor,omitempty"`
	Explanation         string         `json:"explanation,omitempty"`
	Reason              string         `json:"reason,omitempty"`
}

// Verdicts (terminal)
const (
	VerdictInvest = "INVEST"
	VerdictWatch  = "WATCH"
	VerdictReject = "REJECT"
)

// VerdictResult is the G6 payload
type VerdictResult struct {
	Verdict              string            `json:"verdict"`
	Confidence           int               `json:"confidence"`
	SetupLabel           string            `json:"setup_label"`
	InvestmentStance     string            `json:"investment_stance"`
	Summary              string            `json:"summary"`
	RiskNotes            string            `json:"risk_notes"`
	KeyDrivers           []string          `json:"key_drivers"`
	MarginOfSafety       *float64          `json:"margin_of_safety"`
	ValuationBand        string            `json:"valuation_band"`
	MarketClassification string            `json:"market_classification"`
	ImpairmentRisk       string            `json:"impairment_risk"`
	GateSummary          map[string]string `json:"gate_summary"`
	BusinessSummary      *string           `json:"business_summary"`
	BusinessComplexity   *string           `json:"business_complexity"`
	MaxPositionSize      *float64          `json:"max_position_size,omitempty"`
}

// Sizing narrative flags
const (
	SizeFlagNormal = "NORMAL"
	SizeFlagSmall  = "SMALL"
	SizeFlagLarge  = "LARGE"
)

// Narrative is advisory text attached next to (never inside) a gate result
type Narrative struct {
	Commentary string   `json:"commentary"`
	Flags      []string `json:"flags,omitempty"`
	Source     string   `json:"source"`
}

// Float returns a pointer to v
func Float(v float64) *float64 {
	return &v
}
