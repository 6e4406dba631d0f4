package contracts

// Collaborator payloads: what each external gate hands to the core.
// Nullable numbers are pointers; nil means "not reported", never zero.

// MatchType describes how an identity query was resolved
type MatchType string

const (
	MatchExact MatchType = "EXACT"
	MatchFuzzy MatchType = "FUZZY"
)

// Identity is the resolved subject of a run (G0)
type Identity struct {
	Ticker          string    `json:"ticker"`
	CompanyName     string    `json:"company_name"`
	CIK             string    `json:"cik"` // zero padded to 10 digits
	MatchType       MatchType `json:"match_type"`
	ConfidenceScore float64   `json:"confidence_score"`
}

// Fundamentals is the latest annual balance sheet and cash flow snapshot
type Fundamentals struct {
	NetIncome          *float64 `json:"net_income"`
	OperatingCashflow  *float64 `json:"operating_cashflow"`
	CapitalExpenditure *float64 `json:"capital_expenditure"`
	FreeCashflow       *float64 `json:"free_cashflow"`
	Cash               *float64 `json:"cash"`
	TotalDebt          *float64 `json:"total_debt"`
	SharesOutstanding  *float64 `json:"shares_outstanding"`
	OperatingIncome    *float64 `json:"operating_income"`
	InterestExpense    *float64 `json:"interest_expense"`
	InterestCoverage   *float64 `json:"interest_coverage"`

	FiscalYear      int    `json:"fiscal_year"`
	FiscalPeriodEnd string `json:"fiscal_period_end"`
	Form            string `json:"form"`

	// Sources maps each field to the concept that satisfied it
	Sources map[string]string `json:"sources"`
}

// BusinessFilings is raw filing text used by the business context classifier
type BusinessFilings struct {
	CompanyName          string `json:"company_name"`
	SIC                  string `json:"sic"`
	SICDescription       string `json:"sic_description"`
	EntityType           string `json:"entity_type"`
	StateOfIncorporation string `json:"state_of_incorporation"`
	FormType             string `json:"form_type"`
	FilingDate           string `json:"filing_date"`
	BusinessDescription  string `json:"business_description,omitempty"`
	RiskFactors          string `json:"risk_factors,omitempty"`
}

// HasFilings reports whether any narrative text was extracted
func (b BusinessFilings) HasFilings() bool {
	return b.BusinessDescription != "" || b.RiskFactors != ""
}

// Complexity / exposure labels for business context
const (
	ComplexityLow    = "LOW"
	ComplexityMedium = "MEDIUM"
	ComplexityHigh   = "HIGH"

	ExposureDomestic      = "DOMESTIC"
	ExposureInternational = "INTERNATIONAL"
	ExposureGlobal        = "GLOBAL"
)

// BusinessContext is the non-blocking G1 classification
type BusinessContext struct {
	BusinessSummary    string   `json:"business_summary"`
	KeyRiskCategories  []string `json:"key_risk_categories"`
	GeographicExposure string   `json:"geographic_exposure"`
	BusinessComplexity string   `json:"business_complexity"`
}

// Price direction / flow labels
const (
	DirectionUp   = "UP"
	DirectionDown = "DOWN"
	DirectionFlat = "FLAT"

	FlowPositive = "POSITIVE"
	FlowNegative = "NEGATIVE"
	FlowNeutral  = "NEUTRAL"
)

// MarketData carries price level, risk metrics and flow signals
type MarketData struct {
	MarketPrice      *float64 `json:"market_price"`
	Volatility       *float64 `json:"volatility"`
	MaxDrawdown      *float64 `json:"max_drawdown"`
	CorrelationIndex *float64 `json:"correlation_index"`

	LastPrice      *float64 `json:"last_price"`
	LastVolume     *float64 `json:"last_volume"`
	AvgVolume      *float64 `json:"avg_volume"`
	VolumeSpike    *float64 `json:"volume_spike"` // last / avg
	PriceDirection string   `json:"price_direction"`
	FlowSignal     string   `json:"flow_signal"`
	MacroSignal    string   `json:"macro_signal"`

	// Optional auxiliary (prediction market) prices
	YesPrice *float64 `json:"yes_price"`
	NoPrice  *float64 `json:"no_price"`

	Source       string `json:"source"`
	Benchmark    string `json:"benchmark"`
	Observations int    `json:"observations"`
	AsOf         string `json:"as_of"`
}

// Credit stress buckets
const (
	CreditLow    = "LOW"
	CreditMedium = "MEDIUM"
	CreditHigh   = "HIGH"
)

// ValidCreditStress reports whether s is one of LOW, MEDIUM, HIGH
func ValidCreditStress(s string) bool {
	return s == CreditLow || s == CreditMedium || s == CreditHigh
}

// Macro is the rate and financial-conditions snapshot
type Macro struct {
	InterestRate        *float64 `json:"interest_rate"` // decimal fraction
	CreditStress        string   `json:"credit_stress"`
	CreditStressIndex   *float64 `json:"credit_stress_index"`
	FinancialConditions string   `json:"financial_conditions"` // TIGHT | NEUTRAL | EASY
	MacroSignal         string   `json:"macro_signal"`
	RateDate            string   `json:"rate_date"`
	StressDate          string   `json:"stress_date"`
}

// Market structure classifications
const (
	MarketTailwind       = "TAILWIND"
	MarketNeutral        = "NEUTRAL"
	MarketHeadwind       = "HEADWIND"
	MarketNoRelevantData = "NO_RELEVANT_DATA_FOUND"
)

// NoOpinionMarket reports classifications that carry no timing signal
func NoOpinionMarket(c string) bool {
	switch c {
	case MarketNoRelevantData, "NO_SIGNAL", "NO_DATA":
		return true
	}
	return false
}

// MarketStructure is the G3 classification (timing signal, never a veto)
type MarketStructure struct {
	Classification string `json:"classification"`
	SetupLabel     string `json:"setup_label"`
	Reasoning      string `json:"reasoning"`
}

// Impairment risk levels and drivers
const (
	RiskLow          = "LOW"
	RiskMedium       = "MEDIUM"
	RiskHigh         = "HIGH"
	RiskUndetermined = "UNDETERMINED"

	DriverLeverage    = "LEVERAGE"
	DriverRefinancing = "REFINANCING"
	DriverCashFlow    = "CASH_FLOW"
	DriverNone        = "NONE"
)

// Impairment is the G4 permanent impairment classification
type Impairment struct {
	RiskLevel  string `json:"risk_level"`
	RiskDriver string `json:"risk_driver"`
	Reason     string `json:"reason"`
}
