package classify

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
)

// Coverage thresholds (operating income / interest expense)
const (
	coverageDistressed = 1.5
	coverageStrained   = 3.0
	coverageComfort    = 8.0
)

// ReasonInterestNotReported is used when neither interest expense nor coverage is known
const ReasonInterestNotReported = "Interest expense not explicitly reported in SEC filings for this period."

var impairmentInputs = []string{
	"net_income", "free_cashflow", "cash", "total_debt", "net_debt",
	"interest_expense", "interest_coverage", "shares_outstanding",
	"interest_rate", "credit_stress", "credit_stress_index", "business_context",
}

// ClassifyImpairment implements contracts.ImpairmentClassifier
func (r *Rules) ClassifyImpairment(_ context.Context, s contracts.ImpairmentSignals) (contracts.Envelope[contracts.Impairment], error) {
	log := r.logger.WithGate(contracts.StageImpairment.String())

	if env, ok := impairmentPrecheck(s); ok {
		log.Event("info", "impairment_undetermined", map[string]interface{}{
			"missing_inputs": env.Diagnostics().MissingInputs,
		})
		return env, nil
	}

	credit := strings.ToUpper(s.CreditStress)
	netDebt := *s.TotalDebt - *s.Cash
	if s.NetDebt != nil {
		netDebt = *s.NetDebt
	}
	cov := s.InterestCoverage
	burning := s.FreeCashflow != nil && *s.FreeCashflow < 0 && s.NetIncome != nil && *s.NetIncome < 0

	level, driver := contracts.RiskMedium, contracts.DriverLeverage
	switch {
	case cov != nil && *cov < coverageDistressed:
		level, driver = contracts.RiskHigh, contracts.DriverLeverage
	case netDebt > 0 && credit == contracts.CreditHigh && (cov == nil || *cov < coverageStrained):
		level, driver = contracts.RiskHigh, contracts.DriverRefinancing
	case netDebt > 0 && burning:
		level, driver = contracts.RiskHigh, contracts.DriverCashFlow
	case netDebt <= 0:
		level, driver = contracts.RiskLow, contracts.DriverNone
	case cov != nil && *cov >= coverageComfort && credit != contracts.CreditHigh:
		level, driver = contracts.RiskLow, contracts.DriverNone
	case s.FreeCashflow != nil && *s.FreeCashflow < 0:
		driver = contracts.DriverCashFlow
	case credit == contracts.CreditHigh:
		driver = contracts.DriverRefinancing
	}

	out := contracts.Impairment{
		RiskLevel:  level,
		RiskDriver: driver,
		Reason:     impairmentReason(netDebt, *s.Cash, *s.TotalDebt, cov, *s.InterestRate, credit),
	}

	log.Event("info", "impairment_classified", map[string]interface{}{
		"risk_level":  level,
		"risk_driver": driver,
	})

	return contracts.OK(contracts.StageImpairment, out, 70,
		fmt.Sprintf("%s impairment risk (%s): %s", level, driver, out.Reason),
		contracts.Diag(impairmentInputs...)), nil
}

// impairmentPrecheck returns UNDETERMINED when the core inputs are absent
// ⭐ SSOT: G4 UNDETERMINED 판정 규칙
func impairmentPrecheck(s contracts.ImpairmentSignals) (contracts.Envelope[contracts.Impairment], bool) {
	var missing []string
	if s.Cash == nil {
		missing = append(missing, "cash")
	}
	if s.TotalDebt == nil {
		missing = append(missing, "total_debt")
	}
	if s.InterestRate == nil {
		missing = append(missing, "interest_rate")
	}
	if !contracts.ValidCreditStress(strings.ToUpper(s.CreditStress)) {
		missing = append(missing, "credit_stress")
	}
	if len(missing) > 0 {
		return undetermined(fmt.Sprintf("Cannot assess impairment: missing core inputs: %s", strings.Join(missing, ", ")), missing), true
	}

	if s.InterestExpense == nil && s.InterestCoverage == nil {
		return undetermined(ReasonInterestNotReported, []string{"interest_expense", "interest_coverage"}), true
	}
	return contracts.Envelope[contracts.Impairment]{}, false
}

func undetermined(reason string, missing []string) contracts.Envelope[contracts.Impairment] {
	out := contracts.Impairment{
		RiskLevel:  contracts.RiskUndetermined,
		RiskDriver: contracts.DriverNone,
		Reason:     reason,
	}
	diag := contracts.Diag(impairmentInputs...).Missing(missing...).Binding(contracts.ConstraintDataAvailability)
	return contracts.OK(contracts.StageImpairment, out, 0, "UNDETERMINED: "+reason, diag)
}

func impairmentReason(netDebt, cash, debt float64, cov *float64, rate float64, credit string) string {
	coverage := "not computable"
	if cov != nil {
		coverage = fmt.Sprintf("%.1fx", *cov)
	}
	position := "net cash"
	if netDebt > 0 {
		position = "net debt"
	}
	return fmt.Sprintf("%s %s (cash %s, debt %s); interest coverage %s; rates %.2f%%, credit stress %s.",
		position, money(math.Abs(netDebt)), money(cash), money(debt), coverage, rate*100, credit)
}

// money renders a dollar amount in B/M
func money(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1e9:
		return fmt.Sprintf("$%.1fB", v/1e9)
	case a >= 1e6:
		return fmt.Sprintf("$%.1fM", v/1e6)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}
