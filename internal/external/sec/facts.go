package sec

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"sort"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/internal/provenance"
	"github.com/wonny/mizan/pkg/httputil"
)

// Fundamentals error codes
const (
	CodeInvalidCIK          = "SEC_INVALID_CIK"
	CodeCompanyNotFound     = "SEC_COMPANY_NOT_FOUND"
	CodeMissingAnchorPeriod = "SEC_MISSING_ANCHOR_PERIOD"
	CodeMissingRequired     = "SEC_MISSING_REQUIRED"
)

// Concept lists in priority order
var (
	conceptNetIncome       = []string{"NetIncomeLoss"}
	conceptOperatingCash   = []string{"NetCashProvidedByUsedInOperatingActivities"}
	conceptCapex           = []string{"PaymentsToAcquirePropertyPlantAndEquipment"}
	conceptCash            = []string{"CashAndCashEquivalentsAtCarryingValue"}
	conceptLongTermDebt    = []string{"LongTermDebt", "LongTermDebtNoncurrent", "LongTermDebtAndCapitalLeaseObligations"}
	conceptCurrentDebt     = []string{"DebtCurrent", "ShortTermDebt", "ShortTermBorrowings", "CommercialPaper"}
	conceptInterest        = []string{"InterestExpense", "InterestExpenseNet", "InterestAndDebtExpense"}
	conceptOperatingIncome = []string{"OperatingIncomeLoss"}
	conceptSharesDEI       = []string{"EntityCommonStockSharesOutstanding"}
	conceptSharesGAAP      = []string{
		"CommonStockSharesOutstanding",
		"WeightedAverageNumberOfDilutedSharesOutstanding",
		"WeightedAverageNumberOfSharesOutstandingBasic",
		"CommonStockSharesIssued",
		"SharesOutstanding",
	}
)

var annualForms = map[string]bool{"10-K": true, "20-F": true, "40-F": true}

// fact is one reported value in companyfacts
type fact struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"`
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
}

type concept struct {
	Label string            `json:"label"`
	Units map[string][]fact `json:"units"`
}

// companyFacts is the companyfacts/CIK##########.json document
type companyFacts struct {
	CIK        int64                         `json:"cik"`
	EntityName string                        `json:"entityName"`
	Facts      map[string]map[string]concept `json:"facts"`
}

func (cf companyFacts) facts(taxonomy, name, unit string) []fact {
	c, ok := cf.Facts[taxonomy][name]
	if !ok {
		return nil
	}
	return c.Units[unit]
}

// period is the fiscal period every other field is aligned to
type period struct {
	FY   int
	End  string
	Form string
}

func isAnnual(f fact) bool {
	return annualForms[f.Form] || f.FP == "FY"
}

// latest returns the most recently filed annual fact
func latest(facts []fact) (fact, bool) {
	var annual []fact
	for _, f := range facts {
		if isAnnual(f) {
			annual = append(annual, f)
		}
	}
	if len(annual) == 0 {
		return fact{}, false
	}
	sort.SliceStable(annual, func(i, j int) bool {
		a, b := annual[i], annual[j]
		if a.Filed != b.Filed {
			return a.Filed > b.Filed
		}
		if a.End != b.End {
			return a.End > b.End
		}
		return a.FY > b.FY
	})
	return annual[0], true
}

// inPeriod returns the annual fact whose period end matches p
func inPeriod(facts []fact, p period) (fact, bool) {
	var match []fact
	for _, f := range facts {
		if f.End == p.End && isAnnual(f) {
			match = append(match, f)
		}
	}
	if len(match) == 0 {
		// instant facts (shares, cash) are sometimes tagged on the cover date only
		for _, f := range facts {
			if f.End == p.End {
				match = append(match, f)
			}
		}
	}
	if len(match) == 0 {
		return fact{}, false
	}
	sort.SliceStable(match, func(i, j int) bool { return match[i].Filed > match[j].Filed })
	return match[0], true
}

// exactCandidates builds period-aligned candidates for each concept
func exactCandidates(cf companyFacts, taxonomy, unit string, names []string, p period) []provenance.Candidate[float64] {
	out := make([]provenance.Candidate[float64], 0, len(names))
	for _, name := range names {
		name := name
		out = append(out, provenance.Candidate[float64]{
			Name: taxonomy + ":" + name,
			Value: func() (float64, bool) {
				f, ok := inPeriod(cf.facts(taxonomy, name, unit), p)
				return f.Val, ok
			},
		})
	}
	return out
}

// anyCandidates builds latest-annual candidates for each concept
func anyCandidates(cf companyFacts, taxonomy, unit string, names []string) []provenance.Candidate[float64] {
	out := make([]provenance.Candidate[float64], 0, len(names))
	for _, name := range names {
		name := name
		out = append(out, provenance.Candidate[float64]{
			Name: taxonomy + ":" + name,
			Value: func() (float64, bool) {
				f, ok := latest(cf.facts(taxonomy, name, unit))
				return f.Val, ok
			},
		})
	}
	return out
}

// FetchFundamentals implements contracts.FundamentalsFetcher
func (c *Client) FetchFundamentals(ctx context.Context, cik string) (contracts.Envelope[contracts.Fundamentals], error) {
	cik = PadCIK(cik)
	if !validCIK(cik) {
		return contracts.Errored[contracts.Fundamentals](contracts.StageFundamentals, CodeInvalidCIK,
			fmt.Sprintf("CIK must be 10 digits, got %q", cik), contracts.Diag("cik").Missing("cik")), nil
	}

	url := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", c.dataURL, cik)

	var cf companyFacts
	if err := c.getJSON(ctx, url, &cf); err != nil {
		var statusErr *httputil.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return contracts.Errored[contracts.Fundamentals](contracts.StageFundamentals, CodeCompanyNotFound,
				fmt.Sprintf("SEC has no company facts for CIK %s", cik), contracts.Diag("cik")), nil
		}
		c.logger.WithGate(contracts.StageFundamentals.String()).WithError(err).Error("company facts fetch failed")
		return contracts.Envelope[contracts.Fundamentals]{}, err
	}

	env := extractFundamentals(cf)
	if env.Usable() {
		f, _ := env.Data()
		c.logger.WithGate(contracts.StageFundamentals.String()).Event("info", "fundamentals_loaded", map[string]interface{}{
			"cik":         cik,
			"fiscal_year": f.FiscalYear,
			"status":      string(env.Status()),
		})
	}
	return env, nil
}

// extractFundamentals aligns every field to the latest annual NetIncomeLoss period
// ⭐ SSOT: 재무 필드 추출 규칙
func extractFundamentals(cf companyFacts) contracts.Envelope[contracts.Fundamentals] {
	used := []string{"cik"}

	anchor, ok := latest(cf.facts("us-gaap", "NetIncomeLoss", "USD"))
	if !ok {
		return contracts.Errored[contracts.Fundamentals](contracts.StageFundamentals, CodeMissingAnchorPeriod,
			"No annual NetIncomeLoss fact to anchor the fiscal period", contracts.Diag(used...).Missing("net_income"))
	}
	p := period{FY: anchor.FY, End: anchor.End, Form: anchor.Form}

	out := contracts.Fundamentals{
		FiscalYear:      p.FY,
		FiscalPeriodEnd: p.End,
		Form:            p.Form,
		Sources:         map[string]string{},
	}

	take := func(field string, candidates []provenance.Candidate[float64]) *float64 {
		res, ok := provenance.Pick(candidates...)
		if !ok {
			return nil
		}
		out.Sources[field] = res.Source
		used = append(used, field)
		return contracts.Float(res.Value)
	}

	out.NetIncome = take("net_income", exactCandidates(cf, "us-gaap", "USD", conceptNetIncome, p))
	out.OperatingCashflow = take("operating_cashflow", exactCandidates(cf, "us-gaap", "USD", conceptOperatingCash, p))
	out.CapitalExpenditure = take("capital_expenditure", exactCandidates(cf, "us-gaap", "USD", conceptCapex, p))
	out.Cash = take("cash", exactCandidates(cf, "us-gaap", "USD", conceptCash, p))
	out.OperatingIncome = take("operating_income", exactCandidates(cf, "us-gaap", "USD", conceptOperatingIncome, p))

	// shares: DEI exact, GAAP exact, DEI any, GAAP any
	shareCandidates := exactCandidates(cf, "dei", "shares", conceptSharesDEI, p)
	shareCandidates = append(shareCandidates, exactCandidates(cf, "us-gaap", "shares", conceptSharesGAAP, p)...)
	exactShares := len(shareCandidates)
	shareCandidates = append(shareCandidates, anyCandidates(cf, "dei", "shares", conceptSharesDEI)...)
	shareCandidates = append(shareCandidates, anyCandidates(cf, "us-gaap", "shares", conceptSharesGAAP)...)
	sharesRes, sharesOK := provenance.Pick(shareCandidates...)
	if sharesOK {
		out.SharesOutstanding = contracts.Float(sharesRes.Value)
		out.Sources["shares_outstanding"] = sharesRes.Source
		used = append(used, "shares_outstanding")
	}
	sharesFromPeriod := sharesOK && len(sharesRes.Tried) <= exactShares

	// interest: exact period first, then any period
	interestCandidates := append(
		exactCandidates(cf, "us-gaap", "USD", conceptInterest, p),
		anyCandidates(cf, "us-gaap", "USD", conceptInterest)...,
	)
	out.InterestExpense = take("interest_expense", interestCandidates)

	var missing []string

	// total_debt = long-term + current; absent only when neither side is reported
	ltRes, ltOK := provenance.Pick(exactCandidates(cf, "us-gaap", "USD", conceptLongTermDebt, p)...)
	curRes, curOK := provenance.Pick(exactCandidates(cf, "us-gaap", "USD", conceptCurrentDebt, p)...)
	if ltOK || curOK {
		var debt float64
		if ltOK {
			debt += ltRes.Value
			out.Sources["long_term_debt"] = ltRes.Source
		}
		if curOK {
			debt += curRes.Value
			out.Sources["current_debt"] = curRes.Source
		}
		out.TotalDebt = contracts.Float(debt)
		used = append(used, "total_debt")
	} else {
		missing = append(missing, "total_debt")
	}

	if out.OperatingCashflow != nil && out.CapitalExpenditure != nil {
		out.FreeCashflow = contracts.Float(*out.OperatingCashflow - *out.CapitalExpenditure)
		out.Sources["free_cashflow"] = "derived:operating_cashflow-capital_expenditure"
		used = append(used, "free_cashflow")
	} else if out.CapitalExpenditure == nil {
		missing = append(missing, "capital_expenditure")
	}

	if out.OperatingIncome != nil && out.InterestExpense != nil && *out.InterestExpense != 0 {
		coverage := *out.OperatingIncome / math.Abs(*out.InterestExpense)
		out.InterestCoverage = contracts.Float(coverage)
		used = append(used, "interest_coverage")
	}

	var required []string
	if out.NetIncome == nil {
		required = append(required, "net_income")
	}
	if out.OperatingCashflow == nil {
		required = append(required, "operating_cashflow")
	}
	if out.Cash == nil {
		required = append(required, "cash")
	}
	if out.SharesOutstanding == nil {
		required = append(required, "shares_outstanding")
	}
	if len(required) > 0 {
		return contracts.Errored[contracts.Fundamentals](contracts.StageFundamentals, CodeMissingRequired,
			fmt.Sprintf("Missing required SEC fields for FY%d: %v", p.FY, required),
			contracts.Diag(used...).Missing(append(required, missing...)...))
	}

	confidence := 95
	if !sharesFromPeriod {
		confidence = 75
	}
	oneLiner := fmt.Sprintf("FY%d %s fundamentals for %s (period end %s)", p.FY, p.Form, cf.EntityName, p.End)
	diag := contracts.Diag(used...)

	if len(missing) > 0 {
		return contracts.Partial(contracts.StageFundamentals, out, confidence,
			fmt.Sprintf("%s, missing %v", oneLiner, missing), diag.Missing(missing...))
	}
	return contracts.OK(contracts.StageFundamentals, out, confidence, oneLiner, diag)
}
