package sec

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/pkg/config"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
)

var testTickers = []TickerEntry{
	{CIK: 320193, Ticker: "AAPL", Title: "Apple Inc."},
	{CIK: 789019, Ticker: "MSFT", Title: "Microsoft Corp"},
	{CIK: 1652044, Ticker: "GOOGL", Title: "Alphabet Inc."},
	{CIK: 1652044, Ticker: "GOOG", Title: "Alphabet Inc."},
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := &config.Config{Env: "test"}
	httpClient := httputil.NewWithTimeout(cfg, logger.Nop(), 2*time.Second).DisableRetry()
	return NewClient(httpClient, config.SECConfig{
		TickersURL: srv.URL + "/files/company_tickers.json",
		DataURL:    srv.URL,
		ArchiveURL: srv.URL + "/Archives/edgar/data/",
	}, logger.Nop())
}

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestPadCIK(t *testing.T) {
	assert.Equal(t, "0000320193", PadCIK("320193"))
	assert.Equal(t, "0000320193", PadCIK(" 0000320193 "))
	assert.True(t, validCIK("0000320193"))
	assert.False(t, validCIK("00000012AB"))
	assert.False(t, validCIK("123"))
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, similarity("", ""))
	assert.Equal(t, 1.0, similarity("APPLE", "APPLE"))
	assert.Equal(t, 0.0, similarity("ABC", "XYZ"))
	assert.InDelta(t, 16.0/17.0, similarity("MICROSFT", "MICROSOFT"), 1e-9)
}

// ============================================================================
// Identity
// ============================================================================

func TestMatch_ExactTicker(t *testing.T) {
	env := Match("aapl", testTickers)

	require.Equal(t, contracts.StatusOK, env.Status())
	ident, ok := env.Data()
	require.True(t, ok)
	assert.Equal(t, "AAPL", ident.Ticker)
	assert.Equal(t, "0000320193", ident.CIK)
	assert.Equal(t, contracts.MatchExact, ident.MatchType)
	assert.Equal(t, 1.0, ident.ConfidenceScore)
	assert.Equal(t, 100, env.Confidence())
}

func TestMatch_ExactTitleIgnoresSpacing(t *testing.T) {
	env := Match("  microsoft   corp ", testTickers)

	ident, ok := env.Data()
	require.True(t, ok)
	assert.Equal(t, "MSFT", ident.Ticker)
	assert.Equal(t, contracts.MatchExact, ident.MatchType)
}

func TestMatch_AmbiguousExact(t *testing.T) {
	env := Match("Alphabet Inc.", testTickers)

	require.Equal(t, contracts.StatusError, env.Status())
	gerr, ok := env.Failure()
	require.True(t, ok)
	assert.Equal(t, CodeIdentityAmbiguous, gerr.Code)
	assert.Contains(t, gerr.Message, "GOOGL")
	assert.Contains(t, gerr.Message, "GOOG")
}

func TestMatch_AmbiguousFuzzy(t *testing.T) {
	env := Match("Alphabet", testTickers)

	gerr, ok := env.Failure()
	require.True(t, ok)
	assert.Equal(t, CodeIdentityAmbiguous, gerr.Code)
	assert.True(t, strings.HasPrefix(gerr.Message, "Ambiguous fuzzy match for 'Alphabet':"))
}

func TestMatch_FuzzyTypo(t *testing.T) {
	env := Match("Microsft", testTickers)

	require.Equal(t, contracts.StatusOK, env.Status())
	ident, _ := env.Data()
	assert.Equal(t, "MSFT", ident.Ticker)
	assert.Equal(t, contracts.MatchFuzzy, ident.MatchType)
	assert.Equal(t, 0.9412, ident.ConfidenceScore)
	assert.Equal(t, 94, env.Confidence())
}

func TestMatch_SubstringFloor(t *testing.T) {
	env := Match("Apple", testTickers)

	require.Equal(t, contracts.StatusOK, env.Status())
	ident, _ := env.Data()
	assert.Equal(t, "AAPL", ident.Ticker)
	assert.Equal(t, contracts.MatchFuzzy, ident.MatchType)
	assert.Equal(t, 0.75, ident.ConfidenceScore)
	assert.Equal(t, 75, env.Confidence())
}

func TestMatch_NotFound(t *testing.T) {
	env := Match("zzzz", testTickers)

	gerr, ok := env.Failure()
	require.True(t, ok)
	assert.Equal(t, CodeIdentityNotFound, gerr.Code)
	assert.Equal(t, "No company found matching 'zzzz'", gerr.Message)
	assert.Equal(t, 0, env.Confidence())
}

func TestMatch_EmptyQuery(t *testing.T) {
	env := Match("   ", testTickers)

	gerr, ok := env.Failure()
	require.True(t, ok)
	assert.Equal(t, CodeIdentityInvalidInput, gerr.Code)
	assert.Equal(t, []string{"company_input"}, env.Diagnostics().MissingInputs)
}

func TestResolve(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/company_tickers.json", r.URL.Path)
		table := map[string]TickerEntry{}
		for i, e := range testTickers {
			table[string(rune('0'+i))] = e
		}
		writeJSON(t, w, table)
	}))

	env, err := client.Resolve(t.Context(), "AAPL")
	require.NoError(t, err)
	ident, ok := env.Data()
	require.True(t, ok)
	assert.Equal(t, "0000320193", ident.CIK)
}

func TestTickerTable_ShareClassesOrdered(t *testing.T) {
	raw := map[string]TickerEntry{
		"0": {CIK: 1652044, Ticker: "GOOGL", Title: "Alphabet Inc."},
		"1": {CIK: 320193, Ticker: "AAPL", Title: "Apple Inc."},
		"2": {CIK: 1652044, Ticker: "GOOG", Title: "Alphabet Inc."},
	}

	got := tickerTable(raw)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"AAPL", "GOOG", "GOOGL"}, []string{got[0].Ticker, got[1].Ticker, got[2].Ticker})
}

func TestResolve_AmbiguousMessageIsStable(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := map[string]TickerEntry{}
		for i, e := range testTickers {
			table[string(rune('0'+i))] = e
		}
		writeJSON(t, w, table)
	}))

	for i := 0; i < 20; i++ {
		env, err := client.Resolve(t.Context(), "Alphabet Inc.")
		require.NoError(t, err)
		gerr, ok := env.Failure()
		require.True(t, ok)
		assert.Equal(t, CodeIdentityAmbiguous, gerr.Code)
		assert.Contains(t, gerr.Message, ": GOOG, GOOGL.")
	}
}

func TestResolve_TransportFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.Resolve(t.Context(), "AAPL")
	require.Error(t, err)

	var statusErr *httputil.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

// ============================================================================
// Fundamentals
// ============================================================================

func annual(end string, fy int, filed string, val float64) map[string]interface{} {
	return map[string]interface{}{
		"end": end, "val": val, "fy": fy, "fp": "FY", "form": "10-K", "filed": filed,
	}
}

func usd(facts ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"units": map[string]interface{}{"USD": facts}}
}

func shares(facts ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"units": map[string]interface{}{"shares": facts}}
}

func appleFacts(shareEnd string) map[string]interface{} {
	const end, filed = "2024-09-28", "2024-11-01"
	return map[string]interface{}{
		"cik":        320193,
		"entityName": "Apple Inc.",
		"facts": map[string]interface{}{
			"dei": map[string]interface{}{
				"EntityCommonStockSharesOutstanding": shares(annual(shareEnd, 2024, filed, 15.1e9)),
			},
			"us-gaap": map[string]interface{}{
				"NetIncomeLoss": usd(
					annual("2023-09-30", 2023, "2023-11-03", 97.0e9),
					annual(end, 2024, filed, 93.7e9),
				),
				"NetCashProvidedByUsedInOperatingActivities": usd(annual(end, 2024, filed, 118.25e9)),
				"PaymentsToAcquirePropertyPlantAndEquipment": usd(annual(end, 2024, filed, 9.45e9)),
				"CashAndCashEquivalentsAtCarryingValue":      usd(annual(end, 2024, filed, 29.9e9)),
				"LongTermDebtNoncurrent":                     usd(annual(end, 2024, filed, 85.75e9)),
				"DebtCurrent":                                usd(annual(end, 2024, filed, 10.9e9)),
				"OperatingIncomeLoss":                        usd(annual(end, 2024, filed, 123.2e9)),
			},
		},
	}
}

func factsServer(t *testing.T, doc map[string]interface{}) *Client {
	return newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/xbrl/companyfacts/CIK0000320193.json" {
			http.NotFound(w, r)
			return
		}
		writeJSON(t, w, doc)
	}))
}

func TestFetchFundamentals(t *testing.T) {
	client := factsServer(t, appleFacts("2024-09-28"))

	env, err := client.FetchFundamentals(t.Context(), "320193")
	require.NoError(t, err)
	require.Equal(t, contracts.StatusOK, env.Status())
	assert.Equal(t, 95, env.Confidence())

	f, _ := env.Data()
	assert.Equal(t, 2024, f.FiscalYear)
	assert.Equal(t, "2024-09-28", f.FiscalPeriodEnd)
	assert.Equal(t, 93.7e9, *f.NetIncome)
	assert.InDelta(t, 108.8e9, *f.FreeCashflow, 1)
	assert.InDelta(t, 96.65e9, *f.TotalDebt, 1)
	assert.Equal(t, 15.1e9, *f.SharesOutstanding)
	assert.Nil(t, f.InterestExpense)
	assert.Nil(t, f.InterestCoverage)

	assert.Equal(t, "us-gaap:LongTermDebtNoncurrent", f.Sources["long_term_debt"])
	assert.Equal(t, "dei:EntityCommonStockSharesOutstanding", f.Sources["shares_outstanding"])
}

func TestFetchFundamentals_SharesFromOtherPeriod(t *testing.T) {
	client := factsServer(t, appleFacts("2024-10-18"))

	env, err := client.FetchFundamentals(t.Context(), "0000320193")
	require.NoError(t, err)
	assert.Equal(t, 75, env.Confidence())
}

func TestFetchFundamentals_InterestCoverage(t *testing.T) {
	doc := appleFacts("2024-09-28")
	gaap := doc["facts"].(map[string]interface{})["us-gaap"].(map[string]interface{})
	gaap["InterestExpense"] = usd(annual("2024-09-28", 2024, "2024-11-01", -4.0e9))

	env, err := factsServer(t, doc).FetchFundamentals(t.Context(), "320193")
	require.NoError(t, err)

	f, _ := env.Data()
	require.NotNil(t, f.InterestCoverage)
	assert.InDelta(t, 30.8, *f.InterestCoverage, 1e-9)
}

func TestFetchFundamentals_MissingDebtIsPartial(t *testing.T) {
	doc := appleFacts("2024-09-28")
	gaap := doc["facts"].(map[string]interface{})["us-gaap"].(map[string]interface{})
	delete(gaap, "LongTermDebtNoncurrent")
	delete(gaap, "DebtCurrent")

	env, err := factsServer(t, doc).FetchFundamentals(t.Context(), "320193")
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusPartial, env.Status())
	assert.Equal(t, []string{"total_debt"}, env.Diagnostics().MissingInputs)

	f, _ := env.Data()
	assert.Nil(t, f.TotalDebt)
}

func TestFetchFundamentals_MissingRequired(t *testing.T) {
	doc := appleFacts("2024-09-28")
	gaap := doc["facts"].(map[string]interface{})["us-gaap"].(map[string]interface{})
	delete(gaap, "CashAndCashEquivalentsAtCarryingValue")

	env, err := factsServer(t, doc).FetchFundamentals(t.Context(), "320193")
	require.NoError(t, err)

	gerr, ok := env.Failure()
	require.True(t, ok)
	assert.Equal(t, CodeMissingRequired, gerr.Code)
	assert.Contains(t, env.Diagnostics().MissingInputs, "cash")
}

func TestFetchFundamentals_NoAnchor(t *testing.T) {
	doc := appleFacts("2024-09-28")
	gaap := doc["facts"].(map[string]interface{})["us-gaap"].(map[string]interface{})
	delete(gaap, "NetIncomeLoss")

	env, err := factsServer(t, doc).FetchFundamentals(t.Context(), "320193")
	require.NoError(t, err)

	gerr, _ := env.Failure()
	assert.Equal(t, CodeMissingAnchorPeriod, gerr.Code)
}

func TestFetchFundamentals_NotFoundAndInvalid(t *testing.T) {
	client := factsServer(t, appleFacts("2024-09-28"))

	env, err := client.FetchFundamentals(t.Context(), "789019")
	require.NoError(t, err)
	gerr, _ := env.Failure()
	assert.Equal(t, CodeCompanyNotFound, gerr.Code)

	env, err = client.FetchFundamentals(t.Context(), "12AB")
	require.NoError(t, err)
	gerr, _ = env.Failure()
	assert.Equal(t, CodeInvalidCIK, gerr.Code)
}

// ============================================================================
// Business filings
// ============================================================================

const tenK = `<html><head><style>.x{color:red}</style><script>var tracking = 1;</script></head><body>
<p>Table of Contents</p><p>Item 1. Business</p><p>Item 1A. Risk Factors</p><p>Item 2. Properties</p>
<h2>Item 1. Business</h2><p>The Company designs smartphones and sells them worldwide.</p>
<h2>Item 1A. Risk Factors</h2><p>Competition is intense.</p><p>Supply chain disruptions may occur.</p>
<h2>Item 1B. Unresolved Staff Comments</h2><p>None.</p>
<h2>Item 2. Properties</h2><p>Cupertino.</p>
</body></html>`

func filingsHandler(t *testing.T, docStatus int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/submissions/CIK0000320193.json":
			writeJSON(t, w, map[string]interface{}{
				"name":           "Apple Inc.",
				"sic":            "3571",
				"sicDescription": "Electronic Computers",
				"entityType":     "operating",
				"filings": map[string]interface{}{
					"recent": map[string]interface{}{
						"form":            []string{"8-K", "10-K", "10-Q"},
						"accessionNumber": []string{"0000320193-24-000200", "0000320193-24-000123", "0000320193-24-000081"},
						"primaryDocument": []string{"a8k.htm", "aapl-20240928.htm", "a10q.htm"},
						"filingDate":      []string{"2024-12-01", "2024-11-01", "2024-08-02"},
					},
				},
			})
		case "/Archives/edgar/data/320193/000032019324000123/aapl-20240928.htm":
			if docStatus != http.StatusOK {
				w.WriteHeader(docStatus)
				return
			}
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(tenK))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestFetchFilings(t *testing.T) {
	client := newTestClient(t, filingsHandler(t, http.StatusOK))

	env, err := client.FetchFilings(t.Context(), "320193")
	require.NoError(t, err)
	require.Equal(t, contracts.StatusOK, env.Status())
	assert.Equal(t, 90, env.Confidence())

	f, _ := env.Data()
	assert.Equal(t, "10-K", f.FormType)
	assert.Equal(t, "2024-11-01", f.FilingDate)
	assert.Equal(t, "Electronic Computers", f.SICDescription)
	assert.Equal(t, "The Company designs smartphones and sells them worldwide.", f.BusinessDescription)
	assert.Equal(t, "Competition is intense. Supply chain disruptions may occur.", f.RiskFactors)
	assert.NotContains(t, f.BusinessDescription, "tracking")
	assert.True(t, f.HasFilings())
}

func TestFetchFilings_DocumentFailureDegrades(t *testing.T) {
	client := newTestClient(t, filingsHandler(t, http.StatusNotFound))

	env, err := client.FetchFilings(t.Context(), "320193")
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusPartial, env.Status())
	assert.Equal(t, 30, env.Confidence())
	assert.Equal(t, []string{"business_description", "risk_factors"}, env.Diagnostics().MissingInputs)

	f, _ := env.Data()
	assert.Equal(t, "Apple Inc.", f.CompanyName)
	assert.False(t, f.HasFilings())
}

func TestFetchFilings_SubmissionsFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	_, err := client.FetchFilings(t.Context(), "320193")
	assert.Error(t, err)
}

func TestExtractSection_Truncates(t *testing.T) {
	text := "Item 1. Business " + strings.Repeat("x", maxSectionText+50) + " Item 1A. Risk Factors"
	got := extractSection(businessItemRe, text)
	assert.Len(t, got, maxSectionText)
}
