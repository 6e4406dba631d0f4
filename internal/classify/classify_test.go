package classify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/pkg/config"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
)

var f = contracts.Float

func activeSignals() contracts.MarketSignals {
	return contracts.MarketSignals{
		LastPrice:      f(187.4),
		LastVolume:     f(90e6),
		AvgVolume:      f(50e6),
		VolumeSpike:    f(1.8),
		PriceDirection: contracts.DirectionUp,
		FlowSignal:     contracts.FlowPositive,
		YesPrice:       f(0.61),
		NoPrice:        f(0.39),
		MacroSignal:    "SUPPORTIVE",
	}
}

func healthySignals() contracts.ImpairmentSignals {
	return contracts.ImpairmentSignals{
		NetIncome:        f(10e9),
		FreeCashflow:     f(12e9),
		Cash:             f(5e9),
		TotalDebt:        f(20e9),
		InterestExpense:  f(1e9),
		InterestCoverage: f(12),
		InterestRate:     f(0.0433),
		CreditStress:     contracts.CreditLow,
	}
}

// ============================================================================
// Market structure
// ============================================================================

func TestClassifyMarket(t *testing.T) {
	tests := []struct {
		name       string
		flow       string
		direction  string
		label      string
		confidence int
	}{
		{"positive flow", contracts.FlowPositive, contracts.DirectionUp, contracts.MarketTailwind, 75},
		{"negative flow", contracts.FlowNegative, contracts.DirectionDown, contracts.MarketHeadwind, 75},
		{"neutral flow", contracts.FlowNeutral, contracts.DirectionUp, contracts.MarketNeutral, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := activeSignals()
			s.FlowSignal, s.PriceDirection = tt.flow, tt.direction

			env, err := NewRules(nil).ClassifyMarket(context.Background(), s)
			require.NoError(t, err)

			ms, _ := env.Data()
			assert.Equal(t, tt.label, ms.Classification)
			assert.Equal(t, tt.confidence, env.Confidence())
			assert.Contains(t, ms.Reasoning, "volume_spike 1.80x")
		})
	}
}

func TestClassifyMarket_NoRelevantData(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*contracts.MarketSignals)
		missing []string
	}{
		{"missing volume", func(s *contracts.MarketSignals) { s.LastVolume = nil }, []string{"last_volume"}},
		{"missing macro", func(s *contracts.MarketSignals) { s.MacroSignal = "" }, []string{"macro_signal"}},
		{"zero avg volume", func(s *contracts.MarketSignals) { s.AvgVolume = f(0) }, nil},
		{"zero last volume", func(s *contracts.MarketSignals) { s.LastVolume = f(0) }, nil},
		{"flat and neutral", func(s *contracts.MarketSignals) {
			s.PriceDirection, s.FlowSignal = "flat", "neutral"
		}, nil},
		{"no auxiliary price", func(s *contracts.MarketSignals) { s.YesPrice, s.NoPrice = nil, nil }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := activeSignals()
			tt.mutate(&s)

			env, err := NewRules(nil).ClassifyMarket(context.Background(), s)
			require.NoError(t, err)
			assert.Equal(t, contracts.StatusOK, env.Status())
			assert.Equal(t, 0, env.Confidence())

			ms, _ := env.Data()
			assert.Equal(t, contracts.MarketNoRelevantData, ms.Classification)
			if tt.missing == nil {
				assert.Empty(t, env.Diagnostics().MissingInputs)
			} else {
				assert.Equal(t, tt.missing, env.Diagnostics().MissingInputs)
			}
		})
	}
}

// ============================================================================
// Impairment
// ============================================================================

func TestClassifyImpairment(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*contracts.ImpairmentSignals)
		level  string
		driver string
	}{
		{"comfortable coverage", func(*contracts.ImpairmentSignals) {}, contracts.RiskLow, contracts.DriverNone},
		{"net cash", func(s *contracts.ImpairmentSignals) {
			s.Cash = f(30e9)
			s.InterestCoverage = f(2)
		}, contracts.RiskLow, contracts.DriverNone},
		{"distressed coverage", func(s *contracts.ImpairmentSignals) { s.InterestCoverage = f(1.2) }, contracts.RiskHigh, contracts.DriverLeverage},
		{"tight credit and thin coverage", func(s *contracts.ImpairmentSignals) {
			s.InterestCoverage = f(2.5)
			s.CreditStress = contracts.CreditHigh
		}, contracts.RiskHigh, contracts.DriverRefinancing},
		{"burning cash", func(s *contracts.ImpairmentSignals) {
			s.InterestCoverage = f(5)
			s.NetIncome, s.FreeCashflow = f(-1e9), f(-2e9)
		}, contracts.RiskHigh, contracts.DriverCashFlow},
		{"middling coverage", func(s *contracts.ImpairmentSignals) { s.InterestCoverage = f(5) }, contracts.RiskMedium, contracts.DriverLeverage},
		{"negative fcf only", func(s *contracts.ImpairmentSignals) {
			s.InterestCoverage = f(5)
			s.FreeCashflow = f(-1e9)
		}, contracts.RiskMedium, contracts.DriverCashFlow},
		{"strong coverage under stress", func(s *contracts.ImpairmentSignals) {
			s.CreditStress = contracts.CreditHigh
		}, contracts.RiskMedium, contracts.DriverRefinancing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := healthySignals()
			tt.mutate(&s)

			env, err := NewRules(nil).ClassifyImpairment(context.Background(), s)
			require.NoError(t, err)

			imp, _ := env.Data()
			assert.Equal(t, tt.level, imp.RiskLevel)
			assert.Equal(t, tt.driver, imp.RiskDriver)
			assert.Contains(t, imp.Reason, "interest coverage")
			assert.Equal(t, 70, env.Confidence())
		})
	}
}

func TestClassifyImpairment_ExplicitNetDebtWins(t *testing.T) {
	s := healthySignals()
	s.InterestCoverage = f(5)
	s.NetDebt = f(-1)

	env, _ := NewRules(nil).ClassifyImpairment(context.Background(), s)
	imp, _ := env.Data()
	assert.Equal(t, contracts.RiskLow, imp.RiskLevel)
	assert.True(t, strings.HasPrefix(imp.Reason, "net cash"))
}

func TestClassifyImpairment_Undetermined(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*contracts.ImpairmentSignals)
		missing []string
		reason  string
	}{
		{"no cash or debt", func(s *contracts.ImpairmentSignals) { s.Cash, s.TotalDebt = nil, nil },
			[]string{"cash", "total_debt"}, "Cannot assess impairment: missing core inputs: cash, total_debt"},
		{"no rate", func(s *contracts.ImpairmentSignals) { s.InterestRate = nil },
			[]string{"interest_rate"}, "Cannot assess impairment: missing core inputs: interest_rate"},
		{"bogus credit", func(s *contracts.ImpairmentSignals) { s.CreditStress = "SEVERE" },
			[]string{"credit_stress"}, "Cannot assess impairment: missing core inputs: credit_stress"},
		{"no interest burden", func(s *contracts.ImpairmentSignals) { s.InterestExpense, s.InterestCoverage = nil, nil },
			[]string{"interest_expense", "interest_coverage"}, ReasonInterestNotReported},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := healthySignals()
			tt.mutate(&s)

			env, err := NewRules(nil).ClassifyImpairment(context.Background(), s)
			require.NoError(t, err, "undetermined is never an error")
			assert.False(t, env.IsFatal())
			assert.Equal(t, 0, env.Confidence())
			assert.Equal(t, tt.missing, env.Diagnostics().MissingInputs)
			assert.Equal(t, contracts.ConstraintDataAvailability, env.Diagnostics().BindingLabel())

			imp, _ := env.Data()
			assert.Equal(t, contracts.RiskUndetermined, imp.RiskLevel)
			assert.Equal(t, tt.reason, imp.Reason)
		})
	}
}

// ============================================================================
// Business context
// ============================================================================

func TestClassifyBusiness(t *testing.T) {
	filings := contracts.BusinessFilings{
		CompanyName:         "Apple Inc.",
		SICDescription:      "Electronic Computers",
		BusinessDescription: "The Company designs smartphones and sells them worldwide. It reports through geographic segments. Other text.",
		RiskFactors: "Competition is intense. Supply chain disruptions may occur. Changes in currency exchange rates " +
			"and tariff actions affect results. Cyber attacks and litigation are possible. Inflation may weigh on demand.",
	}

	env, err := NewRules(nil).ClassifyBusiness(context.Background(), filings)
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusOK, env.Status())
	assert.Equal(t, 85, env.Confidence())

	bc, _ := env.Data()
	assert.Equal(t, "The Company designs smartphones and sells them worldwide. It reports through geographic segments.", bc.BusinessSummary)
	assert.Equal(t, []string{"COMPETITION", "SUPPLY_CHAIN", "MACROECONOMIC", "CURRENCY", "CYBERSECURITY", "LITIGATION", "GEOPOLITICAL"}, bc.KeyRiskCategories)
	assert.Equal(t, contracts.ExposureGlobal, bc.GeographicExposure)
	assert.Equal(t, contracts.ComplexityHigh, bc.BusinessComplexity)
}

func TestClassifyBusiness_WithoutFilings(t *testing.T) {
	env, err := NewRules(nil).ClassifyBusiness(context.Background(), contracts.BusinessFilings{
		CompanyName:    "Tiny Corp",
		SICDescription: "Retail-Grocery Stores",
	})
	require.NoError(t, err)
	assert.Equal(t, contracts.StatusPartial, env.Status())
	assert.Equal(t, 40, env.Confidence())
	assert.Equal(t, []string{"business_description", "risk_factors"}, env.Diagnostics().MissingInputs)

	bc, _ := env.Data()
	assert.Equal(t, "Tiny Corp operates in retail-grocery stores.", bc.BusinessSummary)
	assert.Equal(t, []string{}, bc.KeyRiskCategories)
	assert.Equal(t, contracts.ExposureDomestic, bc.GeographicExposure)
	assert.Equal(t, contracts.ComplexityLow, bc.BusinessComplexity)
}

func TestClassifyBusiness_MissingName(t *testing.T) {
	env, err := NewRules(nil).ClassifyBusiness(context.Background(), contracts.BusinessFilings{})
	require.NoError(t, err)
	gerr, ok := env.Failure()
	require.True(t, ok)
	assert.Equal(t, CodeMissingCompanyName, gerr.Code)
}

func TestGeographicExposure(t *testing.T) {
	assert.Equal(t, contracts.ExposureInternational, geographicExposure("Sales in Europe grew."))
	assert.Equal(t, contracts.ExposureGlobal, geographicExposure("Sales in Europe, Asia and Latin America."))
	assert.Equal(t, contracts.ExposureDomestic, geographicExposure("Stores in Ohio."))
}

// ============================================================================
// Remote
// ============================================================================

func newRemote(t *testing.T, handler http.HandlerFunc) *Remote {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	httpClient := httputil.NewWithTimeout(&config.Config{Env: "test"}, logger.Nop(), 2*time.Second).DisableRetry()
	return NewRemote(httpClient, srv.URL+"/v1/", logger.Nop())
}

func TestRemote_Market(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/market_structure", r.URL.Path)

		var got contracts.MarketSignals
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		assert.Equal(t, contracts.FlowPositive, got.FlowSignal)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"classification":"TAILWIND","reasoning":"flow_signal POSITIVE"},"confidence":72,"one_liner":"TAILWIND"}`))
	})

	env, err := remote.ClassifyMarket(context.Background(), activeSignals())
	require.NoError(t, err)
	assert.Equal(t, 72, env.Confidence())

	ms, _ := env.Data()
	assert.Equal(t, contracts.MarketTailwind, ms.Classification)
	assert.Equal(t, setupLabels[contracts.MarketTailwind], ms.SetupLabel)
}

func TestRemote_PrecheckSkipsCall(t *testing.T) {
	var calls int32
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})

	s := activeSignals()
	s.YesPrice, s.NoPrice = nil, nil
	env, err := remote.ClassifyMarket(context.Background(), s)
	require.NoError(t, err)
	ms, _ := env.Data()
	assert.Equal(t, contracts.MarketNoRelevantData, ms.Classification)

	imp := healthySignals()
	imp.Cash = nil
	ienv, err := remote.ClassifyImpairment(context.Background(), imp)
	require.NoError(t, err)
	idata, _ := ienv.Data()
	assert.Equal(t, contracts.RiskUndetermined, idata.RiskLevel)

	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
}

func TestRemote_InvalidLabel(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"classification":"SIDEWAYS","reasoning":"?"},"confidence":90}`))
	})

	env, err := remote.ClassifyMarket(context.Background(), activeSignals())
	require.NoError(t, err)
	gerr, ok := env.Failure()
	require.True(t, ok)
	assert.Equal(t, CodeInvalidResponse, gerr.Code)
}

func TestRemote_Impairment(t *testing.T) {
	tests := []struct {
		name           string
		reply          string
		wantLevel      string
		wantDriver     string
		wantConfidence int
		wantBinding    string
	}{
		{"low", `{"data":{"risk_level":"LOW","risk_driver":"NONE","reason":"net cash"},"confidence":80}`,
			contracts.RiskLow, contracts.DriverNone, 80, ""},
		{"medium", `{"data":{"risk_level":"MEDIUM","risk_driver":"LEVERAGE","reason":"coverage 4x"},"confidence":65}`,
			contracts.RiskMedium, contracts.DriverLeverage, 65, ""},
		{"high", `{"data":{"risk_level":"HIGH","risk_driver":"REFINANCING","reason":"tight credit"},"confidence":75}`,
			contracts.RiskHigh, contracts.DriverRefinancing, 75, ""},
		{"lower case level", `{"data":{"risk_level":"high","risk_driver":"CASH_FLOW","reason":"burning cash"},"confidence":70}`,
			contracts.RiskHigh, contracts.DriverCashFlow, 70, ""},
		{"undetermined", `{"data":{"risk_level":"UNDETERMINED","risk_driver":"NONE","reason":"filings unclear"},"confidence":55}`,
			contracts.RiskUndetermined, contracts.DriverNone, 0, contracts.ConstraintDataAvailability},
		{"unknown level", `{"data":{"risk_level":"CATASTROPHIC","risk_driver":"NONE","reason":"?"},"confidence":90}`,
			contracts.RiskUndetermined, contracts.DriverNone, 0, contracts.ConstraintDataAvailability},
		{"empty reason", `{"data":{"risk_level":"LOW","risk_driver":"NONE","reason":""},"confidence":90}`,
			contracts.RiskUndetermined, contracts.DriverNone, 0, contracts.ConstraintDataAvailability},
		{"unknown driver", `{"data":{"risk_level":"MEDIUM","risk_driver":"FX","reason":"currency"},"confidence":60}`,
			contracts.RiskMedium, contracts.DriverNone, 60, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/impairment", r.URL.Path)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.reply))
			})

			env, err := remote.ClassifyImpairment(context.Background(), healthySignals())
			require.NoError(t, err)
			require.Equal(t, contracts.StatusOK, env.Status())
			assert.False(t, env.IsFatal())

			imp, ok := env.Data()
			require.True(t, ok)
			assert.Equal(t, tt.wantLevel, imp.RiskLevel)
			assert.Equal(t, tt.wantDriver, imp.RiskDriver)
			assert.Equal(t, tt.wantConfidence, env.Confidence())
			if tt.wantBinding != "" {
				assert.Equal(t, tt.wantBinding, env.Diagnostics().BindingLabel())
				assert.NotEmpty(t, imp.Reason)
			}
		})
	}
}

func TestRemote_TransportError(t *testing.T) {
	remote := newRemote(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := remote.ClassifyBusiness(context.Background(), contracts.BusinessFilings{CompanyName: "Apple Inc."})
	require.Error(t, err)

	var statusErr *httputil.StatusError
	assert.ErrorAs(t, err, &statusErr)
}

func TestNew(t *testing.T) {
	set := New(config.ClassifierConfig{}, nil, nil)
	assert.IsType(t, &Rules{}, set.Market)

	httpClient := httputil.New(&config.Config{Env: "test"}, logger.Nop())
	set = New(config.ClassifierConfig{URL: "http://classifier.local"}, httpClient, nil)
	assert.IsType(t, &Remote{}, set.Impairment)
}
