// Package fred loads the rate and financial-conditions regime from FRED.
package fred

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/pkg/config"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
)

// Error codes
const (
	CodeAPIKeyMissing = "FRED_API_KEY_MISSING"
	CodeMissingDFF    = "FRED_MISSING_DFF"
	CodeMissingNFCI   = "FRED_MISSING_NFCI"
)

// Series ids
const (
	SeriesFedFunds = "DFF"
	SeriesNFCI     = "NFCI"
)

// NFCI breakpoints for credit stress
const (
	highStressNFCI   = 0.75
	mediumStressNFCI = 0.0
)

// Financial conditions regimes
const (
	ConditionsTight   = "TIGHT"
	ConditionsNeutral = "NEUTRAL"
	ConditionsEasy    = "EASY"
)

// Client fetches series observations from FRED
// ⭐ SSOT: FRED API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	apiKey     string
	baseURL    string
}

// NewClient creates a new FRED client
func NewClient(httpClient *httputil.Client, cfg config.FREDConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.WithGate(contracts.StageMacro.String()),
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

type observation struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

type observationsResponse struct {
	Observations []observation `json:"observations"`
}

// latest returns the most recent observation; "." marks a missing value
func (c *Client) latest(ctx context.Context, series string) (*observation, float64, bool, error) {
	q := url.Values{}
	q.Set("series_id", series)
	q.Set("api_key", c.apiKey)
	q.Set("file_type", "json")
	q.Set("limit", "1")
	q.Set("sort_order", "desc")

	var resp observationsResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/series/observations?"+q.Encode(), &resp); err != nil {
		// the query string carries the key; keep it out of the error
		return nil, 0, false, fmt.Errorf("fred series %s: %w", series, httputil.Redact(err, c.apiKey))
	}
	if len(resp.Observations) == 0 {
		return nil, 0, false, nil
	}
	obs := resp.Observations[0]
	v, err := strconv.ParseFloat(strings.TrimSpace(obs.Value), 64)
	if err != nil {
		return &obs, 0, false, nil
	}
	return &obs, v, true, nil
}

// FetchMacro implements contracts.MacroFetcher
func (c *Client) FetchMacro(ctx context.Context) (contracts.Envelope[contracts.Macro], error) {
	diag := contracts.Diag(SeriesFedFunds, SeriesNFCI, "FRED_API_KEY")

	if c.apiKey == "" {
		return contracts.Errored[contracts.Macro](contracts.StageMacro, CodeAPIKeyMissing,
			"FRED_API_KEY is not set", diag.Missing("FRED_API_KEY")), nil
	}

	var (
		dffObs, nfciObs *observation
		dff, nfci       float64
		dffOK, nfciOK   bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		dffObs, dff, dffOK, err = c.latest(gctx, SeriesFedFunds)
		return err
	})
	g.Go(func() error {
		var err error
		nfciObs, nfci, nfciOK, err = c.latest(gctx, SeriesNFCI)
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.WithError(err).Error("fred fetch failed")
		return contracts.Envelope[contracts.Macro]{}, err
	}

	if !dffOK {
		return contracts.Errored[contracts.Macro](contracts.StageMacro, CodeMissingDFF,
			"Missing latest DFF observation from FRED", diag.Missing(SeriesFedFunds)), nil
	}
	if !nfciOK {
		return contracts.Errored[contracts.Macro](contracts.StageMacro, CodeMissingNFCI,
			"Missing latest NFCI observation from FRED", diag.Missing(SeriesNFCI)), nil
	}

	rate := round6(dff / 100)
	stress, conditions := Band(nfci)
	out := contracts.Macro{
		InterestRate:        contracts.Float(rate),
		CreditStress:        stress,
		CreditStressIndex:   contracts.Float(round6(nfci)),
		FinancialConditions: conditions,
		MacroSignal:         contracts.FlowNeutral,
		RateDate:            dffObs.Date,
		StressDate:          nfciObs.Date,
	}

	c.logger.Event("info", "fred_data_fetched", map[string]interface{}{
		"interest_rate":        rate,
		"credit_stress":        stress,
		"financial_conditions": conditions,
	})

	oneLiner := fmt.Sprintf("Macro regime: DFF %.2f%%, NFCI %+.3f (%s)", dff, nfci, conditions)
	return contracts.OK(contracts.StageMacro, out, 95, oneLiner, diag), nil
}

// Band maps an NFCI reading to a credit-stress bucket and conditions regime
// ⭐ SSOT: NFCI 구간 규칙
func Band(nfci float64) (stress, conditions string) {
	switch {
	case nfci >= highStressNFCI:
		return contracts.CreditHigh, ConditionsTight
	case nfci >= mediumStressNFCI:
		return contracts.CreditMedium, ConditionsNeutral
	default:
		return contracts.CreditLow, ConditionsEasy
	}
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
