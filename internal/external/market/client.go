// Package market loads daily bars and derives price, risk and flow signals.
package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/internal/provenance"
	"github.com/wonny/mizan/pkg/config"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
)

// CodeNoData is returned when no source produced enough bars
const CodeNoData = "MARKET_NO_DATA"

// flowWindowDays is the calendar window for the flow signal (~10 trading days)
const flowWindowDays = 20

// Auxiliary-price derived macro signals
const (
	SignalSupportive = "SUPPORTIVE"
	SignalHostile    = "HOSTILE"
	SignalNeutral    = "NEUTRAL"
)

// Client fetches market data with a Polygon → Stooq fallback chain
// ⭐ SSOT: 시세 데이터 호출은 이 클라이언트에서만
type Client struct {
	httpClient   *httputil.Client
	logger       *logger.Logger
	polygonKey   string
	polygonURL   string
	stooqURL     string
	auxURL       string
	benchmark    string
	lookbackDays int
	now          func() time.Time
}

// NewClient creates a new market data client
func NewClient(httpClient *httputil.Client, cfg config.MarketConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	benchmark := strings.ToUpper(strings.TrimSpace(cfg.Benchmark))
	if benchmark == "" {
		benchmark = "SPY"
	}
	lookback := cfg.LookbackDays
	if lookback < 60 {
		lookback = 380
	}
	return &Client{
		httpClient:   httpClient,
		logger:       log.WithGate(contracts.StageMarketData.String()),
		polygonKey:   cfg.PolygonAPIKey,
		polygonURL:   strings.TrimRight(cfg.PolygonBaseURL, "/"),
		stooqURL:     strings.TrimRight(cfg.StooqBaseURL, "/"),
		auxURL:       strings.TrimRight(cfg.AuxiliaryURL, "/"),
		benchmark:    benchmark,
		lookbackDays: lookback,
		now:          time.Now,
	}
}

// history walks the source chain for one symbol
func (c *Client) history(ctx context.Context, symbol string) (provenance.Result[[]Bar], error) {
	end := c.now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -c.lookbackDays)

	var sources []provenance.Source[[]Bar]
	if c.polygonKey != "" {
		sources = append(sources, c.polygonSource(symbol, start, end))
	}
	sources = append(sources, c.stooqSource(symbol, start, end))

	return provenance.First(ctx, sources...)
}

// FetchMarketData implements contracts.MarketDataFetcher
func (c *Client) FetchMarketData(ctx context.Context, ticker string) (contracts.Envelope[contracts.MarketData], error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	used := []string{"ticker", "daily_bars", c.benchmark + "_benchmark"}
	diag := contracts.Diag(used...)

	res, err := c.history(ctx, ticker)
	if err != nil {
		// bare ErrNoSource: every source answered, none had bars
		if err == provenance.ErrNoSource {
			return contracts.Errored[contracts.MarketData](contracts.StageMarketData, CodeNoData,
				fmt.Sprintf("No daily bars available for %s", ticker), diag.Missing("daily_bars")), nil
		}
		c.logger.WithError(err).WithField("ticker", ticker).Error("market history fetch failed")
		return contracts.Envelope[contracts.MarketData]{}, err
	}
	bars := res.Value

	flow, err := FlowMetrics(c.flowWindow(bars))
	if err != nil {
		return contracts.Errored[contracts.MarketData](contracts.StageMarketData, CodeNoData,
			fmt.Sprintf("Not enough recent bars for %s to compute flow signal", ticker), diag.Missing("flow_bars")), nil
	}
	risk, err := RiskMetrics(closes(bars))
	if err != nil {
		return contracts.Errored[contracts.MarketData](contracts.StageMarketData, CodeNoData,
			fmt.Sprintf("Not enough price history for %s to compute volatility and drawdown", ticker),
			diag.Missing("price_history")), nil
	}

	var missing []string

	corr, window, fallback := FallbackCorrelation, 0, true
	bench, err := c.history(ctx, c.benchmark)
	switch {
	case err == nil:
		corr, window, fallback = Correlation(closes(bars), closes(bench.Value))
	case ctx.Err() != nil:
		return contracts.Envelope[contracts.MarketData]{}, ctx.Err()
	default:
		c.logger.WithError(err).Warn("benchmark history unavailable, using fallback correlation")
	}
	if fallback {
		missing = append(missing, "correlation_index")
	}

	yes, no := c.auxiliaryPrices(ctx, ticker)

	last := bars[len(bars)-1]
	out := contracts.MarketData{
		MarketPrice:      contracts.Float(round(last.Close, 4)),
		Volatility:       contracts.Float(round(risk.Volatility, 6)),
		MaxDrawdown:      contracts.Float(round(risk.MaxDrawdown, 6)),
		CorrelationIndex: contracts.Float(round(corr, 4)),
		LastPrice:        contracts.Float(round(flow.LastPrice, 4)),
		LastVolume:       contracts.Float(flow.LastVolume),
		AvgVolume:        contracts.Float(flow.AvgVolume),
		VolumeSpike:      contracts.Float(round(flow.VolumeRatio, 6)),
		PriceDirection:   flow.Direction,
		FlowSignal:       flow.Signal,
		MacroSignal:      auxiliarySignal(yes, no),
		YesPrice:         yes,
		NoPrice:          no,
		Source:           res.Source,
		Benchmark:        c.benchmark,
		Observations:     risk.Window,
		AsOf:             last.Date.Format(dateLayout),
	}

	confidence := 90
	if res.Source != SourcePolygon {
		confidence = 70
	}

	c.logger.Event("info", "market_data_fetched", map[string]interface{}{
		"ticker":            ticker,
		"source":            res.Source,
		"market_price":      *out.MarketPrice,
		"volatility":        *out.Volatility,
		"max_drawdown":      *out.MaxDrawdown,
		"correlation_index": *out.CorrelationIndex,
		"correlation_n":     window,
	})

	oneLiner := fmt.Sprintf("Market data loaded for %s via %s: price $%.2f, vol %.2f%%",
		ticker, res.Source, *out.MarketPrice, *out.Volatility*100)

	if len(missing) > 0 {
		return contracts.Partial(contracts.StageMarketData, out, confidence-10, oneLiner,
			diag.Missing(missing...).Binding(contracts.ConstraintDataAvailability)), nil
	}
	return contracts.OK(contracts.StageMarketData, out, confidence, oneLiner, diag), nil
}

func (c *Client) flowWindow(bars []Bar) []Bar {
	cutoff := c.now().UTC().Truncate(24*time.Hour).AddDate(0, 0, -flowWindowDays)
	for i, b := range bars {
		if !b.Date.Before(cutoff) {
			return bars[i:]
		}
	}
	return nil
}

type auxiliaryQuote struct {
	YesPrice *float64 `json:"yes_price"`
	NoPrice  *float64 `json:"no_price"`
}

// auxiliaryPrices reads the optional yes/no price feed; failures leave both nil
func (c *Client) auxiliaryPrices(ctx context.Context, ticker string) (*float64, *float64) {
	if c.auxURL == "" {
		return nil, nil
	}
	var q auxiliaryQuote
	if err := c.httpClient.GetJSON(ctx, c.auxURL+"/"+url.PathEscape(ticker), &q); err != nil {
		var statusErr *httputil.StatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode != 404 {
			c.logger.WithError(err).Warn("auxiliary price feed unavailable")
		}
		return nil, nil
	}
	return q.YesPrice, q.NoPrice
}

func auxiliarySignal(yes, no *float64) string {
	if yes == nil || no == nil {
		return SignalNeutral
	}
	switch {
	case *yes > *no:
		return SignalSupportive
	case *yes < *no:
		return SignalHostile
	default:
		return SignalNeutral
	}
}
