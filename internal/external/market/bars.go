package market

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wonny/mizan/internal/provenance"
	"github.com/wonny/mizan/pkg/httputil"
)

// Source names
const (
	SourcePolygon = "POLYGON"
	SourceStooq   = "STOOQ"
)

const dateLayout = "2006-01-02"

// Bar is one daily aggregate
type Bar struct {
	Date   time.Time
	Close  float64
	Volume float64
}

// polygonAggs is the /v2/aggs range response
type polygonAggs struct {
	Status  string `json:"status"`
	Results []struct {
		T int64   `json:"t"` // unix ms
		C float64 `json:"c"`
		V float64 `json:"v"`
	} `json:"results"`
}

// polygonSource reads adjusted daily bars from Polygon
func (c *Client) polygonSource(symbol string, start, end time.Time) provenance.Source[[]Bar] {
	return provenance.Source[[]Bar]{
		Name: SourcePolygon,
		Fetch: func(ctx context.Context) ([]Bar, bool, error) {
			q := url.Values{}
			q.Set("adjusted", "true")
			q.Set("sort", "asc")
			q.Set("limit", "5000")
			q.Set("apiKey", c.polygonKey)
			u := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?%s",
				c.polygonURL, url.PathEscape(symbol), start.Format(dateLayout), end.Format(dateLayout), q.Encode())

			var resp polygonAggs
			if err := c.httpClient.GetJSON(ctx, u, &resp); err != nil {
				return nil, false, httputil.Redact(err, c.polygonKey)
			}

			bars := make([]Bar, 0, len(resp.Results))
			for _, r := range resp.Results {
				bars = append(bars, Bar{
					Date:   time.UnixMilli(r.T).UTC().Truncate(24 * time.Hour),
					Close:  r.C,
					Volume: r.V,
				})
			}
			return bars, len(bars) > 0, nil
		},
	}
}

// stooqSource reads the full daily CSV from Stooq and keeps [start, end]
func (c *Client) stooqSource(symbol string, start, end time.Time) provenance.Source[[]Bar] {
	return provenance.Source[[]Bar]{
		Name: SourceStooq,
		Fetch: func(ctx context.Context) ([]Bar, bool, error) {
			q := url.Values{}
			q.Set("s", strings.ToLower(symbol)+".us")
			q.Set("i", "d")

			body, err := c.httpClient.GetBody(ctx, c.stooqURL+"/q/d/l/?"+q.Encode())
			if err != nil {
				return nil, false, err
			}
			if len(bytes.TrimSpace(body)) == 0 || bytes.Contains(body, []byte("No data")) {
				return nil, false, nil
			}

			bars, err := parseStooqCSV(body)
			if err != nil {
				return nil, false, err
			}

			var kept []Bar
			for _, b := range bars {
				if !b.Date.Before(start) && !b.Date.After(end) {
					kept = append(kept, b)
				}
			}
			return kept, len(kept) > 0, nil
		},
	}
}

// parseStooqCSV reads Date,Open,High,Low,Close,Volume rows; malformed rows are skipped
func parseStooqCSV(body []byte) ([]Bar, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read stooq header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	dateIdx, okDate := col["Date"]
	closeIdx, okClose := col["Close"]
	if !okDate || !okClose {
		return nil, fmt.Errorf("stooq csv missing Date/Close columns: %v", header)
	}
	volIdx, hasVol := col["Volume"]

	var bars []Bar
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stooq row: %w", err)
		}
		if dateIdx >= len(rec) || closeIdx >= len(rec) {
			continue
		}

		d, err := time.Parse(dateLayout, strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			continue
		}
		cl, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil {
			continue
		}
		var vol float64
		if hasVol && volIdx < len(rec) && strings.TrimSpace(rec[volIdx]) != "" {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[volIdx]), 64); err == nil {
				vol = v
			}
		}
		bars = append(bars, Bar{Date: d, Close: cl, Volume: vol})
	}
	return bars, nil
}

func closes(bars []Bar) []float64 {
	out := make([]float64, 0, len(bars))
	for _, b := range bars {
		out = append(out, b.Close)
	}
	return out
}
