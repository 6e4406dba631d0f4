// Package sec resolves identities and loads fundamentals and filing text
// from SEC EDGAR.
package sec

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/mizan/pkg/config"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
)

// Client handles communication with SEC EDGAR
// ⭐ SSOT: SEC API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	tickersURL string
	dataURL    string
	archiveURL string
}

// NewClient creates a new SEC client.
// The http client must already carry the User-Agent header; SEC rejects anonymous requests.
func NewClient(httpClient *httputil.Client, cfg config.SECConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		tickersURL: cfg.TickersURL,
		dataURL:    strings.TrimRight(cfg.DataURL, "/"),
		archiveURL: strings.TrimRight(cfg.ArchiveURL, "/"),
	}
}

// NewHTTPClient builds the shared transport for SEC with its fair-access limit
func NewHTTPClient(cfg *config.Config, log *logger.Logger) *httputil.Client {
	perSecond := cfg.SEC.RateLimit
	if perSecond < 1 {
		perSecond = 1
	}
	return httputil.New(cfg, log).
		WithHeader("User-Agent", cfg.SEC.UserAgent).
		WithHeader("Accept", "application/json, text/html").
		WithLocalLimit(float64(perSecond), perSecond)
}

// PadCIK zero-pads a CIK to 10 digits
func PadCIK(cik string) string {
	cik = strings.TrimSpace(cik)
	if len(cik) >= 10 {
		return cik
	}
	return strings.Repeat("0", 10-len(cik)) + cik
}

func validCIK(cik string) bool {
	if len(cik) != 10 {
		return false
	}
	for _, r := range cik {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	if err := c.httpClient.GetJSON(ctx, url, out); err != nil {
		return fmt.Errorf("sec request %s: %w", url, err)
	}
	return nil
}
