package sec

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
)

// Identity error codes
const (
	CodeIdentityInvalidInput = "IDENTITY_INVALID_INPUT"
	CodeIdentityAmbiguous    = "IDENTITY_AMBIGUOUS"
	CodeIdentityNotFound     = "IDENTITY_NOT_FOUND"
)

// Fuzzy matching thresholds
const (
	substringFloor  = 0.75
	fuzzyThreshold  = 0.55
	ambiguityMargin = 0.05
)

var corporateSuffixes = []string{" INC", " CORP", " CO", " LTD", " PLC", " LLC", " LP", " NV", " SA", " AG", " SE"}

// TickerEntry is one row of company_tickers.json
type TickerEntry struct {
	CIK    int64  `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// Resolve implements contracts.IdentityResolver
func (c *Client) Resolve(ctx context.Context, query string) (contracts.Envelope[contracts.Identity], error) {
	if normalize(query) == "" {
		return Match(query, nil), nil
	}

	var raw map[string]TickerEntry
	if err := c.getJSON(ctx, c.tickersURL, &raw); err != nil {
		c.logger.WithGate(contracts.StageIdentity.String()).WithError(err).Error("company tickers fetch failed")
		return contracts.Envelope[contracts.Identity]{}, err
	}

	env := Match(query, tickerTable(raw))
	if ident, ok := env.Data(); ok {
		c.logger.WithGate(contracts.StageIdentity.String()).Event("info", "identity_resolved", map[string]interface{}{
			"ticker":     ident.Ticker,
			"match_type": ident.MatchType,
		})
	}
	return env, nil
}

// tickerTable flattens the decoded ticker file in (CIK, ticker) order.
// Share classes share a CIK, so the ticker breaks the tie.
func tickerTable(raw map[string]TickerEntry) []TickerEntry {
	entries := make([]TickerEntry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CIK != entries[j].CIK {
			return entries[i].CIK < entries[j].CIK
		}
		return entries[i].Ticker < entries[j].Ticker
	})
	return entries
}

type scored struct {
	score float64
	ident contracts.Identity
}

// Match resolves a query against the ticker table without any I/O
// ⭐ SSOT: G0 식별 규칙
func Match(query string, entries []TickerEntry) contracts.Envelope[contracts.Identity] {
	diag := contracts.Diag("company_input")

	term := normalize(query)
	if term == "" {
		return contracts.Errored[contracts.Identity](contracts.StageIdentity, CodeIdentityInvalidInput,
			"company_input must be a non-empty string", diag.Missing("company_input"))
	}
	stripped := stripSuffixes(term)

	var exact []contracts.Identity
	var fuzzy []scored

	for _, e := range entries {
		ticker := normalize(e.Ticker)
		title := normalize(e.Title)
		if ticker == "" || title == "" || e.CIK <= 0 {
			continue
		}

		ident := contracts.Identity{
			Ticker:      ticker,
			CompanyName: strings.TrimSpace(e.Title),
			CIK:         PadCIK(strconv.FormatInt(e.CIK, 10)),
		}

		if term == ticker || term == title {
			ident.MatchType = contracts.MatchExact
			exact = append(exact, ident)
			continue
		}

		ident.MatchType = contracts.MatchFuzzy
		titleStripped := stripSuffixes(title)

		// substring hit in the title is a strong fuzzy match
		if strings.Contains(titleStripped, stripped) || strings.Contains(title, term) {
			score := math.Max(similarity(stripped, ticker), similarity(stripped, titleStripped))
			fuzzy = append(fuzzy, scored{math.Max(score, substringFloor), ident})
			continue
		}

		score := max(
			similarity(term, ticker),
			similarity(term, title),
			similarity(stripped, titleStripped),
		)
		if score >= fuzzyThreshold {
			fuzzy = append(fuzzy, scored{score, ident})
		}
	}

	switch {
	case len(exact) == 1:
		ident := exact[0]
		ident.ConfidenceScore = 1.0
		oneLiner := fmt.Sprintf("Resolved %s to %s (CIK %s) via EXACT match", query, ident.Ticker, ident.CIK)
		return contracts.OK(contracts.StageIdentity, ident, 100, oneLiner, diag)

	case len(exact) > 1:
		var tickers []string
		for i, m := range exact {
			if i == 5 {
				break
			}
			tickers = append(tickers, m.Ticker)
		}
		return contracts.Errored[contracts.Identity](contracts.StageIdentity, CodeIdentityAmbiguous,
			fmt.Sprintf("Multiple exact matches for '%s': %s. Specify ticker explicitly.", query, strings.Join(tickers, ", ")),
			diag)

	case len(fuzzy) == 0:
		return contracts.Errored[contracts.Identity](contracts.StageIdentity, CodeIdentityNotFound,
			fmt.Sprintf("No company found matching '%s'", query), diag)
	}

	sort.SliceStable(fuzzy, func(i, j int) bool { return fuzzy[i].score > fuzzy[j].score })
	top := fuzzy[0]

	if len(fuzzy) > 1 && math.Abs(top.score-fuzzy[1].score) <= ambiguityMargin {
		var candidates []string
		for i, m := range fuzzy {
			if i == 3 {
				break
			}
			candidates = append(candidates, fmt.Sprintf("%s(%.2f)", m.ident.Ticker, m.score))
		}
		return contracts.Errored[contracts.Identity](contracts.StageIdentity, CodeIdentityAmbiguous,
			fmt.Sprintf("Ambiguous fuzzy match for '%s': %s", query, strings.Join(candidates, ", ")),
			diag)
	}

	ident := top.ident
	ident.ConfidenceScore = math.Round(top.score*10000) / 10000
	oneLiner := fmt.Sprintf("Resolved %s to %s (CIK %s) via FUZZY match (%.0f%% confidence)",
		query, ident.Ticker, ident.CIK, top.score*100)
	return contracts.OK(contracts.StageIdentity, ident, int(math.Round(top.score*100)), oneLiner, diag)
}

// normalize upper-cases and collapses whitespace
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToUpper(s)), " ")
}

func stripSuffixes(s string) string {
	for _, suffix := range corporateSuffixes {
		if strings.HasSuffix(s, suffix) {
			s = strings.TrimSpace(strings.TrimSuffix(s, suffix))
		}
	}
	return s
}
