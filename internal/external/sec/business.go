package sec

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/mizan/internal/contracts"
)

const (
	maxDocumentText = 500 * 1024
	maxSectionText  = 10000
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)

	// Item 1 runs until Item 1A, 1B or 2; the table of contents hit is skipped by length
	businessItemRe = regexp.MustCompile(`(?i)item\s*1\.?\s*business\b(.*?)item\s*(?:1a|1b|2)\.?\s`)
	riskItemRe     = regexp.MustCompile(`(?i)item\s*1a\.?\s*risk\s+factors\b(.*?)item\s*(?:1b|2)\.?\s`)
)

// submissions is the subset of submissions/CIK##########.json we read
type submissions struct {
	Name                 string `json:"name"`
	SIC                  string `json:"sic"`
	SICDescription       string `json:"sicDescription"`
	EntityType           string `json:"entityType"`
	StateOfIncorporation string `json:"stateOfIncorporation"`
	Filings              struct {
		Recent struct {
			Form            []string `json:"form"`
			AccessionNumber []string `json:"accessionNumber"`
			PrimaryDocument []string `json:"primaryDocument"`
			FilingDate      []string `json:"filingDate"`
		} `json:"recent"`
	} `json:"filings"`
}

type filingRef struct {
	form, accession, document, date string
}

// latestAnnualFiling returns the first 10-K/20-F/40-F in the recent list (newest first)
func (s submissions) latestAnnualFiling() (filingRef, bool) {
	r := s.Filings.Recent
	for i, form := range r.Form {
		if !annualForms[form] {
			continue
		}
		if i >= len(r.AccessionNumber) || i >= len(r.PrimaryDocument) {
			break
		}
		ref := filingRef{form: form, accession: r.AccessionNumber[i], document: r.PrimaryDocument[i]}
		if i < len(r.FilingDate) {
			ref.date = r.FilingDate[i]
		}
		return ref, true
	}
	return filingRef{}, false
}

// FetchFilings implements contracts.FilingsFetcher.
// A missing or unreadable document degrades the result; only the submissions call is fatal.
func (c *Client) FetchFilings(ctx context.Context, cik string) (contracts.Envelope[contracts.BusinessFilings], error) {
	log := c.logger.WithGate(contracts.StageBusinessFilings.String())

	cik = PadCIK(cik)
	if !validCIK(cik) {
		return contracts.Errored[contracts.BusinessFilings](contracts.StageBusinessFilings, CodeInvalidCIK,
			fmt.Sprintf("CIK must be 10 digits, got %q", cik), contracts.Diag("cik").Missing("cik")), nil
	}

	var sub submissions
	if err := c.getJSON(ctx, fmt.Sprintf("%s/submissions/CIK%s.json", c.dataURL, cik), &sub); err != nil {
		log.WithError(err).Warn("submissions fetch failed")
		return contracts.Envelope[contracts.BusinessFilings]{}, err
	}

	out := contracts.BusinessFilings{
		CompanyName:          sub.Name,
		SIC:                  sub.SIC,
		SICDescription:       sub.SICDescription,
		EntityType:           sub.EntityType,
		StateOfIncorporation: sub.StateOfIncorporation,
	}
	used := []string{"cik", "submissions"}

	if ref, ok := sub.latestAnnualFiling(); ok {
		out.FormType = ref.form
		out.FilingDate = ref.date

		text, err := c.documentText(ctx, cik, ref)
		if err != nil {
			log.WithError(err).WithField("accession", ref.accession).Warn("filing document fetch failed")
		} else {
			out.BusinessDescription = extractSection(businessItemRe, text)
			out.RiskFactors = extractSection(riskItemRe, text)
			used = append(used, "primary_document")
		}
	}

	var missing []string
	if out.BusinessDescription == "" {
		missing = append(missing, "business_description")
	}
	if out.RiskFactors == "" {
		missing = append(missing, "risk_factors")
	}

	diag := contracts.Diag(used...)
	switch len(missing) {
	case 0:
		return contracts.OK(contracts.StageBusinessFilings, out, 90,
			fmt.Sprintf("%s %s filed %s: business and risk sections extracted", out.CompanyName, out.FormType, out.FilingDate), diag), nil
	case 1:
		return contracts.Partial(contracts.StageBusinessFilings, out, 60,
			fmt.Sprintf("%s %s: partial filing text", out.CompanyName, out.FormType), diag.Missing(missing...)), nil
	default:
		return contracts.Partial(contracts.StageBusinessFilings, out, 30,
			fmt.Sprintf("%s: company metadata only", out.CompanyName), diag.Missing(missing...)), nil
	}
}

// documentText downloads a filing's primary document and flattens it to text
func (c *Client) documentText(ctx context.Context, cik string, ref filingRef) (string, error) {
	cikNum, err := strconv.ParseInt(cik, 10, 64)
	if err != nil {
		return "", fmt.Errorf("parse cik %q: %w", cik, err)
	}
	url := fmt.Sprintf("%s/%d/%s/%s", c.archiveURL, cikNum, strings.ReplaceAll(ref.accession, "-", ""), ref.document)

	body, err := c.httpClient.GetBody(ctx, url)
	if err != nil {
		return "", fmt.Errorf("sec request %s: %w", url, err)
	}
	return htmlToText(body)
}

// htmlToText strips markup and collapses whitespace, capped at maxDocumentText
func htmlToText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse filing html: %w", err)
	}
	doc.Find("script, style").Remove()
	// block boundaries become spaces so "Business</p><p>Item 1A" stays two words
	doc.Find("p, div, td, li, tr, h1, h2, h3, h4, h5, h6").AppendHtml(" ")

	text := strings.TrimSpace(whitespaceRe.ReplaceAllString(doc.Text(), " "))
	return truncate(text, maxDocumentText), nil
}

// extractSection returns the longest match so the table-of-contents entry loses to the body
func extractSection(re *regexp.Regexp, text string) string {
	var best string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if s := strings.TrimSpace(m[1]); len(s) > len(best) {
			best = s
		}
	}
	return truncate(best, maxSectionText)
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
