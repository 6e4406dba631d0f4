package classify

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
)

// CodeMissingCompanyName is returned when filings carry no company name
const CodeMissingCompanyName = "BUSINESS_CONTEXT_MISSING_COMPANY_NAME"

const maxSummaryChars = 400

var businessInputs = []string{"company_name", "sic_description", "business_description", "risk_factors", "entity_type"}

// riskTaxonomy maps a risk category to the phrases that indicate it (lower case)
var riskTaxonomy = []struct {
	category string
	keywords []string
}{
	{"COMPETITION", []string{"competition", "competitive", "competitors"}},
	{"REGULATORY", []string{"regulat", "legislation", "government approval"}},
	{"SUPPLY_CHAIN", []string{"supply chain", "supplier", "component shortage"}},
	{"MACROECONOMIC", []string{"economic conditions", "inflation", "recession"}},
	{"CURRENCY", []string{"currency", "exchange rate"}},
	{"CYBERSECURITY", []string{"cyber", "data breach", "security breach"}},
	{"LITIGATION", []string{"litigation", "legal proceedings", "lawsuit"}},
	{"TECHNOLOGY", []string{"technological change", "innovation", "obsolete"}},
	{"GEOPOLITICAL", []string{"geopolitical", "tariff", "trade restriction"}},
	{"LIQUIDITY", []string{"liquidity", "indebtedness", "credit facilit"}},
	{"KEY_PERSONNEL", []string{"key personnel", "key employees", "retain"}},
}

var (
	globalKeywords = []string{"worldwide", "global", "around the world"}
	regionKeywords = []string{"international", "foreign", "outside the united states", "europe", "asia", "china", "japan", "latin america"}

	sentenceEnd = regexp.MustCompile(`[.!?](\s|$)`)
)

// ClassifyBusiness implements contracts.BusinessClassifier
func (r *Rules) ClassifyBusiness(_ context.Context, f contracts.BusinessFilings) (contracts.Envelope[contracts.BusinessContext], error) {
	if strings.TrimSpace(f.CompanyName) == "" {
		return contracts.Errored[contracts.BusinessContext](contracts.StageBusinessContext, CodeMissingCompanyName,
			"company_name is required", contracts.Diag(businessInputs...).Missing("company_name")), nil
	}

	var missing []string
	if f.BusinessDescription == "" {
		missing = append(missing, "business_description")
	}
	if f.RiskFactors == "" {
		missing = append(missing, "risk_factors")
	}

	risks := riskCategories(f.RiskFactors)
	out := contracts.BusinessContext{
		BusinessSummary:    summarise(f),
		KeyRiskCategories:  risks,
		GeographicExposure: geographicExposure(f.BusinessDescription + " " + f.RiskFactors),
		BusinessComplexity: complexity(f.BusinessDescription, risks),
	}

	r.logger.WithGate(contracts.StageBusinessContext.String()).Event("info", "business_context_classified", map[string]interface{}{
		"complexity":  out.BusinessComplexity,
		"exposure":    out.GeographicExposure,
		"risk_count":  len(risks),
		"has_filings": f.HasFilings(),
	})

	oneLiner := fmt.Sprintf("%s: %s complexity, %s exposure", f.CompanyName, out.BusinessComplexity, out.GeographicExposure)
	diag := contracts.Diag(businessInputs...)
	if !f.HasFilings() {
		return contracts.Partial(contracts.StageBusinessContext, out, 40,
			"PARTIAL: "+oneLiner+" (filings not available)", diag.Missing(missing...)), nil
	}
	return contracts.OK(contracts.StageBusinessContext, out, 85, oneLiner, diag.Missing(missing...)), nil
}

// summarise keeps the first two sentences of Item 1, else describes the SIC code
func summarise(f contracts.BusinessFilings) string {
	text := strings.TrimSpace(f.BusinessDescription)
	if text == "" {
		if f.SICDescription == "" {
			return fmt.Sprintf("%s (no business description filed).", f.CompanyName)
		}
		return fmt.Sprintf("%s operates in %s.", f.CompanyName, strings.ToLower(f.SICDescription))
	}

	cut := len(text)
	if locs := sentenceEnd.FindAllStringIndex(text, 2); len(locs) > 0 {
		cut = locs[len(locs)-1][0] + 1
	}
	if cut > maxSummaryChars {
		cut = maxSummaryChars
	}
	return strings.ToValidUTF8(strings.TrimSpace(text[:cut]), "")
}

func riskCategories(riskText string) []string {
	text := strings.ToLower(riskText)
	out := []string{}
	if text == "" {
		return out
	}
	for _, entry := range riskTaxonomy {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				out = append(out, entry.category)
				break
			}
		}
	}
	return out
}

func geographicExposure(text string) string {
	text = strings.ToLower(text)
	for _, kw := range globalKeywords {
		if strings.Contains(text, kw) {
			return contracts.ExposureGlobal
		}
	}
	regions := 0
	for _, kw := range regionKeywords {
		if strings.Contains(text, kw) {
			regions++
		}
	}
	switch {
	case regions >= 3:
		return contracts.ExposureGlobal
	case regions > 0:
		return contracts.ExposureInternational
	default:
		return contracts.ExposureDomestic
	}
}

func complexity(description string, risks []string) string {
	segments := strings.Contains(strings.ToLower(description), "segments")
	switch {
	case len(risks) >= 6 || (segments && len(risks) >= 3):
		return contracts.ComplexityHigh
	case len(risks) >= 3 || segments:
		return contracts.ComplexityMedium
	default:
		return contracts.ComplexityLow
	}
}
