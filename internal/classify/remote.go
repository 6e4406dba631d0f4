package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
)

// CodeInvalidResponse is returned when the remote classifier answers outside its contract
const CodeInvalidResponse = "CLASSIFIER_INVALID_RESPONSE"

// Remote endpoints, relative to the base URL
const (
	pathBusiness   = "/business_context"
	pathMarket     = "/market_structure"
	pathImpairment = "/impairment"
)

// Remote posts classifier requests to an external service.
// Deterministic prechecks run locally first; the service is only asked when
// the inputs support an opinion.
type Remote struct {
	httpClient *httputil.Client
	baseURL    string
	rules      *Rules
	logger     *logger.Logger
}

// NewRemote creates a remote classifier
func NewRemote(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Remote {
	if log == nil {
		log = logger.Nop()
	}
	return &Remote{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		rules:      NewRules(log),
		logger:     log,
	}
}

// remoteReply is the wire shape every endpoint answers with
type remoteReply[T any] struct {
	Data       T      `json:"data"`
	Confidence int    `json:"confidence"`
	OneLiner   string `json:"one_liner"`
}

func post[T any](ctx context.Context, r *Remote, path string, req interface{}) (remoteReply[T], error) {
	var reply remoteReply[T]
	if err := r.httpClient.PostJSON(ctx, r.baseURL+path, req, &reply); err != nil {
		r.logger.WithError(err).WithField("path", path).Warn("classifier request failed")
		return reply, fmt.Errorf("classifier %s: %w", path, err)
	}
	return reply, nil
}

// ClassifyBusiness implements contracts.BusinessClassifier
func (r *Remote) ClassifyBusiness(ctx context.Context, f contracts.BusinessFilings) (contracts.Envelope[contracts.BusinessContext], error) {
	if strings.TrimSpace(f.CompanyName) == "" {
		return r.rules.ClassifyBusiness(ctx, f)
	}

	reply, err := post[contracts.BusinessContext](ctx, r, pathBusiness, f)
	if err != nil {
		return contracts.Envelope[contracts.BusinessContext]{}, err
	}

	bc := reply.Data
	if !oneOf(bc.BusinessComplexity, contracts.ComplexityLow, contracts.ComplexityMedium, contracts.ComplexityHigh) ||
		!oneOf(bc.GeographicExposure, contracts.ExposureDomestic, contracts.ExposureInternational, contracts.ExposureGlobal) {
		return invalid[contracts.BusinessContext](contracts.StageBusinessContext, businessInputs,
			fmt.Sprintf("complexity %q / exposure %q", bc.BusinessComplexity, bc.GeographicExposure)), nil
	}
	if bc.KeyRiskCategories == nil {
		bc.KeyRiskCategories = []string{}
	}

	diag := contracts.Diag(businessInputs...)
	if !f.HasFilings() {
		return contracts.Partial(contracts.StageBusinessContext, bc, min(reply.Confidence, 40), reply.OneLiner,
			diag.Missing("business_description", "risk_factors")), nil
	}
	return contracts.OK(contracts.StageBusinessContext, bc, reply.Confidence, reply.OneLiner, diag), nil
}

// ClassifyMarket implements contracts.MarketStructureClassifier
func (r *Remote) ClassifyMarket(ctx context.Context, s contracts.MarketSignals) (contracts.Envelope[contracts.MarketStructure], error) {
	if env, ok := marketPrecheck(s); ok {
		return env, nil
	}

	reply, err := post[contracts.MarketStructure](ctx, r, pathMarket, s)
	if err != nil {
		return contracts.Envelope[contracts.MarketStructure]{}, err
	}

	ms := reply.Data
	switch ms.Classification {
	case contracts.MarketNoRelevantData:
		return noMarketData(ms.Reasoning, nil), nil
	case contracts.MarketTailwind, contracts.MarketNeutral, contracts.MarketHeadwind:
	default:
		return invalid[contracts.MarketStructure](contracts.StageMarketStructure, marketInputs,
			fmt.Sprintf("classification %q", ms.Classification)), nil
	}
	if ms.SetupLabel == "" {
		ms.SetupLabel = setupLabels[ms.Classification]
	}
	return contracts.OK(contracts.StageMarketStructure, ms, reply.Confidence, reply.OneLiner, contracts.Diag(marketInputs...)), nil
}

// ClassifyImpairment implements contracts.ImpairmentClassifier
func (r *Remote) ClassifyImpairment(ctx context.Context, s contracts.ImpairmentSignals) (contracts.Envelope[contracts.Impairment], error) {
	if env, ok := impairmentPrecheck(s); ok {
		return env, nil
	}

	reply, err := post[contracts.Impairment](ctx, r, pathImpairment, s)
	if err != nil {
		return contracts.Envelope[contracts.Impairment]{}, err
	}

	// An answer outside the label set is "no opinion", never a halt
	imp := reply.Data
	imp.RiskLevel = strings.ToUpper(strings.TrimSpace(imp.RiskLevel))
	switch {
	case imp.RiskLevel == contracts.RiskUndetermined:
		reason := imp.Reason
		if strings.TrimSpace(reason) == "" {
			reason = "Remote classifier could not assess impairment risk."
		}
		return undetermined(reason, nil), nil
	case !oneOf(imp.RiskLevel, contracts.RiskLow, contracts.RiskMedium, contracts.RiskHigh):
		r.logger.WithField("risk_level", imp.RiskLevel).Warn("classifier returned an unknown risk level")
		return undetermined(fmt.Sprintf("Remote classifier returned an invalid risk_level %q", imp.RiskLevel), nil), nil
	case strings.TrimSpace(imp.Reason) == "":
		return undetermined("Remote classifier returned no reasoning for its risk level", nil), nil
	}

	if !oneOf(imp.RiskDriver, contracts.DriverLeverage, contracts.DriverRefinancing, contracts.DriverCashFlow, contracts.DriverNone) {
		imp.RiskDriver = contracts.DriverNone
	}
	return contracts.OK(contracts.StageImpairment, imp, reply.Confidence, reply.OneLiner, contracts.Diag(impairmentInputs...)), nil
}

func invalid[T any](gate contracts.Stage, inputs []string, detail string) contracts.Envelope[T] {
	return contracts.Errored[T](gate, CodeInvalidResponse,
		fmt.Sprintf("Remote classifier returned an invalid %s", detail), contracts.Diag(inputs...))
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
