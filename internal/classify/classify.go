// Package classify labels business context, market structure and impairment risk.
//
// The rule classifiers are deterministic. A remote classifier speaking the same
// request/response contract can be plugged in through CLASSIFIER_URL; the
// deterministic prechecks run first either way.
package classify

import (
	"github.com/wonny/mizan/internal/contracts"
	"github.com/wonny/mizan/pkg/config"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
)

// Set bundles the three classifier collaborators
type Set struct {
	Business   contracts.BusinessClassifier
	Market     contracts.MarketStructureClassifier
	Impairment contracts.ImpairmentClassifier
}

// New returns the rule classifiers, or the remote adapter when a URL is configured
func New(cfg config.ClassifierConfig, httpClient *httputil.Client, log *logger.Logger) Set {
	rules := NewRules(log)
	if cfg.URL == "" || httpClient == nil {
		return Set{Business: rules, Market: rules, Impairment: rules}
	}
	remote := NewRemote(httpClient, cfg.URL, log)
	return Set{Business: remote, Market: remote, Impairment: remote}
}

// Rules is the deterministic classifier
type Rules struct {
	logger *logger.Logger
}

// NewRules creates the rule classifier
func NewRules(log *logger.Logger) *Rules {
	if log == nil {
		log = logger.Nop()
	}
	return &Rules{logger: log}
}
