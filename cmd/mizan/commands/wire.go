package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wonny/mizan/internal/brain"
	"github.com/wonny/mizan/internal/classify"
	"github.com/wonny/mizan/internal/external/fred"
	"github.com/wonny/mizan/internal/external/market"
	"github.com/wonny/mizan/internal/external/sec"
	"github.com/wonny/mizan/internal/policy"
	"github.com/wonny/mizan/internal/sizing"
	"github.com/wonny/mizan/internal/valuation"
	"github.com/wonny/mizan/pkg/config"
	"github.com/wonny/mizan/pkg/httputil"
	"github.com/wonny/mizan/pkg/logger"
	"github.com/wonny/mizan/pkg/redis"
)

// app holds everything one CLI invocation builds
type app struct {
	cfg          *config.Config
	log          *logger.Logger
	policy       policy.Policy
	orchestrator *brain.Orchestrator
	redis        *redis.Client
}

// Close releases connections
func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

// loadConfig applies global flag overrides on top of the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if policyFile != "" {
		cfg.Pipeline.PolicyFile = policyFile
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// newApp wires collaborators into an orchestrator.
// logOut nil means the service logger (stdout); CLI output commands pass stderr.
func newApp(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	var log *logger.Logger
	if logOut != nil {
		log = logger.NewWithWriter(logOut, cfg.LogLevel)
	} else {
		log = logger.New(cfg)
	}

	p, err := policy.LoadOrDefault(cfg.Pipeline.PolicyFile)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	for _, w := range policy.Warn(p) {
		log.WithFields(map[string]interface{}{
			"code":    w.Code,
			"message": w.Message,
		}).Warn("Policy warning")
	}

	a := &app{cfg: cfg, log: log, policy: p}

	// Optional shared quota for SEC across serve and watch processes
	secHTTP := sec.NewHTTPClient(cfg, log)
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.redis = rc
		secHTTP = secHTTP.WithRateLimiter(redis.NewRateLimiter(rc, "mizan"), redis.RateLimitConfig{
			Key:    "sec",
			Limit:  cfg.SEC.RateLimit,
			Window: time.Second,
		})
		log.Info("Redis rate limiter enabled for SEC")
	}

	httpClient := httputil.NewWithTimeout(cfg, log, cfg.Pipeline.HTTPTimeout)

	secClient := sec.NewClient(secHTTP, cfg.SEC, log)
	fredClient := fred.NewClient(httpClient, cfg.FRED, log)
	marketClient := market.NewClient(httpClient, cfg.Market, log)
	classifiers := classify.New(cfg.Classifier, httputil.NewWithTimeout(cfg, log, cfg.Pipeline.GateTimeout).DisableRetry(), log)

	o, err := brain.NewOrchestrator(brain.Collaborators{
		Identity:           secClient,
		Fundamentals:       secClient,
		Filings:            secClient,
		Business:           classifiers.Business,
		MarketData:         marketClient,
		Macro:              fredClient,
		MarketStructure:    classifiers.Market,
		Impairment:         classifiers.Impairment,
		ValuationExplainer: valuation.MechanicalExplainer{},
		SizingExplainer:    sizing.MechanicalExplainer{},
	}, brain.Options{
		Policy:      p,
		GateTimeout: cfg.Pipeline.GateTimeout,
	}, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = o

	return a, nil
}
