package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/proplens/proplens/internal/calc"
	"github.com/proplens/proplens/internal/config"
	"github.com/proplens/proplens/internal/discovery"
	"github.com/proplens/proplens/internal/fetcher"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/pipeline"
	"github.com/proplens/proplens/internal/resilience"
	"github.com/proplens/proplens/internal/scrape"
	"github.com/proplens/proplens/internal/waterfall"
	"github.com/proplens/proplens/pkg/geocode"
	"github.com/proplens/proplens/pkg/nswspatial"
)

// researcher runs the research pipeline for a resolved address.
type researcher interface {
	Run(ctx context.Context, addr model.ResolvedAddress) (*pipeline.Report, error)
}

// appEnv holds the clients and pipeline used by the lookup and serve
// commands.
type appEnv struct {
	Governor *fetcher.Governor // nil in tests
	Geocoder geocode.Client
	Pipeline researcher
	Calc     *calc.Calculator
	Finance  calc.FinanceInputs
}

// initEnv builds every client from c.
func initEnv(c *config.Config) (*appEnv, error) {
	gov := fetcher.NewGovernor(fetcher.GovernorOptions{
		UserAgent:     c.Fetch.UserAgent,
		MinDelay:      c.Fetch.MinDelay(),
		CacheTTL:      c.Fetch.CacheTTL(),
		RobotsTimeout: c.Fetch.RobotsTimeout(),
		Timeout:       c.Fetch.Timeout(),
		MaxBodyBytes:  c.Fetch.MaxBodyBytes,
	})

	disc := discovery.New(gov, discovery.Options{
		SearchURL:      c.Discovery.SearchURL,
		Sites:          c.Discovery.Sites,
		ResultSelector: c.Discovery.ResultSelector,
		MinResults:     c.Discovery.MinResults,
		MaxResults:     c.Discovery.MaxResults,
		ExcludePaths:   c.Discovery.ExcludePaths,
		Timeout:        c.Fetch.Timeout(),
	})

	policy := waterfall.DefaultPolicy
	if c.Fusion.PolicyFile != "" {
		p, err := waterfall.LoadPolicy(c.Fusion.PolicyFile)
		if err != nil {
			return nil, eris.Wrap(err, "init: fusion policy")
		}
		policy = p
		zap.L().Info("fusion policy loaded", zap.String("file", c.Fusion.PolicyFile))
	}

	deps := pipeline.Deps{
		Discoverer: disc,
		Extractor:  scrape.NewExtractor(gov, c.Fetch.Timeout()),
		Executor:   waterfall.NewExecutor(policy),
		Breaker: resilience.NewBreaker(resilience.FromBreakerConfig(
			"opendata", c.OpenData.BreakerThreshold, c.OpenData.BreakerCooldownSecs,
		)),
	}
	if c.OpenData.Enabled {
		deps.OpenData = nswspatial.NewClient(
			nswspatial.WithBaseURL(c.OpenData.BaseURL),
			nswspatial.WithTimeout(secs(c.OpenData.TimeoutSecs)),
			nswspatial.WithUserAgent(c.Fetch.UserAgent),
			nswspatial.WithRetry(resilience.FromRetryConfig(c.OpenData.MaxAttempts, c.OpenData.InitialBackoffMs)),
			nswspatial.WithFallbackLandSqm(c.OpenData.FallbackLandSqm),
			nswspatial.WithConfidence(c.OpenData.Confidence),
		)
	} else {
		zap.L().Debug("open data disabled")
	}

	geo := geocode.NewClient(
		geocode.WithBaseURL(c.Geocode.BaseURL),
		geocode.WithUserAgent(c.Fetch.UserAgent),
		geocode.WithCountryCodes(c.Geocode.CountryCodes),
		geocode.WithLimit(c.Geocode.Limit),
		geocode.WithRateLimit(c.Geocode.RateLimit),
		geocode.WithHTTPClient(newHTTPClient(secs(c.Geocode.TimeoutSecs))),
	)

	return &appEnv{
		Governor: gov,
		Geocoder: geo,
		Pipeline: pipeline.New(deps, pipeline.OptionsFromConfig(c.Pipeline)),
		Calc:     calc.Default(),
		Finance:  calc.InputsFromConfig(c.Finance),
	}, nil
}

// purgeLoop drops expired fetch cache entries every interval until ctx ends.
func (e *appEnv) purgeLoop(ctx context.Context, interval time.Duration) {
	if e.Governor == nil {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := e.Governor.Purge(); n > 0 {
				zap.L().Debug("fetch cache purged", zap.Int("entries", n))
			}
		}
	}
}
