// Package pipeline runs one property research cycle: candidate discovery,
// structured extraction, open data, heuristics and fusion.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/proplens/proplens/internal/config"
	"github.com/proplens/proplens/internal/estimate"
	"github.com/proplens/proplens/internal/fetcher"
	"github.com/proplens/proplens/internal/jsonld"
	"github.com/proplens/proplens/internal/model"
	"github.com/proplens/proplens/internal/normalize"
	"github.com/proplens/proplens/internal/resilience"
	"github.com/proplens/proplens/internal/scrape"
	"github.com/proplens/proplens/internal/waterfall"
)

// Discoverer finds candidate listing URLs for an address.
type Discoverer interface {
	FindCandidates(ctx context.Context, addr model.ResolvedAddress) []string
}

// Extractor pulls a structured listing object from a URL.
type Extractor interface {
	Extract(ctx context.Context, url string) *scrape.Result
}

// OpenDataSource looks up open-data parcel facts.
type OpenDataSource interface {
	Lookup(ctx context.Context, addr model.ResolvedAddress) (*model.OpenDataRecord, error)
}

// Deps are the collaborators of a Pipeline. OpenData may be nil. A nil
// Executor uses the default fusion policy and a nil Breaker gets defaults.
type Deps struct {
	Discoverer Discoverer
	Extractor  Extractor
	OpenData   OpenDataSource
	Executor   *waterfall.Executor
	Breaker    *resilience.Breaker
}

// Options tune a run.
type Options struct {
	AllowWebFetch         bool
	MaxCandidates         int
	Budget                time.Duration
	AddressMatchThreshold float64
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		AllowWebFetch: true,
		MaxCandidates: 8,
		Budget:        2 * time.Minute,
	}
}

// OptionsFromConfig converts the pipeline config section.
func OptionsFromConfig(c config.PipelineConfig) Options {
	return Options{
		AllowWebFetch:         c.AllowWebFetch,
		MaxCandidates:         c.MaxCandidates,
		Budget:                c.Budget(),
		AddressMatchThreshold: c.AddressMatchThreshold,
	}
}

// Report is the outcome of one run.
type Report struct {
	RunID       string                      `json:"run_id"`
	Facts       model.PropertyFacts         `json:"facts"`
	Resolutions []waterfall.FieldResolution `json:"resolutions"`
	Candidates  []string                    `json:"candidates"`
	OpenData    *model.OpenDataRecord       `json:"open_data,omitempty"`
	Phases      []model.PhaseResult         `json:"phases"`
	StartedAt   time.Time                   `json:"started_at"`
	Duration    time.Duration               `json:"duration_ns"`
}

// Pipeline orchestrates a research run.
type Pipeline struct {
	deps Deps
	opts Options
	now  func() time.Time
}

// New creates a Pipeline.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Executor == nil {
		deps.Executor = waterfall.NewExecutor(nil)
	}
	if deps.Breaker == nil {
		deps.Breaker = resilience.NewBreaker(resilience.BreakerConfig{Name: "opendata"})
	}
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultOptions().MaxCandidates
	}
	return &Pipeline{deps: deps, opts: opts, now: time.Now}
}

// Run researches addr. Missing or malformed third-party data degrades to
// lower tiers; the only error is an invalid address.
func (p *Pipeline) Run(ctx context.Context, addr model.ResolvedAddress) (*Report, error) {
	if err := ValidateAddress(addr); err != nil {
		return nil, err
	}

	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  p.now(),
		Candidates: []string{},
	}
	log := zap.L().With(
		zap.String("run_id", report.RunID),
		zap.String("address", addr.DisplayName),
	)
	log.Info("pipeline: starting run")

	trackPhase := func(name string, fn func() (map[string]any, error)) {
		start := p.now()
		meta, err := fn()
		phase := model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusComplete,
			Duration: p.now().Sub(start).Milliseconds(),
			Metadata: meta,
		}
		if err != nil {
			phase.Status = model.PhaseStatusFailed
			phase.Error = err.Error()
			log.Warn("pipeline: phase failed", zap.String("phase", name), zap.Error(err))
		} else {
			log.Debug("pipeline: phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", phase.Duration),
			)
		}
		report.Phases = append(report.Phases, phase)
	}
	skipPhase := func(name, reason string) {
		report.Phases = append(report.Phases, model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusSkipped,
			Metadata: map[string]any{"reason": reason},
		})
	}

	var (
		listing jsonld.Node
		sources []model.SourceAnnotation
	)
	if p.opts.AllowWebFetch && p.deps.Discoverer != nil && p.deps.Extractor != nil {
		webCtx, cancel := p.budget(ctx)
		trackPhase("discover", func() (map[string]any, error) {
			report.Candidates = p.discover(webCtx, addr)
			return map[string]any{"candidates": len(report.Candidates)}, nil
		})
		trackPhase("extract", func() (map[string]any, error) {
			listing, sources = p.extract(webCtx, addr, report.Candidates, log)
			return map[string]any{"attempted": len(sources), "found": !listing.IsAbsent()}, nil
		})
		cancel()
	} else {
		log.Info("pipeline: web fetch disabled, using open data and estimates only")
		skipPhase("discover", "web fetch disabled")
		skipPhase("extract", "web fetch disabled")
	}

	structured := model.FieldSet{}
	if !listing.IsAbsent() {
		structured = normalize.Structured(listing)
	}

	if p.deps.OpenData != nil {
		trackPhase("open_data", func() (map[string]any, error) {
			rec, err := resilience.Execute(ctx, p.deps.Breaker, func(ctx context.Context) (*model.OpenDataRecord, error) {
				return p.deps.OpenData.Lookup(ctx, addr)
			})
			if err != nil {
				return nil, err
			}
			report.OpenData = rec
			if rec == nil {
				return map[string]any{"found": false}, nil
			}
			return map[string]any{"found": true, "source": rec.Source}, nil
		})
	} else {
		skipPhase("open_data", "no open data source")
	}

	var landHint *float64
	if land, ok := report.OpenData.LandSqm(); ok {
		landHint = &land
	}
	heuristic := estimate.Heuristics(addr, landHint)

	trackPhase("fuse", func() (map[string]any, error) {
		res := p.deps.Executor.Run(waterfall.Inputs{
			Address:    addr,
			Structured: structured,
			OpenData:   report.OpenData,
			Heuristic:  heuristic,
			Sources:    sources,
		})
		report.Facts = res.Facts
		report.Resolutions = res.Resolutions
		return nil, nil
	})

	report.Duration = p.now().Sub(report.StartedAt)
	log.Info("pipeline: run complete",
		zap.Int("candidates", len(report.Candidates)),
		zap.Int("sources", len(report.Facts.Sources)),
		zap.Bool("structured", len(structured) > 0),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (p *Pipeline) budget(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.opts.Budget > 0 {
		return context.WithTimeout(ctx, p.opts.Budget)
	}
	return context.WithCancel(ctx)
}

func (p *Pipeline) discover(ctx context.Context, addr model.ResolvedAddress) []string {
	urls := p.deps.Discoverer.FindCandidates(ctx, addr)
	if len(urls) > p.opts.MaxCandidates {
		urls = urls[:p.opts.MaxCandidates]
	}
	if urls == nil {
		urls = []string{}
	}
	return urls
}

// extract tries candidates strictly in order and stops at the first one
// yielding a listing object or when ctx is done. Every attempt is logged
// in the returned source trail.
func (p *Pipeline) extract(
	ctx context.Context,
	addr model.ResolvedAddress,
	urls []string,
	log *zap.Logger,
) (jsonld.Node, []model.SourceAnnotation) {
	var sources []model.SourceAnnotation
	for _, u := range urls {
		if ctx.Err() != nil {
			log.Info("pipeline: run budget exhausted", zap.Int("remaining", len(urls)-len(sources)))
			break
		}

		res := p.deps.Extractor.Extract(ctx, u)
		ann := p.annotate(addr, res)
		sources = append(sources, ann)
		log.Debug("pipeline: candidate extracted",
			zap.String("url", u),
			zap.String("outcome", string(res.Outcome())),
			zap.Float64("address_match", ann.AddressMatch),
		)
		if res.Found() {
			return res.Data, sources
		}
	}
	return jsonld.Absent, sources
}

func (p *Pipeline) annotate(addr model.ResolvedAddress, res *scrape.Result) model.SourceAnnotation {
	ann := model.SourceAnnotation{
		URL:       res.URL,
		Robots:    model.RobotsAllowed,
		Fetched:   res.Fetched,
		Found:     res.Found(),
		FetchedAt: res.At,
	}
	switch res.Outcome() {
	case scrape.OutcomeDisallowed:
		ann.Robots = model.RobotsDisallowed
	case scrape.OutcomeFetchFailed:
		ann.Note = failureNote(res)
		if res.Block != scrape.BlockNone {
			ann.Note += ", blocked: " + string(res.Block)
		}
	case scrape.OutcomeNoData:
		if res.Block != scrape.BlockNone {
			ann.Note = "blocked: " + string(res.Block)
		}
	case scrape.OutcomeFound:
		ann.AddressMatch = addressMatch(addr, blockAddress(res.Data))
		if p.opts.AddressMatchThreshold > 0 && ann.AddressMatch < p.opts.AddressMatchThreshold {
			ann.Note = "address mismatch"
		}
	}
	return ann
}

func failureNote(res *scrape.Result) string {
	var fe *fetcher.FetchError
	switch {
	case res.StatusCode != 0:
		return fmt.Sprintf("status %d", res.StatusCode)
	case errors.As(res.Err, &fe) && fe.StatusCode != 0:
		return fmt.Sprintf("status %d", fe.StatusCode)
	case errors.Is(res.Err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "fetch failed"
	}
}
