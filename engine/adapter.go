// Package engine binds job parameters onto the external scraping engine.
//
// A job fans out into one engine invocation per category and language for
// the chosen country. Each invocation is recorded as a run in the results
// store. A failing combination is logged and skipped; the job fails only
// when every combination fails.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/semver/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/scrapstudio/am"
	"github.com/teranos/scrapstudio/errors"
	"github.com/teranos/scrapstudio/export"
	"github.com/teranos/scrapstudio/jobs"
	"github.com/teranos/scrapstudio/logger"
	"github.com/teranos/scrapstudio/results"
)

// Request is one engine invocation keyed by the engine's own field names
type Request map[string]any

// Runner invokes the engine once
type Runner interface {
	Scrape(ctx context.Context, req Request) ([]export.Record, error)
}

// RunnerFunc adapts a function to Runner
type RunnerFunc func(ctx context.Context, req Request) ([]export.Record, error)

// Scrape calls f
func (f RunnerFunc) Scrape(ctx context.Context, req Request) ([]export.Record, error) {
	return f(ctx, req)
}

// ResultStore is where combos are recorded
type ResultStore interface {
	StartRun(ctx context.Context, spec results.RunSpec) (int64, error)
	SaveResults(ctx context.Context, runID int64, spec results.RunSpec, records []export.Record) (int, error)
	FinishRun(ctx context.Context, runID int64, runErr error) (results.Run, error)
	AllLanguages(ctx context.Context) []string
}

// Parameter keys understood by the binding
const (
	ParamCountry  = "country"
	ParamCategory = "category"
	ParamLanguage = "language"
	ParamKeywords = "keywords"
)

// Combo is one engine invocation of a job
type Combo struct {
	Country  string
	Category string
	Language string
	Keywords string
}

// Adapter implements jobs.Engine on top of a Runner
type Adapter struct {
	runner     Runner
	store      ResultStore
	names      map[string]string
	constraint *semver.Constraints
	delay      time.Duration
	logger     *zap.SugaredLogger
}

var _ jobs.Engine = (*Adapter)(nil)

// NewAdapter builds an adapter from the engine section of am.toml
func NewAdapter(runner Runner, store ResultStore, cfg am.EngineConfig, log *zap.SugaredLogger) (*Adapter, error) {
	constraintText := cfg.ParamsVersion
	if constraintText == "" {
		constraintText = "^1"
	}
	constraint, err := semver.NewConstraint(constraintText)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid engine.params_version %q", constraintText)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	names := map[string]string{
		ParamCountry:  ParamCountry,
		ParamCategory: "profession",
		ParamLanguage: ParamLanguage,
		ParamKeywords: ParamKeywords,
	}
	for k, v := range cfg.ParamNames {
		if _, ok := names[k]; !ok {
			return nil, errors.Newf("unknown engine parameter %q in engine.param_names", k)
		}
		if v != "" {
			names[k] = v
		}
	}

	return &Adapter{
		runner:     runner,
		store:      store,
		names:      names,
		constraint: constraint,
		delay:      time.Duration(cfg.ComboDelayMS) * time.Millisecond,
		logger:     log,
	}, nil
}

// Bind maps a combo onto the engine's field names
func (a *Adapter) Bind(c Combo) Request {
	return Request{
		a.names[ParamCountry]:  c.Country,
		a.names[ParamCategory]: c.Category,
		a.names[ParamLanguage]: c.Language,
		a.names[ParamKeywords]: c.Keywords,
	}
}

// Combos expands params into invocations, categories outermost
func (a *Adapter) Combos(ctx context.Context, params jobs.Parameters) []Combo {
	languages := params.Languages
	if params.WantsAllLanguages() {
		languages = a.store.AllLanguages(ctx)
	}

	combos := make([]Combo, 0, len(params.Categories)*len(languages))
	for _, category := range params.Categories {
		for _, language := range languages {
			combos = append(combos, Combo{
				Country:  params.Country,
				Category: category,
				Language: language,
				Keywords: params.Keywords,
			})
		}
	}
	return combos
}

// Run executes every combo of params
func (a *Adapter) Run(ctx context.Context, params jobs.Parameters, report jobs.Reporter) error {
	log := logger.FromContext(ctx, a.logger)

	v, err := semver.NewVersion(params.Version)
	if err != nil {
		return errors.Wrapf(errors.ErrInvalidParameters, "parameters version %q", params.Version)
	}
	if !a.constraint.Check(v) {
		return errors.WithHintf(
			errors.WrapEngineFault(errors.Newf("parameters version %s", v), "engine does not accept"),
			"the engine accepts %s; update engine.params_version or the engine", a.constraint)
	}

	combos := a.Combos(ctx, params)
	if len(combos) == 0 {
		return errors.Wrap(errors.ErrInvalidParameters, "no category and language combination to run")
	}

	limit := rate.Inf
	if a.delay > 0 {
		limit = rate.Every(a.delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	report.Progress(0, len(combos))
	report.Logf("Starting %d combination(s) for %s", len(combos), params.Country)

	var failed int
	var lastErr error
	for i, combo := range combos {
		if err := limiter.Wait(ctx); err != nil {
			return errors.Wrapf(err, "stopped after %d of %d combinations", i, len(combos))
		}

		report.Logf("▶ %s / %s / %s", combo.Category, combo.Country, combo.Language)
		saved, err := a.runCombo(ctx, combo)
		if err != nil {
			if ctx.Err() != nil {
				return errors.Wrapf(ctx.Err(), "stopped after %d of %d combinations", i, len(combos))
			}
			failed++
			lastErr = err
			report.Logf("✗ %s / %s: %s", combo.Category, combo.Language, jobs.SanitizeError(err))
			log.Warnw("Combination failed",
				logger.FieldCategory, combo.Category,
				logger.FieldLanguage, combo.Language,
				logger.FieldError, err)
		} else {
			report.Logf("✓ %s / %s: %d saved", combo.Category, combo.Language, saved)
		}
		report.Progress(i+1, len(combos))
	}

	if failed == len(combos) {
		return errors.WrapEngineFault(lastErr, fmt.Sprintf("all %d combination(s) failed", failed))
	}
	report.Logf("Finished: %d of %d combination(s) succeeded", len(combos)-failed, len(combos))
	return nil
}

// runCombo records one invocation as a run and stores what it returned
func (a *Adapter) runCombo(ctx context.Context, c Combo) (int, error) {
	spec := results.RunSpec{
		JobID:      logger.JobIDFromContext(ctx),
		Profession: c.Category,
		Country:    c.Country,
		Language:   c.Language,
		Keywords:   c.Keywords,
	}

	runID, err := a.store.StartRun(ctx, spec)
	if err != nil {
		return 0, err
	}

	saved, scrapeErr := a.scrape(ctx, runID, spec, c)

	// Recording the outcome must survive a cancelled job context
	finishCtx := context.WithoutCancel(ctx)
	if _, err := a.store.FinishRun(finishCtx, runID, scrapeErr); err != nil {
		a.logger.Warnw("Failed to finish run", logger.FieldRunID, runID, logger.FieldError, err)
	}
	return saved, scrapeErr
}

func (a *Adapter) scrape(ctx context.Context, runID int64, spec results.RunSpec, c Combo) (int, error) {
	records, err := a.runner.Scrape(ctx, a.Bind(c))
	if err != nil {
		return 0, err
	}
	saved, err := a.store.SaveResults(ctx, runID, spec, records)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to store %d record(s)", len(records))
	}
	logger.FromContext(ctx, a.logger).Infow("Combination stored",
		logger.FieldRunID, runID,
		logger.FieldCategory, c.Category,
		logger.FieldLanguage, c.Language,
		logger.FieldTotalCount, len(records),
		logger.FieldCount, saved)
	return saved, nil
}
