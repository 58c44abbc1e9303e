package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"capital-flow-lab/internal/domain"
	"capital-flow-lab/internal/features"
	"capital-flow-lab/internal/idhash"
	"capital-flow-lab/internal/merge"
	"capital-flow-lab/internal/observability"
	"capital-flow-lab/internal/reporting"
	"capital-flow-lab/internal/storage"
	"capital-flow-lab/internal/tracing"
	"capital-flow-lab/internal/verification"
)

// Runner coordinates one feature run.
// Flow: load -> filter -> build -> (verify) -> sinks -> report -> ledger
type Runner struct {
	source     Source
	engine     *features.Engine
	filter     Filter
	universe   domain.Universe
	sinks      []Sink
	runs       storage.RunStore
	reportPath string
	verify     bool

	log     *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
	newID   func() string
}

// Options for creating a Runner.
type Options struct {
	// Required
	Source Source
	Engine *features.Engine

	// Input selection
	Universe   domain.Universe // empty keeps every ticker
	Start, End time.Time       // inclusive, zero means unbounded

	// Outputs
	Sinks      []Sink
	Runs       storage.RunStore // optional run ledger
	ReportPath string           // optional coverage report
	Verify     bool             // recompute and compare before writing

	Logger  *zap.Logger
	Metrics *observability.Metrics
}

// NewRunner creates a new Runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Source == nil {
		return nil, errors.New("pipeline: source is required")
	}
	if opts.Engine == nil {
		return nil, errors.New("pipeline: engine is required")
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m := opts.Metrics
	if m == nil {
		m = observability.DefaultMetrics
	}

	return &Runner{
		source:     opts.Source,
		engine:     opts.Engine,
		filter:     Filter{Tickers: opts.Universe.Tickers(), Start: opts.Start, End: opts.End},
		universe:   opts.Universe,
		sinks:      orderSinks(opts.Sinks),
		runs:       opts.Runs,
		reportPath: opts.ReportPath,
		verify:     opts.Verify,
		log:        log,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
		newID:      uuid.NewString,
	}, nil
}

// orderSinks moves file sinks behind every other sink, keeping relative order.
// A store refresh that fails leaves the previous store table, and the file is
// only renamed into place once all stores accepted the run.
func orderSinks(sinks []Sink) []Sink {
	out := make([]Sink, 0, len(sinks))
	var files []Sink
	for _, s := range sinks {
		if _, ok := s.(*FileSink); ok {
			files = append(files, s)
			continue
		}
		out = append(out, s)
	}
	return append(out, files...)
}

// WithClock sets a custom clock function for deterministic output.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// RunResult contains results from one run.
type RunResult struct {
	RunID       string
	Fingerprint string
	PriceRows   int
	VixRows     int
	Records     []*domain.FlowFeatureRecord
	Undefined   map[string]int
	Report      *reporting.Report
}

// Run executes the full pipeline. On any failure no sink is written
// and the ledger records the run as failed.
func (r *Runner) Run(ctx context.Context) (*RunResult, error) {
	started := r.now()
	run := &domain.RunRecord{
		RunID:     r.newID(),
		StartedAt: started,
		Status:    domain.RunStatusRunning,
	}
	log := r.log.With(zap.String("run_id", run.RunID))

	ctx, span := tracing.StartSpan(ctx, "pipeline.run", attribute.String("run_id", run.RunID))
	defer span.End()
	if id := tracing.TraceID(ctx); id != "" {
		log = log.With(zap.String("trace_id", id))
	}

	if r.runs != nil {
		if err := r.runs.Insert(ctx, run); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}

	result, err := r.run(ctx, log, run)
	if err != nil {
		span.RecordError(err)
		if kind := errorKind(err); kind != "other" {
			r.metrics.RecordInputError(kind)
		}
		r.metrics.RecordRun("failed", 0, 0, nil)
		log.Error("run failed", zap.Error(err))
		r.finish(ctx, log, run, domain.RunStatusFailed, err)
		return nil, err
	}

	tickers := len(tickerSet(result.Records))
	r.metrics.RecordRun("succeeded", len(result.Records), tickers, result.Undefined)
	r.finish(ctx, log, run, domain.RunStatusSucceeded, nil)
	log.Info("run succeeded",
		zap.Int("rows", len(result.Records)),
		zap.Int("tickers", tickers),
		zap.String("fingerprint", result.Fingerprint),
		zap.Duration("elapsed", r.now().Sub(started)),
	)
	return result, nil
}

func (r *Runner) run(ctx context.Context, log *zap.Logger, run *domain.RunRecord) (*RunResult, error) {
	// Stage 1: load
	prices, vols, err := r.load(ctx, log)
	if err != nil {
		return nil, err
	}
	run.PriceRows = len(prices)
	run.VolatilityRows = len(vols)

	// Stage 2: transform
	stageStart := time.Now()
	bctx, span := tracing.StartSpan(ctx, "pipeline.build", attribute.Int("price_rows", len(prices)))
	build, err := BuildFlowFeatures(bctx, r.engine, prices, vols)
	span.End()
	r.metrics.RecordStage("build", stageStart)
	if err != nil {
		return nil, err
	}
	records := build.Frame.Records()
	run.InputFingerprint = idhash.ComputeInputFingerprint(build.Inputs.Prices, build.Inputs.Volatility, r.engine.Window())
	run.OutputRows = len(records)
	log.Info("features built",
		zap.Int("rows", len(records)),
		zap.Int("vix_matched", merge.Coverage(build.Frame)),
		zap.String("fingerprint", run.InputFingerprint),
	)

	// Stage 3: optional determinism check
	if r.verify {
		if err := r.verifyBuild(ctx, prices, vols, records); err != nil {
			return nil, err
		}
		log.Info("recomputation verified", zap.Int("rows", len(records)))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Output{
		RunID:       run.RunID,
		Fingerprint: run.InputFingerprint,
		Window:      r.engine.Window(),
		GeneratedAt: r.now(),
		Records:     records,
		Undefined:   CountUndefined(records),
	}

	// Stage 4: sinks, file sinks last
	for _, s := range r.sinks {
		stageStart := time.Now()
		sctx, span := tracing.StartSpan(ctx, "pipeline.sink."+s.Name())
		err := s.Write(sctx, out)
		span.End()
		r.metrics.RecordStage("sink_"+s.Name(), stageStart)
		if err != nil {
			return nil, fmt.Errorf("sink %s: %w", s.Name(), err)
		}
		log.Info("sink written", zap.String("sink", s.Name()), zap.Int("rows", len(records)))
	}

	// Stage 5: coverage report
	report := reporting.NewGenerator(r.universe, r.engine.Window()).WithClock(r.now).Generate(run.RunID, records)
	if r.reportPath != "" {
		if err := reporting.WriteFiles(report, r.reportPath); err != nil {
			return nil, err
		}
	}
	if !report.DataQuality.AllChecksPassed {
		log.Warn("coverage checks failed", zap.Strings("errors", report.DataQuality.IntegrityErrors))
	}

	return &RunResult{
		RunID:       run.RunID,
		Fingerprint: run.InputFingerprint,
		PriceRows:   run.PriceRows,
		VixRows:     run.VolatilityRows,
		Records:     records,
		Undefined:   out.Undefined,
		Report:      report,
	}, nil
}

func (r *Runner) load(ctx context.Context, log *zap.Logger) ([]domain.PriceRecord, []domain.VolatilityRecord, error) {
	stageStart := time.Now()
	ctx, span := tracing.StartSpan(ctx, "pipeline.load", attribute.String("source", r.source.Name()))
	defer span.End()

	prices, vols, err := r.source.Load(ctx)
	r.metrics.RecordStage("load", stageStart)
	if err != nil {
		return nil, nil, fmt.Errorf("load from %s: %w", r.source.Name(), err)
	}
	r.metrics.RecordRowsIngested(domain.TablePrices, len(prices))
	r.metrics.RecordRowsIngested(domain.TableVolatility, len(vols))

	prices = r.filter.Prices(prices)
	vols = r.filter.Volatility(vols)
	log.Info("inputs loaded",
		zap.String("source", r.source.Name()),
		zap.Int("price_rows", len(prices)),
		zap.Int("vix_rows", len(vols)),
	)
	return prices, vols, nil
}

func (r *Runner) verifyBuild(ctx context.Context, prices []domain.PriceRecord, vols []domain.VolatilityRecord, records []*domain.FlowFeatureRecord) error {
	stageStart := time.Now()
	ctx, span := tracing.StartSpan(ctx, "pipeline.verify")
	defer span.End()
	defer r.metrics.RecordStage("verify", stageStart)

	again, err := BuildFlowFeatures(ctx, r.engine, prices, vols)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	report := verification.CompareTables(records, again.Frame.Records(), verification.FloatTolerance)
	return report.Err()
}

func (r *Runner) finish(ctx context.Context, log *zap.Logger, run *domain.RunRecord, status domain.RunStatus, runErr error) {
	if r.runs == nil {
		return
	}
	finished := r.now()
	run.FinishedAt = &finished
	run.Status = status
	if runErr != nil {
		run.Error = runErr.Error()
	}
	// Finish errors are logged, not returned.
	if err := r.runs.Finish(context.WithoutCancel(ctx), run); err != nil {
		log.Error("record run finish", zap.Error(err))
	}
}

func tickerSet(records []*domain.FlowFeatureRecord) map[string]struct{} {
	set := make(map[string]struct{})
	for _, rec := range records {
		set[rec.Ticker] = struct{}{}
	}
	return set
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInputShape):
		return "input_shape"
	case errors.Is(err, domain.ErrOrderingViolation):
		return "ordering"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	}
	return "other"
}
