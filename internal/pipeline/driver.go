package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/catalog"
	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/snapshot"
)

// Ledger records runs and per-source outcomes. Ledger errors are logged and
// never abort a run.
type Ledger interface {
	CreateRun(ctx context.Context) (*model.Run, error)
	RecordSource(ctx context.Context, runID string, sr model.SourceRun) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
}

// Recorder receives extraction metrics.
type Recorder interface {
	RecordSource(sr model.SourceRun)
	RecordRun(status model.RunStatus, d time.Duration)
}

// Config locates the catalogs and optionally restricts the run to some sites.
type Config struct {
	SourcesPath       string
	InstrumentsPrefix string
	Sites             []string
}

// Report is the result of one run.
type Report struct {
	RunID       string
	Sources     []model.SourceRun
	Diagnostics []catalog.Diagnostic
}

// Count returns the number of sources that ended in status.
func (r *Report) Count(status model.SourceStatus) int {
	n := 0
	for _, s := range r.Sources {
		if s.Status == status {
			n++
		}
	}
	return n
}

// Driver sequences a run: load sources, then for each source resolve its
// strategy, load instruments, extract and persist.
type Driver struct {
	cfg      Config
	registry *extract.Registry
	orch     *Orchestrator
	writer   *snapshot.Writer
	ledger   Ledger
	recorder Recorder
	now      func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithLedger records runs in l.
func WithLedger(l Ledger) Option { return func(d *Driver) { d.ledger = l } }

// WithRecorder reports metrics to r.
func WithRecorder(r Recorder) Option { return func(d *Driver) { d.recorder = r } }

// WithClock overrides the observation clock.
func WithClock(now func() time.Time) Option { return func(d *Driver) { d.now = now } }

// NewDriver creates a Driver.
func NewDriver(cfg Config, reg *extract.Registry, orch *Orchestrator, w *snapshot.Writer, opts ...Option) *Driver {
	d := &Driver{cfg: cfg, registry: reg, orch: orch, writer: w, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes every source once, sequentially. Only a sources catalog
// failure is returned as an error; per-source failures are reported in the
// Report.
func (d *Driver) Run(ctx context.Context) (*Report, error) {
	start := d.now()
	report := &Report{}

	if d.ledger != nil {
		run, err := d.ledger.CreateRun(ctx)
		if err != nil {
			zap.L().Warn("ledger: create run failed", zap.Error(err))
		} else {
			report.RunID = run.ID
		}
	}

	sources, diags, err := catalog.LoadSources(d.cfg.SourcesPath)
	report.Diagnostics = append(report.Diagnostics, diags...)
	if err != nil {
		d.finish(ctx, report.RunID, model.RunStatusFailed, err.Error(), start)
		return report, eris.Wrap(err, "pipeline: load sources")
	}

	sources = d.filter(sources)
	zap.L().Info("run started",
		zap.String("run_id", report.RunID),
		zap.Int("sources", len(sources)),
	)

	for _, src := range sources {
		sr, idiags := d.processSource(ctx, src)
		report.Diagnostics = append(report.Diagnostics, idiags...)
		report.Sources = append(report.Sources, sr)

		if d.ledger != nil && report.RunID != "" {
			if err := d.ledger.RecordSource(context.WithoutCancel(ctx), report.RunID, sr); err != nil {
				zap.L().Warn("ledger: record source failed", zap.String("site", sr.Site), zap.Error(err))
			}
		}
		if d.recorder != nil {
			d.recorder.RecordSource(sr)
		}
	}

	d.finish(ctx, report.RunID, model.RunStatusComplete, "", start)
	zap.L().Info("run finished",
		zap.String("run_id", report.RunID),
		zap.Int("written", report.Count(model.SourceStatusWritten)),
		zap.Int("skipped", report.Count(model.SourceStatusSkipped)),
		zap.Int("failed", report.Count(model.SourceStatusFailed)),
		zap.Duration("elapsed", d.now().Sub(start)),
	)
	return report, nil
}

func (d *Driver) processSource(ctx context.Context, src model.Source) (model.SourceRun, []catalog.Diagnostic) {
	start := d.now()
	sr := model.SourceRun{Site: src.Site, StartedAt: start}
	log := zap.L().With(zap.String("site", src.Site))

	done := func(status model.SourceStatus, err error) model.SourceRun {
		sr.Status = status
		if err != nil {
			sr.Error = err.Error()
		}
		sr.Duration = d.now().Sub(start)
		return sr
	}

	if err := ctx.Err(); err != nil {
		log.Warn("source skipped: run cancelled")
		return done(model.SourceStatusSkipped, err), nil
	}

	ex, err := d.registry.Resolve(src.Site, src.Extractor)
	if err != nil {
		log.Error("source skipped: no extraction strategy",
			zap.String("extractor", string(src.Extractor)), zap.Error(err))
		return done(model.SourceStatusSkipped, err), nil
	}

	path := catalog.InstrumentsPath(d.cfg.InstrumentsPrefix, src.Site)
	instruments, diags, err := catalog.LoadInstruments(path)
	if err != nil {
		log.Error("source skipped: instrument catalog unavailable", zap.String("path", path), zap.Error(err))
		return done(model.SourceStatusSkipped, err), diags
	}
	sr.Instruments = len(instruments)

	quotes, outcome := d.orch.Run(ctx, src, ex, instruments)
	sr.Quotes = outcome.Quotes
	sr.Failures = outcome.Failures

	// An interrupted fan-out is not a complete observation; keep the last
	// published snapshot as latest.
	if err := ctx.Err(); err != nil {
		log.Warn("source skipped: run cancelled during extraction",
			zap.Int("quotes", len(quotes)), zap.Int("failures", outcome.FailureCount()))
		return done(model.SourceStatusSkipped, err), diags
	}

	out, err := d.writer.Write(src.Site, d.now(), quotes)
	if err != nil {
		log.Error("snapshot not written", zap.Int("quotes", len(quotes)), zap.Error(err))
		return done(model.SourceStatusFailed, err), diags
	}
	sr.SnapshotPath = out
	return done(model.SourceStatusWritten, nil), diags
}

func (d *Driver) filter(sources []model.Source) []model.Source {
	if len(d.cfg.Sites) == 0 {
		return sources
	}
	want := make(map[string]bool, len(d.cfg.Sites))
	for _, s := range d.cfg.Sites {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}

	var out []model.Source
	matched := make(map[string]bool, len(want))
	for _, src := range sources {
		if want[src.Site] {
			out = append(out, src)
			matched[src.Site] = true
		}
	}
	for site := range want {
		if !matched[site] {
			zap.L().Warn("requested source not in catalog", zap.String("site", site))
		}
	}
	return out
}

func (d *Driver) finish(ctx context.Context, runID string, status model.RunStatus, errMsg string, start time.Time) {
	if d.ledger != nil && runID != "" {
		if err := d.ledger.FinishRun(context.WithoutCancel(ctx), runID, status, errMsg); err != nil {
			zap.L().Warn("ledger: finish run failed", zap.String("run_id", runID), zap.Error(err))
		}
	}
	if d.recorder != nil {
		d.recorder.RecordRun(status, d.now().Sub(start))
	}
}
