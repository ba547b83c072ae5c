package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/model"
)

// DefaultStartupDelay is observed before a source's first request.
const DefaultStartupDelay = 2 * time.Second

// Outcome summarizes one source's extraction.
type Outcome struct {
	Site        string
	Instruments int
	Quotes      int
	Failures    map[string]int
}

// FailureCount returns the total number of failed instruments.
func (o Outcome) FailureCount() int {
	n := 0
	for _, c := range o.Failures {
		n += c
	}
	return n
}

// Orchestrator runs one Worker per instrument of a source.
type Orchestrator struct {
	worker       *Worker
	concurrency  int
	startupDelay time.Duration
}

// NewOrchestrator creates an Orchestrator. concurrency <= 0 means one
// goroutine per instrument; a negative delay disables the startup pause.
func NewOrchestrator(w *Worker, concurrency int, startupDelay time.Duration) *Orchestrator {
	if startupDelay < 0 {
		startupDelay = 0
	}
	return &Orchestrator{worker: w, concurrency: concurrency, startupDelay: startupDelay}
}

// Run extracts quotes for every instrument and returns the successful ones
// in completion order. It never fails: per-instrument errors are counted in
// the Outcome. All workers have finished when Run returns.
func (o *Orchestrator) Run(ctx context.Context, src model.Source, ex extract.Extractor, instruments []model.Instrument) ([]model.Quote, Outcome) {
	out := Outcome{Site: src.Site, Instruments: len(instruments), Failures: map[string]int{}}
	if len(instruments) == 0 {
		return nil, out
	}

	if o.startupDelay > 0 {
		t := time.NewTimer(o.startupDelay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}

	var (
		mu     sync.Mutex
		quotes = make([]model.Quote, 0, len(instruments))
	)

	g := new(errgroup.Group)
	if o.concurrency > 0 {
		g.SetLimit(o.concurrency)
	}
	for _, inst := range instruments {
		inst := inst
		g.Go(func() error {
			q, err := o.worker.Extract(ctx, src, ex, inst)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				out.Failures[FailureLabel(err)]++
				return nil
			}
			quotes = append(quotes, q)
			return nil
		})
	}
	_ = g.Wait()

	out.Quotes = len(quotes)
	zap.L().Info("source extracted",
		zap.String("site", src.Site),
		zap.Int("instruments", out.Instruments),
		zap.Int("quotes", out.Quotes),
		zap.Int("failures", out.FailureCount()),
	)
	return quotes, out
}
