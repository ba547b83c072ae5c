package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/store"
)

// HealthSnapshot holds a point-in-time view of extraction health.
type HealthSnapshot struct {
	// Runs within the lookback window.
	RunsTotal    int `json:"runs_total"`
	RunsComplete int `json:"runs_complete"`
	RunsFailed   int `json:"runs_failed"`
	RunsRunning  int `json:"runs_running"`

	// Sources within the lookback window.
	SourcesWritten int `json:"sources_written"`
	SourcesSkipped int `json:"sources_skipped"`
	SourcesFailed  int `json:"sources_failed"`

	// Instruments within the lookback window.
	Instruments     int     `json:"instruments"`
	Quotes          int     `json:"quotes"`
	InstrumentFails int     `json:"instrument_failures"`
	FailureRate     float64 `json:"failure_rate"`

	// Sites whose latest source run did not write a snapshot.
	StaleSites []string `json:"stale_sites,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister abstracts the ledger reads the collector needs.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	ListSourceRuns(ctx context.Context, since time.Time) ([]model.SourceRun, error)
}

// Collector gathers health metrics from the run ledger.
type Collector struct {
	store RunLister
}

// NewCollector creates a new health collector.
func NewCollector(st RunLister) *Collector {
	return &Collector{store: st}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*HealthSnapshot, error) {
	now := time.Now().UTC()
	snap := &HealthSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	runs, err := c.store.ListRuns(ctx, store.RunFilter{StartedAfter: cutoff, Limit: 10000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	snap.RunsTotal = len(runs)
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}
	}

	sources, err := c.store.ListSourceRuns(ctx, cutoff)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list source runs")
	}

	// Ordered oldest first, so the map ends up holding each site's latest.
	latest := map[string]model.SourceStatus{}
	var order []string
	for _, sr := range sources {
		switch sr.Status {
		case model.SourceStatusWritten:
			snap.SourcesWritten++
		case model.SourceStatusSkipped:
			snap.SourcesSkipped++
		case model.SourceStatusFailed:
			snap.SourcesFailed++
		}
		snap.Instruments += sr.Instruments
		snap.Quotes += sr.Quotes
		snap.InstrumentFails += sr.FailureCount()

		if _, seen := latest[sr.Site]; !seen {
			order = append(order, sr.Site)
		}
		latest[sr.Site] = sr.Status
	}
	for _, site := range order {
		if latest[site] != model.SourceStatusWritten {
			snap.StaleSites = append(snap.StaleSites, site)
		}
	}

	if snap.Instruments > 0 {
		snap.FailureRate = float64(snap.InstrumentFails) / float64(snap.Instruments)
	}
	return snap, nil
}
