package model

import "time"

// RunStatus is the lifecycle state of one extract invocation.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// SourceStatus is the outcome of processing a single source within a run.
type SourceStatus string

const (
	// SourceStatusWritten means a snapshot was persisted (possibly with zero rows).
	SourceStatusWritten SourceStatus = "written"
	// SourceStatusSkipped means the source was aborted before persistence.
	SourceStatusSkipped SourceStatus = "skipped"
	// SourceStatusFailed means extraction ran but the snapshot write failed.
	SourceStatusFailed SourceStatus = "failed"
)

// Run is a ledger entry for one extract invocation.
type Run struct {
	ID         string      `json:"id"`
	Status     RunStatus   `json:"status"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
	Sources    []SourceRun `json:"sources,omitempty"`
}

// SourceRun records what happened to one source during a run.
type SourceRun struct {
	Site         string         `json:"site"`
	Status       SourceStatus   `json:"status"`
	Instruments  int            `json:"instruments"`
	Quotes       int            `json:"quotes"`
	Failures     map[string]int `json:"failures,omitempty"`
	SnapshotPath string         `json:"snapshot_path,omitempty"`
	Error        string         `json:"error,omitempty"`
	StartedAt    time.Time      `json:"started_at"`
	Duration     time.Duration  `json:"duration"`
}

// FailureCount sums the per-kind failure counters.
func (s SourceRun) FailureCount() int {
	n := 0
	for _, c := range s.Failures {
		n += c
	}
	return n
}
