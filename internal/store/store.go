// Package store is the run ledger: one row per extract invocation and one
// per source processed in it.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = eris.New("run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status       model.RunStatus `json:"status,omitempty"`
	Site         string          `json:"site,omitempty"`
	StartedAfter time.Time       `json:"started_after,omitempty"`
	Limit        int             `json:"limit,omitempty"`
	Offset       int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	CreateRun(ctx context.Context) (*model.Run, error)
	RecordSource(ctx context.Context, runID string, sr model.SourceRun) error
	FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)
	ListSourceRuns(ctx context.Context, since time.Time) ([]model.SourceRun, error)

	Migrate(ctx context.Context) error
	Close() error
}
