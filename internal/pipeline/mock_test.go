package pipeline

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
)

// --- Fetcher Mock ---

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Get(ctx context.Context, url string) (*fetcher.Response, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fetcher.Response), args.Error(1)
}

// fetchFunc adapts a function to fetcher.Fetcher.
type fetchFunc func(ctx context.Context, url string) (*fetcher.Response, error)

func (f fetchFunc) Get(ctx context.Context, url string) (*fetcher.Response, error) {
	return f(ctx, url)
}

// --- Ledger Mock ---

type mockLedger struct {
	mock.Mock
}

func (m *mockLedger) CreateRun(ctx context.Context) (*model.Run, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Run), args.Error(1)
}

func (m *mockLedger) RecordSource(ctx context.Context, runID string, sr model.SourceRun) error {
	args := m.Called(ctx, runID, sr)
	return args.Error(0)
}

func (m *mockLedger) FinishRun(ctx context.Context, runID string, status model.RunStatus, errMsg string) error {
	args := m.Called(ctx, runID, status, errMsg)
	return args.Error(0)
}

// --- Recorder Mock ---

type mockRecorder struct {
	mock.Mock
}

func (m *mockRecorder) RecordSource(sr model.SourceRun) {
	m.Called(sr)
}

func (m *mockRecorder) RecordRun(status model.RunStatus, d time.Duration) {
	m.Called(status, d)
}

func htmlResponse(body string) *fetcher.Response {
	return &fetcher.Response{StatusCode: 200, ContentType: "text/html", Body: []byte(body)}
}
