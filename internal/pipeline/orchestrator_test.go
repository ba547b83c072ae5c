package pipeline

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
)

func instruments(n int) []model.Instrument {
	out := make([]model.Instrument, n)
	for i := range out {
		out[i] = model.Instrument{ISIN: fmt.Sprintf("IT%04d", i), Name: fmt.Sprintf("Bond %d", i)}
	}
	return out
}

func priceFetcher() fetchFunc {
	return func(_ context.Context, _ string) (*fetcher.Response, error) {
		return htmlResponse(`<span data-field="ask">10,00</span>`), nil
	}
}

func TestOrchestrator_AllSucceed(t *testing.T) {
	o := NewOrchestrator(NewWorker(priceFetcher(), "", ""), 4, 0)

	quotes, out := o.Run(context.Background(), bnpSource, bnpExtractor(t), instruments(20))
	assert.Len(t, quotes, 20)
	assert.Equal(t, 20, out.Instruments)
	assert.Equal(t, 20, out.Quotes)
	assert.Zero(t, out.FailureCount())

	seen := map[string]bool{}
	for _, q := range quotes {
		seen[q.ISIN] = true
		assert.Equal(t, "10.00", q.Ask)
	}
	assert.Len(t, seen, 20)
}

func TestOrchestrator_PartialFailure(t *testing.T) {
	f := fetchFunc(func(_ context.Context, url string) (*fetcher.Response, error) {
		switch {
		case strings.HasSuffix(url, "0"):
			return nil, &fetcher.StatusError{StatusCode: 500, URL: url}
		case strings.HasSuffix(url, "1"):
			return htmlResponse(`<p>missing</p>`), nil
		default:
			return htmlResponse(`<span data-field="ask">1,5</span>`), nil
		}
	})
	o := NewOrchestrator(NewWorker(f, "", ""), 0, 0)

	quotes, out := o.Run(context.Background(), bnpSource, bnpExtractor(t), instruments(10))
	assert.Len(t, quotes, 8)
	assert.Equal(t, 8, out.Quotes)
	assert.Equal(t, map[string]int{FailureFetch: 1, FailureExtraction: 1}, out.Failures)
	assert.Less(t, out.Quotes, out.Instruments)
}

func TestOrchestrator_RespectsConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	f := fetchFunc(func(_ context.Context, _ string) (*fetcher.Response, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return htmlResponse(`<span data-field="ask">1</span>`), nil
	})
	o := NewOrchestrator(NewWorker(f, "", ""), 3, 0)

	quotes, _ := o.Run(context.Background(), bnpSource, bnpExtractor(t), instruments(15))
	assert.Len(t, quotes, 15)
	assert.LessOrEqual(t, peak.Load(), int32(3))
}

func TestOrchestrator_StartupDelay(t *testing.T) {
	o := NewOrchestrator(NewWorker(priceFetcher(), "", ""), 2, 40*time.Millisecond)

	start := time.Now()
	_, _ = o.Run(context.Background(), bnpSource, bnpExtractor(t), instruments(2))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestOrchestrator_CancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := fetchFunc(func(ctx context.Context, _ string) (*fetcher.Response, error) {
		return nil, ctx.Err()
	})
	o := NewOrchestrator(NewWorker(f, "", ""), 2, time.Hour)

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	done := make(chan struct{})
	var out Outcome
	go func() {
		_, out = o.Run(ctx, bnpSource, bnpExtractor(t), instruments(3))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not return after cancel")
	}
	assert.Zero(t, out.Quotes)
	assert.Equal(t, 3, out.Failures[FailureFetch])
}

func TestOrchestrator_NoInstruments(t *testing.T) {
	f := new(mockFetcher)
	o := NewOrchestrator(NewWorker(f, "", ""), 2, time.Hour)

	quotes, out := o.Run(context.Background(), bnpSource, bnpExtractor(t), nil)
	require.Empty(t, quotes)
	assert.Zero(t, out.Instruments)
	assert.Empty(t, f.Calls)
}
