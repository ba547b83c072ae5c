package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/quote-cli/internal/resilience"
)

func newTestFetcher(attempts int) *HTTPFetcher {
	return NewHTTPFetcher(Options{
		UserAgent: "test-agent",
		Timeout:   2 * time.Second,
		Retry: resilience.RetryConfig{
			MaxAttempts:    attempts,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		},
	})
}

func TestGet_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "/quote/IT0001", r.URL.Path)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<span>12,50</span>"))
	}))
	defer srv.Close()

	resp, err := newTestFetcher(1).Get(context.Background(), srv.URL+"/quote/IT0001")
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "text/html", resp.ContentType)
	assert.Equal(t, "<span>12,50</span>", string(resp.Body))
}

func TestGet_DefaultUserAgent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(Options{}).Get(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestGet_NotFoundNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Get(context.Background(), srv.URL+"/x")
	require.Error(t, err)

	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, 404, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, resilience.IsTransient(err))
}

func TestGet_RetriesServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	resp, err := newTestFetcher(3).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_RetriesExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(2).Get(context.Background(), srv.URL)
	require.Error(t, err)
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, 503, se.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGet_BlockedNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Header().Set("cf-ray", "abc123")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestFetcher(3).Get(context.Background(), srv.URL)
	se, ok := AsStatusError(err)
	require.True(t, ok)
	assert.Equal(t, BlockCloudflare, se.Block)
	assert.Contains(t, se.Error(), "blocked: cloudflare")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_AttemptTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewHTTPFetcher(Options{
		Timeout: 50 * time.Millisecond,
		Retry:   resilience.RetryConfig{MaxAttempts: 1},
	})
	start := time.Now()
	_, err := f.Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
	assert.Less(t, time.Since(start), time.Second)
}

func TestGet_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(3).Get(ctx, srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestGet_InvalidURL(t *testing.T) {
	_, err := newTestFetcher(3).Get(context.Background(), "://bad url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create request")
}

func TestGet_DecodesCharset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
		_, _ = w.Write([]byte{'1', '2', ',', '5', '0', ' ', 0xA4}) // 0xA4 is ¤ in latin-1
	}))
	defer srv.Close()

	resp, err := newTestFetcher(1).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "12,50 ¤", string(resp.Body))
}

func TestGet_BodyLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{MaxBodyBytes: 4, Retry: resilience.RetryConfig{MaxAttempts: 1}})
	resp, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(resp.Body))
}

func TestGet_429ReducesRate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(Options{
		RatePerSec: 100,
		Retry:      resilience.RetryConfig{MaxAttempts: 2, InitialBackoff: time.Millisecond},
	})
	_, err := f.Get(context.Background(), srv.URL)
	require.NoError(t, err)

	lim := f.limiterFor(srv.URL)
	require.NotNil(t, lim)
	// halved to 50 on 429, then +20% on success
	assert.InDelta(t, 60.0, float64(lim.Limit()), 0.01)
}

func TestLimiterFor(t *testing.T) {
	off := NewHTTPFetcher(Options{})
	assert.Nil(t, off.limiterFor("http://example.com/a"))

	on := NewHTTPFetcher(Options{RatePerSec: 5})
	a := on.limiterFor("http://example.com/a")
	b := on.limiterFor("http://example.com/b")
	c := on.limiterFor("http://other.com/a")
	require.NotNil(t, a)
	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Nil(t, on.limiterFor("://bad"))
}

func TestNewHTTPFetcher_Defaults(t *testing.T) {
	f := NewHTTPFetcher(Options{})
	assert.Equal(t, 30*time.Second, f.opts.Timeout)
	assert.Equal(t, DefaultUserAgent, f.opts.UserAgent)
	assert.Equal(t, int64(defaultMaxBodyBytes), f.opts.MaxBodyBytes)

	tr, ok := f.client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 10, tr.MaxIdleConnsPerHost)
	assert.Equal(t, 20, tr.MaxConnsPerHost)
}

func TestAdaptiveLimiter_OnSuccessCapsAt2x(t *testing.T) {
	a := NewAdaptiveLimiter(10, 1)
	for i := 0; i < 20; i++ {
		a.OnSuccess()
	}
	assert.Equal(t, rate.Limit(20), a.Limit())
}

func TestAdaptiveLimiter_OnRateLimitFloorsAtQuarter(t *testing.T) {
	a := NewAdaptiveLimiter(10, 1)
	a.OnRateLimit()
	assert.Equal(t, rate.Limit(5), a.Limit())
	for i := 0; i < 10; i++ {
		a.OnRateLimit()
	}
	assert.Equal(t, rate.Limit(2.5), a.Limit())
}

func TestAdaptiveLimiter_WaitContextCancelled(t *testing.T) {
	a := NewAdaptiveLimiter(0.001, 1)
	require.NoError(t, a.Wait(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, a.Wait(ctx))
}
