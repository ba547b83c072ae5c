package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/quote-cli/internal/resilience"
)

// DefaultUserAgent is sent with every quote request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.36"

const defaultMaxBodyBytes = 8 << 20

// Options configures the HTTP fetcher.
type Options struct {
	UserAgent string
	// Timeout bounds a single attempt, including reading the body.
	Timeout time.Duration
	Retry   resilience.RetryConfig
	// RatePerSec paces requests per host. 0 disables pacing.
	RatePerSec   float64
	MaxBodyBytes int64
	// Transport overrides the default pooled transport (tests).
	Transport http.RoundTripper
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive limiter starting at initialRate.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = min(a.currentRate*1.2, a.maxRate)
	a.limiter.SetLimit(a.currentRate)
}

// OnRateLimit halves the rate, down to initial/4.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.currentRate = max(a.currentRate*0.5, a.minRate)
	a.limiter.SetLimit(a.currentRate)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// HTTPFetcher implements Fetcher with per-attempt timeouts, bounded retry of
// transient failures and optional per-host pacing.
type HTTPFetcher struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewHTTPFetcher creates an HTTPFetcher with the given options.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 10,
			MaxConnsPerHost:     20,
			IdleConnTimeout:     90 * time.Second,
		}
	}
	return &HTTPFetcher{
		client:   &http.Client{Transport: transport},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the host's limiter, creating it on first use. Nil when
// pacing is disabled.
func (f *HTTPFetcher) limiterFor(rawURL string) *AdaptiveLimiter {
	if f.opts.RatePerSec <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	lim, ok := f.limiters[u.Host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(f.opts.RatePerSec), 1)
		f.limiters[u.Host] = lim
	}
	return lim
}

// Get fetches rawURL, retrying network timeouts, resets and 408/429/5xx
// responses according to the retry policy.
func (f *HTTPFetcher) Get(ctx context.Context, rawURL string) (*Response, error) {
	cfg := f.opts.Retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger("fetch", zap.String("url", rawURL))
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*Response, error) {
		return f.attempt(ctx, rawURL)
	})
}

func (f *HTTPFetcher) attempt(ctx context.Context, rawURL string) (*Response, error) {
	lim := f.limiterFor(rawURL)
	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}
	}

	ctx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: create request")
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.opts.MaxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusTooManyRequests && lim != nil {
			lim.OnRateLimit()
			zap.L().Warn("rate limited (429), reducing rate",
				zap.String("host", req.URL.Host),
				zap.Float64("new_rate", float64(lim.Limit())),
			)
		}
		statusErr := &StatusError{
			StatusCode: resp.StatusCode,
			URL:        rawURL,
			Block:      DetectBlock(resp.StatusCode, resp.Header, body),
		}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) && statusErr.Block == BlockNone {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}

	if lim != nil {
		lim.OnSuccess()
	}

	contentType := resp.Header.Get("Content-Type")
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        decodeBody(body, contentType),
	}, nil
}

// AsStatusError extracts a *StatusError from err.
func AsStatusError(err error) (*StatusError, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
