// Package fetcher retrieves quote pages over HTTP.
package fetcher

import (
	"context"
	"fmt"
)

// Fetcher retrieves the body of a quote page.
type Fetcher interface {
	// Get issues a GET for url. A non-2xx status is returned as *StatusError.
	Get(ctx context.Context, url string) (*Response, error)
}

// Response is a successful (2xx) page fetch. Body is decoded to UTF-8 when
// the Content-Type names another charset.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// StatusError reports a non-2xx response.
type StatusError struct {
	StatusCode int
	URL        string
	Block      BlockType
}

func (e *StatusError) Error() string {
	if e.Block != BlockNone {
		return fmt.Sprintf("http %d from %s (blocked: %s)", e.StatusCode, e.URL, e.Block)
	}
	return fmt.Sprintf("http %d from %s", e.StatusCode, e.URL)
}
