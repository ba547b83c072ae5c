package pipeline

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
)

// Per-instrument failure kinds. Match with errors.Is.
var (
	ErrFetchFailed      = eris.New("fetch failed")
	ErrExtractionFailed = eris.New("extraction failed")
)

// Failure labels used in Outcome.Failures and metrics.
const (
	FailureFetch      = "fetch"
	FailureExtraction = "extraction"
	FailureOther      = "other"
)

// ItemError is the failure of one instrument. Kind is ErrFetchFailed or
// ErrExtractionFailed; StatusCode is set for non-2xx responses.
type ItemError struct {
	Kind       error
	Site       string
	ISIN       string
	StatusCode int
	Err        error
}

func (e *ItemError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s/%s: status %d: %v", e.Kind, e.Site, e.ISIN, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %s/%s: %v", e.Kind, e.Site, e.ISIN, e.Err)
}

func (e *ItemError) Unwrap() []error { return []error{e.Kind, e.Err} }

// FailureLabel classifies err for counting.
func FailureLabel(err error) string {
	switch {
	case errors.Is(err, ErrFetchFailed):
		return FailureFetch
	case errors.Is(err, ErrExtractionFailed):
		return FailureExtraction
	default:
		return FailureOther
	}
}
