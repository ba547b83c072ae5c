package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
)

var bnpSource = model.Source{
	Site:        "bnp",
	ContentType: "html",
	Extractor:   model.ExtractorSelector,
	BaseURL:     "https://www.bnp.example/quote/",
}

func bnpExtractor(t *testing.T) extract.Extractor {
	t.Helper()
	ex, err := extract.DefaultRegistry().Resolve("bnp", model.ExtractorSelector)
	require.NoError(t, err)
	return ex
}

func TestWorker_Success(t *testing.T) {
	f := new(mockFetcher)
	f.On("Get", mock.Anything, "https://www.bnp.example/quote/IT0001").
		Return(htmlResponse(`<div><span data-field="ask"> 12,50 </span></div>`), nil)

	w := NewWorker(f, "", "")
	q, err := w.Extract(context.Background(), bnpSource, bnpExtractor(t), model.Instrument{ISIN: "IT0001", Name: "Bond A"})
	require.NoError(t, err)
	assert.Equal(t, model.Quote{ISIN: "IT0001", Name: "Bond A", Ask: "12.50", Bid: "0", Currency: "EUR"}, q)
	f.AssertExpectations(t)
}

func TestWorker_CustomDefaults(t *testing.T) {
	f := new(mockFetcher)
	f.On("Get", mock.Anything, mock.Anything).
		Return(htmlResponse(`<span data-field="ask">1.234,5</span>`), nil)

	w := NewWorker(f, "n/a", "CHF")
	q, err := w.Extract(context.Background(), bnpSource, bnpExtractor(t), model.Instrument{ISIN: "CH01", Name: "Note"})
	require.NoError(t, err)
	assert.Equal(t, "1234.5", q.Ask)
	assert.Equal(t, "n/a", q.Bid)
	assert.Equal(t, "CHF", q.Currency)
}

func TestWorker_StatusFailure(t *testing.T) {
	f := new(mockFetcher)
	f.On("Get", mock.Anything, mock.Anything).
		Return(nil, &fetcher.StatusError{StatusCode: 404, URL: "u"})

	_, err := NewWorker(f, "", "").Extract(context.Background(), bnpSource, bnpExtractor(t), model.Instrument{ISIN: "IT0001", Name: "A"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.NotErrorIs(t, err, ErrExtractionFailed)

	var ie *ItemError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 404, ie.StatusCode)
	assert.Equal(t, "bnp", ie.Site)
	assert.Equal(t, "IT0001", ie.ISIN)
	assert.Contains(t, ie.Error(), "status 404")
	assert.Equal(t, FailureFetch, FailureLabel(err))
}

func TestWorker_TransportFailure(t *testing.T) {
	f := new(mockFetcher)
	f.On("Get", mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)

	_, err := NewWorker(f, "", "").Extract(context.Background(), bnpSource, bnpExtractor(t), model.Instrument{ISIN: "IT0002", Name: "B"})
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorker_ExtractionFailure(t *testing.T) {
	f := new(mockFetcher)
	f.On("Get", mock.Anything, mock.Anything).Return(htmlResponse(`<p>no price here</p>`), nil)

	_, err := NewWorker(f, "", "").Extract(context.Background(), bnpSource, bnpExtractor(t), model.Instrument{ISIN: "IT0001", Name: "A"})
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.ErrorIs(t, err, extract.ErrPriceElementNotFound)
	assert.Equal(t, FailureExtraction, FailureLabel(err))
}

func TestWorker_NonNumericPrice(t *testing.T) {
	f := new(mockFetcher)
	f.On("Get", mock.Anything, mock.Anything).Return(htmlResponse(`<span data-field="ask">n/a</span>`), nil)

	_, err := NewWorker(f, "", "").Extract(context.Background(), bnpSource, bnpExtractor(t), model.Instrument{ISIN: "IT0001", Name: "A"})
	assert.ErrorIs(t, err, ErrExtractionFailed)
	assert.Contains(t, err.Error(), "not a number")
}

func TestFailureLabel_Other(t *testing.T) {
	assert.Equal(t, FailureOther, FailureLabel(errors.New("boom")))
}
