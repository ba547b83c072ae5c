// Package pipeline runs quote extraction: per-instrument workers, the
// per-source orchestrator and the run driver.
package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/extract"
	"github.com/sells-group/quote-cli/internal/fetcher"
	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/price"
)

// Defaults applied to every Quote; none of the sources expose a bid.
const (
	DefaultBid      = "0"
	DefaultCurrency = "EUR"
)

// Worker fetches one instrument's page and extracts its ask price.
type Worker struct {
	fetcher  fetcher.Fetcher
	bid      string
	currency string
}

// NewWorker creates a Worker. Empty bid or currency fall back to the defaults.
func NewWorker(f fetcher.Fetcher, bid, currency string) *Worker {
	if bid == "" {
		bid = DefaultBid
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	return &Worker{fetcher: f, bid: bid, currency: currency}
}

// Extract produces a Quote for inst, or an *ItemError. Failures are logged
// with site and ISIN.
func (w *Worker) Extract(ctx context.Context, src model.Source, ex extract.Extractor, inst model.Instrument) (model.Quote, error) {
	log := zap.L().With(zap.String("site", src.Site), zap.String("isin", inst.ISIN))
	target := src.URLFor(inst.ISIN)

	resp, err := w.fetcher.Get(ctx, target)
	if err != nil {
		ie := &ItemError{Kind: ErrFetchFailed, Site: src.Site, ISIN: inst.ISIN, Err: err}
		if se, ok := fetcher.AsStatusError(err); ok {
			ie.StatusCode = se.StatusCode
		}
		log.Warn("fetch failed", zap.String("url", target), zap.Int("status", ie.StatusCode), zap.Error(err))
		return model.Quote{}, ie
	}

	ask, err := ex(resp.Body)
	if err == nil && !price.IsNumeric(ask) {
		err = eris.Errorf("extracted value %q is not a number", ask)
	}
	if err != nil {
		log.Warn("extraction failed", zap.Error(err))
		return model.Quote{}, &ItemError{Kind: ErrExtractionFailed, Site: src.Site, ISIN: inst.ISIN, Err: err}
	}

	log.Debug("quote extracted", zap.String("ask", ask))
	return model.Quote{
		ISIN:     inst.ISIN,
		Name:     inst.Name,
		Ask:      ask,
		Bid:      w.bid,
		Currency: w.currency,
	}, nil
}
