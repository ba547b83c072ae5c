// Package query serves read-only lookups over published snapshots.
package query

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
	"github.com/sells-group/quote-cli/internal/snapshot"
)

// ErrInvalidSource means the source key cannot name a snapshot.
var ErrInvalidSource = eris.New("invalid source")

// Service reads snapshots from one output prefix in one format.
type Service struct {
	prefix string
	format snapshot.Format
}

// NewService creates a Service over the given output prefix.
func NewService(prefix string, format snapshot.Format) *Service {
	return &Service{prefix: prefix, format: format}
}

// Rows returns the snapshot lines for source at obs, header first. A
// non-empty isin restricts the rows to that instrument.
func (s *Service) Rows(source, obs, isin string) ([]string, error) {
	if !model.ValidSite(source) {
		return nil, eris.Wrapf(ErrInvalidSource, "%q", source)
	}
	path, err := snapshot.Resolve(s.prefix, source, obs, s.format)
	if err != nil {
		return nil, err
	}
	return snapshot.ReadRows(path, s.format, isin)
}

// Observations lists the observation timestamps of source, newest first.
func (s *Service) Observations(source string) ([]string, error) {
	if !model.ValidSite(source) {
		return nil, eris.Wrapf(ErrInvalidSource, "%q", source)
	}
	obs, err := snapshot.Observations(s.prefix, source, s.format)
	if err != nil {
		return nil, err
	}
	if obs == nil {
		obs = []string{}
	}
	return obs, nil
}
