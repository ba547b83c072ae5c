// Package extract resolves a site to the strategy that pulls its ask price
// out of a fetched page. Sites are entries in a lookup table; adding one is a
// matter of registering a locator, not writing new control flow.
package extract

import (
	"regexp"
	"sort"

	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

var (
	// ErrUnknownSite means no strategy is registered for the site.
	ErrUnknownSite = eris.New("unknown site")
	// ErrUnknownExtractor means the extractor tag is not one of the known
	// kinds, or is not the kind registered for the site.
	ErrUnknownExtractor = eris.New("unknown extractor")
	// ErrPriceElementNotFound means a selector strategy matched no element.
	ErrPriceElementNotFound = eris.New("price element not found")
	// ErrPricePatternNotFound means a pattern strategy matched nothing.
	ErrPricePatternNotFound = eris.New("price pattern not found")
)

// Extractor pulls a normalized ask price out of a response body.
type Extractor func(body []byte) (string, error)

// Strategy is one registry entry: the kind of extraction and its locator.
type Strategy struct {
	Site    string              `json:"site" yaml:"site"`
	Kind    model.ExtractorKind `json:"kind" yaml:"kind"`
	Locator string              `json:"locator" yaml:"locator"`

	selector cascadia.Selector
	pattern  *regexp.Regexp
}

// Extractor binds the strategy's compiled locator into an Extractor.
func (s Strategy) Extractor() Extractor {
	switch s.Kind {
	case model.ExtractorSelector:
		return func(body []byte) (string, error) { return bySelector(body, s.selector) }
	default:
		return func(body []byte) (string, error) { return byPattern(body, s.pattern) }
	}
}

// Registry maps site identifiers to strategies.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// builtins are the sites shipped with the binary.
var builtins = []Strategy{
	{Site: "marex", Kind: model.ExtractorSelector, Locator: "#product-ask-price"},
	{Site: "bnp", Kind: model.ExtractorSelector, Locator: `span[data-field="ask"]`},
	{Site: "vontobel", Kind: model.ExtractorPattern, Locator: `"ask":[0-9]+\.?[0-9]*,`},
}

// DefaultRegistry returns a registry holding the built-in sites.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, s := range builtins {
		if err := r.Register(s.Site, s.Kind, s.Locator); err != nil {
			panic(err)
		}
	}
	return r
}

// Register compiles the locator and adds or replaces the entry for site.
func (r *Registry) Register(site string, kind model.ExtractorKind, locator string) error {
	if !model.ValidSite(site) {
		return eris.Errorf("extract: invalid site %q", site)
	}
	k, ok := model.ParseExtractorKind(string(kind))
	if !ok {
		return eris.Wrapf(ErrUnknownExtractor, "extract: register %s with kind %q", site, kind)
	}
	if locator == "" {
		return eris.Errorf("extract: empty locator for %s", site)
	}

	s := Strategy{Site: site, Kind: k, Locator: locator}
	switch k {
	case model.ExtractorSelector:
		sel, err := cascadia.Compile(locator)
		if err != nil {
			return eris.Wrapf(err, "extract: compile selector for %s", site)
		}
		s.selector = sel
	case model.ExtractorPattern:
		re, err := regexp.Compile(locator)
		if err != nil {
			return eris.Wrapf(err, "extract: compile pattern for %s", site)
		}
		s.pattern = re
	}

	r.strategies[site] = s
	return nil
}

// Lookup returns the strategy registered for site.
func (r *Registry) Lookup(site string) (Strategy, bool) {
	s, ok := r.strategies[site]
	return s, ok
}

// Resolve returns the extractor for a (site, kind) pair.
func (r *Registry) Resolve(site string, kind model.ExtractorKind) (Extractor, error) {
	s, ok := r.strategies[site]
	if !ok {
		return nil, eris.Wrapf(ErrUnknownSite, "extract: site %q", site)
	}
	k, ok := model.ParseExtractorKind(string(kind))
	if !ok || k != s.Kind {
		return nil, eris.Wrapf(ErrUnknownExtractor, "extract: site %q registered as %s, catalog says %q", site, s.Kind, kind)
	}
	return s.Extractor(), nil
}

// Validate checks that a source resolves to a strategy. It does no I/O.
func (r *Registry) Validate(src model.Source) error {
	_, err := r.Resolve(src.Site, src.Extractor)
	return err
}

// Sites returns the registered site keys in lexical order.
func (r *Registry) Sites() []string {
	out := make([]string, 0, len(r.strategies))
	for site := range r.strategies {
		out = append(out, site)
	}
	sort.Strings(out)
	return out
}
