package catalog

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

// SourceShape accepts exactly four fields: site, content_type, extractor, base_url.
var SourceShape = Shape[model.Source]{
	MinFields: 4,
	MaxFields: 4,
	Build: func(f []string) (model.Source, error) {
		site := strings.ToLower(f[0])
		if !model.ValidSite(site) {
			return model.Source{}, eris.Errorf("invalid site %q", f[0])
		}
		if f[3] == "" {
			return model.Source{}, eris.New("empty base_url")
		}
		return model.Source{
			Site:        site,
			ContentType: f[1],
			Extractor:   model.ExtractorKind(strings.ToLower(f[2])),
			BaseURL:     f[3],
		}, nil
	},
}

// ParseSources parses a sources catalog from r.
func ParseSources(name string, r io.Reader) ([]model.Source, []Diagnostic, error) {
	return Parse(name, r, SourceShape)
}

// LoadSources parses the sources catalog at path. A file that cannot be
// opened yields ErrCatalogUnavailable.
func LoadSources(path string) ([]model.Source, []Diagnostic, error) {
	return parseFile(path, SourceShape)
}
