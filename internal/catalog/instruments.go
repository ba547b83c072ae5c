package catalog

import (
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/model"
)

// InstrumentShape accepts isin, name and ignores any trailing fields.
var InstrumentShape = Shape[model.Instrument]{
	MinFields: 2,
	Build: func(f []string) (model.Instrument, error) {
		if f[0] == "" {
			return model.Instrument{}, eris.New("empty isin")
		}
		if f[1] == "" {
			return model.Instrument{}, eris.New("empty name")
		}
		return model.Instrument{ISIN: f[0], Name: f[1]}, nil
	},
}

// ParseInstruments parses an instrument catalog from r.
func ParseInstruments(name string, r io.Reader) ([]model.Instrument, []Diagnostic, error) {
	return Parse(name, r, InstrumentShape)
}

// InstrumentsPath returns the catalog path for a site: <prefix><site>.txt.
func InstrumentsPath(prefix, site string) string {
	return filepath.FromSlash(prefix + site + ".txt")
}

// LoadInstruments parses the instrument catalog at path.
func LoadInstruments(path string) ([]model.Instrument, []Diagnostic, error) {
	return parseFile(path, InstrumentShape)
}
