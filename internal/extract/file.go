package extract

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// File is the on-disk form of extra strategies:
//
//	strategies:
//	  - site: leonteq
//	    kind: selector
//	    locator: "td.ask"
type File struct {
	Strategies []Strategy `yaml:"strategies"`
}

// LoadFile reads a YAML strategies file and registers every entry in r,
// replacing built-ins with the same site.
func LoadFile(path string, r *Registry) (int, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return 0, eris.Wrapf(err, "extract: read strategies %s", path)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, eris.Wrapf(err, "extract: parse strategies %s", path)
	}

	for _, s := range f.Strategies {
		if err := r.Register(s.Site, s.Kind, s.Locator); err != nil {
			return 0, err
		}
	}
	return len(f.Strategies), nil
}
