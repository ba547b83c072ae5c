// Package catalog parses the START/END delimited text catalogs that list
// sources and the instruments quoted by each source.
package catalog

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	startMarker = "-- START"
	endMarker   = "-- END"
	delimiter   = ","

	maxLineBytes = 1024 * 1024
)

// ErrCatalogUnavailable is returned when a catalog file cannot be opened or read.
var ErrCatalogUnavailable = eris.New("catalog unavailable")

// Diagnostic describes a data line that was discarded.
type Diagnostic struct {
	Catalog string `json:"catalog"`
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Reason  string `json:"reason"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s: %q", d.Catalog, d.Line, d.Reason, d.Text)
}

// Shape describes how data lines map onto one record type.
type Shape[T any] struct {
	// MinFields and MaxFields bound the accepted field count. MaxFields <= 0
	// means no upper bound.
	MinFields int
	MaxFields int
	// Build turns trimmed fields into a record. A non-nil error discards the
	// line with the error text as the diagnostic reason.
	Build func(fields []string) (T, error)
}

func (s Shape[T]) arity(n int) error {
	if n < s.MinFields {
		return eris.Errorf("expected at least %d fields, got %d", s.MinFields, n)
	}
	if s.MaxFields > 0 && n > s.MaxFields {
		if s.MinFields == s.MaxFields {
			return eris.Errorf("expected %d fields, got %d", s.MaxFields, n)
		}
		return eris.Errorf("expected at most %d fields, got %d", s.MaxFields, n)
	}
	return nil
}

// Parse reads r and returns the records found inside START/END regions, in
// file order. Lines outside any region are ignored silently. Malformed data
// lines are skipped and reported as diagnostics; they never abort parsing.
// The name identifies the catalog in diagnostics.
func Parse[T any](name string, r io.Reader, shape Shape[T]) ([]T, []Diagnostic, error) {
	var (
		records []T
		diags   []Diagnostic
		inside  bool
		lineNo  int
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if !inside {
			inside = strings.Contains(line, startMarker)
			continue
		}
		if strings.Contains(line, endMarker) {
			inside = false
			continue
		}
		if strings.Contains(line, startMarker) {
			continue
		}

		fields := strings.Split(line, delimiter)
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		err := shape.arity(len(fields))
		var rec T
		if err == nil {
			rec, err = shape.Build(fields)
		}
		if err != nil {
			d := Diagnostic{Catalog: name, Line: lineNo, Text: line, Reason: err.Error()}
			zap.L().Warn("catalog: discarding malformed line",
				zap.String("catalog", name),
				zap.Int("line", lineNo),
				zap.String("text", line),
				zap.String("reason", d.Reason),
			)
			diags = append(diags, d)
			continue
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return records, diags, eris.Wrapf(ErrCatalogUnavailable, "catalog: read %s: %v", name, err)
	}

	return records, diags, nil
}

// parseFile opens path and parses it with shape.
func parseFile[T any](path string, shape Shape[T]) ([]T, []Diagnostic, error) {
	f, err := os.Open(path) //nolint:gosec // catalog paths come from operator config
	if err != nil {
		return nil, nil, eris.Wrapf(ErrCatalogUnavailable, "catalog: open %s: %v", path, err)
	}
	defer f.Close() //nolint:errcheck

	return Parse(path, f, shape)
}
