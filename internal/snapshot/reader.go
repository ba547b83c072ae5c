package snapshot

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ErrNotFound means the requested snapshot or instrument row is absent.
var ErrNotFound = eris.New("not found")

// ErrInvalidObservation means an observation is neither a timestamp nor "latest".
var ErrInvalidObservation = eris.New("invalid observation")

// Latest is the observation alias for the newest snapshot of a site.
const Latest = "latest"

// Observations lists the formatted observation timestamps of a site's
// snapshots, newest first. Files whose names do not carry a valid timestamp
// are ignored.
func Observations(prefix, site string, format Format) ([]string, error) {
	pattern := filepath.FromSlash(prefix+site+"-") + "*." + format.Ext()
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: glob %s", pattern)
	}

	base := filepath.Base(filepath.FromSlash(prefix + site + "-"))
	var obs []string
	for _, m := range matches {
		name := filepath.Base(m)
		ts := strings.TrimSuffix(strings.TrimPrefix(name, base), "."+format.Ext())
		if _, err := ParseObservation(ts); err != nil {
			continue
		}
		obs = append(obs, ts)
	}
	// The layout is zero-padded and big-endian, so string order is time order.
	sort.Sort(sort.Reverse(sort.StringSlice(obs)))
	return obs, nil
}

// Resolve maps an observation (a timestamp or "latest") to a snapshot path.
func Resolve(prefix, site, obs string, format Format) (string, error) {
	if obs == Latest {
		all, err := Observations(prefix, site, format)
		if err != nil {
			return "", err
		}
		if len(all) == 0 {
			return "", eris.Wrapf(ErrNotFound, "no snapshots for %s", site)
		}
		obs = all[0]
	} else if _, err := ParseObservation(obs); err != nil {
		return "", eris.Wrapf(ErrInvalidObservation, "%q: %v", obs, err)
	}
	return PathForObservation(prefix, site, obs, format), nil
}

// ReadRows returns the snapshot's records, header first, each encoded as one
// CSV line; a quoted field may still contain a newline. A non-empty isin keeps
// only the rows whose first column equals it, and yields ErrNotFound when no
// row matches.
func ReadRows(path string, format Format, isin string) ([]string, error) {
	var lines []string
	var err error
	switch format {
	case FormatXLSX:
		lines, err = readXLSXLines(path)
	default:
		lines, err = readCSVLines(path)
	}
	if err != nil {
		return nil, err
	}
	if isin == "" || len(lines) == 0 {
		return lines, nil
	}

	out := []string{lines[0]}
	for _, line := range lines[1:] {
		if firstField(line) == isin {
			out = append(out, line)
		}
	}
	if len(out) == 1 {
		return nil, eris.Wrapf(ErrNotFound, "isin %s in %s", isin, path)
	}
	return out, nil
}

func readCSVLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrNotFound, "%s", path)
		}
		return nil, eris.Wrapf(err, "snapshot: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var lines []string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "snapshot: read %s", path)
		}
		lines = append(lines, csvLine(rec))
	}
	return lines, nil
}

func readXLSXLines(path string) ([]string, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, eris.Wrapf(ErrNotFound, "%s", path)
	}
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: open %s", path)
	}
	sheet, ok := f.Sheet[SheetName]
	if !ok {
		if len(f.Sheets) == 0 {
			return nil, eris.Errorf("snapshot: %s has no sheets", path)
		}
		sheet = f.Sheets[0]
	}

	var lines []string
	for _, row := range sheet.Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		lines = append(lines, csvLine(cells))
	}
	return lines, nil
}

func csvLine(fields []string) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(fields)
	w.Flush()
	return strings.TrimRight(buf.String(), "\r\n")
}

func firstField(line string) string {
	rec, err := csv.NewReader(strings.NewReader(line)).Read()
	if err != nil || len(rec) == 0 {
		return ""
	}
	return rec[0]
}
