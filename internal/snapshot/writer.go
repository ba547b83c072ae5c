package snapshot

import (
	"encoding/csv"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/model"
)

// SheetName is the worksheet holding quotes in xlsx snapshots.
const SheetName = "quotes"

var (
	// ErrSnapshotWrite means the snapshot could not be written. Nothing was
	// published.
	ErrSnapshotWrite = eris.New("snapshot write failed")
	// ErrSnapshotExists means a snapshot for the same site and second exists
	// and the collision policy is fail. The existing file is untouched.
	ErrSnapshotExists = eris.New("snapshot already exists")
)

// Writer persists one snapshot per (site, observation timestamp).
type Writer struct {
	Prefix      string
	Format      Format
	OnCollision CollisionPolicy
}

// NewWriter creates a Writer. Empty format and policy default to csv/fail.
func NewWriter(prefix string, format Format, onCollision CollisionPolicy) *Writer {
	if format == "" {
		format = FormatCSV
	}
	if onCollision == "" {
		onCollision = CollisionFail
	}
	return &Writer{Prefix: prefix, Format: format, OnCollision: onCollision}
}

// Write stores quotes in their given order and returns the published path.
// Rows go to a temporary file in the destination directory which is then
// linked (fail policy) or renamed (overwrite policy) into place, so readers
// never observe a partial snapshot.
func (w *Writer) Write(site string, observedAt time.Time, quotes []model.Quote) (string, error) {
	path := Path(w.Prefix, site, observedAt, w.Format)
	dir := filepath.Dir(path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(ErrSnapshotWrite, "create directory %s: %v", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+site+"-*.tmp")
	if err != nil {
		return "", eris.Wrapf(ErrSnapshotWrite, "open %s: %v", path, err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()
	defer os.Remove(tmpPath) //nolint:errcheck

	switch w.Format {
	case FormatXLSX:
		err = writeXLSX(tmpPath, quotes)
	default:
		err = writeCSV(tmpPath, quotes)
	}
	if err != nil {
		return "", eris.Wrapf(ErrSnapshotWrite, "encode %s: %v", path, err)
	}

	if err := w.publish(tmpPath, path); err != nil {
		return "", err
	}

	zap.L().Info("snapshot written",
		zap.String("site", site),
		zap.String("path", path),
		zap.Int("rows", len(quotes)),
	)
	return path, nil
}

func (w *Writer) publish(tmpPath, path string) error {
	if w.OnCollision == CollisionOverwrite {
		if err := os.Rename(tmpPath, path); err != nil {
			return eris.Wrapf(ErrSnapshotWrite, "publish %s: %v", path, err)
		}
		return nil
	}

	err := os.Link(tmpPath, path)
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrExist) {
		return eris.Wrapf(ErrSnapshotExists, "%s", path)
	}

	// Filesystems without hard links: check then rename.
	if _, statErr := os.Lstat(path); statErr == nil {
		return eris.Wrapf(ErrSnapshotExists, "%s", path)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return eris.Wrapf(ErrSnapshotWrite, "publish %s: %v", path, err)
	}
	return nil
}

func writeCSV(path string, quotes []model.Quote) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(f)
	if err := cw.Write(model.QuoteHeader); err != nil {
		_ = f.Close()
		return err
	}
	for _, q := range quotes {
		if err := cw.Write(q.Record()); err != nil {
			_ = f.Close()
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeXLSX(path string, quotes []model.Quote) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return err
	}
	addRow(sheet, model.QuoteHeader)
	for _, q := range quotes {
		addRow(sheet, q.Record())
	}
	return f.Save(path)
}

func addRow(sheet *xlsx.Sheet, values []string) {
	row := sheet.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}
