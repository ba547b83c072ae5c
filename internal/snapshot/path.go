package snapshot

import (
	"path/filepath"
	"time"
)

// TimestampLayout is the second-resolution observation timestamp embedded
// in snapshot filenames.
const TimestampLayout = "2006-01-02-15-04-05"

// Path returns <prefix><site>-<timestamp>.<ext>. The prefix is used as a raw
// string prefix, so "data/output/" and "data/output/q-" are both valid.
func Path(prefix, site string, observedAt time.Time, format Format) string {
	return PathForObservation(prefix, site, observedAt.Format(TimestampLayout), format)
}

// PathForObservation is Path for an already formatted timestamp.
func PathForObservation(prefix, site, obs string, format Format) string {
	return filepath.FromSlash(prefix + site + "-" + obs + "." + format.Ext())
}

// ParseObservation validates a formatted observation timestamp.
func ParseObservation(obs string) (time.Time, error) {
	return time.ParseInLocation(TimestampLayout, obs, time.Local)
}
