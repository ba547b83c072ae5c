// Package snapshot writes and reads dated per-source quote snapshots.
package snapshot

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Format is the on-disk snapshot encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a configured format name. Empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", eris.Errorf("snapshot: unknown format %q (want csv or xlsx)", s)
	}
}

// Ext returns the file extension without the dot.
func (f Format) Ext() string { return string(f) }

// CollisionPolicy decides what happens when a snapshot for the same source
// and second already exists.
type CollisionPolicy string

const (
	CollisionFail      CollisionPolicy = "fail"
	CollisionOverwrite CollisionPolicy = "overwrite"
)

// ParseCollisionPolicy validates a configured policy. Empty means fail.
func ParseCollisionPolicy(s string) (CollisionPolicy, error) {
	switch CollisionPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CollisionFail:
		return CollisionFail, nil
	case CollisionOverwrite:
		return CollisionOverwrite, nil
	default:
		return "", eris.Errorf("snapshot: unknown collision policy %q (want fail or overwrite)", s)
	}
}
