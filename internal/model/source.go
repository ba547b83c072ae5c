package model

import (
	"regexp"
	"strings"
)

// ExtractorKind tags how a source exposes its ask price.
type ExtractorKind string

const (
	// ExtractorSelector locates the price through a CSS query on the parsed HTML.
	ExtractorSelector ExtractorKind = "selector"
	// ExtractorPattern locates the price through a regular expression on the raw body.
	ExtractorPattern ExtractorKind = "pattern"
)

// ParseExtractorKind converts a catalog tag into an ExtractorKind. The second
// return value is false for tags outside the closed set.
func ParseExtractorKind(s string) (ExtractorKind, bool) {
	switch ExtractorKind(strings.ToLower(strings.TrimSpace(s))) {
	case ExtractorSelector:
		return ExtractorSelector, true
	case ExtractorPattern:
		return ExtractorPattern, true
	default:
		return ExtractorKind(s), false
	}
}

// Source is one scrapeable site from the sources catalog.
type Source struct {
	Site        string        `json:"site"`
	ContentType string        `json:"content_type"`
	Extractor   ExtractorKind `json:"extractor"`
	BaseURL     string        `json:"base_url"`
}

// URLFor appends the ISIN to the base URL verbatim. Catalogs are trusted
// input, so nothing is escaped.
func (s Source) URLFor(isin string) string {
	return s.BaseURL + isin
}

// Instrument is one tradable identifier listed in a source's catalog.
type Instrument struct {
	ISIN string `json:"isin"`
	Name string `json:"name"`
}

var siteRe = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// ValidSite reports whether s is usable as a site key inside file names.
func ValidSite(s string) bool {
	return siteRe.MatchString(s) && !strings.Contains(s, "..")
}
