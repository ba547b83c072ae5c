package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/rotisserie/eris"

	"github.com/sells-group/quote-cli/internal/price"
)

// bySelector parses body as HTML and returns the normalized text of the
// first element matching sel.
func bySelector(body []byte, sel cascadia.Selector) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", eris.Wrap(err, "extract: parse html")
	}
	match := doc.FindMatcher(sel).First()
	if match.Length() == 0 {
		return "", ErrPriceElementNotFound
	}
	return price.Normalize(match.Text()), nil
}

// byPattern finds re in the raw body and returns the normalized segment
// between the first ':' of the match and the next ','. A match without ':'
// carries no key/value boundary and is rejected.
func byPattern(body []byte, re *regexp.Regexp) (string, error) {
	m := re.Find(body)
	if m == nil {
		return "", ErrPricePatternNotFound
	}
	_, seg, ok := strings.Cut(string(m), ":")
	if !ok {
		return "", eris.Wrapf(ErrPricePatternNotFound, "extract: match %q has no ':'", m)
	}
	if before, _, ok := strings.Cut(seg, ","); ok {
		seg = before
	}
	return price.Normalize(seg), nil
}
