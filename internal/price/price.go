// Package price canonicalizes locale-formatted price strings.
package price

import (
	"regexp"
	"strings"
)

// Normalize rewrites a scraped price so that "." is the only decimal
// separator. When both "," and "." appear, "," is a thousands separator and
// is dropped; otherwise a "," is the decimal separator. The result is not
// validated as a number.
func Normalize(raw string) string {
	p := strings.TrimSpace(raw)
	if strings.Contains(p, ",") && strings.Contains(p, ".") {
		p = strings.ReplaceAll(p, ",", "")
	}
	return strings.ReplaceAll(p, ",", ".")
}

var numericRe = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)$`)

// IsNumeric reports whether a normalized price is a plain decimal number.
func IsNumeric(s string) bool {
	return numericRe.MatchString(s)
}
