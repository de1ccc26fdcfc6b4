package quote

import (
	"regexp"
	"strings"
)

// symbolPattern accepts plain ticker symbols: 1-10 alphanumerics.
var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)

// Normalize canonicalizes a raw ticker symbol: trims whitespace,
// uppercases, and validates. Idempotent for any valid input.
func Normalize(raw string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolPattern.MatchString(s) {
		return "", NewError(KindInvalidSymbol, "invalid symbol %q", raw)
	}
	return s, nil
}
