// Package normalize canonicalizes raw identifier strings into comparable
// forms. All functions are pure and deterministic so scoring and
// deduplication stay reproducible; "unusable" always normalizes to the empty
// string rather than an error.
package normalize

import (
	"strings"
	"unicode"
)

// Email lowercases and trims a raw contact address. Returns "" when the
// input is not a plausible address (missing local part, missing domain, or
// a domain with no dot).
func Email(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return ""
	}
	if strings.IndexByte(s[at+1:], '@') >= 0 {
		return ""
	}
	domain := s[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return ""
	}
	return s
}

// Phone strips all non-digit characters and requires a ten-digit NANP
// number. An eleven-digit number with a leading country code 1 is accepted
// and trimmed; anything else returns "".
func Phone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return ""
	}
	return digits
}

// DisplayName joins first/last name fragments into a trimmed display label
// with single internal spaces. Returns "" when both fragments are empty.
func DisplayName(first, last string) string {
	return CollapseSpaces(first + " " + last)
}

// CollapseSpaces trims and collapses all internal whitespace runs to single
// spaces.
func CollapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NameKey lowercases and collapses a display label for comparison.
func NameKey(name string) string {
	return strings.ToLower(CollapseSpaces(name))
}

// streetAbbreviations maps common long forms to the short form used for
// exact-match address comparison. This is comparison canonicalization, not
// geocoding.
var streetAbbreviations = map[string]string{
	"street":    "st",
	"avenue":    "ave",
	"boulevard": "blvd",
	"drive":     "dr",
	"lane":      "ln",
	"road":      "rd",
	"court":     "ct",
	"circle":    "cir",
	"place":     "pl",
	"terrace":   "ter",
	"highway":   "hwy",
	"parkway":   "pkwy",
	"apartment": "apt",
	"suite":     "ste",
	"north":     "n",
	"south":     "s",
	"east":      "e",
	"west":      "w",
}

// Address canonicalizes a raw postal address for exact-match comparison:
// lowercase, punctuation stripped, whitespace collapsed, common street-word
// long forms shortened. Returns "" for empty input.
func Address(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == ',' || r == '.' || r == '#' || r == '-' || r == '/':
			b.WriteRune(' ')
		}
	}
	words := strings.Fields(b.String())
	for i, w := range words {
		if short, ok := streetAbbreviations[w]; ok {
			words[i] = short
		}
	}
	return strings.Join(words, " ")
}
