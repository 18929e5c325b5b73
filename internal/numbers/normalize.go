package numbers

import (
	"regexp"
	"strings"
)

var canonicalNumber = regexp.MustCompile(`^\+\d{10,15}$`)

// Normalize turns operator or CSV input into a dialable number.
//
// It never fails: the result is best-effort and validity is judged by IsCanonical.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	clean := b.String()

	if strings.HasPrefix(clean, "0") {
		clean = "+1" + clean[1:]
	}
	if len(clean) == 10 && !strings.HasPrefix(clean, "+") {
		clean = "+1" + clean
	}
	return clean
}

// IsCanonical reports whether number is "+" followed by 10 to 15 digits.
func IsCanonical(number string) bool {
	return canonicalNumber.MatchString(number)
}
