package domain

import (
	"strings"

	dErrors "quorum/pkg/domain-errors"
)

// PersonID is a national ID document number normalized to digits only.
// Invariant: non-empty and composed of ASCII digits.
//
// Usage: construct via ParsePersonID; "123.456.789-09" and "12345678909"
// resolve to the same PersonID.
type PersonID string

// maxPersonIDDigits bounds input before normalization.
const maxPersonIDDigits = 32

// ParsePersonID strips every non-digit character from s.
//
// Errors: returns CodeValidation when nothing remains after normalization or
// the result is longer than 32 digits.
func ParsePersonID(s string) (PersonID, error) {
	normalized := NormalizeDigits(s)
	if normalized == "" {
		return "", dErrors.New(dErrors.CodeValidation, "person identifier must contain digits")
	}
	if len(normalized) > maxPersonIDDigits {
		return "", dErrors.New(dErrors.CodeValidation, "person identifier is too long")
	}
	return PersonID(normalized), nil
}

// NormalizeDigits keeps only ASCII digits.
func NormalizeDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (p PersonID) String() string { return string(p) }

// Masked hides all but the last three digits for logs.
func (p PersonID) Masked() string {
	if len(p) <= 3 {
		return "***"
	}
	return strings.Repeat("*", len(p)-3) + string(p[len(p)-3:])
}
