package domain

import (
	"strings"

	dErrors "quorum/pkg/domain-errors"
)

// Gender is the parity classification of a delegate.
type Gender string

const (
	GenderWoman       Gender = "woman"
	GenderMan         Gender = "man"
	GenderUnspecified Gender = "unspecified"
)

// Genders lists every classification in reporting order.
var Genders = []Gender{GenderWoman, GenderMan, GenderUnspecified}

// ParseGender accepts the canonical values; an empty value maps to
// GenderUnspecified.
func ParseGender(s string) (Gender, error) {
	g := Gender(strings.ToLower(strings.TrimSpace(s)))
	if g == "" {
		return GenderUnspecified, nil
	}
	if !g.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "gender must be 'woman', 'man' or 'unspecified'")
	}
	return g, nil
}

func (g Gender) IsValid() bool {
	switch g {
	case GenderWoman, GenderMan, GenderUnspecified:
		return true
	}
	return false
}

func (g Gender) String() string { return string(g) }
