package domain

import (
	"strings"

	dErrors "quorum/pkg/domain-errors"
)

// StateCode is a two-letter federative unit code (UF).
type StateCode string

// stateNames is the single source of truth for valid state codes.
var stateNames = map[StateCode]string{
	"AC": "Acre",
	"AL": "Alagoas",
	"AP": "Amapá",
	"AM": "Amazonas",
	"BA": "Bahia",
	"CE": "Ceará",
	"DF": "Distrito Federal",
	"ES": "Espírito Santo",
	"GO": "Goiás",
	"MA": "Maranhão",
	"MT": "Mato Grosso",
	"MS": "Mato Grosso do Sul",
	"MG": "Minas Gerais",
	"PA": "Pará",
	"PB": "Paraíba",
	"PR": "Paraná",
	"PE": "Pernambuco",
	"PI": "Piauí",
	"RJ": "Rio de Janeiro",
	"RN": "Rio Grande do Norte",
	"RS": "Rio Grande do Sul",
	"RO": "Rondônia",
	"RR": "Roraima",
	"SC": "Santa Catarina",
	"SP": "São Paulo",
	"SE": "Sergipe",
	"TO": "Tocantins",
}

// ParseStateCode normalizes case and validates against the catalogue.
func ParseStateCode(s string) (StateCode, error) {
	code := StateCode(strings.ToUpper(strings.TrimSpace(s)))
	if code == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "state code cannot be empty")
	}
	if !code.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown state code")
	}
	return code, nil
}

func (s StateCode) IsValid() bool {
	_, ok := stateNames[s]
	return ok
}

// Name returns the display name, or the code itself for unknown codes.
func (s StateCode) Name() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return string(s)
}

func (s StateCode) String() string { return string(s) }

// StateCodes returns every known code.
func StateCodes() []StateCode {
	codes := make([]StateCode, 0, len(stateNames))
	for code := range stateNames {
		codes = append(codes, code)
	}
	return codes
}
