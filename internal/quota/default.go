package quota

// Built-in categories.
const (
	CategoryRacial     Category = "racial"
	CategoryIndigenous Category = "indigenous"
	CategoryYouth      Category = "youth"
	CategoryDisability Category = "disability"
	CategoryElderly    Category = "elderly"
	CategoryLGBTQIA    Category = "lgbtqia"
	CategoryOpen       Category = "open"
)

// DefaultDocument is the schema used when no schema file is configured.
func DefaultDocument() Document {
	return Document{
		Categories: []CategoryConfig{
			{Name: CategoryRacial, Label: "Pessoas negras", Limit: 6},
			{Name: CategoryIndigenous, Label: "Povos indígenas", Limit: 2},
			{Name: CategoryYouth, Label: "Juventude", Limit: 3},
			{Name: CategoryDisability, Label: "Pessoas com deficiência", Limit: 2},
			{Name: CategoryElderly, Label: "Pessoas idosas", Limit: 2},
			{Name: CategoryLGBTQIA, Label: "LGBTQIA+", Limit: 2},
			{Name: CategoryOpen, Label: "Ampla concorrência", Limit: 5, Open: true},
		},
	}
}

// Default returns the built-in schema. It panics only if DefaultDocument is
// itself invalid, which the package tests rule out.
func Default() *Schema {
	s, err := New(DefaultDocument())
	if err != nil {
		panic(err)
	}
	return s
}
