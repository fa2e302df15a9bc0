// Package quota holds the static quota configuration: which categories exist,
// how many seats each one has per state, and which single category is the
// open (at-large) category.
package quota

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// Category tags a demographic seat bucket.
type Category string

func (c Category) String() string { return string(c) }

// CategoryConfig is one category entry in a schema document.
type CategoryConfig struct {
	Name  Category `yaml:"name" json:"name"`
	Label string   `yaml:"label" json:"label"`
	Limit int      `yaml:"limit" json:"limit"`
	Open  bool     `yaml:"open" json:"open"`
}

// Document is the on-disk shape of a schema.
type Document struct {
	Categories []CategoryConfig                  `yaml:"categories"`
	Overrides  map[id.StateCode]map[Category]int `yaml:"overrides"`
}

// Schema is an immutable, validated quota configuration.
//
// Invariants:
//   - exactly one category is open
//   - every limit (default or per-state override) is >= 0
//   - category names are non-empty and unique
type Schema struct {
	categories []CategoryConfig
	byName     map[Category]CategoryConfig
	overrides  map[id.StateCode]map[Category]int
	open       Category
}

// New validates a document and builds a Schema.
//
// Errors: CodeConfiguration for any invariant violation.
func New(doc Document) (*Schema, error) {
	if len(doc.Categories) == 0 {
		return nil, configError("schema has no categories")
	}

	s := &Schema{
		byName:    make(map[Category]CategoryConfig, len(doc.Categories)),
		overrides: make(map[id.StateCode]map[Category]int, len(doc.Overrides)),
	}
	openCount := 0
	for _, c := range doc.Categories {
		c.Name = Category(strings.TrimSpace(string(c.Name)))
		if c.Name == "" {
			return nil, configError("category name cannot be empty")
		}
		if _, dup := s.byName[c.Name]; dup {
			return nil, configError(fmt.Sprintf("duplicate category %q", c.Name))
		}
		if c.Limit < 0 {
			return nil, configError(fmt.Sprintf("category %q has negative limit %d", c.Name, c.Limit))
		}
		if c.Open {
			openCount++
			s.open = c.Name
		}
		if c.Label == "" {
			c.Label = string(c.Name)
		}
		s.byName[c.Name] = c
		s.categories = append(s.categories, c)
	}
	if openCount != 1 {
		return nil, configError(fmt.Sprintf("schema must have exactly one open category, found %d", openCount))
	}

	for state, limits := range doc.Overrides {
		if !state.IsValid() {
			return nil, configError(fmt.Sprintf("override for unknown state %q", state))
		}
		copied := make(map[Category]int, len(limits))
		for cat, limit := range limits {
			if _, ok := s.byName[cat]; !ok {
				return nil, configError(fmt.Sprintf("override for unknown category %q in %s", cat, state))
			}
			if limit < 0 {
				return nil, configError(fmt.Sprintf("override for %q in %s has negative limit %d", cat, state, limit))
			}
			copied[cat] = limit
		}
		s.overrides[state] = copied
	}
	return s, nil
}

// Parse decodes a YAML schema document.
func Parse(data []byte) (*Schema, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "invalid quota schema document")
	}
	return New(doc)
}

// Load reads a YAML schema from path. An empty path yields the default schema.
func Load(path string) (*Schema, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeConfiguration, "failed to read quota schema")
	}
	return Parse(data)
}

func configError(msg string) error {
	return dErrors.New(dErrors.CodeConfiguration, msg)
}

// LimitFor returns the seat limit of category in state. Unknown categories
// report 0; use Has to tell them apart.
func (s *Schema) LimitFor(state id.StateCode, category Category) int {
	if limits, ok := s.overrides[state]; ok {
		if limit, ok := limits[category]; ok {
			return limit
		}
	}
	return s.byName[category].Limit
}

// Has reports whether category is configured.
func (s *Schema) Has(category Category) bool {
	_, ok := s.byName[category]
	return ok
}

// IsOpenCategory reports whether category is the open (at-large) category.
func (s *Schema) IsOpenCategory(category Category) bool {
	return category == s.open
}

// OpenCategory returns the open category.
func (s *Schema) OpenCategory() Category {
	return s.open
}

// Categories returns every category in configuration order.
func (s *Schema) Categories() []CategoryConfig {
	out := make([]CategoryConfig, len(s.categories))
	copy(out, s.categories)
	return out
}

// SpecificCategories returns every non-open category name in configuration order.
func (s *Schema) SpecificCategories() []Category {
	out := make([]Category, 0, len(s.categories)-1)
	for _, c := range s.categories {
		if !c.Open {
			out = append(out, c.Name)
		}
	}
	return out
}

// Label returns the display label of category.
func (s *Schema) Label(category Category) string {
	if c, ok := s.byName[category]; ok {
		return c.Label
	}
	return string(category)
}

// TotalFor returns the nominal seat total of a state (sum of all limits).
func (s *Schema) TotalFor(state id.StateCode) int {
	total := 0
	for _, c := range s.categories {
		total += s.LimitFor(state, c.Name)
	}
	return total
}

// OverriddenStates lists states with per-state limits, sorted.
func (s *Schema) OverriddenStates() []id.StateCode {
	out := make([]id.StateCode, 0, len(s.overrides))
	for state := range s.overrides {
		out = append(out, state)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
