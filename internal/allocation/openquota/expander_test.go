package openquota

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/allocation/models"
	"quorum/internal/quota"
)

func exampleSchema(t *testing.T) *quota.Schema {
	t.Helper()
	s, err := quota.New(quota.Document{Categories: []quota.CategoryConfig{
		{Name: "A", Limit: 6},
		{Name: "B", Limit: 2},
		{Name: "C", Limit: 3},
		{Name: "open", Limit: 5, Open: true},
	}})
	require.NoError(t, err)
	return s
}

func TestEffectiveLimit(t *testing.T) {
	s := exampleSchema(t)

	t.Run("documented example", func(t *testing.T) {
		usage := models.Usages{
			"A": {Filled: 4},
			"B": {Filled: 2},
			"C": {Filled: 0},
		}
		// 5 + (6-4) + (2-2) + (3-0)
		assert.Equal(t, 10, EffectiveLimit(s, "BA", usage))
		assert.Equal(t, 5, Relinquished(s, "BA", usage))
	})

	t.Run("empty ledger relinquishes every specific seat", func(t *testing.T) {
		assert.Equal(t, 16, EffectiveLimit(s, "BA", models.Usages{}))
	})

	t.Run("fully filled categories add nothing", func(t *testing.T) {
		usage := models.Usages{"A": {Filled: 6}, "B": {Filled: 2}, "C": {Filled: 3}}
		assert.Equal(t, 5, EffectiveLimit(s, "BA", usage))
	})

	t.Run("overfilled categories never subtract", func(t *testing.T) {
		usage := models.Usages{"A": {Filled: 9}, "B": {Filled: 2}, "C": {Filled: 3}}
		assert.Equal(t, 5, EffectiveLimit(s, "BA", usage))
	})

	t.Run("open usage does not affect its own limit", func(t *testing.T) {
		usage := models.Usages{"open": {Filled: 12}}
		assert.Equal(t, 16, EffectiveLimit(s, "BA", usage))
	})
}

func TestLimitFor(t *testing.T) {
	s := exampleSchema(t)
	usage := models.Usages{"A": {Filled: 4}}

	assert.Equal(t, 6, LimitFor(s, "BA", "A", usage))
	assert.Equal(t, 5+2+2+3, LimitFor(s, "BA", "open", usage))
}

func TestBorrowed(t *testing.T) {
	s := exampleSchema(t)

	assert.Equal(t, 0, Borrowed(s, "BA", models.Usages{"open": {Filled: 5}}))
	assert.Equal(t, 3, Borrowed(s, "BA", models.Usages{"open": {Filled: 8}}))
}
