// Package openquota computes the effective capacity of the open (at-large)
// category: its base limit plus every seat left unused by a specific category.
//
// Functions here are pure. Callers must pass counters read under the same
// lock or transaction as the reservation they guard.
package openquota

import (
	"quorum/internal/allocation/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
)

// Relinquished returns Σ max(0, limit(c) - filled(c)) over specific categories.
func Relinquished(schema *quota.Schema, state id.StateCode, usage models.Usages) int {
	total := 0
	for _, c := range schema.SpecificCategories() {
		if unused := schema.LimitFor(state, c) - usage.Filled(c); unused > 0 {
			total += unused
		}
	}
	return total
}

// EffectiveLimit returns the open category's capacity for state given usage.
func EffectiveLimit(schema *quota.Schema, state id.StateCode, usage models.Usages) int {
	return schema.LimitFor(state, schema.OpenCategory()) + Relinquished(schema, state, usage)
}

// LimitFor returns the effective limit of any category: the configured limit
// for specific categories, the expanded limit for the open one.
func LimitFor(schema *quota.Schema, state id.StateCode, category quota.Category, usage models.Usages) int {
	if schema.IsOpenCategory(category) {
		return EffectiveLimit(schema, state, usage)
	}
	return schema.LimitFor(state, category)
}

// Borrowed returns how many open seats currently sit on relinquished capacity.
func Borrowed(schema *quota.Schema, state id.StateCode, usage models.Usages) int {
	over := usage.Filled(schema.OpenCategory()) - schema.LimitFor(state, schema.OpenCategory())
	if over < 0 {
		return 0
	}
	return over
}
