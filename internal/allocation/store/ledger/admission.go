package ledger

import (
	"context"
	"fmt"
	"time"

	"quorum/internal/allocation/models"
	"quorum/internal/allocation/openquota"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// CommitFunc runs inside a ledger mutation, after the counters are updated
// and before the change becomes visible. A non-nil error rolls the mutation
// back. Postgres-backed ledgers pass a context carrying their *sql.Tx.
type CommitFunc func(ctx context.Context, token models.SeatToken) error

// admit decides whether one more seat of category fits in usage.
//
// A specific-category seat is also refused when the open category already
// borrowed it: relinquished capacity is final once used.
func admit(schema *quota.Schema, state id.StateCode, category quota.Category, usage models.Usages) error {
	if !schema.Has(category) {
		return unknownCategory(category)
	}

	limit := openquota.LimitFor(schema, state, category, usage)
	if usage.Filled(category) >= limit {
		return quotaFull(category, state, limit)
	}

	if schema.IsOpenCategory(category) {
		return nil
	}
	next := usage.Clone()
	next[category] = models.Usage{Filled: usage.Filled(category) + 1}
	open := schema.OpenCategory()
	if usage.Filled(open) > openquota.EffectiveLimit(schema, state, next) {
		return dErrors.New(dErrors.CodeQuotaFull,
			fmt.Sprintf("remaining %s seats in %s were taken by the %s category", category, state, open))
	}
	return nil
}

func quotaFull(category quota.Category, state id.StateCode, limit int) error {
	return dErrors.New(dErrors.CodeQuotaFull,
		fmt.Sprintf("quota %s is full in %s (limit %d)", category, state, limit))
}

func unknownCategory(category quota.Category) error {
	return dErrors.New(dErrors.CodeUnknownCategory, fmt.Sprintf("unknown quota category %q", category))
}

func invalidToken(tokenID id.TokenID) error {
	return dErrors.New(dErrors.CodeInvalidToken, fmt.Sprintf("seat token %s is unknown or already released", tokenID))
}

// apply adds delta seats of gender to category.
func apply(usage models.Usages, category quota.Category, gender id.Gender, delta int) {
	u := usage[category]
	u.Filled += delta
	u.ByGender = u.ByGender.Add(gender, delta)
	usage[category] = u
}

// buildSnapshot renders usage into the export shape.
func buildSnapshot(schema *quota.Schema, key models.ShardKey, usage models.Usages, version uint64, now time.Time) *models.Snapshot {
	snap := &models.Snapshot{
		Event:      key.Event,
		State:      key.State,
		Version:    version,
		Categories: make([]models.CategoryStatus, 0, len(schema.Categories())),
		TakenAt:    now,
	}
	for _, c := range schema.Categories() {
		u := usage[c.Name]
		effective := openquota.LimitFor(schema, key.State, c.Name, usage)
		available := effective - u.Filled
		if available < 0 {
			available = 0
		}
		snap.Categories = append(snap.Categories, models.CategoryStatus{
			Category:       c.Name,
			Label:          c.Label,
			Open:           c.Open,
			Limit:          schema.LimitFor(key.State, c.Name),
			EffectiveLimit: effective,
			Filled:         u.Filled,
			Available:      available,
			ByGender:       u.ByGender,
		})
	}
	return snap
}
