package parity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/allocation/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
)

func counts(women, men, unspecified int) models.GenderCounts {
	return models.GenderCounts{Women: women, Men: men, Unspecified: unspecified}
}

func TestCompute_Tiers(t *testing.T) {
	tests := []struct {
		name    string
		counts  models.GenderCounts
		percent float64
		tier    Tier
	}{
		{"half women is ok", counts(25, 25, 0), 50.0, TierOK},
		{"two thirds women is ok", counts(20, 10, 0), 66.7, TierOK},
		{"forty five percent is low", counts(45, 55, 0), 45.0, TierLow},
		{"forty percent is low", counts(40, 60, 0), 40.0, TierLow},
		{"just below forty is critical", counts(39, 61, 0), 39.0, TierCritical},
		{"thirty five percent is critical", counts(7, 13, 0), 35.0, TierCritical},
		{"no women is critical", counts(0, 3, 0), 0, TierCritical},
		{"empty roster has no data", counts(0, 0, 0), 0, TierNoData},
		{"unspecified counts toward total", counts(5, 3, 2), 50.0, TierOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Compute(tt.counts)
			assert.Equal(t, tt.tier, s.Tier)
			assert.InDelta(t, tt.percent, s.PercentWomen, 0.001)
			assert.Equal(t, tt.counts.Total(), s.Total)
		})
	}
}

func TestCompute_TierUsesExactPercentage(t *testing.T) {
	// 1999/4000 = 49.975% displays as 50.0 but is below target.
	s := Compute(counts(1999, 2001, 0))
	assert.InDelta(t, 50.0, s.PercentWomen, 0.001)
	assert.Equal(t, TierLow, s.Tier)
}

func TestCompute_Percentages(t *testing.T) {
	s := Compute(counts(1, 1, 1))
	assert.InDelta(t, 33.3, s.PercentWomen, 0.001)
	assert.InDelta(t, 33.3, s.PercentMen, 0.001)
	assert.InDelta(t, 33.3, s.PercentUnspecified, 0.001)
	assert.Equal(t, 1, s.Unspecified)
}

func TestIsBalanced(t *testing.T) {
	assert.True(t, IsBalanced(counts(4, 6, 0)))
	assert.True(t, IsBalanced(counts(6, 4, 0)))
	assert.False(t, IsBalanced(counts(61, 39, 0)))
	assert.False(t, IsBalanced(counts(3, 7, 0)))
	assert.False(t, IsBalanced(counts(0, 0, 0)))
}

func TestCount(t *testing.T) {
	c := Count([]id.Gender{id.GenderWoman, id.GenderMan, id.GenderWoman, "", "robot"})
	assert.Equal(t, counts(2, 1, 2), c)
}

func TestForState_CategoryIndependentOfState(t *testing.T) {
	snap := &models.Snapshot{
		State: "BA",
		Categories: []models.CategoryStatus{
			{Category: quota.CategoryRacial, Label: "Racial", ByGender: counts(3, 3, 0)},
			{Category: quota.CategoryOpen, Label: "Open", ByGender: counts(0, 6, 0)},
		},
	}

	r := ForState(snap)
	assert.Equal(t, "Bahia", r.StateName)
	assert.Equal(t, TierCritical, r.Snapshot.Tier)
	assert.InDelta(t, 25.0, r.Snapshot.PercentWomen, 0.001)

	require.Len(t, r.Categories, 2)
	assert.Equal(t, quota.CategoryRacial, r.Categories[0].Category)
	assert.True(t, r.Categories[0].Balanced, "racial is balanced even though the state is critical")
	assert.Equal(t, TierOK, r.Categories[0].Tier)
	assert.False(t, r.Categories[1].Balanced)
}

func TestAggregate(t *testing.T) {
	states := []StateReport{
		Report("SP", []CategoryCounts{{Category: quota.CategoryOpen, Counts: counts(5, 5, 0)}}),
		Report("PR", []CategoryCounts{{Category: quota.CategoryOpen, Counts: counts(1, 3, 0)}}),
		Report("PA", []CategoryCounts{{Category: quota.CategoryOpen, Counts: counts(2, 2, 0)}}),
		Report("PB", []CategoryCounts{{Category: quota.CategoryOpen, Counts: counts(0, 0, 0)}}),
		Report("AC", []CategoryCounts{{Category: quota.CategoryOpen, Counts: counts(2, 0, 0)}}),
	}

	report := Aggregate(states)

	var order []id.StateCode
	for _, s := range report.States {
		order = append(order, s.State)
	}
	assert.Equal(t, []id.StateCode{"AC", "PA", "PB", "PR", "SP"}, order)
	assert.Equal(t, id.StateCode("SP"), states[0].State, "input is not reordered")

	assert.Equal(t, 20, report.Total.Total)
	assert.Equal(t, 10, report.Total.Women)
	assert.Equal(t, TierOK, report.Total.Tier)
	assert.Equal(t, TierNoData, report.States[2].Snapshot.Tier)
}

func TestAggregate_Empty(t *testing.T) {
	report := Aggregate(nil)
	assert.Empty(t, report.States)
	assert.Equal(t, TierNoData, report.Total.Tier)
}
