// Package parity turns roster gender counts into percentages and a parity
// status tier. Nothing here performs I/O.
package parity

import (
	"math"
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"quorum/internal/allocation/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
)

// Tier classifies the share of women in a roster.
type Tier string

const (
	TierOK       Tier = "ok"
	TierLow      Tier = "low"
	TierCritical Tier = "critical"
	TierNoData   Tier = "no_data"
)

// Thresholds, in percent of women.
const (
	targetPercent   = 50.0
	lowPercent      = 40.0
	balancedCeiling = 60.0
)

// Snapshot is the parity summary of one roster.
type Snapshot struct {
	Total              int     `json:"total"`
	Women              int     `json:"women"`
	Men                int     `json:"men"`
	Unspecified        int     `json:"unspecified"`
	PercentWomen       float64 `json:"percent_women"`
	PercentMen         float64 `json:"percent_men"`
	PercentUnspecified float64 `json:"percent_unspecified"`
	Tier               Tier    `json:"tier"`
}

// CategoryParity is the parity of the delegates seated in one category.
// Balanced is independent of the state-wide tier.
type CategoryParity struct {
	Category quota.Category `json:"category"`
	Label    string         `json:"label"`
	Snapshot
	Balanced bool `json:"balanced"`
}

// StateReport is the parity of one state's delegation.
type StateReport struct {
	State      id.StateCode     `json:"state"`
	StateName  string           `json:"state_name"`
	Snapshot   Snapshot         `json:"parity"`
	Categories []CategoryParity `json:"categories"`
}

// NationalReport aggregates state reports. States are ordered by name.
type NationalReport struct {
	States []StateReport `json:"states"`
	Total  Snapshot      `json:"total"`
}

// Compute derives percentages and tier from counts. The tier is decided on
// the exact percentage; the reported percentages are rounded to one decimal.
func Compute(c models.GenderCounts) Snapshot {
	total := c.Total()
	s := Snapshot{
		Total:       total,
		Women:       c.Women,
		Men:         c.Men,
		Unspecified: c.Unspecified,
		Tier:        TierNoData,
	}
	if total == 0 {
		return s
	}
	women := percent(c.Women, total)
	s.PercentWomen = round1(women)
	s.PercentMen = round1(percent(c.Men, total))
	s.PercentUnspecified = round1(percent(c.Unspecified, total))
	s.Tier = tierFor(women)
	return s
}

// Count tallies a roster's genders. Unknown values count as unspecified.
func Count(genders []id.Gender) models.GenderCounts {
	var c models.GenderCounts
	for _, g := range genders {
		c = c.Add(g, 1)
	}
	return c
}

// IsBalanced reports whether women make up between 40% and 60% of a
// non-empty roster.
func IsBalanced(c models.GenderCounts) bool {
	total := c.Total()
	if total == 0 {
		return false
	}
	p := percent(c.Women, total)
	return p >= lowPercent && p <= balancedCeiling
}

// CategoryCounts are the gender counts of one category of a roster.
type CategoryCounts struct {
	Category quota.Category
	Label    string
	Counts   models.GenderCounts
}

// ByCategory computes the parity of each category, keeping input order.
func ByCategory(cats []CategoryCounts) []CategoryParity {
	out := make([]CategoryParity, 0, len(cats))
	for _, c := range cats {
		out = append(out, CategoryParity{
			Category: c.Category,
			Label:    c.Label,
			Snapshot: Compute(c.Counts),
			Balanced: IsBalanced(c.Counts),
		})
	}
	return out
}

// Report builds the parity report of one state's roster.
func Report(state id.StateCode, cats []CategoryCounts) StateReport {
	var total models.GenderCounts
	for _, c := range cats {
		total = total.Plus(c.Counts)
	}
	return StateReport{
		State:      state,
		StateName:  state.Name(),
		Snapshot:   Compute(total),
		Categories: ByCategory(cats),
	}
}

// ForState builds the report of one state from its ledger snapshot, with
// categories in schema order.
func ForState(snap *models.Snapshot) StateReport {
	cats := make([]CategoryCounts, 0, len(snap.Categories))
	for _, c := range snap.Categories {
		cats = append(cats, CategoryCounts{Category: c.Category, Label: c.Label, Counts: c.ByGender})
	}
	return Report(snap.State, cats)
}

// Aggregate combines state reports into a national report. States are
// ordered by their Portuguese name. The input slice is not modified.
func Aggregate(states []StateReport) NationalReport {
	sorted := make([]StateReport, len(states))
	copy(sorted, states)
	col := collate.New(language.BrazilianPortuguese)
	sort.SliceStable(sorted, func(i, j int) bool {
		if c := col.CompareString(sorted[i].StateName, sorted[j].StateName); c != 0 {
			return c < 0
		}
		return sorted[i].State < sorted[j].State
	})

	var total models.GenderCounts
	for _, s := range sorted {
		total = total.Plus(models.GenderCounts{
			Women:       s.Snapshot.Women,
			Men:         s.Snapshot.Men,
			Unspecified: s.Snapshot.Unspecified,
		})
	}
	return NationalReport{States: sorted, Total: Compute(total)}
}

func tierFor(percentWomen float64) Tier {
	switch {
	case percentWomen >= targetPercent:
		return TierOK
	case percentWomen >= lowPercent:
		return TierLow
	default:
		return TierCritical
	}
}

func percent(part, total int) float64 {
	return float64(part) / float64(total) * 100
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
