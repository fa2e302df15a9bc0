package models

import (
	"time"

	allocation "quorum/internal/allocation/models"
	"quorum/internal/parity"
	id "quorum/pkg/domain"
)

// QuotaOverview is the export view of one (event, state) roster: every
// category's tuple plus how much capacity the open category borrowed.
//
// Invariants:
//   - Categories[i].Filled = women + men + unspecified
//   - Categories[i].Available = EffectiveLimit - Filled >= 0
type QuotaOverview struct {
	EventID      id.EventID                  `json:"event_id"`
	State        id.StateCode                `json:"state"`
	StateName    string                      `json:"state_name"`
	Version      uint64                      `json:"version"`
	Categories   []allocation.CategoryStatus `json:"categories"`
	Totals       allocation.GenderCounts     `json:"totals"`
	Relinquished int                         `json:"relinquished"`
	Borrowed     int                         `json:"borrowed"`
	Parity       parity.Snapshot             `json:"parity"`
	TakenAt      time.Time                   `json:"taken_at"`
}

// NationalParity is the parity of a national event across every
// contributing state.
type NationalParity struct {
	EventID id.EventID `json:"event_id"`
	parity.NationalReport
}
