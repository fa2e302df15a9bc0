package models

import (
	"time"

	"quorum/internal/quota"
	id "quorum/pkg/domain"
)

// ShardKey identifies the unit of ledger isolation: one state's delegation in
// one event.
type ShardKey struct {
	Event id.EventID
	State id.StateCode
}

func (k ShardKey) String() string {
	return k.Event.String() + "/" + k.State.String()
}

// SeatRequest asks for one seat of Category.
type SeatRequest struct {
	Event    id.EventID
	State    id.StateCode
	Category quota.Category
	Gender   id.Gender
}

// Key returns the shard the request belongs to.
func (r SeatRequest) Key() ShardKey {
	return ShardKey{Event: r.Event, State: r.State}
}

// SeatToken identifies one live reservation. Delegates hold exactly one.
type SeatToken struct {
	ID         id.TokenID     `json:"id"`
	Event      id.EventID     `json:"event_id"`
	State      id.StateCode   `json:"state"`
	Category   quota.Category `json:"category"`
	Gender     id.Gender      `json:"gender"`
	ReservedAt time.Time      `json:"reserved_at"`
}

// Key returns the shard the token belongs to.
func (t SeatToken) Key() ShardKey {
	return ShardKey{Event: t.Event, State: t.State}
}

// GenderCounts is the per-gender breakdown of filled seats.
type GenderCounts struct {
	Women       int `json:"women"`
	Men         int `json:"men"`
	Unspecified int `json:"unspecified"`
}

// Total returns women + men + unspecified.
func (g GenderCounts) Total() int {
	return g.Women + g.Men + g.Unspecified
}

// Add returns a copy with delta applied to gender's counter.
func (g GenderCounts) Add(gender id.Gender, delta int) GenderCounts {
	switch gender {
	case id.GenderWoman:
		g.Women += delta
	case id.GenderMan:
		g.Men += delta
	default:
		g.Unspecified += delta
	}
	return g
}

// Plus sums two breakdowns.
func (g GenderCounts) Plus(o GenderCounts) GenderCounts {
	return GenderCounts{
		Women:       g.Women + o.Women,
		Men:         g.Men + o.Men,
		Unspecified: g.Unspecified + o.Unspecified,
	}
}

// Usage is the raw counter state of one category.
// Invariant: Filled == ByGender.Total().
type Usage struct {
	Filled   int          `json:"filled"`
	ByGender GenderCounts `json:"by_gender"`
}

// Usages maps every category of a shard to its counters. Missing categories
// are empty.
type Usages map[quota.Category]Usage

// Clone returns an independent copy.
func (u Usages) Clone() Usages {
	out := make(Usages, len(u))
	for k, v := range u {
		out[k] = v
	}
	return out
}

// Filled returns the filled count of category (0 when absent).
func (u Usages) Filled(category quota.Category) int {
	return u[category].Filled
}

// CategoryStatus is the export tuple of one category.
// Invariants: Filled = ByGender.Total(); Available = EffectiveLimit - Filled >= 0.
type CategoryStatus struct {
	Category       quota.Category `json:"category"`
	Label          string         `json:"label"`
	Open           bool           `json:"open"`
	Limit          int            `json:"limit"`
	EffectiveLimit int            `json:"effective_limit"`
	Filled         int            `json:"filled"`
	Available      int            `json:"available"`
	ByGender       GenderCounts   `json:"by_gender"`
}

// Snapshot is a consistent point-in-time view of one shard.
type Snapshot struct {
	Event      id.EventID       `json:"event_id"`
	State      id.StateCode     `json:"state"`
	Version    uint64           `json:"version"`
	Categories []CategoryStatus `json:"categories"`
	TakenAt    time.Time        `json:"taken_at"`
}

// Category returns the status of category, if present.
func (s *Snapshot) Category(category quota.Category) (CategoryStatus, bool) {
	for _, c := range s.Categories {
		if c.Category == category {
			return c, true
		}
	}
	return CategoryStatus{}, false
}

// Totals sums filled seats and gender counts over every category.
func (s *Snapshot) Totals() GenderCounts {
	var total GenderCounts
	for _, c := range s.Categories {
		total = total.Plus(c.ByGender)
	}
	return total
}
