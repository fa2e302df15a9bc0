package ledger

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"quorum/internal/allocation/metrics"
	"quorum/internal/allocation/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	dErrors "quorum/pkg/domain-errors"
)

// smallSchema: racial 2, youth 1, open 2. With nothing filled the open
// category can take 2 + 3 = 5 seats.
func smallSchema(t *testing.T) *quota.Schema {
	t.Helper()
	s, err := quota.New(quota.Document{
		Categories: []quota.CategoryConfig{
			{Name: quota.CategoryRacial, Label: "Racial", Limit: 2},
			{Name: quota.CategoryYouth, Label: "Youth", Limit: 1},
			{Name: quota.CategoryOpen, Label: "Open", Limit: 2, Open: true},
		},
	})
	require.NoError(t, err)
	return s
}

func request(event id.EventID, category quota.Category, gender id.Gender) models.SeatRequest {
	return models.SeatRequest{Event: event, State: "BA", Category: category, Gender: gender}
}

func filled(t *testing.T, l *InMemoryLedger, event id.EventID, category quota.Category) models.CategoryStatus {
	t.Helper()
	snap, err := l.Snapshot(context.Background(), event, "BA")
	require.NoError(t, err)
	st, ok := snap.Category(category)
	require.True(t, ok)
	return st
}

func TestInMemoryLedger_Reserve(t *testing.T) {
	ctx := context.Background()

	t.Run("updates counters and gender breakdown", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()

		tok, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderWoman), nil)
		require.NoError(t, err)
		assert.False(t, tok.ID.IsNil())
		assert.Equal(t, quota.CategoryRacial, tok.Category)

		st := filled(t, l, event, quota.CategoryRacial)
		assert.Equal(t, 1, st.Filled)
		assert.Equal(t, 1, st.Available)
		assert.Equal(t, models.GenderCounts{Women: 1}, st.ByGender)
	})

	t.Run("refuses when the category is full", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()

		_, err := l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderMan), nil)
		require.NoError(t, err)
		_, err = l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderMan), nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeQuotaFull))
		assert.Equal(t, 1, filled(t, l, event, quota.CategoryYouth).Filled)
	})

	t.Run("unknown category", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		_, err := l.Reserve(ctx, request(id.NewEventID(), "astronauts", id.GenderWoman), nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownCategory))
	})

	t.Run("invalid gender is counted as unspecified", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()
		tok, err := l.Reserve(ctx, request(event, quota.CategoryRacial, "other"), nil)
		require.NoError(t, err)
		assert.Equal(t, id.GenderUnspecified, tok.Gender)
		assert.Equal(t, 1, filled(t, l, event, quota.CategoryRacial).ByGender.Unspecified)
	})

	t.Run("shards are independent", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()
		_, err := l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderWoman), nil)
		require.NoError(t, err)

		other := models.SeatRequest{Event: event, State: "SP", Category: quota.CategoryYouth, Gender: id.GenderWoman}
		_, err = l.Reserve(ctx, other, nil)
		require.NoError(t, err)

		_, err = l.Reserve(ctx, models.SeatRequest{Event: id.NewEventID(), State: "BA", Category: quota.CategoryYouth}, nil)
		require.NoError(t, err)
	})
}

func TestInMemoryLedger_OpenCategoryExpansion(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory(smallSchema(t))
	event := id.NewEventID()

	for i := 0; i < 5; i++ {
		_, err := l.Reserve(ctx, request(event, quota.CategoryOpen, id.GenderWoman), nil)
		require.NoError(t, err, "open seat %d", i+1)
	}
	_, err := l.Reserve(ctx, request(event, quota.CategoryOpen, id.GenderWoman), nil)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeQuotaFull))

	open := filled(t, l, event, quota.CategoryOpen)
	assert.Equal(t, 5, open.EffectiveLimit)
	assert.Equal(t, 0, open.Available)

	t.Run("borrowed capacity cannot be reclaimed", func(t *testing.T) {
		_, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderMan), nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeQuotaFull))
		assert.Equal(t, 0, filled(t, l, event, quota.CategoryRacial).Filled)
	})
}

func TestInMemoryLedger_Release(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory(smallSchema(t))
	event := id.NewEventID()

	tok, err := l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderWoman), nil)
	require.NoError(t, err)

	require.NoError(t, l.Release(ctx, *tok, nil))
	st := filled(t, l, event, quota.CategoryYouth)
	assert.Equal(t, 0, st.Filled)
	assert.Equal(t, models.GenderCounts{}, st.ByGender)

	t.Run("double release is rejected", func(t *testing.T) {
		err := l.Release(ctx, *tok, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
		assert.Equal(t, 0, filled(t, l, event, quota.CategoryYouth).Filled)
	})

	t.Run("token from unknown shard is rejected", func(t *testing.T) {
		forged := *tok
		forged.Event = id.NewEventID()
		err := l.Release(ctx, forged, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidToken))
	})

	t.Run("stored token wins over a tampered copy", func(t *testing.T) {
		held, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderMan), nil)
		require.NoError(t, err)
		tampered := *held
		tampered.Category = quota.CategoryYouth
		tampered.Gender = id.GenderWoman

		require.NoError(t, l.Release(ctx, tampered, nil))
		assert.Equal(t, 0, filled(t, l, event, quota.CategoryRacial).Filled)
		assert.Equal(t, 0, filled(t, l, event, quota.CategoryYouth).Filled)
	})
}

func TestInMemoryLedger_Move(t *testing.T) {
	ctx := context.Background()

	t.Run("moves the seat and keeps the token id", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()
		tok, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderWoman), nil)
		require.NoError(t, err)

		moved, err := l.Move(ctx, *tok, quota.CategoryYouth, id.GenderMan, nil)
		require.NoError(t, err)
		assert.Equal(t, tok.ID, moved.ID)
		assert.Equal(t, quota.CategoryYouth, moved.Category)

		assert.Equal(t, 0, filled(t, l, event, quota.CategoryRacial).Filled)
		youth := filled(t, l, event, quota.CategoryYouth)
		assert.Equal(t, 1, youth.Filled)
		assert.Equal(t, models.GenderCounts{Men: 1}, youth.ByGender)
	})

	t.Run("failed move leaves the original seat in place", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()
		_, err := l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderWoman), nil)
		require.NoError(t, err)
		tok, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderMan), nil)
		require.NoError(t, err)

		_, err = l.Move(ctx, *tok, quota.CategoryYouth, id.GenderMan, nil)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeQuotaFull))
		assert.Equal(t, 1, filled(t, l, event, quota.CategoryRacial).Filled)
		assert.Equal(t, 1, filled(t, l, event, quota.CategoryYouth).Filled)

		require.NoError(t, l.Release(ctx, *tok, nil))
	})

	t.Run("moving within a full category to itself succeeds", func(t *testing.T) {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()
		tok, err := l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderWoman), nil)
		require.NoError(t, err)

		moved, err := l.Move(ctx, *tok, quota.CategoryYouth, id.GenderMan, nil)
		require.NoError(t, err)
		assert.Equal(t, id.GenderMan, moved.Gender)
	})
}

func TestInMemoryLedger_Regender(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory(smallSchema(t))
	event := id.NewEventID()
	tok, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderUnspecified), nil)
	require.NoError(t, err)

	updated, err := l.Regender(ctx, *tok, id.GenderWoman, nil)
	require.NoError(t, err)
	assert.Equal(t, id.GenderWoman, updated.Gender)

	st := filled(t, l, event, quota.CategoryRacial)
	assert.Equal(t, 1, st.Filled)
	assert.Equal(t, models.GenderCounts{Women: 1}, st.ByGender)
}

func TestInMemoryLedger_CommitRollback(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	fail := func(context.Context, models.SeatToken) error { return boom }

	l := NewInMemory(smallSchema(t))
	event := id.NewEventID()

	_, err := l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderWoman), fail)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, filled(t, l, event, quota.CategoryYouth).Filled)

	tok, err := l.Reserve(ctx, request(event, quota.CategoryYouth, id.GenderWoman), nil)
	require.NoError(t, err)

	_, err = l.Move(ctx, *tok, quota.CategoryRacial, id.GenderMan, fail)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, filled(t, l, event, quota.CategoryYouth).Filled)
	assert.Equal(t, 0, filled(t, l, event, quota.CategoryRacial).Filled)

	_, err = l.Regender(ctx, *tok, id.GenderMan, fail)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, models.GenderCounts{Women: 1}, filled(t, l, event, quota.CategoryYouth).ByGender)

	err = l.Release(ctx, *tok, fail)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, filled(t, l, event, quota.CategoryYouth).Filled)

	require.NoError(t, l.Release(ctx, *tok, nil))
}

func TestInMemoryLedger_Snapshot(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory(smallSchema(t))
	event := id.NewEventID()

	t.Run("unknown shard reports empty counters", func(t *testing.T) {
		snap, err := l.Snapshot(ctx, event, "AC")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), snap.Version)
		require.Len(t, snap.Categories, 3)
		for _, c := range snap.Categories {
			assert.Zero(t, c.Filled)
		}
	})

	t.Run("snapshot is not affected by later mutations", func(t *testing.T) {
		_, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderWoman), nil)
		require.NoError(t, err)
		before, err := l.Snapshot(ctx, event, "BA")
		require.NoError(t, err)

		_, err = l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderWoman), nil)
		require.NoError(t, err)
		after, err := l.Snapshot(ctx, event, "BA")
		require.NoError(t, err)

		racial, _ := before.Category(quota.CategoryRacial)
		assert.Equal(t, 1, racial.Filled)
		assert.Greater(t, after.Version, before.Version)
	})

	t.Run("snapshots for many states", func(t *testing.T) {
		snaps, err := l.Snapshots(ctx, event, []id.StateCode{"BA", "SP"})
		require.NoError(t, err)
		assert.Len(t, snaps, 2)
		assert.Equal(t, 2, snaps["BA"].Totals().Total())
		assert.Equal(t, 0, snaps["SP"].Totals().Total())
	})
}

func TestInMemoryLedger_Concurrent(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	l := NewInMemory(smallSchema(t), WithMetrics(m))
	event := id.NewEventID()

	const goroutines = 50
	var (
		wg      sync.WaitGroup
		granted atomic.Int32
		full    atomic.Int32
	)
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_, err := l.Reserve(ctx, request(event, quota.CategoryRacial, id.GenderWoman), nil)
			switch {
			case err == nil:
				granted.Add(1)
			case dErrors.HasCode(err, dErrors.CodeQuotaFull):
				full.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), granted.Load(), "exactly the remaining seats should be granted")
	assert.Equal(t, int32(goroutines-2), full.Load())
	assert.Equal(t, 2, filled(t, l, event, quota.CategoryRacial).Filled)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Reservations.WithLabelValues("racial", metrics.OutcomeReserved)))
}

func TestInMemoryLedger_ConcurrentMixedCategories(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	categories := []quota.Category{quota.CategoryOpen, quota.CategoryRacial, quota.CategoryYouth}

	for round := 0; round < 20; round++ {
		l := NewInMemory(smallSchema(t))
		event := id.NewEventID()

		const perCategory = 10
		var (
			wg      sync.WaitGroup
			granted atomic.Int32
		)
		wg.Add(perCategory * len(categories))
		for i := 0; i < perCategory; i++ {
			for _, category := range categories {
				go func() {
					defer wg.Done()
					_, err := l.Reserve(ctx, request(event, category, id.GenderWoman), nil)
					switch {
					case err == nil:
						granted.Add(1)
					case dErrors.HasCode(err, dErrors.CodeQuotaFull):
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}()
			}
		}
		wg.Wait()

		snap, err := l.Snapshot(ctx, event, "BA")
		require.NoError(t, err)
		for _, c := range snap.Categories {
			assert.LessOrEqual(t, c.Filled, c.EffectiveLimit, "round %d: %s", round, c.Category)
		}
		// Ten open requests always exhaust the open category, so every
		// nominal seat ends up taken whichever side wins the race.
		assert.Equal(t, 5, snap.Totals().Total(), "round %d", round)
		assert.Equal(t, int32(5), granted.Load(), "round %d", round)
	}
}

func TestInMemoryLedger_ConcurrentChurn(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx := context.Background()
	l := NewInMemory(smallSchema(t))
	event := id.NewEventID()

	const goroutines = 20
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tok, err := l.Reserve(ctx, request(event, quota.CategoryOpen, id.GenderMan), nil)
				if err != nil {
					continue
				}
				assert.NoError(t, l.Release(ctx, *tok, nil))
			}
		}()
	}
	wg.Wait()

	open := filled(t, l, event, quota.CategoryOpen)
	assert.Equal(t, 0, open.Filled)
	assert.Equal(t, models.GenderCounts{}, open.ByGender)
	tokens, err := l.Outstanding(ctx, event, "BA")
	require.NoError(t, err)
	assert.Empty(t, tokens)
}
