package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"quorum/internal/allocation/metrics"
	"quorum/internal/allocation/models"
	"quorum/internal/quota"
	id "quorum/pkg/domain"
	"quorum/pkg/platform/tx"
	"quorum/pkg/requestcontext"
)

// PostgresLedger persists reservations in PostgreSQL.
//
// Each mutation locks the shard row (SELECT ... FOR UPDATE) so admission
// checks and counter changes are serialized per (event, state) across
// processes. The commit callback runs inside the same transaction; stores
// it calls find the *sql.Tx through tx.From.
type PostgresLedger struct {
	db      *sql.DB
	schema  *quota.Schema
	metrics *metrics.Metrics
}

// NewPostgres constructs a PostgreSQL-backed ledger.
func NewPostgres(db *sql.DB, schema *quota.Schema, m *metrics.Metrics) *PostgresLedger {
	return &PostgresLedger{db: db, schema: schema, metrics: m}
}

func (l *PostgresLedger) Reserve(ctx context.Context, req models.SeatRequest, commit CommitFunc) (*models.SeatToken, error) {
	start := time.Now()
	defer l.metrics.ObserveOp("reserve", start)

	if !req.Gender.IsValid() {
		req.Gender = id.GenderUnspecified
	}
	var token models.SeatToken
	err := l.withShard(ctx, req.Key(), func(ctx context.Context, sqlTx *sql.Tx, usage models.Usages) error {
		if err := admit(l.schema, req.State, req.Category, usage); err != nil {
			return err
		}
		token = models.SeatToken{
			ID:         id.NewTokenID(),
			Event:      req.Event,
			State:      req.State,
			Category:   req.Category,
			Gender:     req.Gender,
			ReservedAt: requestcontext.Now(ctx),
		}
		_, err := sqlTx.ExecContext(ctx, `
			INSERT INTO seat_reservations (token_id, event_id, state_code, category, gender, reserved_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, token.ID.String(), token.Event.String(), token.State.String(), token.Category.String(), token.Gender.String(), token.ReservedAt)
		if err != nil {
			return fmt.Errorf("insert seat reservation: %w", err)
		}
		if commit != nil {
			return commit(ctx, token)
		}
		return nil
	})
	if err != nil {
		l.metrics.ObserveReservation(req.Category.String(), outcomeOf(err))
		return nil, err
	}
	l.metrics.ObserveReservation(req.Category.String(), metrics.OutcomeReserved)
	return &token, nil
}

func (l *PostgresLedger) Release(ctx context.Context, token models.SeatToken, commit CommitFunc) error {
	start := time.Now()
	defer l.metrics.ObserveOp("release", start)

	err := l.withShard(ctx, token.Key(), func(ctx context.Context, sqlTx *sql.Tx, _ models.Usages) error {
		stored, err := l.deleteToken(ctx, sqlTx, token)
		if err != nil {
			return err
		}
		if commit != nil {
			return commit(ctx, *stored)
		}
		return nil
	})
	if err != nil {
		return err
	}
	l.metrics.IncrementReleases()
	return nil
}

func (l *PostgresLedger) Move(ctx context.Context, token models.SeatToken, category quota.Category, gender id.Gender, commit CommitFunc) (*models.SeatToken, error) {
	start := time.Now()
	defer l.metrics.ObserveOp("move", start)

	if !gender.IsValid() {
		gender = id.GenderUnspecified
	}
	var moved models.SeatToken
	err := l.withShard(ctx, token.Key(), func(ctx context.Context, sqlTx *sql.Tx, usage models.Usages) error {
		stored, err := l.lockToken(ctx, sqlTx, token)
		if err != nil {
			return err
		}
		apply(usage, stored.Category, stored.Gender, -1)
		if err := admit(l.schema, stored.State, category, usage); err != nil {
			return err
		}
		moved = *stored
		moved.Category = category
		moved.Gender = gender
		if err := l.updateToken(ctx, sqlTx, moved); err != nil {
			return err
		}
		if commit != nil {
			return commit(ctx, moved)
		}
		return nil
	})
	if err != nil {
		l.metrics.ObserveMove(outcomeOf(err))
		return nil, err
	}
	l.metrics.ObserveMove(metrics.OutcomeReserved)
	return &moved, nil
}

func (l *PostgresLedger) Regender(ctx context.Context, token models.SeatToken, gender id.Gender, commit CommitFunc) (*models.SeatToken, error) {
	start := time.Now()
	defer l.metrics.ObserveOp("regender", start)

	if !gender.IsValid() {
		gender = id.GenderUnspecified
	}
	var updated models.SeatToken
	err := l.withShard(ctx, token.Key(), func(ctx context.Context, sqlTx *sql.Tx, _ models.Usages) error {
		stored, err := l.lockToken(ctx, sqlTx, token)
		if err != nil {
			return err
		}
		updated = *stored
		updated.Gender = gender
		if err := l.updateToken(ctx, sqlTx, updated); err != nil {
			return err
		}
		if commit != nil {
			return commit(ctx, updated)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// Snapshot reads the shard in a read-only REPEATABLE READ transaction so the
// version and counters come from the same instant.
func (l *PostgresLedger) Snapshot(ctx context.Context, event id.EventID, state id.StateCode) (*models.Snapshot, error) {
	snaps, err := l.Snapshots(ctx, event, []id.StateCode{state})
	if err != nil {
		return nil, err
	}
	return snaps[state], nil
}

func (l *PostgresLedger) Snapshots(ctx context.Context, event id.EventID, states []id.StateCode) (map[id.StateCode]*models.Snapshot, error) {
	sqlTx, err := l.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	codes := make([]string, len(states))
	for i, s := range states {
		codes[i] = s.String()
	}

	versions := make(map[id.StateCode]uint64, len(states))
	rows, err := sqlTx.QueryContext(ctx, `
		SELECT state_code, version FROM ledger_shards
		WHERE event_id = $1 AND state_code = ANY($2)
	`, event.String(), pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("query shard versions: %w", err)
	}
	for rows.Next() {
		var (
			state   string
			version int64
		)
		if err := rows.Scan(&state, &version); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan shard version: %w", err)
		}
		versions[id.StateCode(state)] = uint64(version)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate shard versions: %w", err)
	}

	usages := make(map[id.StateCode]models.Usages, len(states))
	rows, err = sqlTx.QueryContext(ctx, `
		SELECT state_code, category, gender, COUNT(*) FROM seat_reservations
		WHERE event_id = $1 AND state_code = ANY($2)
		GROUP BY state_code, category, gender
	`, event.String(), pq.Array(codes))
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			state, category, gender string
			count                   int
		)
		if err := rows.Scan(&state, &category, &gender, &count); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		code := id.StateCode(state)
		if usages[code] == nil {
			usages[code] = make(models.Usages)
		}
		apply(usages[code], quota.Category(category), id.Gender(gender), count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}

	now := requestcontext.Now(ctx)
	out := make(map[id.StateCode]*models.Snapshot, len(states))
	for _, state := range states {
		key := models.ShardKey{Event: event, State: state}
		usage := usages[state]
		if usage == nil {
			usage = models.Usages{}
		}
		out[state] = buildSnapshot(l.schema, key, usage, versions[state], now)
	}
	return out, nil
}

// Outstanding returns the live tokens of a shard.
func (l *PostgresLedger) Outstanding(ctx context.Context, event id.EventID, state id.StateCode) ([]models.SeatToken, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT token_id, event_id, state_code, category, gender, reserved_at
		FROM seat_reservations
		WHERE event_id = $1 AND state_code = $2
		ORDER BY reserved_at
	`, event.String(), state.String())
	if err != nil {
		return nil, fmt.Errorf("query outstanding tokens: %w", err)
	}
	defer rows.Close()

	var out []models.SeatToken
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outstanding tokens: %w", err)
	}
	return out, nil
}

type shardFunc func(ctx context.Context, sqlTx *sql.Tx, usage models.Usages) error

// withShard runs fn with the shard row locked and its usage loaded, then
// bumps the shard version and commits. Any error rolls everything back.
func (l *PostgresLedger) withShard(ctx context.Context, key models.ShardKey, fn shardFunc) error {
	sqlTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() {
		_ = sqlTx.Rollback()
	}()

	_, err = sqlTx.ExecContext(ctx, `
		INSERT INTO ledger_shards (event_id, state_code, version)
		VALUES ($1, $2, 0)
		ON CONFLICT (event_id, state_code) DO NOTHING
	`, key.Event.String(), key.State.String())
	if err != nil {
		return fmt.Errorf("ensure ledger shard: %w", err)
	}
	var version int64
	err = sqlTx.QueryRowContext(ctx, `
		SELECT version FROM ledger_shards
		WHERE event_id = $1 AND state_code = $2
		FOR UPDATE
	`, key.Event.String(), key.State.String()).Scan(&version)
	if err != nil {
		return fmt.Errorf("lock ledger shard: %w", err)
	}

	usage, err := loadUsage(ctx, sqlTx, key)
	if err != nil {
		return err
	}
	if err := fn(tx.WithTx(ctx, sqlTx), sqlTx, usage); err != nil {
		return err
	}

	_, err = sqlTx.ExecContext(ctx, `
		UPDATE ledger_shards SET version = version + 1
		WHERE event_id = $1 AND state_code = $2
	`, key.Event.String(), key.State.String())
	if err != nil {
		return fmt.Errorf("bump ledger version: %w", err)
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}
	return nil
}

func loadUsage(ctx context.Context, sqlTx *sql.Tx, key models.ShardKey) (models.Usages, error) {
	rows, err := sqlTx.QueryContext(ctx, `
		SELECT category, gender, COUNT(*) FROM seat_reservations
		WHERE event_id = $1 AND state_code = $2
		GROUP BY category, gender
	`, key.Event.String(), key.State.String())
	if err != nil {
		return nil, fmt.Errorf("load usage: %w", err)
	}
	defer rows.Close()

	usage := make(models.Usages)
	for rows.Next() {
		var (
			category, gender string
			count            int
		)
		if err := rows.Scan(&category, &gender, &count); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		apply(usage, quota.Category(category), id.Gender(gender), count)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate usage: %w", err)
	}
	return usage, nil
}

func (l *PostgresLedger) lockToken(ctx context.Context, sqlTx *sql.Tx, token models.SeatToken) (*models.SeatToken, error) {
	stored, err := scanToken(sqlTx.QueryRowContext(ctx, `
		SELECT token_id, event_id, state_code, category, gender, reserved_at
		FROM seat_reservations
		WHERE token_id = $1 AND event_id = $2 AND state_code = $3
		FOR UPDATE
	`, token.ID.String(), token.Event.String(), token.State.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invalidToken(token.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock seat token: %w", err)
	}
	return stored, nil
}

func (l *PostgresLedger) deleteToken(ctx context.Context, sqlTx *sql.Tx, token models.SeatToken) (*models.SeatToken, error) {
	stored, err := scanToken(sqlTx.QueryRowContext(ctx, `
		DELETE FROM seat_reservations
		WHERE token_id = $1 AND event_id = $2 AND state_code = $3
		RETURNING token_id, event_id, state_code, category, gender, reserved_at
	`, token.ID.String(), token.Event.String(), token.State.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, invalidToken(token.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("delete seat token: %w", err)
	}
	return stored, nil
}

func (l *PostgresLedger) updateToken(ctx context.Context, sqlTx *sql.Tx, token models.SeatToken) error {
	_, err := sqlTx.ExecContext(ctx, `
		UPDATE seat_reservations SET category = $2, gender = $3
		WHERE token_id = $1
	`, token.ID.String(), token.Category.String(), token.Gender.String())
	if err != nil {
		return fmt.Errorf("update seat token: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (*models.SeatToken, error) {
	var (
		tokenID, eventID, state, category, gender string
		t                                         models.SeatToken
	)
	if err := row.Scan(&tokenID, &eventID, &state, &category, &gender, &t.ReservedAt); err != nil {
		return nil, err
	}
	var err error
	if t.ID, err = id.ParseTokenID(tokenID); err != nil {
		return nil, fmt.Errorf("parse token id: %w", err)
	}
	if t.Event, err = id.ParseEventID(eventID); err != nil {
		return nil, fmt.Errorf("parse event id: %w", err)
	}
	t.State = id.StateCode(state)
	t.Category = quota.Category(category)
	t.Gender = id.Gender(gender)
	return &t, nil
}
