package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// NOTE: This repository assumes the calls table from migrations/001_init.sql,
// including a partial UNIQUE index on provider_call_id.

const callColumns = `id, phone_number_id, to_number, provider_call_id, status, duration,
       voice_script, recording_url, started_at, completed_at, created_at, updated_at`

// PostgresRepo is the database/sql call store (pgx stdlib driver).
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) Create(ctx context.Context, c Call) (Call, error) {
	if !c.Status.Valid() {
		return Call{}, ErrIllegalTransition
	}
	now := r.clock().UTC()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt, c.UpdatedAt = now, now

	const q = `
INSERT INTO calls (
  id, phone_number_id, to_number, provider_call_id, status, duration,
  voice_script, recording_url, started_at, completed_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		c.ID,
		c.PhoneNumberID,
		c.ToNumber,
		nullString(c.ProviderCallID),
		c.Status,
		c.DurationSeconds,
		c.VoiceScript,
		nullString(c.RecordingURL),
		c.StartedAt,
		c.CompletedAt,
		c.CreatedAt,
		c.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Call{}, ErrDuplicateCallID
		}
		return Call{}, err
	}
	return c, nil
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) FindByProviderCallID(ctx context.Context, providerCallID string) (Call, error) {
	if providerCallID == "" {
		return Call{}, ErrNotFound
	}
	q := `SELECT ` + callColumns + ` FROM calls WHERE provider_call_id = $1`
	return scanCall(r.db.QueryRowContext(ctx, q, providerCallID))
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, from CallStatus, u StatusUpdate) (Call, error) {
	if err := checkTransition(from, u); err != nil {
		return Call{}, err
	}
	// The status guard in WHERE makes this a compare-and-set against concurrent writers.
	q := `
UPDATE calls
SET status = $3,
    completed_at = COALESCE($4, completed_at),
    duration = COALESCE($5, duration),
    recording_url = COALESCE(NULLIF($6, ''), recording_url),
    updated_at = $7
WHERE id = $1 AND status = $2
RETURNING ` + callColumns
	c, err := scanCall(r.db.QueryRowContext(ctx, q, id, from, u.Status, u.CompletedAt, u.DurationSeconds, u.RecordingURL, r.clock().UTC()))
	if errors.Is(err, ErrNotFound) {
		current, getErr := r.Get(ctx, id)
		if getErr != nil {
			return Call{}, getErr
		}
		return current, ErrStaleStatus
	}
	return c, err
}

func (r *PostgresRepo) ListInProgress(ctx context.Context) ([]Call, error) {
	q := `SELECT ` + callColumns + ` FROM calls WHERE status = $1 ORDER BY created_at ASC, id ASC`
	return r.query(ctx, q, CallStatusInProgress)
}

func (r *PostgresRepo) List(ctx context.Context, f ListFilter) ([]Call, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if f.Status != "" {
		q := `SELECT ` + callColumns + ` FROM calls WHERE status = $1 ORDER BY created_at DESC, id DESC LIMIT $2`
		return r.query(ctx, q, f.Status, limit)
	}
	q := `SELECT ` + callColumns + ` FROM calls ORDER BY created_at DESC, id DESC LIMIT $1`
	return r.query(ctx, q, limit)
}

func (r *PostgresRepo) CountByStatus(ctx context.Context) (StatusCounts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM calls GROUP BY status`)
	if err != nil {
		return StatusCounts{}, err
	}
	defer rows.Close()

	var out StatusCounts
	for rows.Next() {
		var s CallStatus
		var n int
		if err := rows.Scan(&s, &n); err != nil {
			return StatusCounts{}, err
		}
		out.add(s, n)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Call, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Call, 0)
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (Call, error) {
	var (
		c           Call
		sid         sql.NullString
		duration    sql.NullInt64
		script      sql.NullString
		recording   sql.NullString
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	if err := row.Scan(
		&c.ID,
		&c.PhoneNumberID,
		&c.ToNumber,
		&sid,
		&c.Status,
		&duration,
		&script,
		&recording,
		&startedAt,
		&completedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, ErrNotFound
		}
		return Call{}, err
	}
	c.ProviderCallID = sid.String
	c.VoiceScript = script.String
	c.RecordingURL = recording.String
	if duration.Valid {
		d := int(duration.Int64)
		c.DurationSeconds = &d
	}
	if startedAt.Valid {
		t := startedAt.Time
		c.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		c.CompletedAt = &t
	}
	return c, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
