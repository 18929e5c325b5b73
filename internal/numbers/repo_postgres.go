package numbers

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// NOTE: This repository assumes the phone_numbers table from migrations/001_init.sql,
// including UNIQUE (number).

const pgUniqueViolation = "23505"

const numberColumns = `id, number, status, notes, created_at, updated_at`

// PostgresRepo is the database/sql number store (pgx stdlib driver).
type PostgresRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, clock: time.Now}
}

func (r *PostgresRepo) Create(ctx context.Context, n PhoneNumber) (PhoneNumber, error) {
	if n.Status == "" {
		n.Status = StatusActive
	}
	if err := n.Validate(); err != nil {
		return PhoneNumber{}, err
	}
	now := r.clock().UTC()
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt, n.UpdatedAt = now, now

	const q = `
INSERT INTO phone_numbers (id, number, status, notes, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	if _, err := r.db.ExecContext(ctx, q, n.ID, n.Number, n.Status, n.Notes, n.CreatedAt, n.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return PhoneNumber{}, ErrDuplicate
		}
		return PhoneNumber{}, err
	}
	return n, nil
}

func (r *PostgresRepo) FindByID(ctx context.Context, id string) (PhoneNumber, error) {
	q := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE id = $1`
	return scanNumber(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) FindByNumber(ctx context.Context, number string) (PhoneNumber, error) {
	q := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE number = $1`
	return scanNumber(r.db.QueryRowContext(ctx, q, number))
}

func (r *PostgresRepo) ListActive(ctx context.Context) ([]PhoneNumber, error) {
	q := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE status = $1 ORDER BY created_at ASC, id ASC`
	return r.query(ctx, q, StatusActive)
}

func (r *PostgresRepo) List(ctx context.Context, limit int) ([]PhoneNumber, error) {
	if limit <= 0 {
		limit = 100
	}
	q := `SELECT ` + numberColumns + ` FROM phone_numbers ORDER BY created_at DESC, id DESC LIMIT $1`
	return r.query(ctx, q, limit)
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, id string, status Status) (PhoneNumber, error) {
	n, err := r.FindByID(ctx, id)
	if err != nil {
		return PhoneNumber{}, err
	}
	n.Status = status
	if err := n.Validate(); err != nil {
		return PhoneNumber{}, err
	}
	n.UpdatedAt = r.clock().UTC()

	const q = `UPDATE phone_numbers SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id, n.Status, n.UpdatedAt)
	if err != nil {
		return PhoneNumber{}, err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return PhoneNumber{}, ErrNotFound
	}
	return n, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM phone_numbers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Counts(ctx context.Context) (Counts, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM phone_numbers GROUP BY status`)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	var c Counts
	for rows.Next() {
		var status Status
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return Counts{}, err
		}
		c.Total += n
		switch status {
		case StatusActive:
			c.Active = n
		case StatusInactive:
			c.Inactive = n
		case StatusInvalid:
			c.Invalid = n
		}
	}
	return c, rows.Err()
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]PhoneNumber, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]PhoneNumber, 0)
	for rows.Next() {
		n, err := scanNumber(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNumber(row rowScanner) (PhoneNumber, error) {
	var n PhoneNumber
	var notes sql.NullString
	if err := row.Scan(&n.ID, &n.Number, &n.Status, &notes, &n.CreatedAt, &n.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PhoneNumber{}, ErrNotFound
		}
		return PhoneNumber{}, err
	}
	n.Notes = notes.String
	return n, nil
}
