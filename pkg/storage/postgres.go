package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxPool is the subset of *pgxpool.Pool the store needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

const (
	sqlCreateNote = `INSERT INTO notes (id, content, is_private, visit_count, max_visits, inserted_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`
	sqlNoteExists = `SELECT EXISTS(SELECT 1 FROM notes WHERE id = $1)`
	sqlVisitNote  = `UPDATE notes SET visit_count = visit_count + 1
WHERE id = $1 AND visit_count < max_visits AND expires_at > $2
RETURNING content, is_private, visit_count, max_visits, inserted_at, expires_at`
	sqlDeleteNote     = `WITH deleted AS (DELETE FROM notes WHERE id = $1) DELETE FROM note_expiries WHERE id = $1`
	sqlDeleteExpired  = `WITH deleted AS (DELETE FROM notes WHERE id = $1 AND expires_at <= $2) DELETE FROM note_expiries WHERE id = $1 AND fire_at <= $2`
	sqlNoteExpiries   = `SELECT id, expires_at FROM notes`
	sqlPutSchedule    = `INSERT INTO note_expiries (id, fire_at) VALUES ($1, $2) ON CONFLICT (id) DO UPDATE SET fire_at = EXCLUDED.fire_at`
	sqlRemoveSchedule = `DELETE FROM note_expiries WHERE id = $1 AND fire_at = $2`
	sqlSchedules      = `SELECT id, fire_at FROM note_expiries`
)

// Postgres keeps notes in the notes table and pending deletions in
// note_expiries. Visits are counted with a single conditional UPDATE so the
// row lock serializes concurrent readers.
type Postgres struct {
	pool  PgxPool
	codec Codec
}

var _ Store = (*Postgres)(nil)

func NewPostgres(pool PgxPool, codec Codec) *Postgres {
	return &Postgres{pool: pool, codec: codec}
}

// ConnectPostgres opens and pings a connection pool.
func ConnectPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to parse connection config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to create connection pool: %w", err)
	}
	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}
	return pool, nil
}

func (s *Postgres) Create(ctx context.Context, note Note) error {
	content, err := s.codec.Encode([]byte(note.Content))
	if err != nil {
		return fmt.Errorf("postgres: error encoding content: %w", err)
	}
	tag, err := s.pool.Exec(ctx, sqlCreateNote,
		note.ID, content, note.IsPrivate, int64(note.VisitCount), int64(note.MaxVisits), note.InsertedAt, note.ExpiresAt)
	if err != nil {
		return fmt.Errorf("postgres: error storing note: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateID
	}
	return nil
}

func (s *Postgres) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, sqlNoteExists, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: error checking note: %w", err)
	}
	return exists, nil
}

func (s *Postgres) ReadAndIncrementVisits(ctx context.Context, id string, now time.Time) (Note, bool, error) {
	var (
		raw               []byte
		visits, maxVisits int64
		note              = Note{ID: id}
	)
	err := s.pool.QueryRow(ctx, sqlVisitNote, id, now).
		Scan(&raw, &note.IsPrivate, &visits, &maxVisits, &note.InsertedAt, &note.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Note{}, false, nil
		}
		return Note{}, false, fmt.Errorf("postgres: error visiting note: %w", err)
	}
	content, err := s.codec.Decode(raw)
	if err != nil {
		return Note{}, false, fmt.Errorf("postgres: error decoding content: %w", err)
	}
	note.Content = string(content)
	note.VisitCount = uint64(visits)
	note.MaxVisits = uint64(maxVisits)
	note.InsertedAt = note.InsertedAt.UTC()
	note.ExpiresAt = note.ExpiresAt.UTC()
	return note, true, nil
}

func (s *Postgres) Delete(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, sqlDeleteNote, id); err != nil {
		return fmt.Errorf("postgres: error deleting note: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteExpired(ctx context.Context, id string, asOf time.Time) error {
	if _, err := s.pool.Exec(ctx, sqlDeleteExpired, id, asOf); err != nil {
		return fmt.Errorf("postgres: error deleting expired note: %w", err)
	}
	return nil
}

func (s *Postgres) Expiries(ctx context.Context) ([]Expiry, error) {
	out, err := s.queryExpiries(ctx, sqlNoteExpiries)
	if err != nil {
		return nil, fmt.Errorf("postgres: error reading note expiries: %w", err)
	}
	return out, nil
}

func (s *Postgres) PutSchedule(ctx context.Context, e Expiry) error {
	if _, err := s.pool.Exec(ctx, sqlPutSchedule, e.ID, e.At); err != nil {
		return fmt.Errorf("postgres: error storing schedule: %w", err)
	}
	return nil
}

func (s *Postgres) RemoveSchedule(ctx context.Context, e Expiry) error {
	if _, err := s.pool.Exec(ctx, sqlRemoveSchedule, e.ID, e.At); err != nil {
		return fmt.Errorf("postgres: error removing schedule: %w", err)
	}
	return nil
}

func (s *Postgres) Schedules(ctx context.Context) ([]Expiry, error) {
	out, err := s.queryExpiries(ctx, sqlSchedules)
	if err != nil {
		return nil, fmt.Errorf("postgres: error reading schedules: %w", err)
	}
	return out, nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

func (s *Postgres) queryExpiries(ctx context.Context, sql string) ([]Expiry, error) {
	rows, err := s.pool.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Expiry
	for rows.Next() {
		var e Expiry
		if err = rows.Scan(&e.ID, &e.At); err != nil {
			return nil, err
		}
		e.At = e.At.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
