package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errDatabaseConnection = errors.New("database connection failed")

func newTestPostgres(t *testing.T) (*Postgres, pgxmock.PgxPoolIface, Codec) {
	t.Helper()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})

	codec, err := NewCodec(nil)
	require.NoError(t, err)
	return NewPostgres(mock, codec), mock, codec
}

func TestPostgresCreate(t *testing.T) {
	ctx := context.Background()
	note := testNote("apple-river", 2)

	t.Run("success", func(t *testing.T) {
		s, mock, _ := newTestPostgres(t)
		mock.ExpectExec(regexp.QuoteMeta(sqlCreateNote)).
			WithArgs(note.ID, pgxmock.AnyArg(), note.IsPrivate, int64(0), int64(2), note.InsertedAt, note.ExpiresAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, s.Create(ctx, note))
	})

	t.Run("duplicate id", func(t *testing.T) {
		s, mock, _ := newTestPostgres(t)
		mock.ExpectExec(regexp.QuoteMeta(sqlCreateNote)).
			WithArgs(note.ID, pgxmock.AnyArg(), note.IsPrivate, int64(0), int64(2), note.InsertedAt, note.ExpiresAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		assert.ErrorIs(t, s.Create(ctx, note), ErrDuplicateID)
	})

	t.Run("database error", func(t *testing.T) {
		s, mock, _ := newTestPostgres(t)
		mock.ExpectExec(regexp.QuoteMeta(sqlCreateNote)).
			WithArgs(note.ID, pgxmock.AnyArg(), note.IsPrivate, int64(0), int64(2), note.InsertedAt, note.ExpiresAt).
			WillReturnError(errDatabaseConnection)

		err := s.Create(ctx, note)
		require.ErrorIs(t, err, errDatabaseConnection)
		assert.NotErrorIs(t, err, ErrDuplicateID)
	})
}

func TestPostgresExists(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(sqlNoteExists)).
		WithArgs("apple-river").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(sqlNoteExists)).
		WithArgs("stone-cloud").
		WillReturnError(errDatabaseConnection)

	ok, err := s.Exists(ctx, "apple-river")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Exists(ctx, "stone-cloud")
	assert.ErrorIs(t, err, errDatabaseConnection)
}

func TestPostgresReadAndIncrementVisits(t *testing.T) {
	ctx := context.Background()
	columns := []string{"content", "is_private", "visit_count", "max_visits", "inserted_at", "expires_at"}

	t.Run("found", func(t *testing.T) {
		s, mock, codec := newTestPostgres(t)
		content, err := codec.Encode([]byte("hello"))
		require.NoError(t, err)

		mock.ExpectQuery(regexp.QuoteMeta(sqlVisitNote)).
			WithArgs("apple-river", testNow).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow(content, false, int64(1), int64(2), testNow, testNow.Add(24*time.Hour)))

		n, ok, err := s.ReadAndIncrementVisits(ctx, "apple-river", testNow)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "apple-river", n.ID)
		assert.Equal(t, "hello", n.Content)
		assert.EqualValues(t, 1, n.VisitCount)
		assert.EqualValues(t, 2, n.MaxVisits)
		assert.True(t, n.ExpiresAt.Equal(testNow.Add(24*time.Hour)))
	})

	t.Run("absent, exhausted or expired", func(t *testing.T) {
		s, mock, _ := newTestPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta(sqlVisitNote)).
			WithArgs("apple-river", testNow).
			WillReturnError(pgx.ErrNoRows)

		_, ok, err := s.ReadAndIncrementVisits(ctx, "apple-river", testNow)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("database error", func(t *testing.T) {
		s, mock, _ := newTestPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta(sqlVisitNote)).
			WithArgs("apple-river", testNow).
			WillReturnError(errDatabaseConnection)

		_, ok, err := s.ReadAndIncrementVisits(ctx, "apple-river", testNow)
		assert.ErrorIs(t, err, errDatabaseConnection)
		assert.False(t, ok)
	})

	t.Run("corrupt content", func(t *testing.T) {
		s, mock, _ := newTestPostgres(t)
		mock.ExpectQuery(regexp.QuoteMeta(sqlVisitNote)).
			WithArgs("apple-river", testNow).
			WillReturnRows(pgxmock.NewRows(columns).
				AddRow([]byte("garbage"), false, int64(1), int64(2), testNow, testNow.Add(24*time.Hour)))

		_, _, err := s.ReadAndIncrementVisits(ctx, "apple-river", testNow)
		assert.ErrorIs(t, err, ErrCorrupt)
	})
}

func TestPostgresDelete(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(sqlDeleteNote)).
		WithArgs("apple-river").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(sqlDeleteNote)).
		WithArgs("apple-river").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(regexp.QuoteMeta(sqlDeleteNote)).
		WithArgs("apple-river").
		WillReturnError(errDatabaseConnection)

	require.NoError(t, s.Delete(ctx, "apple-river"))
	require.NoError(t, s.Delete(ctx, "apple-river"))
	assert.ErrorIs(t, s.Delete(ctx, "apple-river"), errDatabaseConnection)
}

func TestPostgresDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(sqlDeleteExpired)).
		WithArgs("apple-river", testNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(regexp.QuoteMeta(sqlDeleteExpired)).
		WithArgs("apple-river", testNow).
		WillReturnError(errDatabaseConnection)

	require.NoError(t, s.DeleteExpired(ctx, "apple-river", testNow))
	assert.ErrorIs(t, s.DeleteExpired(ctx, "apple-river", testNow), errDatabaseConnection)
}

func TestPostgresExpiries(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestPostgres(t)

	mock.ExpectQuery(regexp.QuoteMeta(sqlNoteExpiries)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "expires_at"}).
			AddRow("apple-river", testNow).
			AddRow("stone-cloud", testNow.Add(time.Hour)))

	got, err := s.Expiries(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "apple-river", got[0].ID)
	assert.True(t, got[1].At.Equal(testNow.Add(time.Hour)))
}

func TestPostgresSchedules(t *testing.T) {
	ctx := context.Background()
	s, mock, _ := newTestPostgres(t)

	mock.ExpectExec(regexp.QuoteMeta(sqlPutSchedule)).
		WithArgs("apple-river", testNow).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(regexp.QuoteMeta(sqlSchedules)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "fire_at"}).AddRow("apple-river", testNow))
	mock.ExpectExec(regexp.QuoteMeta(sqlRemoveSchedule)).
		WithArgs("apple-river", testNow).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectQuery(regexp.QuoteMeta(sqlSchedules)).
		WillReturnError(errDatabaseConnection)

	require.NoError(t, s.PutSchedule(ctx, Expiry{ID: "apple-river", At: testNow}))
	got, err := s.Schedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Expiry{{ID: "apple-river", At: testNow}}, got)
	require.NoError(t, s.RemoveSchedule(ctx, Expiry{ID: "apple-river", At: testNow}))

	_, err = s.Schedules(ctx)
	assert.ErrorIs(t, err, errDatabaseConnection)
}

func TestMigrateURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@h:5432/db", migrateURL("postgres://u:p@h:5432/db"))
	assert.Equal(t, "pgx5://u@h/db", migrateURL("postgresql://u@h/db"))
	assert.Equal(t, "pgx5://h/db", migrateURL("pgx5://h/db"))
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
