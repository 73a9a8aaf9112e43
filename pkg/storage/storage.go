package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateID = errors.New("storage: duplicate note id")
	ErrCorrupt     = errors.New("storage: corrupt record")
)

type (
	Note struct {
		ID         string
		Content    string
		IsPrivate  bool
		VisitCount uint64
		MaxVisits  uint64
		InsertedAt time.Time
		ExpiresAt  time.Time
	}

	// Expiry is the instant a note's deletion is due.
	Expiry struct {
		ID string
		At time.Time
	}

	NoteStore interface {
		// Create never overwrites an existing note and returns ErrDuplicateID instead.
		Create(ctx context.Context, note Note) error
		Exists(ctx context.Context, id string) (bool, error)
		// ReadAndIncrementVisits atomically counts one visit and returns the
		// note after the increment. Missing, exhausted and expired notes are
		// reported as not found and left untouched.
		ReadAndIncrementVisits(ctx context.Context, id string, now time.Time) (Note, bool, error)
		// Delete removes the note and its schedule entry. Missing ids are not an error.
		Delete(ctx context.Context, id string) error
		// DeleteExpired removes the note and its schedule entry only when they
		// are due at asOf, so a late timer never removes a reissued id.
		DeleteExpired(ctx context.Context, id string, asOf time.Time) error
		Expiries(ctx context.Context) ([]Expiry, error)
	}

	ScheduleStore interface {
		PutSchedule(ctx context.Context, e Expiry) error
		// RemoveSchedule drops the entry of e.ID only while it still fires at
		// e.At, so an entry re-put for a reissued id survives.
		RemoveSchedule(ctx context.Context, e Expiry) error
		Schedules(ctx context.Context) ([]Expiry, error)
	}

	Store interface {
		NoteStore
		ScheduleStore
		Close()
	}
)

// Live reports whether the note can still be read at now.
func (n Note) Live(now time.Time) bool {
	return n.VisitCount < n.MaxVisits && now.Before(n.ExpiresAt)
}

func (n Note) Exhausted() bool {
	return n.VisitCount >= n.MaxVisits
}
