// Package notes implements the note lifecycle: insertion with a time to live
// and a visit budget, and fetches that count visits until either runs out.
package notes

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pudottapommin/shelf/pkg/storage"
)

const (
	day = 24 * time.Hour

	// MaxTTLDays keeps expiry instants within the range of time.Duration.
	MaxTTLDays = 36500

	maxCreateAttempts = 16
)

var (
	ErrInvalidParameters = errors.New("notes: invalid parameters")
	ErrNotFound          = errors.New("notes: note not found")
)

type (
	IDGenerator interface {
		Generate(ctx context.Context) (string, error)
	}

	Scheduler interface {
		ScheduleDeletion(ctx context.Context, id string, at time.Time) error
		CancelDeletion(ctx context.Context, id string, at time.Time) error
	}

	Summary struct {
		ID        string
		ExpiresAt time.Time
		MaxVisits uint64
	}

	Service struct {
		store    storage.NoteStore
		sched    Scheduler
		ids      IDGenerator
		validate *validator.Validate
		l        *slog.Logger
		now      func() time.Time
	}

	Option func(*Service)

	insertParams struct {
		TTLDays   int `validate:"gte=1,lte=36500"`
		MaxVisits int `validate:"gte=1"`
	}
)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.l = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(store storage.NoteStore, sched Scheduler, ids IDGenerator, opts ...Option) *Service {
	s := &Service{
		store:    store,
		sched:    sched,
		ids:      ids,
		validate: validator.New(),
		l:        slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Insert stores a new note and schedules its deletion after ttlDays.
func (s *Service) Insert(ctx context.Context, content string, isPrivate bool, ttlDays, maxVisits int) (Summary, error) {
	if err := s.validate.Struct(insertParams{TTLDays: ttlDays, MaxVisits: maxVisits}); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrInvalidParameters, err)
	}

	// Stores keep millisecond precision.
	now := s.now().UTC().Truncate(time.Millisecond)
	note := storage.Note{
		Content:    content,
		IsPrivate:  isPrivate,
		MaxVisits:  uint64(maxVisits),
		InsertedAt: now,
		ExpiresAt:  now.Add(time.Duration(ttlDays) * day),
	}

	if err := s.create(ctx, &note); err != nil {
		return Summary{}, err
	}

	if err := s.sched.ScheduleDeletion(ctx, note.ID, note.ExpiresAt); err != nil {
		s.l.Error("failed to schedule note deletion", "id", note.ID, "error", err)
	}

	s.l.Debug("note created", "id", note.ID, "expires_at", note.ExpiresAt, "max_visits", note.MaxVisits)
	return Summary{ID: note.ID, ExpiresAt: note.ExpiresAt, MaxVisits: note.MaxVisits}, nil
}

// create persists note under a fresh id, drawing again when another insert
// claimed the same id between the occupancy check and the write.
func (s *Service) create(ctx context.Context, note *storage.Note) error {
	for range maxCreateAttempts {
		id, err := s.ids.Generate(ctx)
		if err != nil {
			return fmt.Errorf("notes: error generating id: %w", err)
		}
		note.ID = id
		err = s.store.Create(ctx, *note)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, storage.ErrDuplicateID):
			s.l.Debug("id taken by a concurrent insert", "id", id)
			continue
		default:
			return fmt.Errorf("notes: error creating note: %w", err)
		}
	}
	return fmt.Errorf("notes: no free id after %d create attempts", maxCreateAttempts)
}

// Fetch counts one visit and returns the note. The last allowed visit still
// returns the content and removes the note before returning.
func (s *Service) Fetch(ctx context.Context, id string) (storage.Note, error) {
	note, ok, err := s.store.ReadAndIncrementVisits(ctx, id, s.now().UTC())
	if err != nil {
		return storage.Note{}, fmt.Errorf("notes: error reading note: %w", err)
	}
	if !ok {
		return storage.Note{}, ErrNotFound
	}

	if note.Exhausted() {
		// The row is already unreadable, so a failed delete is left to the timer.
		if err = s.store.Delete(ctx, id); err != nil {
			s.l.Error("failed to delete exhausted note", "id", id, "error", err)
			return note, nil
		}
		if err = s.sched.CancelDeletion(ctx, id, note.ExpiresAt); err != nil {
			s.l.Warn("failed to cancel note deletion", "id", id, "error", err)
		}
		s.l.Debug("note exhausted", "id", id, "visits", note.VisitCount)
	}
	return note, nil
}
