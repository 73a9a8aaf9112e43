// Package scheduler deletes notes when their time to live runs out.
//
// Every pending deletion is kept twice: as an in-process timer and as a
// durable entry in the schedule store. After a restart Recover rebuilds the
// timers from the notes themselves and from the durable entries, deleting
// whatever already expired while the process was down.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pudottapommin/shelf/pkg/storage"
	"golang.org/x/sync/errgroup"
)

const sweepConcurrency = 8

var ErrClosed = errors.New("scheduler: closed")

type (
	Scheduler struct {
		notes     storage.NoteStore
		schedules storage.ScheduleStore
		l         *slog.Logger
		now       func() time.Time
		backoff   Backoff

		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		mu     sync.Mutex
		tasks  map[string]*task
		gen    uint64
		closed bool
	}

	task struct {
		timer *time.Timer
		gen   uint64
		at    time.Time
	}

	RecoverStats struct {
		Swept int
		Armed int
	}

	Option func(*Scheduler)
)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.l = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func WithBackoff(b Backoff) Option {
	return func(s *Scheduler) { s.backoff = b }
}

func New(notes storage.NoteStore, schedules storage.ScheduleStore, opts ...Option) *Scheduler {
	s := &Scheduler{
		notes:     notes,
		schedules: schedules,
		l:         slog.Default(),
		now:       time.Now,
		backoff:   DefaultBackoff(),
		tasks:     make(map[string]*task),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.l = s.l.With("component", "scheduler")
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s
}

// ScheduleDeletion arms a timer that deletes id at at and records it durably.
// The timer is armed even when the durable write fails; in that case the
// error is returned and Recover will find the note again from its own expiry.
func (s *Scheduler) ScheduleDeletion(ctx context.Context, id string, at time.Time) error {
	if !s.arm(id, at) {
		return ErrClosed
	}
	if err := s.schedules.PutSchedule(ctx, storage.Expiry{ID: id, At: at}); err != nil {
		return fmt.Errorf("scheduler: error persisting deletion of %s: %w", id, err)
	}
	return nil
}

// CancelDeletion drops the deletion of id that was scheduled for at. Missing
// or already fired deletions are ignored, and so is a deletion rescheduled for
// another instant, which belongs to a note that reused the id.
func (s *Scheduler) CancelDeletion(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	if t, ok := s.tasks[id]; ok && t.at.Equal(at) {
		t.timer.Stop()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	if err := s.schedules.RemoveSchedule(ctx, storage.Expiry{ID: id, At: at}); err != nil {
		return fmt.Errorf("scheduler: error removing deletion of %s: %w", id, err)
	}
	return nil
}

// Recover rebuilds pending deletions from durable state. Notes and schedule
// entries that are already due are deleted before it returns.
func (s *Scheduler) Recover(ctx context.Context) (RecoverStats, error) {
	due, pending, err := s.load(ctx)
	if err != nil {
		return RecoverStats{}, err
	}
	swept, failed := s.sweep(ctx, due)
	// Failed catch-up deletes go back to the timers, which retry with backoff.
	for _, e := range append(pending, failed...) {
		s.arm(e.ID, e.At)
	}
	stats := RecoverStats{Swept: swept, Armed: len(pending) + len(failed)}
	s.l.Info("recovered pending deletions", "swept", stats.Swept, "armed", stats.Armed)
	return stats, nil
}

// Sweep deletes every note and schedule entry that is already due without
// arming timers for the rest.
func (s *Scheduler) Sweep(ctx context.Context) (int, error) {
	due, _, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	swept, failed := s.sweep(ctx, due)
	if len(failed) > 0 {
		return swept, fmt.Errorf("scheduler: failed to delete %d expired notes", len(failed))
	}
	return swept, nil
}

// Pending returns the fire time of the armed deletion of id.
func (s *Scheduler) Pending(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return time.Time{}, false
	}
	return t.at, true
}

func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Close stops all timers and waits for deletions in flight. Durable entries
// stay in place for the next Recover.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, t := range s.tasks {
		t.timer.Stop()
		delete(s.tasks, id)
	}
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) arm(id string, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	if t, ok := s.tasks[id]; ok {
		t.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.tasks[id] = &task{
		gen:   gen,
		at:    at,
		timer: time.AfterFunc(max(at.Sub(s.now()), 0), func() { s.fire(id, gen) }),
	}
	return true
}

func (s *Scheduler) fire(id string, gen uint64) {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if s.closed || !ok || t.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.tasks, id)
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	err := retry(s.ctx, s.l.With("id", id), s.backoff, func(ctx context.Context) error {
		return s.notes.DeleteExpired(ctx, id, t.at)
	})
	if err != nil {
		s.l.Warn("expired note left for next recovery", "id", id, "error", err)
		return
	}
	s.l.Debug("expired note deleted", "id", id)
}

// load merges note expiries with durable schedule entries and splits them
// into due and pending. A note's own expiry wins over its schedule entry.
func (s *Scheduler) load(ctx context.Context) (due, pending []storage.Expiry, err error) {
	expiries, err := s.notes.Expiries(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: error loading note expiries: %w", err)
	}
	schedules, err := s.schedules.Schedules(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("scheduler: error loading schedules: %w", err)
	}

	merged := make(map[string]time.Time, len(expiries)+len(schedules))
	for _, e := range schedules {
		merged[e.ID] = e.At
	}
	for _, e := range expiries {
		merged[e.ID] = e.At
	}

	now := s.now()
	for id, at := range merged {
		e := storage.Expiry{ID: id, At: at}
		if at.After(now) {
			pending = append(pending, e)
		} else {
			due = append(due, e)
		}
	}
	return due, pending, nil
}

func (s *Scheduler) sweep(ctx context.Context, due []storage.Expiry) (int, []storage.Expiry) {
	var (
		mu     sync.Mutex
		failed []storage.Expiry
	)
	now := s.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)
	for _, e := range due {
		g.Go(func() error {
			if err := s.notes.DeleteExpired(gctx, e.ID, now); err != nil {
				s.l.Warn("failed to delete expired note", "id", e.ID, "error", err)
				mu.Lock()
				failed = append(failed, e)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return len(due) - len(failed), failed
}
