package storage

import (
	"context"
	"sync"
	"time"
)

// Memory keeps notes in process memory. Nothing survives a restart, so it is
// meant for development and tests.
type Memory struct {
	mu        sync.Mutex
	notes     map[string]Note
	schedules map[string]time.Time
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{notes: make(map[string]Note), schedules: make(map[string]time.Time)}
}

func (s *Memory) Create(_ context.Context, note Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.notes[note.ID]; ok {
		return ErrDuplicateID
	}
	s.notes[note.ID] = note
	return nil
}

func (s *Memory) Exists(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.notes[id]
	return ok, nil
}

func (s *Memory) ReadAndIncrementVisits(_ context.Context, id string, now time.Time) (Note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	if !ok || !n.Live(now) {
		return Note{}, false, nil
	}
	n.VisitCount++
	s.notes[id] = n
	return n, true, nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, id)
	delete(s.schedules, id)
	return nil
}

func (s *Memory) DeleteExpired(_ context.Context, id string, asOf time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notes[id]; ok && !n.ExpiresAt.After(asOf) {
		delete(s.notes, id)
	}
	if at, ok := s.schedules[id]; ok && !at.After(asOf) {
		delete(s.schedules, id)
	}
	return nil
}

func (s *Memory) Expiries(_ context.Context) ([]Expiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Expiry, 0, len(s.notes))
	for id, n := range s.notes {
		out = append(out, Expiry{ID: id, At: n.ExpiresAt})
	}
	return out, nil
}

func (s *Memory) PutSchedule(_ context.Context, e Expiry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[e.ID] = e.At
	return nil
}

func (s *Memory) RemoveSchedule(_ context.Context, e Expiry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if at, ok := s.schedules[e.ID]; ok && at.Equal(e.At) {
		delete(s.schedules, e.ID)
	}
	return nil
}

func (s *Memory) Schedules(_ context.Context) ([]Expiry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Expiry, 0, len(s.schedules))
	for id, at := range s.schedules {
		out = append(out, Expiry{ID: id, At: at})
	}
	return out, nil
}

func (s *Memory) Close() {}
