package api

import (
	"time"

	"github.com/pudottapommin/shelf/pkg/notes"
	"github.com/pudottapommin/shelf/pkg/storage"
)

type (
	NoteRequestData struct {
		Content   string `json:"content"`
		Private   bool   `json:"private"`
		TTLDays   *int   `json:"ttl_days,omitempty"`
		MaxVisits *int   `json:"max_visits,omitempty"`
	}

	NoteCreatedData struct {
		ID        string    `json:"id"`
		ExpiresAt time.Time `json:"expires_at"`
		MaxVisits uint64    `json:"max_visits"`
	}

	NoteResponseData struct {
		ID         string    `json:"id"`
		Content    string    `json:"content"`
		Private    bool      `json:"private"`
		VisitCount uint64    `json:"visit_count"`
		MaxVisits  uint64    `json:"max_visits"`
		InsertedAt time.Time `json:"inserted_at"`
		ExpiresAt  time.Time `json:"expires_at"`
	}

	ErrorResponseData struct {
		Error string `json:"error"`
	}
)

func newNoteCreatedData(s notes.Summary) NoteCreatedData {
	return NoteCreatedData{ID: s.ID, ExpiresAt: s.ExpiresAt, MaxVisits: s.MaxVisits}
}

func newNoteResponseData(n storage.Note) NoteResponseData {
	return NoteResponseData{
		ID:         n.ID,
		Content:    n.Content,
		Private:    n.IsPrivate,
		VisitCount: n.VisitCount,
		MaxVisits:  n.MaxVisits,
		InsertedAt: n.InsertedAt,
		ExpiresAt:  n.ExpiresAt,
	}
}
