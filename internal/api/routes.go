package api

import (
	"context"
	"log/slog"

	"github.com/alexedwards/flow"
	"github.com/pudottapommin/shelf/config"
	"github.com/pudottapommin/shelf/pkg/notes"
	"github.com/pudottapommin/shelf/pkg/storage"
)

type (
	NoteService interface {
		Insert(ctx context.Context, content string, isPrivate bool, ttlDays, maxVisits int) (notes.Summary, error)
		Fetch(ctx context.Context, id string) (storage.Note, error)
	}

	handlers struct {
		l        *slog.Logger
		svc      NoteService
		defaults config.Notes
	}
)

func NewHandlers(svc NoteService, defaults config.Notes, l *slog.Logger) *handlers {
	return &handlers{svc: svc, defaults: defaults, l: l}
}

func (h *handlers) AddHandlers(e *flow.Mux) {
	e.Group(func(g *flow.Mux) {
		g.HandleFunc("/api/notes", h.notePOST, "POST")
		g.HandleFunc("/api/notes/:id", h.noteGET, "GET")
	})
}
