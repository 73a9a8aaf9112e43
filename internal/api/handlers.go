package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/alexedwards/flow"
	"github.com/pudottapommin/shelf/pkg/notes"
)

const maxBodyBytes = 1 << 20

func (h *handlers) notePOST(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var dto NoteRequestData
	defer r.Body.Close()
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&dto); err != nil {
		h.l.Debug("failed to decode request body", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(dto.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required")
		return
	}

	ttlDays, maxVisits := h.defaults.DefaultTTLDays, h.defaults.DefaultMaxVisits
	if dto.TTLDays != nil {
		ttlDays = *dto.TTLDays
	}
	if dto.MaxVisits != nil {
		maxVisits = *dto.MaxVisits
	}

	summary, err := h.svc.Insert(ctx, dto.Content, dto.Private, ttlDays, maxVisits)
	switch {
	case errors.Is(err, notes.ErrInvalidParameters):
		writeError(w, http.StatusBadRequest, fmt.Sprintf("ttl_days must be between 1 and %d and max_visits at least 1", notes.MaxTTLDays))
		return
	case err != nil:
		h.l.Error("failed to insert note", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store note")
		return
	}

	h.writeJSON(w, http.StatusCreated, newNoteCreatedData(summary))
}

func (h *handlers) noteGET(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := strings.TrimSpace(flow.Param(ctx, "id"))
	if id == "" {
		writeError(w, http.StatusNotFound, "note not found")
		return
	}

	note, err := h.svc.Fetch(ctx, id)
	switch {
	case errors.Is(err, notes.ErrNotFound):
		writeError(w, http.StatusNotFound, "note not found")
		return
	case err != nil:
		h.l.Error("failed to fetch note", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to read note")
		return
	}

	h.writeJSON(w, http.StatusOK, newNoteResponseData(note))
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.l.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponseData{Error: msg})
}
