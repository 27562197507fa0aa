// Package handler is the HTTP layer for the notes service. It delegates to
// the service without embedding business logic, so transport concerns stay
// isolated.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"chronicle/internal/notes"
	"chronicle/pkg/platform/sentinel"
	"chronicle/pkg/revision"
	pgstore "chronicle/pkg/revision/store/postgres"
)

// Service defines the note operations the handler needs.
type Service interface {
	Save(ctx context.Context, n *notes.Note, comment string) error
	Delete(ctx context.Context, id, comment string) error
	Get(ctx context.Context, id string) (*notes.Note, error)
}

// History is the read side of the revision store.
type History interface {
	ListByKey(ctx context.Context, key revision.Key) ([]pgstore.StoredRevision, error)
	Recent(ctx context.Context, limit int) ([]pgstore.StoredRevision, error)
}

// Handler handles note endpoints.
type Handler struct {
	service Service
	history History
	logger  *slog.Logger
}

// New creates a notes Handler.
func New(service Service, history History, logger *slog.Logger) *Handler {
	return &Handler{service: service, history: history, logger: logger}
}

// Register registers the note routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Put("/notes/{id}", h.handleSave)
	r.Get("/notes/{id}", h.handleGet)
	r.Delete("/notes/{id}", h.handleDelete)
	r.Get("/notes/{id}/history", h.handleHistory)
	r.Get("/revisions", h.handleRecent)
}

type saveRequest struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	Comment string `json:"comment"`
}

type revisionResponse struct {
	ID        string            `json:"id"`
	Resource  string            `json:"resource"`
	Actor     string            `json:"actor,omitempty"`
	Comment   string            `json:"comment,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	Versions  []versionResponse `json:"versions"`
}

type versionResponse struct {
	Kind     string          `json:"kind"`
	ObjectID string          `json:"object_id"`
	Format   string          `json:"format"`
	Data     json.RawMessage `json:"data"`
}

func (h *Handler) handleSave(w http.ResponseWriter, r *http.Request) {
	var req saveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		writeJSONError(w, http.StatusBadRequest, "title is required")
		return
	}

	n := &notes.Note{ID: chi.URLParam(r, "id"), Title: req.Title, Body: req.Body}
	if err := h.service.Save(r.Context(), n, req.Comment); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	n, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	comment := r.URL.Query().Get("comment")
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id"), comment); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	key := revision.Key{Kind: (&notes.Note{}).EntityKind(), ID: chi.URLParam(r, "id")}
	revs, err := h.history.ListByKey(r.Context(), key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionResponses(revs))
}

func (h *Handler) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			writeJSONError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	revs, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toRevisionResponses(revs))
}

func toRevisionResponses(revs []pgstore.StoredRevision) []revisionResponse {
	out := make([]revisionResponse, 0, len(revs))
	for _, rev := range revs {
		resp := revisionResponse{
			ID:        rev.ID.String(),
			Resource:  rev.Resource,
			Actor:     rev.Actor,
			Comment:   rev.Comment,
			CreatedAt: rev.CreatedAt,
		}
		for _, v := range rev.Versions {
			resp.Versions = append(resp.Versions, versionResponse{
				Kind:     v.Key.Kind,
				ObjectID: v.Key.ID,
				Format:   v.Format,
				Data:     v.Data,
			})
		}
		out = append(out, resp)
	}
	return out
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		writeJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, sentinel.ErrUnavailable):
		writeJSONError(w, http.StatusServiceUnavailable, "unavailable")
	default:
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
