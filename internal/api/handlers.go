// Package api exposes the note store over HTTP/JSON under /api.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/kuitang/pocketnotes/internal/errs"
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
	"github.com/kuitang/pocketnotes/internal/urlutil"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the JSON API over a note store.
type Handler struct {
	store *notes.Store
}

// NewHandler creates a new API handler for the given store.
func NewHandler(store *notes.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers all API routes on the given mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/notes", h.ListNotes)
	mux.HandleFunc("POST /api/notes", h.CreateNote)
	mux.HandleFunc("GET /api/notes/{id}", h.GetNote)
	mux.HandleFunc("PATCH /api/notes/{id}", h.UpdateNote)
	mux.HandleFunc("DELETE /api/notes/{id}", h.DeleteNote)
	mux.HandleFunc("POST /api/notes/{id}/favorite", h.ToggleFavorite)
	mux.HandleFunc("POST /api/notes/{id}/archive", h.ToggleArchive)
	mux.HandleFunc("GET /api/tags", h.ListTags)
	mux.HandleFunc("GET /api/active", h.GetActive)
	mux.HandleFunc("PUT /api/active", h.SetActive)
	mux.HandleFunc("GET /api/filters", h.GetFilters)
	mux.HandleFunc("PATCH /api/filters", h.UpdateFilters)
}

// NoteListResponse is returned by GET /api/notes.
type NoteListResponse struct {
	Notes      []notes.Note  `json:"notes"`
	Count      int           `json:"count"`
	TotalCount int           `json:"totalCount"`
	Filters    notes.Filters `json:"filters"`
}

// TagsResponse is returned by GET /api/tags.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

// ActiveRequest is the body of PUT /api/active. An empty id clears the selection.
type ActiveRequest struct {
	ID string `json:"id"`
}

// ActiveResponse is returned by the /api/active endpoints.
// Note is null when nothing is selected or the selection is dangling.
type ActiveResponse struct {
	ID   string      `json:"id"`
	Note *notes.Note `json:"note"`
}

// ListNotes handles GET /api/notes - returns the filtered, sorted collection.
// Filter query parameters update the session filters first, exactly like the web list.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if notes.HasFilterQuery(q) {
		patch, err := notes.ParseFilterQuery(q)
		if err != nil {
			writeError(w, r, errs.Wrap(errs.InvalidArgument, err.Error(), err))
			return
		}
		h.store.UpdateFilters(patch)
	}

	filtered := h.store.Filtered()
	writeJSON(w, http.StatusOK, NoteListResponse{
		Notes:      filtered,
		Count:      len(filtered),
		TotalCount: h.store.Len(),
		Filters:    h.store.Filters(),
	})
}

// CreateNote handles POST /api/notes - creates a note and selects it.
func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	var in notes.NoteInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	note := h.store.Create(in)
	obs.From(r.Context()).Info("api.note_created", "note_id", note.ID)
	w.Header().Set("Location", urlutil.Absolute(r, "/api/notes/"+note.ID))
	writeJSON(w, http.StatusCreated, note)
}

// GetNote handles GET /api/notes/{id}.
func (h *Handler) GetNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	note, ok := h.store.Get(id)
	if !ok {
		writeError(w, r, errs.NoteNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// UpdateNote handles PATCH /api/notes/{id} - merges the supplied fields.
func (h *Handler) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var patch notes.NotePatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	note, ok := h.store.Update(id, patch)
	if !ok {
		writeError(w, r, errs.NoteNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// DeleteNote handles DELETE /api/notes/{id}.
func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.Delete(id) {
		writeError(w, r, errs.NoteNotFound(id))
		return
	}
	obs.From(r.Context()).Info("api.note_deleted", "note_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// ToggleFavorite handles POST /api/notes/{id}/favorite.
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.store.ToggleFavorite)
}

// ToggleArchive handles POST /api/notes/{id}/archive.
func (h *Handler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.store.ToggleArchive)
}

func (h *Handler) toggle(w http.ResponseWriter, r *http.Request, fn func(string) (notes.Note, bool)) {
	id := r.PathValue("id")
	note, ok := fn(id)
	if !ok {
		writeError(w, r, errs.NoteNotFound(id))
		return
	}
	writeJSON(w, http.StatusOK, note)
}

// ListTags handles GET /api/tags - distinct tags across all notes, sorted.
func (h *Handler) ListTags(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, TagsResponse{Tags: h.store.AllTags()})
}

// GetActive handles GET /api/active.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.activeResponse())
}

// SetActive handles PUT /api/active. The id is stored as given, even if no note has it.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req ActiveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.store.SetActive(req.ID)
	writeJSON(w, http.StatusOK, h.activeResponse())
}

func (h *Handler) activeResponse() ActiveResponse {
	resp := ActiveResponse{ID: h.store.ActiveID()}
	if note, ok := h.store.Active(); ok {
		resp.Note = &note
	}
	return resp
}

// GetFilters handles GET /api/filters.
func (h *Handler) GetFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Filters())
}

// UpdateFilters handles PATCH /api/filters - a shallow merge of the supplied fields.
func (h *Handler) UpdateFilters(w http.ResponseWriter, r *http.Request) {
	var patch notes.FilterPatch
	if err := decodeBody(r, &patch); err != nil {
		writeError(w, r, err)
		return
	}
	if patch.SortBy != nil && !patch.SortBy.Valid() {
		writeError(w, r, errs.Newf(errs.InvalidArgument, "invalid sortBy %q", *patch.SortBy))
		return
	}
	if patch.SortOrder != nil && !patch.SortOrder.Valid() {
		writeError(w, r, errs.Newf(errs.InvalidArgument, "invalid sortOrder %q", *patch.SortOrder))
		return
	}
	writeJSON(w, http.StatusOK, h.store.UpdateFilters(patch))
}

// decodeBody strictly decodes a single JSON object into dst.
// Unknown fields, trailing data and oversized bodies are invalid arguments.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes+1))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.New(errs.InvalidArgument, "request body is required")
		}
		return errs.Wrap(errs.InvalidArgument, fmt.Sprintf("invalid JSON: %v", err), err)
	}
	if dec.More() {
		return errs.New(errs.InvalidArgument, "request body must contain a single JSON object")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError logs err and writes it as a coded JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := errs.CodeOf(err)
	logger := obs.From(r.Context())
	if code == errs.Internal {
		logger.Error("api.request_failed", "error", err)
	} else {
		logger.Debug("api.request_rejected", "code", code, "error", err)
	}
	errs.WriteHTTP(w, err)
}
