package web

import (
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"time"

	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
)

// previewLines is how many content lines a list card shows.
const previewLines = notes.DefaultPreviewLines

// viewCookie holds the sidebar layout for the browser session.
const viewCookie = "view"

// Sidebar layouts.
const (
	ViewList = "list"
	ViewGrid = "grid"
)

// fetchHeader marks editor autosave requests sent by app.js; they get JSON instead of a redirect.
const fetchHeader = "X-Requested-With"

// WebHandler provides HTTP handlers for web UI pages.
type WebHandler struct {
	renderer *Renderer
	store    *notes.Store
}

// NewWebHandler creates a new web handler.
func NewWebHandler(renderer *Renderer, store *notes.Store) *WebHandler {
	return &WebHandler{renderer: renderer, store: store}
}

// RegisterRoutes registers all web UI routes on the given mux.
func (h *WebHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.HandleNotesList)
	mux.HandleFunc("POST /notes", h.HandleCreateNote)
	mux.HandleFunc("GET /notes/{id}", h.HandleViewNote)
	mux.HandleFunc("POST /notes/{id}", h.HandleUpdateNote)
	mux.HandleFunc("POST /notes/{id}/delete", h.HandleDeleteNote)
	mux.HandleFunc("POST /notes/{id}/favorite", h.HandleToggleFavorite)
	mux.HandleFunc("POST /notes/{id}/archive", h.HandleToggleArchive)
	mux.HandleFunc("GET /notes/{id}/export", h.HandleExportNote)
	mux.HandleFunc("GET /events", h.HandleEvents)
	mux.Handle("GET /static/", StaticHandler())
}

// PageData contains common data passed to all templates.
type PageData struct {
	Title string
	Error string
}

// NotesPageData contains data for the notes page: the filtered list, the
// filter controls and the editor for the active note.
type NotesPageData struct {
	PageData
	Notes      []notes.NoteListItem
	TotalCount int
	AllTags    []string
	Filters    notes.Filters
	Active     *EditorData
	Palette    []notes.PaletteColor
	SortFields []SortOption
	View       string // ViewList or ViewGrid
}

// EditorData is the active note as shown in the editor and preview panes.
type EditorData struct {
	Note       notes.Note
	Preview    template.HTML
	TagText    string
	TotalLines int
}

// SortOption is one entry of the sort select.
type SortOption struct {
	Value notes.SortField
	Label string
}

var sortOptions = []SortOption{
	{Value: notes.SortByUpdatedAt, Label: "Last updated"},
	{Value: notes.SortByCreatedAt, Label: "Created"},
	{Value: notes.SortByTitle, Label: "Title"},
}

// SaveResponse is returned to autosave requests.
type SaveResponse struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Preview   template.HTML `json:"preview"`
}

// HandleNotesList handles GET / - applies filter query parameters and renders the list.
// Without filter parameters the session's current filters are kept.
func (h *WebHandler) HandleNotesList(w http.ResponseWriter, r *http.Request) {
	view, ok := h.viewMode(w, r)
	if !ok || !h.applyFilterQuery(w, r) {
		return
	}
	h.renderNotesPage(w, r, view)
}

// HandleViewNote handles GET /notes/{id} - selects the note and renders it in the editor.
func (h *WebHandler) HandleViewNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.store.Get(id); !ok {
		h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
		return
	}
	view, ok := h.viewMode(w, r)
	if !ok || !h.applyFilterQuery(w, r) {
		return
	}
	h.store.SetActive(id)
	h.renderNotesPage(w, r, view)
}

// HandleCreateNote handles POST /notes - creates a note from the form and opens it.
func (h *WebHandler) HandleCreateNote(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, "Invalid form data")
		return
	}

	color := r.PostFormValue("color")
	if !notes.IsPaletteColor(color) {
		h.renderer.RenderError(w, http.StatusBadRequest, "Unknown color")
		return
	}

	note := h.store.Create(notes.NoteInput{
		Title:   r.PostFormValue("title"),
		Content: r.PostFormValue("content"),
		Tags:    notes.ParseTagList(r.PostFormValue("tags")),
		Color:   color,
	})
	obs.From(r.Context()).Info("web.note_created", "note_id", note.ID)

	http.Redirect(w, r, "/notes/"+note.ID, http.StatusSeeOther)
}

// HandleUpdateNote handles POST /notes/{id}. Only the form fields that are
// present are applied, so the editor can autosave a single field.
func (h *WebHandler) HandleUpdateNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		h.fail(w, r, http.StatusBadRequest, "Invalid form data")
		return
	}

	patch, err := patchFromForm(r.PostForm)
	if err != nil {
		h.fail(w, r, http.StatusBadRequest, err.Error())
		return
	}

	note, ok := h.store.Update(id, patch)
	if !ok {
		h.fail(w, r, http.StatusNotFound, "Note not found")
		return
	}

	if isFetch(r) {
		writeJSON(w, http.StatusOK, SaveResponse{
			ID:        note.ID,
			Title:     notes.DisplayTitle(note),
			UpdatedAt: note.UpdatedAt,
			Preview:   notes.RenderHTML(note.Content),
		})
		return
	}
	http.Redirect(w, r, "/notes/"+id, http.StatusSeeOther)
}

// HandleDeleteNote handles POST /notes/{id}/delete.
func (h *WebHandler) HandleDeleteNote(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !h.store.Delete(id) {
		h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
		return
	}
	obs.From(r.Context()).Info("web.note_deleted", "note_id", id)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleToggleFavorite handles POST /notes/{id}/favorite.
func (h *WebHandler) HandleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.store.ToggleFavorite)
}

// HandleToggleArchive handles POST /notes/{id}/archive.
func (h *WebHandler) HandleToggleArchive(w http.ResponseWriter, r *http.Request) {
	h.toggle(w, r, h.store.ToggleArchive)
}

func (h *WebHandler) toggle(w http.ResponseWriter, r *http.Request, fn func(string) (notes.Note, bool)) {
	id := r.PathValue("id")
	if _, ok := fn(id); !ok {
		h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
		return
	}
	http.Redirect(w, r, "/notes/"+id, http.StatusSeeOther)
}

// HandleExportNote handles GET /notes/{id}/export - downloads the note as a standalone HTML page.
func (h *WebHandler) HandleExportNote(w http.ResponseWriter, r *http.Request) {
	note, ok := h.store.Get(r.PathValue("id"))
	if !ok {
		h.renderer.RenderError(w, http.StatusNotFound, "Note not found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportFilename(note)))
	_, _ = w.Write(notes.RenderDocument(note))
}

// applyFilterQuery merges filter query parameters into the store. It reports
// false after writing an error response.
func (h *WebHandler) applyFilterQuery(w http.ResponseWriter, r *http.Request) bool {
	q := r.URL.Query()
	if q.Has("reset") {
		h.store.UpdateFilters(notes.ResetFilters())
		return true
	}
	if !notes.HasFilterQuery(q) {
		return true
	}
	patch, err := notes.ParseFilterQuery(q)
	if err != nil {
		h.renderer.RenderError(w, http.StatusBadRequest, err.Error())
		return false
	}
	h.store.UpdateFilters(patch)
	return true
}

// viewMode resolves the sidebar layout. A view query parameter switches it
// and is remembered in a session cookie; otherwise the cookie decides.
// It reports false after writing an error response.
func (h *WebHandler) viewMode(w http.ResponseWriter, r *http.Request) (string, bool) {
	q := r.URL.Query()
	if q.Has("view") {
		view := q.Get("view")
		if view != ViewList && view != ViewGrid {
			h.renderer.RenderError(w, http.StatusBadRequest, fmt.Sprintf("unknown view %q", view))
			return "", false
		}
		http.SetCookie(w, &http.Cookie{
			Name:     viewCookie,
			Value:    view,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		return view, true
	}
	if c, err := r.Cookie(viewCookie); err == nil && c.Value == ViewGrid {
		return ViewGrid, true
	}
	return ViewList, true
}

func (h *WebHandler) renderNotesPage(w http.ResponseWriter, r *http.Request, view string) {
	filtered := h.store.Filtered()
	items := make([]notes.NoteListItem, 0, len(filtered))
	for _, n := range filtered {
		items = append(items, notes.ListItem(n, previewLines))
	}

	data := NotesPageData{
		PageData:   PageData{Title: "Notes"},
		Notes:      items,
		TotalCount: h.store.Len(),
		AllTags:    h.store.AllTags(),
		Filters:    h.store.Filters(),
		Palette:    notes.Palette,
		SortFields: sortOptions,
		View:       view,
	}
	if active, ok := h.store.Active(); ok {
		data.Title = notes.DisplayTitle(active)
		data.Active = &EditorData{
			Note:       active,
			Preview:    notes.RenderHTML(active.Content),
			TagText:    joinTags(active.Tags),
			TotalLines: notes.CountLines(active.Content),
		}
	}
	if msg := r.URL.Query().Get("error"); msg != "" {
		data.Error = msg
	}

	if err := h.renderer.Render(w, http.StatusOK, "notes/list.html", data); err != nil {
		obs.From(r.Context()).Error("web.render_failed", "error", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// fail answers autosave requests with JSON and form posts with the error page.
func (h *WebHandler) fail(w http.ResponseWriter, r *http.Request, status int, message string) {
	if isFetch(r) {
		writeJSON(w, status, map[string]string{"error": message})
		return
	}
	h.renderer.RenderError(w, status, message)
}

// patchFromForm builds a note patch from the form fields that are present.
func patchFromForm(form url.Values) (notes.NotePatch, error) {
	var patch notes.NotePatch
	if form.Has("title") {
		title := form.Get("title")
		patch.Title = &title
	}
	if form.Has("content") {
		content := form.Get("content")
		patch.Content = &content
	}
	if form.Has("tags") {
		tags := notes.ParseTagList(form.Get("tags"))
		patch.Tags = &tags
	}
	if form.Has("color") {
		color := form.Get("color")
		if !notes.IsPaletteColor(color) {
			return notes.NotePatch{}, fmt.Errorf("unknown color %q", color)
		}
		patch.Color = &color
	}
	return patch, nil
}

func isFetch(r *http.Request) bool {
	return r.Header.Get(fetchHeader) == "fetch"
}

// exportFilename turns the note title into a safe download name.
func exportFilename(n notes.Note) string {
	return notes.Slug(n) + ".html"
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
