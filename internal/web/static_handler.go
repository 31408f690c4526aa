package web

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"sync"

	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/kuitang/pocketnotes/internal/obs"
)

//go:embed docs/*.md
var docsFS embed.FS

// DocPageData contains data for rendered documentation pages.
type DocPageData struct {
	PageData
	Content template.HTML
}

// DocsHandler serves the help and API pages, rendered from markdown with the
// same renderer notes use. Rendered HTML is cached per page.
type DocsHandler struct {
	renderer *Renderer
	src      fs.FS
	cache    map[string]template.HTML
	cacheMu  sync.RWMutex
}

// NewDocsHandler serves the embedded documentation.
func NewDocsHandler(renderer *Renderer) *DocsHandler {
	sub, err := fs.Sub(docsFS, "docs")
	if err != nil {
		panic(err)
	}
	return NewDocsHandlerFS(renderer, sub)
}

// NewDocsHandlerFS serves <slug>.md files from src.
func NewDocsHandlerFS(renderer *Renderer, src fs.FS) *DocsHandler {
	return &DocsHandler{
		renderer: renderer,
		src:      src,
		cache:    make(map[string]template.HTML),
	}
}

// RegisterRoutes registers documentation routes on the given mux.
func (h *DocsHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /help", h.HandleHelp)
	mux.HandleFunc("GET /docs/api", h.HandleAPIDocs)
	mux.HandleFunc("GET /docs", h.HandleAPIDocs) // Alias
}

// HandleHelp serves the markdown and filtering cheat sheet.
func (h *DocsHandler) HandleHelp(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, "help", "Help")
}

// HandleAPIDocs serves the JSON API and MCP reference.
func (h *DocsHandler) HandleAPIDocs(w http.ResponseWriter, r *http.Request) {
	h.servePage(w, r, "api", "API Documentation")
}

func (h *DocsHandler) servePage(w http.ResponseWriter, r *http.Request, slug, title string) {
	content, err := h.rendered(slug)
	if err != nil {
		h.renderer.RenderError(w, http.StatusNotFound, "Page not found")
		return
	}

	data := DocPageData{
		PageData: PageData{Title: title},
		Content:  content,
	}
	if err := h.renderer.Render(w, http.StatusOK, "docs/page.html", data); err != nil {
		obs.From(r.Context()).Error("web.render_failed", "template", "docs/page.html", "error", err)
		h.renderer.RenderError(w, http.StatusInternalServerError, "Failed to render page")
	}
}

// rendered returns the page HTML, rendering and caching it on first use.
func (h *DocsHandler) rendered(slug string) (template.HTML, error) {
	h.cacheMu.RLock()
	content, ok := h.cache[slug]
	h.cacheMu.RUnlock()
	if ok {
		return content, nil
	}

	md, err := fs.ReadFile(h.src, slug+".md")
	if err != nil {
		return "", err
	}
	content = notes.RenderHTML(string(md))

	h.cacheMu.Lock()
	h.cache[slug] = content
	h.cacheMu.Unlock()
	return content, nil
}
