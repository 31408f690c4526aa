// Package web provides the server-rendered notes UI: list, editor, preview,
// search and filter controls, and a server-sent event stream of store changes.
package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/kuitang/pocketnotes/internal/notes"
)

//go:embed templates/*.html templates/*/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// baseTemplate is the layout every page template fills in.
const baseTemplate = "base.html"

// Renderer manages HTML template rendering with custom functions.
// Each page is parsed together with the base layout once at construction.
type Renderer struct {
	templates map[string]*template.Template
	funcMap   template.FuncMap
}

// NewRenderer parses the embedded templates.
func NewRenderer() (*Renderer, error) {
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded templates: %w", err)
	}
	return NewRendererFS(sub)
}

// NewRendererFS parses base.html and every other .html file in fsys.
// Page names are their slash-separated paths relative to the root (e.g. "notes/list.html").
func NewRendererFS(fsys fs.FS) (*Renderer, error) {
	r := &Renderer{
		templates: make(map[string]*template.Template),
		funcMap:   createFuncMap(),
	}
	if err := r.parseTemplates(fsys); err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return r, nil
}

// Render executes the named page with data and writes it with the given status.
// The page is rendered into a buffer first so a template error never produces a half-written page.
func (r *Renderer) Render(w http.ResponseWriter, status int, templateName string, data any) error {
	tmpl, ok := r.templates[templateName]
	if !ok {
		return fmt.Errorf("template %q not found", templateName)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		return fmt.Errorf("failed to execute template %q: %w", templateName, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}

// ErrorPageData is the data for the error page.
type ErrorPageData struct {
	PageData
	ErrorCode string
}

// RenderError renders the error page with the given HTTP status code and message.
func (r *Renderer) RenderError(w http.ResponseWriter, code int, message string) {
	data := ErrorPageData{
		PageData:  PageData{Title: http.StatusText(code), Error: message},
		ErrorCode: http.StatusText(code),
	}
	if err := r.Render(w, code, "error.html", data); err == nil {
		return
	}
	http.Error(w, fmt.Sprintf("Error %d: %s", code, message), code)
}

// parseTemplates parses the layout once and clones it for every page, so each
// page can override the layout's blocks without affecting the others.
func (r *Renderer) parseTemplates(fsys fs.FS) error {
	layout, err := template.New("base").Funcs(r.funcMap).ParseFS(fsys, baseTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse base template: %w", err)
	}

	pages, err := pageNames(fsys)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no page templates found")
	}

	for _, name := range pages {
		tmpl, err := layout.Clone()
		if err != nil {
			return fmt.Errorf("failed to clone layout for %s: %w", name, err)
		}
		src, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("failed to read template %s: %w", name, err)
		}
		if _, err := tmpl.Parse(string(src)); err != nil {
			return fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		r.templates[name] = tmpl
	}
	return nil
}

// pageNames lists every .html file except the layout, in walk order.
func pageNames(fsys fs.FS) ([]string, error) {
	var names []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && p != baseTemplate && path.Ext(p) == ".html" {
			names = append(names, p)
		}
		return nil
	})
	return names, err
}

// StaticHandler serves the embedded stylesheet and scripts under /static/.
func StaticHandler() http.Handler {
	return http.FileServerFS(staticFS)
}

func createFuncMap() template.FuncMap {
	return template.FuncMap{
		"formatTime":   formatTime,
		"isoTime":      isoTime,
		"truncate":     truncate,
		"markdown":     notes.RenderHTML,
		"displayTitle": notes.DisplayTitle,
		"joinTags":     joinTags,
		"hasTag":       hasTag,
	}
}

// formatTime formats a time as a short human-readable timestamp.
// Example: "Jan 2, 2006 15:04"
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("Jan 2, 2006 15:04")
}

func isoTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// truncate truncates a string to n characters, adding "..." if truncated.
// If the string is shorter than or equal to n, it is returned unchanged.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// hasTag reports whether tag is in tags. Used to check the active tag filters.
func hasTag(tags []string, tag string) bool {
	return slices.Contains(tags, tag)
}

// joinTags renders tags as the comma separated text the editor's tag field accepts.
func joinTags(tags []string) string {
	return strings.Join(tags, ", ")
}
