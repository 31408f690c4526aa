package web

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func serveDocs(t *testing.T, h *DocsHandler, target string) *httptest.ResponseRecorder {
	t.Helper()
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestDocsHandler_EmbeddedPages(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	h := NewDocsHandler(renderer)

	tests := []struct {
		path  string
		title string
		want  string
	}{
		{"/help", "Help · pocketnotes", "Formatting</h2>"},
		{"/docs/api", "API Documentation · pocketnotes", "note_list"},
		{"/docs", "API Documentation · pocketnotes", "/api/notes"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serveDocs(t, h, tt.path)
			require.Equal(t, http.StatusOK, rec.Code)
			require.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			body := rec.Body.String()
			require.Contains(t, body, "<title>"+tt.title+"</title>")
			require.Contains(t, body, tt.want)
		})
	}
}

func TestDocsHandler_SanitizesAndCaches(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	src := fstest.MapFS{
		"help.md": {Data: []byte("# Hi\n\n<script>alert(1)</script>\n")},
	}
	h := NewDocsHandlerFS(renderer, src)

	rec := serveDocs(t, h, "/help")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Hi</h1>")
	require.NotContains(t, rec.Body.String(), "alert(1)")

	// Served from cache once rendered.
	src["help.md"] = &fstest.MapFile{Data: []byte("# Changed\n")}
	rec = serveDocs(t, h, "/help")
	require.Contains(t, rec.Body.String(), "Hi</h1>")
	require.NotContains(t, rec.Body.String(), "Changed")
}

func TestDocsHandler_MissingPage(t *testing.T) {
	renderer, err := NewRenderer()
	require.NoError(t, err)
	h := NewDocsHandlerFS(renderer, fstest.MapFS{})

	rec := serveDocs(t, h, "/docs/api")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
