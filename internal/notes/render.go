package notes

import (
	"bytes"
	"html/template"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	mdhtml "github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/microcosm-cc/bluemonday"
)

// sanitizer strips anything unsafe from rendered note HTML. Policies are safe for concurrent use.
var sanitizer = newSanitizer()

func newSanitizer() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AddTargetBlankToFullyQualifiedLinks(true)
	return p
}

// parseMarkdown builds the AST for note content: headings, emphasis, links,
// inline and fenced code, block quotes, lists and tables.
func parseMarkdown(content string) ast.Node {
	extensions := parser.CommonExtensions | parser.AutoHeadingIDs | parser.NoEmptyLineBeforeBlock
	p := parser.NewWithExtensions(extensions)
	return p.Parse([]byte(content))
}

// RenderHTML converts note markdown to sanitized HTML safe to embed in templates.
func RenderHTML(content string) template.HTML {
	if content == "" {
		return ""
	}
	renderer := mdhtml.NewRenderer(mdhtml.RendererOptions{
		Flags: mdhtml.CommonFlags | mdhtml.HrefTargetBlank,
	})
	raw := markdown.Render(parseMarkdown(content), renderer)
	return template.HTML(sanitizer.SanitizeBytes(raw))
}

// documentTemplate wraps a single exported note in a standalone page.
var documentTemplate = template.Must(template.New("document").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}}</title>
    <meta name="description" content="{{.Description}}">
    <style>
        :root { --text: #1a1a1a; --bg: #ffffff; --link: #0066cc; --code-bg: #f5f5f5; --accent: {{.Accent}}; }
        @media (prefers-color-scheme: dark) {
            :root { --text: #e0e0e0; --bg: #1a1a1a; --link: #66b3ff; --code-bg: #2d2d2d; }
        }
        body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6;
               color: var(--text); background: var(--bg); max-width: 800px; margin: 0 auto; padding: 2rem 1rem;
               border-top: 4px solid var(--accent); }
        a { color: var(--link); }
        code { background: var(--code-bg); padding: 0.2em 0.4em; border-radius: 3px; }
        pre { background: var(--code-bg); padding: 1rem; border-radius: 6px; overflow-x: auto; }
        pre code { background: transparent; padding: 0; }
        blockquote { margin: 1em 0; padding: 0.5em 1em; border-left: 4px solid #ddd; opacity: 0.85; }
        .tags span { display: inline-block; margin-right: 0.5em; font-size: 0.85em; opacity: 0.8; }
    </style>
</head>
<body>
    <article>
        <h1>{{.Title}}</h1>
        {{if .Tags}}<p class="tags">{{range .Tags}}<span>#{{.}}</span>{{end}}</p>{{end}}
        {{.Content}}
    </article>
</body>
</html>`))

type documentData struct {
	Title       string
	Description string
	Accent      string
	Tags        []string
	Content     template.HTML
}

// RenderDocument renders a note as a complete standalone HTML page.
func RenderDocument(n Note) []byte {
	accent := "transparent"
	if IsPaletteColor(n.Color) && n.Color != "" {
		accent = n.Color
	}
	data := documentData{
		Title:       DisplayTitle(n),
		Description: ContentPreview(n.Content, 1),
		Accent:      accent,
		Tags:        n.Tags,
		Content:     RenderHTML(n.Content),
	}

	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, data); err != nil {
		return []byte("<!DOCTYPE html><html><head><title>Error</title></head><body><h1>Error rendering note</h1></body></html>")
	}
	return buf.Bytes()
}
