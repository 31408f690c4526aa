package mcp

import (
	"github.com/kuitang/pocketnotes/internal/notes"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Tool names served on the /mcp endpoint.
const (
	toolNoteCreate   = "note_create"
	toolNoteUpdate   = "note_update"
	toolNoteDelete   = "note_delete"
	toolNoteView     = "note_view"
	toolNoteList     = "note_list"
	toolNoteTags     = "note_tags"
	toolNoteFavorite = "note_favorite"
	toolNoteArchive  = "note_archive"
)

func idProperty(description string) map[string]any {
	return map[string]any{
		"type":        "string",
		"description": description,
	}
}

func tagsProperty(description string) map[string]any {
	return map[string]any{
		"type":        "array",
		"description": description,
		"items":       map[string]any{"type": "string"},
	}
}

// ToolDefinitions returns the note tool definitions.
func ToolDefinitions() []*mcp.Tool {
	return []*mcp.Tool{
		{
			Name:        toolNoteList,
			Description: "List notes with a short content preview. All arguments are optional filters: search matches title, content and tags case-insensitively; tags keeps notes carrying any of the given tags; archived notes are hidden unless show_archived is true; show_favorites keeps only favorites. Results are sorted by sort_by (updatedAt, createdAt, title) in sort_order (asc, desc), newest update first by default. Use note_view to read full content.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"search":         map[string]any{"type": "string", "description": "Case-insensitive substring to match"},
					"tags":           tagsProperty("Keep notes carrying at least one of these tags"),
					"show_archived":  map[string]any{"type": "boolean", "description": "Include archived notes (default false)"},
					"show_favorites": map[string]any{"type": "boolean", "description": "Only favorites (default false)"},
					"sort_by": map[string]any{
						"type": "string",
						"enum": []string{"updatedAt", "createdAt", "title"},
					},
					"sort_order": map[string]any{
						"type": "string",
						"enum": []string{"asc", "desc"},
					},
				},
			},
		},
		{
			Name:        toolNoteView,
			Description: "Read a note's full content with line numbers (tab-separated, 1-indexed). Optionally pass line_range as [start, end] (1-indexed, inclusive; end=-1 means end of file) to view a portion. The response includes total_lines and the note's metadata.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idProperty("The unique identifier of the note to read"),
					"line_range": map[string]any{
						"type":        "array",
						"description": "Optional [start, end] line range (1-indexed, inclusive). end=-1 means end of file.",
						"items":       map[string]any{"type": "integer"},
						"minItems":    2,
						"maxItems":    2,
					},
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteCreate,
			Description: "Create a note. Every field is optional; a note without a title is shown as Untitled. Tags are trimmed and de-duplicated. color must be one of the palette hex values or omitted. Returns the assigned ID, title, line count and creation timestamp.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"title":   map[string]any{"type": "string", "description": "The title of the note"},
					"content": map[string]any{"type": "string", "description": "Markdown body of the note"},
					"tags":    tagsProperty("Tags to attach"),
					"color":   colorProperty(),
				},
			},
		},
		{
			Name:        toolNoteUpdate,
			Description: "Replace fields of an existing note. Only the fields passed are changed; pass content to replace the whole body, tags to replace the tag list, and an empty color to clear the label. Returns the ID, title, line count and updated timestamp.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id":      idProperty("The unique identifier of the note to update"),
					"title":   map[string]any{"type": "string", "description": "New title"},
					"content": map[string]any{"type": "string", "description": "New markdown body"},
					"tags":    tagsProperty("New tag list"),
					"color":   colorProperty(),
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteDelete,
			Description: "Permanently delete a note. Prefer note_archive when the user only wants it out of the way.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idProperty("The unique identifier of the note to delete"),
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteTags,
			Description: "List every distinct tag across all notes, sorted.",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
		{
			Name:        toolNoteFavorite,
			Description: "Toggle the favorite flag of a note. Returns the new state.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idProperty("The unique identifier of the note"),
				},
				"required": []string{"id"},
			},
		},
		{
			Name:        toolNoteArchive,
			Description: "Toggle the archived flag of a note. Archived notes are hidden from note_list unless show_archived is true. Returns the new state.",
			InputSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": idProperty("The unique identifier of the note"),
				},
				"required": []string{"id"},
			},
		},
	}
}

func colorProperty() map[string]any {
	return map[string]any{
		"type":        "string",
		"description": "Color label as a palette hex value, e.g. #3b82f6. Empty for none.",
		"enum":        paletteEnum(),
	}
}

func paletteEnum() []string {
	out := make([]string, 0, len(notes.Palette)+1)
	out = append(out, "")
	for _, c := range notes.Palette {
		out = append(out, c.Hex)
	}
	return out
}
