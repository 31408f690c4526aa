package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/kuitang/pocketnotes/internal/errs"
)

const (
	notesWorkflowPromptName = "notes_workflow"
	noteSummarizePromptName = "note_summarize"
)

const notesWorkflowText = "The user keeps markdown notes with tags, a color label, a favorite flag and an archived flag. " +
	"Start with note_list (optionally filtered by search, tags, show_favorites or show_archived) to find the note, then note_view to read it with line numbers. " +
	"Use note_create for new notes and note_update to replace the title, content, tags or color of an existing one. " +
	"Prefer note_archive over note_delete unless the user explicitly asks to delete. Use note_tags to discover existing tags before inventing new ones."

// PromptDefinitions returns the MCP prompt definitions.
func PromptDefinitions() []*mcp.Prompt {
	return []*mcp.Prompt{
		{
			Name:        notesWorkflowPromptName,
			Title:       "Notes workflow",
			Description: "How to find, read and edit notes with the note_* tools.",
		},
		{
			Name:        noteSummarizePromptName,
			Title:       "Summarize a note",
			Description: "Summarize one note and suggest tags for it.",
			Arguments: []*mcp.PromptArgument{
				{Name: "id", Description: "Id of the note to summarize", Required: true},
			},
		},
	}
}

func (h *Handler) registerPrompts(s *mcp.Server) {
	for _, p := range PromptDefinitions() {
		switch p.Name {
		case notesWorkflowPromptName:
			s.AddPrompt(p, staticPrompt(p.Description, notesWorkflowText))
		case noteSummarizePromptName:
			s.AddPrompt(p, h.summarizePrompt)
		}
	}
}

func staticPrompt(description, text string) mcp.PromptHandler {
	return func(context.Context, *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return &mcp.GetPromptResult{
			Description: description,
			Messages:    []*mcp.PromptMessage{userMessage(text)},
		}, nil
	}
}

// summarizePrompt embeds the note so the client needs no extra tool call.
func (h *Handler) summarizePrompt(_ context.Context, req *mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	var id string
	if req != nil && req.Params != nil {
		id = strings.TrimSpace(req.Params.Arguments["id"])
	}
	if id == "" {
		return nil, errs.New(errs.InvalidArgument, "id is required")
	}
	if h.store == nil {
		return nil, errs.New(errs.Unavailable, "note store is not configured")
	}
	note, ok := h.store.Get(id)
	if !ok {
		return nil, errs.NoteNotFound(id)
	}

	var b strings.Builder
	b.WriteString("Summarize the note below in three sentences or fewer, then suggest up to three tags")
	if existing := h.store.AllTags(); len(existing) > 0 {
		fmt.Fprintf(&b, ", preferring existing ones (%s)", strings.Join(existing, ", "))
	}
	b.WriteString(". Apply the tags with note_update only if the user agrees.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", note.Title)
	if len(note.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(note.Tags, ", "))
	}
	b.WriteString("\n")
	b.WriteString(note.Content)

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Summary request for %q", note.Title),
		Messages:    []*mcp.PromptMessage{userMessage(b.String())},
	}, nil
}

func userMessage(text string) *mcp.PromptMessage {
	return &mcp.PromptMessage{Role: "user", Content: &mcp.TextContent{Text: text}}
}
