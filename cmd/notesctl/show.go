package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/kuitang/pocketnotes/internal/notes"
)

const wordWrap = 100

func newShowCmd(a *app) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a note rendered for the terminal",
		Long:  `Print a note. The id may be any unique prefix. Use --raw for the markdown source.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			note, err := findNote(store, args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if raw {
				_, err := io.WriteString(out, note.Content)
				return err
			}
			rendered, err := renderTerminal(note)
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print the markdown source")
	return cmd
}

// renderTerminal renders the note as styled terminal output, with a metadata line under the title.
func renderTerminal(n notes.Note) (string, error) {
	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", notes.DisplayTitle(n))
	var meta []string
	if len(n.Tags) > 0 {
		meta = append(meta, "tags: "+strings.Join(n.Tags, ", "))
	}
	if n.IsFavorite {
		meta = append(meta, "favorite")
	}
	if n.IsArchived {
		meta = append(meta, "archived")
	}
	meta = append(meta, "updated "+n.UpdatedAt.Local().Format(timeLayout))
	fmt.Fprintf(&md, "*%s*\n\n", strings.Join(meta, " · "))
	md.WriteString(n.Content)

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wordWrap),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	return r.Render(md.String())
}

// findNote resolves an exact id or a unique id prefix.
func findNote(store *notes.Store, idOrPrefix string) (notes.Note, error) {
	if n, ok := store.Get(idOrPrefix); ok {
		return n, nil
	}
	var matches []notes.Note
	for _, n := range store.Notes() {
		if strings.HasPrefix(n.ID, idOrPrefix) {
			matches = append(matches, n)
		}
	}
	switch len(matches) {
	case 1:
		return matches[0], nil
	case 0:
		return notes.Note{}, fmt.Errorf("note %q not found", idOrPrefix)
	default:
		return notes.Note{}, fmt.Errorf("id prefix %q matches %d notes", idOrPrefix, len(matches))
	}
}
