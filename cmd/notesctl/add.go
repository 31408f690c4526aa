package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kuitang/pocketnotes/internal/notes"
)

func newAddCmd(a *app) *cobra.Command {
	var (
		title   string
		content string
		tags    []string
		color   string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a note",
		Long:  `Create a note and print its id. Pass --content - to read the body from stdin.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !notes.IsPaletteColor(color) {
				return fmt.Errorf("color %q is not a palette color", color)
			}
			if content == "-" {
				body, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read content from stdin: %w", err)
				}
				content = string(body)
			}

			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			note := store.Create(notes.NoteInput{
				Title:   title,
				Content: content,
				Tags:    tags,
				Color:   color,
			})
			if err := a.persisted(); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), note.ID)
			return err
		},
	}

	f := cmd.Flags()
	f.StringVar(&title, "title", "", "note title")
	f.StringVar(&content, "content", "", "markdown body, or - for stdin")
	f.StringSliceVarP(&tags, "tag", "t", nil, "tags (repeatable or comma separated)")
	f.StringVar(&color, "color", "", "palette color hex value")
	return cmd
}
