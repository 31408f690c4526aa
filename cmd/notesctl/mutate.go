package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kuitang/pocketnotes/internal/notes"
)

func newFavCmd(a *app) *cobra.Command {
	return newToggleCmd(a, "fav <id>", "Toggle the favorite flag of a note", func(s *notes.Store) func(string) (notes.Note, bool) {
		return s.ToggleFavorite
	}, func(n notes.Note) string {
		if n.IsFavorite {
			return "favorited"
		}
		return "unfavorited"
	})
}

func newArchiveCmd(a *app) *cobra.Command {
	return newToggleCmd(a, "archive <id>", "Toggle the archived flag of a note", func(s *notes.Store) func(string) (notes.Note, bool) {
		return s.ToggleArchive
	}, func(n notes.Note) string {
		if n.IsArchived {
			return "archived"
		}
		return "unarchived"
	})
}

func newToggleCmd(a *app, use, short string, pick func(*notes.Store) func(string) (notes.Note, bool), state func(notes.Note) string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
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
			updated, ok := pick(store)(note.ID)
			if !ok {
				return fmt.Errorf("note %q not found", note.ID)
			}
			if err := a.persisted(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", updated.ID, state(updated))
			return err
		},
	}
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			note, err := findNote(store, args[0])
			if err != nil {
				return err
			}
			if !store.Delete(note.ID) {
				return fmt.Errorf("note %q not found", note.ID)
			}
			if err := a.persisted(); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", note.ID)
			return err
		},
	}
}

func newTagsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List every tag in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			for _, tag := range store.AllTags() {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), tag); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
