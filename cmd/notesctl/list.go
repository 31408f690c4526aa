package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kuitang/pocketnotes/internal/notes"
)

const timeLayout = "2006-01-02 15:04"

func newListCmd(a *app) *cobra.Command {
	var (
		search    string
		tags      []string
		archived  bool
		favorites bool
		sortBy    string
		order     string
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notes",
		Long:  `List notes newest first. Archived notes are hidden unless --archived is set.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}

			// Only flags the user set are applied, the same as the web filter form.
			q := url.Values{}
			flags := cmd.Flags()
			if flags.Changed("search") {
				q.Set(notes.QuerySearch, search)
			}
			if flags.Changed("tag") {
				q[notes.QueryTag] = tags
			}
			if flags.Changed("archived") {
				q.Set(notes.QueryArchived, strconv.FormatBool(archived))
			}
			if flags.Changed("favorites") {
				q.Set(notes.QueryFavorites, strconv.FormatBool(favorites))
			}
			if flags.Changed("sort") {
				q.Set(notes.QuerySort, sortBy)
			}
			if flags.Changed("order") {
				q.Set(notes.QueryOrder, order)
			}
			patch, err := notes.ParseFilterQuery(q)
			if err != nil {
				return err
			}
			store.UpdateFilters(patch)

			items := make([]notes.NoteListItem, 0)
			for _, n := range store.Filtered() {
				items = append(items, notes.ListItem(n, notes.DefaultPreviewLines))
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(items)
			}
			return writeNoteTable(out, items)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&search, "search", "s", "", "case-insensitive text to match in title, content or tags")
	f.StringSliceVarP(&tags, "tag", "t", nil, "only notes with any of these tags (repeatable or comma separated)")
	f.BoolVar(&archived, "archived", false, "include archived notes")
	f.BoolVar(&favorites, "favorites", false, "only favorites")
	f.StringVar(&sortBy, "sort", string(notes.SortByUpdatedAt), "sort field: updatedAt, createdAt or title")
	f.StringVar(&order, "order", string(notes.SortDesc), "sort order: asc or desc")
	f.BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func writeNoteTable(w io.Writer, items []notes.NoteListItem) error {
	if len(items) == 0 {
		_, err := fmt.Fprintln(w, "No notes.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFLAGS\tTITLE\tTAGS\tUPDATED")
	for _, it := range items {
		title := it.Title
		if strings.TrimSpace(title) == "" {
			title = notes.UntitledLabel
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			it.ID, noteFlags(it.IsFavorite, it.IsArchived), title, strings.Join(it.Tags, ","), it.UpdatedAt.Local().Format(timeLayout))
	}
	return tw.Flush()
}

func noteFlags(favorite, archived bool) string {
	flags := ""
	if favorite {
		flags += "*"
	}
	if archived {
		flags += "A"
	}
	if flags == "" {
		return "-"
	}
	return flags
}
