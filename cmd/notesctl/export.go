package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kuitang/pocketnotes/internal/notes"
)

// frontMatter is the YAML header written above each exported note.
type frontMatter struct {
	ID       string    `yaml:"id"`
	Title    string    `yaml:"title"`
	Tags     []string  `yaml:"tags,omitempty"`
	Color    string    `yaml:"color,omitempty"`
	Favorite bool      `yaml:"favorite,omitempty"`
	Archived bool      `yaml:"archived,omitempty"`
	Created  time.Time `yaml:"created"`
	Updated  time.Time `yaml:"updated"`
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <dir>",
		Short: "Write every note as a markdown file with YAML front matter",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create %s: %w", dir, err)
			}

			used := make(map[string]bool)
			all := store.Notes()
			// Oldest first so the earlier of two same-titled notes keeps the plain name.
			for i := len(all) - 1; i >= 0; i-- {
				n := all[i]
				name := exportName(n, used)
				data, err := markdownDocument(n)
				if err != nil {
					return err
				}
				if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", name, err)
				}
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported %d notes to %s\n", len(all), dir)
			return err
		},
	}
}

// exportName picks a unique file name, suffixing the id when two titles collide.
func exportName(n notes.Note, used map[string]bool) string {
	base := notes.Slug(n)
	name := base + ".md"
	if used[name] {
		base += "-" + notes.SlugID(n.ID)
		name = base + ".md"
	}
	for i := 2; used[name]; i++ {
		name = fmt.Sprintf("%s-%d.md", base, i)
	}
	used[name] = true
	return name
}

// markdownDocument serializes a note as YAML front matter followed by its content.
func markdownDocument(n notes.Note) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("---\n")
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(frontMatter{
		ID:       n.ID,
		Title:    n.Title,
		Tags:     n.Tags,
		Color:    n.Color,
		Favorite: n.IsFavorite,
		Archived: n.IsArchived,
		Created:  n.CreatedAt,
		Updated:  n.UpdatedAt,
	}); err != nil {
		return nil, fmt.Errorf("failed to encode front matter for %s: %w", n.ID, err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	buf.WriteString("---\n")
	buf.WriteString(n.Content)
	if n.Content != "" && !bytes.HasSuffix(buf.Bytes(), []byte("\n")) {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}
