package notes

import (
	"cmp"
	"slices"
	"strings"
)

// Apply returns the visible, ordered subset of notes for the given filters.
// Stages run in a fixed order: search, tags, archived, favorites, sort.
// The input slice is not modified; the returned notes share no memory with it.
func Apply(notes []Note, f Filters) []Note {
	search := strings.ToLower(f.Search)

	out := make([]Note, 0, len(notes))
	for _, n := range notes {
		if search != "" && !matchesSearch(n, search) {
			continue
		}
		if len(f.Tags) > 0 && !hasAnyTag(n, f.Tags) {
			continue
		}
		if !f.ShowArchived && n.IsArchived {
			continue
		}
		if f.ShowFavorites && !n.IsFavorite {
			continue
		}
		out = append(out, n.clone())
	}

	slices.SortStableFunc(out, comparator(f.SortBy, f.SortOrder))
	return out
}

// matchesSearch reports whether the lowercase needle occurs in the title,
// the content or any tag, case-insensitively.
func matchesSearch(n Note, needle string) bool {
	if strings.Contains(strings.ToLower(n.Title), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(n.Content), needle) {
		return true
	}
	return slices.ContainsFunc(n.Tags, func(tag string) bool {
		return strings.Contains(strings.ToLower(tag), needle)
	})
}

// comparator builds a three-way comparison for the sort stage.
// Equal keys compare as 0 so the stable sort keeps collection order.
// Unknown fields fall back to updatedAt and unknown orders to descending.
func comparator(field SortField, order SortOrder) func(a, b Note) int {
	var base func(a, b Note) int
	switch field {
	case SortByTitle:
		base = func(a, b Note) int {
			return cmp.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		}
	case SortByCreatedAt:
		base = func(a, b Note) int { return a.CreatedAt.Compare(b.CreatedAt) }
	default:
		base = func(a, b Note) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	}

	if order == SortAsc {
		return base
	}
	return func(a, b Note) int { return base(b, a) }
}
