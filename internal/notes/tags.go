package notes

import (
	"slices"
	"strings"
)

// NormalizeTags trims every tag and drops empty and duplicate entries,
// keeping the first occurrence so display order is preserved.
// The result is never nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || slices.Contains(out, tag) {
			continue
		}
		out = append(out, tag)
	}
	return out
}

// ParseTagList splits comma separated tag input (as typed into the editor)
// into a normalized tag list.
func ParseTagList(raw string) []string {
	return NormalizeTags(strings.Split(raw, ","))
}

// hasAnyTag reports whether note shares at least one tag with want.
func hasAnyTag(note Note, want []string) bool {
	for _, tag := range want {
		if note.HasTag(tag) {
			return true
		}
	}
	return false
}
