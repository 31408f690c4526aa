package notes

import (
	"fmt"
	"regexp"
	"strings"
)

// UntitledLabel is displayed for notes whose title is blank.
const UntitledLabel = "Untitled"

// DisplayTitle returns the trimmed title, or UntitledLabel when blank.
func DisplayTitle(n Note) string {
	if t := strings.TrimSpace(n.Title); t != "" {
		return t
	}
	return UntitledLabel
}

// ContentPreview returns the first maxLines lines of content, appending "..." on a new line if truncated.
func ContentPreview(content string, maxLines int) string {
	if content == "" || maxLines <= 0 {
		return content
	}
	lines := strings.SplitN(content, "\n", maxLines+1)
	if len(lines) <= maxLines {
		return content
	}
	return strings.Join(lines[:maxLines], "\n") + "\n..."
}

// CountLines returns the number of lines in content. An empty string has 0 lines.
func CountLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

// FormatWithLineNumbers formats content with cat -n style line numbers
// (6-char right-justified number, then a TAB).
// start and end select a 1-indexed inclusive range when positive; end = -1 means end of file.
// It also returns the total line count of content.
func FormatWithLineNumbers(content string, start, end int) (string, int) {
	if content == "" {
		return "", 0
	}

	lines := strings.Split(content, "\n")
	total := len(lines)

	from, to := 1, total
	if start > 0 {
		from = start
	}
	if end > 0 && end < total {
		to = end
	}
	if from > to {
		return "", total
	}

	var b strings.Builder
	for i := from; i <= to; i++ {
		if i > from {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%6d\t%s", i, lines[i-1])
	}
	return b.String(), total
}

var unsafeSlugChars = regexp.MustCompile(`[^a-z0-9._-]+`)

// maxSlugLen bounds file names derived from titles.
const maxSlugLen = 80

// Slug returns a lowercase file-name-safe form of the title, falling back to
// "note-<id>" when the title has no usable characters.
func Slug(n Note) string {
	name := slugify(n.Title)
	if name == "" {
		name = "note-" + SlugID(n.ID)
	}
	if len(name) > maxSlugLen {
		name = strings.TrimRight(name[:maxSlugLen], "-.")
	}
	return name
}

// SlugID is the id reduced to file-name-safe characters. Ids from a
// hand-edited record may contain path separators.
func SlugID(id string) string {
	if name := slugify(id); name != "" {
		return name
	}
	return "id"
}

func slugify(s string) string {
	name := strings.Trim(unsafeSlugChars.ReplaceAllString(strings.ToLower(s), "-"), "-.")
	if len(name) > maxSlugLen {
		name = strings.TrimRight(name[:maxSlugLen], "-.")
	}
	return name
}
