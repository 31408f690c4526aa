package notes

import (
	"fmt"
	"slices"
	"strings"
	"testing"
	"time"

	"pgregory.net/rapid"
)

func note(id, title string, mods ...func(*Note)) Note {
	n := Note{ID: id, Title: title, Tags: []string{}, CreatedAt: epoch, UpdatedAt: epoch}
	for _, m := range mods {
		m(&n)
	}
	return n
}

func withTags(tags ...string) func(*Note) { return func(n *Note) { n.Tags = tags } }
func withContent(c string) func(*Note)    { return func(n *Note) { n.Content = c } }
func archived(n *Note)                    { n.IsArchived = true }
func favorite(n *Note)                    { n.IsFavorite = true }
func updatedAt(d time.Duration) func(*Note) {
	return func(n *Note) { n.UpdatedAt = epoch.Add(d) }
}
func createdAt(d time.Duration) func(*Note) {
	return func(n *Note) { n.CreatedAt = epoch.Add(d); n.UpdatedAt = n.CreatedAt }
}

func ids(notes []Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func TestApply_SearchCaseInsensitive(t *testing.T) {
	notes := []Note{
		note("1", "Grocery list"),
		note("2", "Meeting notes"),
	}
	f := DefaultFilters()
	f.Search = "grocery"

	if got := ids(Apply(notes, f)); !slices.Equal(got, []string{"1"}) {
		t.Fatalf("search grocery = %v, want [1]", got)
	}
}

func TestApply_SearchMatchesContentAndTags(t *testing.T) {
	notes := []Note{
		note("title", "Quarterly PLAN"),
		note("content", "x", withContent("the plan is simple")),
		note("tag", "y", withTags("Planning")),
		note("none", "z", withContent("nothing here")),
	}
	f := DefaultFilters()
	f.Search = "Plan"
	f.SortOrder = SortAsc // equal timestamps: collection order

	if got := ids(Apply(notes, f)); !slices.Equal(got, []string{"title", "content", "tag"}) {
		t.Fatalf("search = %v", got)
	}
}

func TestApply_TagsOR(t *testing.T) {
	notes := []Note{
		note("a", "A", withTags("work")),
		note("b", "B", withTags("home")),
		note("c", "C", withTags("work", "home")),
		note("d", "D"),
	}
	f := DefaultFilters()
	f.Tags = []string{"work", "home"}

	got := ids(Apply(notes, f))
	slices.Sort(got)
	if !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("tag OR filter = %v, want [a b c]", got)
	}

	// Tag matching is exact.
	f.Tags = []string{"Work"}
	if got := Apply(notes, f); len(got) != 0 {
		t.Fatalf("tag match was not exact: %v", ids(got))
	}
}

func TestApply_ArchivedAndFavorites(t *testing.T) {
	notes := []Note{
		note("plain", "p"),
		note("arch", "a", archived),
		note("fav", "f", favorite),
		note("both", "b", archived, favorite),
	}

	f := DefaultFilters()
	got := ids(Apply(notes, f))
	if slices.Contains(got, "arch") || slices.Contains(got, "both") {
		t.Fatalf("archived notes visible by default: %v", got)
	}

	f.ShowArchived = true
	if got := Apply(notes, f); len(got) != 4 {
		t.Fatalf("showArchived: got %v, want all", ids(got))
	}

	f.ShowFavorites = true
	got = ids(Apply(notes, f))
	slices.Sort(got)
	if !slices.Equal(got, []string{"both", "fav"}) {
		t.Fatalf("favorites with archived = %v", got)
	}

	f.ShowArchived = false
	if got := ids(Apply(notes, f)); !slices.Equal(got, []string{"fav"}) {
		t.Fatalf("favorites without archived = %v", got)
	}
}

func TestApply_TitleSortCaseInsensitive(t *testing.T) {
	notes := []Note{note("c", "cherry"), note("a", "Apple"), note("b", "banana")}
	f := DefaultFilters()
	f.SortBy = SortByTitle
	f.SortOrder = SortAsc

	var titles []string
	for _, n := range Apply(notes, f) {
		titles = append(titles, n.Title)
	}
	if !slices.Equal(titles, []string{"Apple", "banana", "cherry"}) {
		t.Fatalf("asc titles = %v", titles)
	}

	f.SortOrder = SortDesc
	titles = titles[:0]
	for _, n := range Apply(notes, f) {
		titles = append(titles, n.Title)
	}
	if !slices.Equal(titles, []string{"cherry", "banana", "Apple"}) {
		t.Fatalf("desc titles = %v", titles)
	}
}

func TestApply_DateSorts(t *testing.T) {
	notes := []Note{
		note("old", "o", createdAt(0), updatedAt(3*time.Hour)),
		note("mid", "m", createdAt(time.Hour)),
		note("new", "n", createdAt(2*time.Hour)),
	}

	f := DefaultFilters() // updatedAt desc
	if got := ids(Apply(notes, f)); !slices.Equal(got, []string{"old", "new", "mid"}) {
		t.Fatalf("updatedAt desc = %v", got)
	}

	f.SortBy = SortByCreatedAt
	if got := ids(Apply(notes, f)); !slices.Equal(got, []string{"new", "mid", "old"}) {
		t.Fatalf("createdAt desc = %v", got)
	}

	f.SortOrder = SortAsc
	if got := ids(Apply(notes, f)); !slices.Equal(got, []string{"old", "mid", "new"}) {
		t.Fatalf("createdAt asc = %v", got)
	}
}

func TestApply_UnknownSortFallsBack(t *testing.T) {
	notes := []Note{
		note("a", "a", updatedAt(time.Minute)),
		note("b", "b", updatedAt(time.Hour)),
	}
	f := Filters{SortBy: "color", SortOrder: "sideways"}
	if got := ids(Apply(notes, f)); !slices.Equal(got, []string{"b", "a"}) {
		t.Fatalf("fallback sort = %v, want updatedAt desc", got)
	}
}

func TestApply_DoesNotModifyInput(t *testing.T) {
	notes := []Note{note("b", "b"), note("a", "a")}
	f := DefaultFilters()
	f.SortBy = SortByTitle
	f.SortOrder = SortAsc

	out := Apply(notes, f)
	out[0].Title = "changed"
	if notes[0].ID != "b" || notes[1].Title != "a" {
		t.Fatalf("input modified: %v", notes)
	}
}

// =============================================================================
// Property: the pipeline keeps exactly the notes that pass every stage
// =============================================================================

func filterNoteGenerator() *rapid.Generator[Note] {
	return rapid.Custom(func(t *rapid.T) Note {
		return Note{
			Title:      rapid.SampledFrom([]string{"Alpha", "beta", "Gamma", "alpha", "", "Delta"}).Draw(t, "title"),
			Content:    rapid.SampledFrom([]string{"", "milk and eggs", "MILK", "notes"}).Draw(t, "content"),
			Tags:       NormalizeTags(rapid.SliceOfN(tagGenerator(), 0, 3).Draw(t, "tags")),
			IsFavorite: rapid.Bool().Draw(t, "fav"),
			IsArchived: rapid.Bool().Draw(t, "arch"),
			CreatedAt:  epoch.Add(time.Duration(rapid.IntRange(0, 5).Draw(t, "created")) * time.Hour),
			UpdatedAt:  epoch.Add(time.Duration(rapid.IntRange(5, 10).Draw(t, "updated")) * time.Hour),
		}
	})
}

// filterNotesGenerator draws a collection with unique ids.
func filterNotesGenerator() *rapid.Generator[[]Note] {
	return rapid.Custom(func(t *rapid.T) []Note {
		notes := rapid.SliceOfN(filterNoteGenerator(), 0, 20).Draw(t, "notes")
		for i := range notes {
			notes[i].ID = fmt.Sprintf("n%02d", i)
		}
		return notes
	})
}

func filtersGenerator() *rapid.Generator[Filters] {
	return rapid.Custom(func(t *rapid.T) Filters {
		return Filters{
			Search:        rapid.SampledFrom([]string{"", "milk", "ALPHA", "work", "zzz"}).Draw(t, "search"),
			Tags:          rapid.SliceOfN(tagGenerator(), 0, 2).Draw(t, "filterTags"),
			ShowArchived:  rapid.Bool().Draw(t, "showArchived"),
			ShowFavorites: rapid.Bool().Draw(t, "showFavorites"),
			SortBy:        rapid.SampledFrom([]SortField{SortByUpdatedAt, SortByCreatedAt, SortByTitle}).Draw(t, "sortBy"),
			SortOrder:     rapid.SampledFrom([]SortOrder{SortAsc, SortDesc}).Draw(t, "sortOrder"),
		}
	})
}

func visible(n Note, f Filters) bool {
	if q := strings.ToLower(f.Search); q != "" {
		hit := strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q)
		for _, tag := range n.Tags {
			hit = hit || strings.Contains(strings.ToLower(tag), q)
		}
		if !hit {
			return false
		}
	}
	if len(f.Tags) > 0 && !slices.ContainsFunc(f.Tags, n.HasTag) {
		return false
	}
	if !f.ShowArchived && n.IsArchived {
		return false
	}
	return !f.ShowFavorites || n.IsFavorite
}

func testApply_Properties(t *rapid.T) {
	notes := filterNotesGenerator().Draw(t, "notes")
	f := filtersGenerator().Draw(t, "filters")

	out := Apply(notes, f)

	// Property: output is exactly the visible subset
	var want []string
	for _, n := range notes {
		if visible(n, f) {
			want = append(want, n.ID)
		}
	}
	got := ids(out)
	gotSorted, wantSorted := slices.Clone(got), slices.Clone(want)
	slices.Sort(gotSorted)
	slices.Sort(wantSorted)
	if !slices.Equal(gotSorted, wantSorted) {
		t.Fatalf("visible set mismatch: got %v, want %v", gotSorted, wantSorted)
	}

	// Property: output is ordered by the comparator and stable for ties
	cmpFn := comparator(f.SortBy, f.SortOrder)
	for i := 1; i < len(out); i++ {
		c := cmpFn(out[i-1], out[i])
		if c > 0 {
			t.Fatalf("out of order at %d: %+v before %+v", i, out[i-1], out[i])
		}
		if c == 0 && slices.Index(want, out[i-1].ID) > slices.Index(want, out[i].ID) {
			t.Fatalf("tie at %d not in collection order", i)
		}
	}
}

func TestApply_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testApply_Properties)
}

func FuzzApply_Properties(f *testing.F) {
	f.Add([]byte{0x00})
	f.Fuzz(rapid.MakeFuzz(testApply_Properties))
}

func testApply_Idempotent_Properties(t *rapid.T) {
	notes := filterNotesGenerator().Draw(t, "notes")
	f := filtersGenerator().Draw(t, "filters")

	once := Apply(notes, f)
	twice := Apply(once, f)
	if !slices.Equal(ids(once), ids(twice)) {
		t.Fatalf("Apply not idempotent: %v vs %v", ids(once), ids(twice))
	}
}

func TestApply_Idempotent_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testApply_Idempotent_Properties)
}
