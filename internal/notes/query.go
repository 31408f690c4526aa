package notes

import (
	"fmt"
	"net/url"
	"strconv"
)

// Query parameter names understood by ParseFilterQuery.
const (
	QuerySearch    = "q"
	QueryTag       = "tag"
	QueryArchived  = "archived"
	QueryFavorites = "favorites"
	QuerySort      = "sort"
	QueryOrder     = "order"
)

// ParseFilterQuery builds a filter patch from URL query parameters.
// Only parameters that are present set a field, so an absent parameter keeps
// the current filter value. tag may repeat and each value may hold a comma
// separated list; a lone empty tag value clears the tag filter. For the
// boolean parameters the last value wins, which lets an HTML form pair a
// hidden "false" input with a checkbox.
func ParseFilterQuery(q url.Values) (FilterPatch, error) {
	var patch FilterPatch

	if vs, ok := q[QuerySearch]; ok {
		search := vs[len(vs)-1]
		patch.Search = &search
	}
	if vs, ok := q[QueryTag]; ok {
		var tags []string
		for _, v := range vs {
			tags = append(tags, ParseTagList(v)...)
		}
		tags = NormalizeTags(tags)
		patch.Tags = &tags
	}

	var err error
	if patch.ShowArchived, err = lastBool(q, QueryArchived); err != nil {
		return FilterPatch{}, err
	}
	if patch.ShowFavorites, err = lastBool(q, QueryFavorites); err != nil {
		return FilterPatch{}, err
	}

	if vs, ok := q[QuerySort]; ok {
		field := SortField(vs[len(vs)-1])
		if !field.Valid() {
			return FilterPatch{}, fmt.Errorf("invalid %s %q: want updatedAt, createdAt or title", QuerySort, field)
		}
		patch.SortBy = &field
	}
	if vs, ok := q[QueryOrder]; ok {
		order := SortOrder(vs[len(vs)-1])
		if !order.Valid() {
			return FilterPatch{}, fmt.Errorf("invalid %s %q: want asc or desc", QueryOrder, order)
		}
		patch.SortOrder = &order
	}
	return patch, nil
}

// HasFilterQuery reports whether q carries any filter parameter.
func HasFilterQuery(q url.Values) bool {
	for _, key := range []string{QuerySearch, QueryTag, QueryArchived, QueryFavorites, QuerySort, QueryOrder} {
		if _, ok := q[key]; ok {
			return true
		}
	}
	return false
}

// ResetFilters is the patch that restores DefaultFilters.
func ResetFilters() FilterPatch {
	d := DefaultFilters()
	return FilterPatch{
		Search:        &d.Search,
		Tags:          &d.Tags,
		ShowArchived:  &d.ShowArchived,
		ShowFavorites: &d.ShowFavorites,
		SortBy:        &d.SortBy,
		SortOrder:     &d.SortOrder,
	}
}

func lastBool(q url.Values, key string) (*bool, error) {
	vs, ok := q[key]
	if !ok {
		return nil, nil
	}
	raw := vs[len(vs)-1]
	if raw == "" || raw == "on" {
		b := raw == "on"
		return &b, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: want true or false", key, raw)
	}
	return &b, nil
}
