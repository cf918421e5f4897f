package domain

import (
	"net/url"
	"strconv"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
)

// ViewState is what a table view needs to be rebuilt after navigation.
type ViewState struct {
	Entity  string
	Sort    SortSpec
	Filter  FilterSpec
	Page    int
	PerPage int
}

func DefaultViewState(entity string) ViewState {
	return ViewState{
		Entity:  entity,
		Sort:    SortSpec{Column: 0, Direction: Ascending},
		Page:    DefaultPage,
		PerPage: DefaultPerPage,
	}
}

// Normalize replaces out-of-range values with defaults.
func (s ViewState) Normalize() ViewState {
	if s.Page < 1 {
		s.Page = DefaultPage
	}
	if s.PerPage < 1 {
		s.PerPage = DefaultPerPage
	}
	if s.Sort.Column < 0 {
		s.Sort.Column = 0
	}
	return s
}

// Values encodes the state as query parameters. Defaults are omitted.
func (s ViewState) Values() url.Values {
	v := url.Values{}
	if s.Entity != "" {
		v.Set("entity", s.Entity)
	}
	if s.Sort.Column != 0 {
		v.Set("sort", strconv.Itoa(s.Sort.Column))
	}
	if s.Sort.Direction == Descending {
		v.Set("dir", s.Sort.Direction.String())
	}
	if s.Filter.Field != "" {
		v.Set("filterField", s.Filter.Field)
	}
	if s.Filter.Value != "" {
		v.Set("filterValue", s.Filter.Value)
	}
	if s.Page > DefaultPage {
		v.Set("page", strconv.Itoa(s.Page))
	}
	if s.PerPage > 0 && s.PerPage != DefaultPerPage {
		v.Set("perPage", strconv.Itoa(s.PerPage))
	}
	return v
}

// ParseViewState decodes query parameters; absent or malformed values take
// their defaults.
func ParseViewState(v url.Values) ViewState {
	s := DefaultViewState(v.Get("entity"))
	if n, err := strconv.Atoi(v.Get("sort")); err == nil {
		s.Sort.Column = n
	}
	s.Sort.Direction = ParseDirection(v.Get("dir"))
	s.Filter = FilterSpec{Field: v.Get("filterField"), Value: v.Get("filterValue")}
	if n, err := strconv.Atoi(v.Get("page")); err == nil {
		s.Page = n
	}
	if n, err := strconv.Atoi(v.Get("perPage")); err == nil {
		s.PerPage = n
	}
	return s.Normalize()
}
