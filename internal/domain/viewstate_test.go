package domain

import (
	"net/url"
	"testing"
)

func TestParseViewStateDefaults(t *testing.T) {
	s := ParseViewState(url.Values{})
	if s.Sort.Column != 0 || s.Sort.Direction != Ascending {
		t.Fatalf("unexpected sort %+v", s.Sort)
	}
	if s.Filter.Active() {
		t.Fatalf("expected no filter, got %+v", s.Filter)
	}
	if s.Page != 1 || s.PerPage != 10 {
		t.Fatalf("unexpected paging %d/%d", s.Page, s.PerPage)
	}
}

func TestViewStateSurvivesQueryString(t *testing.T) {
	in := ViewState{
		Entity:  "links",
		Sort:    SortSpec{Column: 3, Direction: Descending},
		Filter:  FilterSpec{Field: "linkType", Value: "endpoint"},
		Page:    4,
		PerPage: 20,
	}
	q := in.Values().Encode()
	parsed, err := url.ParseQuery(q)
	if err != nil {
		t.Fatalf("parse %q: %v", q, err)
	}
	if out := ParseViewState(parsed); out != in {
		t.Fatalf("got %+v, want %+v", out, in)
	}
}

func TestParseViewStateRejectsGarbage(t *testing.T) {
	s := ParseViewState(url.Values{"page": {"-2"}, "perPage": {"x"}, "sort": {"-1"}})
	if s.Page != 1 || s.PerPage != 10 || s.Sort.Column != 0 {
		t.Fatalf("expected defaults, got %+v", s)
	}
}

func TestFilterActiveNeedsFieldAndValue(t *testing.T) {
	if (FilterSpec{Field: "name"}).Active() {
		t.Fatal("empty value must not filter")
	}
	if (FilterSpec{Value: "x"}).Active() {
		t.Fatal("empty field must not filter")
	}
}

func TestNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{int64(7), 7, true},
		{uint64(9), 9, true},
		{uint(3), 3, true},
		{int8(-2), -2, true},
		{int16(300), 300, true},
		{uint8(255), 255, true},
		{uint16(4000), 4000, true},
		{"2.5", 2.5, true},
		{"abc", 0, false},
		{nil, 0, false},
	}
	for _, c := range cases {
		got, ok := Number(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("Number(%v) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestPageSpecPages(t *testing.T) {
	if n := (PageSpec{PerPage: 5, Total: 12}).Pages(); n != 3 {
		t.Fatalf("pages = %d", n)
	}
	if n := (PageSpec{PerPage: 5, Total: 0}).Pages(); n != 1 {
		t.Fatalf("empty pages = %d", n)
	}
}
