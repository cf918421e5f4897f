package domain

import (
	"math"
	"strconv"
)

// Record is one raw entity as returned by a DataSource. Keys are attribute
// names; values are whatever the backend decoded (numbers, strings, nil).
type Record map[string]any

// Clone returns a shallow copy so derived fields never leak into the source.
func (r Record) Clone() Record {
	out := make(Record, len(r)+2)
	for k, v := range r {
		out[k] = v
	}
	return out
}

// FieldSchema describes one table column.
type FieldSchema struct {
	Field      string
	Title      string
	Numeric    bool
	Sortable   bool
	Filterable bool
	NoWrap     bool
	Format     string // formatter id, empty = default rendering
}

// Row is one rendered record. Cells and Values are indexed by column.
type Row struct {
	Cells  []string
	Values []any
	Record Record
}

type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// Toggle flips the direction.
func (d Direction) Toggle() Direction {
	if d == Descending {
		return Ascending
	}
	return Descending
}

func ParseDirection(s string) Direction {
	switch s {
	case "desc", "descending", "-1":
		return Descending
	}
	return Ascending
}

type SortSpec struct {
	Column    int
	Direction Direction
}

// FilterSpec restricts rows to those whose rendered Field contains Value.
type FilterSpec struct {
	Field string
	Value string
}

func (f FilterSpec) Active() bool { return f.Field != "" && f.Value != "" }

type PageSpec struct {
	Page    int
	PerPage int
	Total   int
}

// Pages returns the number of pages, at least 1.
func (p PageSpec) Pages() int {
	if p.PerPage <= 0 || p.Total <= 0 {
		return 1
	}
	return (p.Total + p.PerPage - 1) / p.PerPage
}

// RateKey identifies one counter of one entity instance.
type RateKey struct {
	Entity string
	Metric string
}

// RateSpec turns the cumulative Counter attribute into a per-second Field.
type RateSpec struct {
	Counter string
	Field   string
}

// TopNSpec configures a summary selection over derived metrics. A row is
// kept when Primary or Secondary is positive and ranked by Primary, then by
// Tiebreak (Secondary when empty). Where, if set, limits the candidates.
type TopNSpec struct {
	Title     string
	Primary   string
	Secondary string
	Tiebreak  string
	Where     func(Record) bool
	N         int
}

// Number extracts a float from a raw attribute value.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case interface{ Float64() (float64, error) }:
		x, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = x
	case string:
		x, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, false
		}
		f = x
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
