package domain

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownEntity = errors.New("unknown entity")
	ErrUnknownField  = errors.New("unknown field")
	ErrUnsortable    = errors.New("column is not sortable")
	ErrUnfilterable  = errors.New("column is not filterable")
	ErrClosed        = errors.New("view closed")
)

// Page is one snapshot returned by a DataSource. Sources return the full
// working set and echo the requested page/perPage. Timestamp is the sample
// instant when the backend reports one.
type Page struct {
	Data      []Record
	Page      int
	PerPage   int
	Timestamp time.Time
}

// DataSource fetches entity snapshots.
type DataSource interface {
	Fetch(ctx context.Context, page, perPage int) (Page, error)
}

// SourceFunc adapts a function to DataSource.
type SourceFunc func(ctx context.Context, page, perPage int) (Page, error)

func (f SourceFunc) Fetch(ctx context.Context, page, perPage int) (Page, error) {
	return f(ctx, page, perPage)
}

// Entity is a registered table view: schema, identity, derived rates and the
// factory producing its data source.
type Entity struct {
	Name   string
	Title  string
	Key    string // record field identifying an instance across polls
	Fields []FieldSchema
	Rates  []RateSpec
	Top    *TopNSpec
	Source func() DataSource
}

// Column returns the index of the field matched by name or title.
func (e Entity) Column(nameOrTitle string) (int, bool) {
	for i, f := range e.Fields {
		if f.Field == nameOrTitle {
			return i, true
		}
	}
	for i, f := range e.Fields {
		if f.Title == nameOrTitle {
			return i, true
		}
	}
	return -1, false
}
