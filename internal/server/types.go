package server

import (
	"time"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

type FieldInfo struct {
	Field      string `json:"field"`
	Title      string `json:"title"`
	Numeric    bool   `json:"numeric,omitempty"`
	Sortable   bool   `json:"sortable,omitempty"`
	Filterable bool   `json:"filterable,omitempty"`
}

type EntityInfo struct {
	Name    string      `json:"name"`
	Title   string      `json:"title"`
	Key     string      `json:"key,omitempty"`
	Fields  []FieldInfo `json:"fields"`
	Summary string      `json:"summary,omitempty"`
}

// RowJSON carries both the rendered cells and the raw values of one row.
type RowJSON struct {
	Cells  []string       `json:"cells"`
	Values map[string]any `json:"values"`
}

type TableResponse struct {
	Entity  string     `json:"entity"`
	State   string     `json:"state"`
	Page    int        `json:"page"`
	PerPage int        `json:"perPage"`
	Total   int        `json:"total"`
	Pages   int        `json:"pages"`
	Status  string     `json:"status"`
	Stale   bool       `json:"stale"`
	Error   string     `json:"error,omitempty"`
	Updated *time.Time `json:"updated,omitempty"`
	Columns []string   `json:"columns"`
	Rows    []RowJSON  `json:"rows"`
}

type TopResponse struct {
	Entity  string    `json:"entity"`
	Title   string    `json:"title"`
	Caption string    `json:"caption"`
	Columns []string  `json:"columns"`
	Rows    []RowJSON `json:"rows"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func columns(e domain.Entity) []string {
	out := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		out[i] = f.Title
	}
	return out
}

func encodeRows(e domain.Entity, rows []domain.Row) []RowJSON {
	out := make([]RowJSON, 0, len(rows))
	for _, r := range rows {
		vals := make(map[string]any, len(e.Fields))
		for _, f := range e.Fields {
			if v, ok := r.Record[f.Field]; ok {
				vals[f.Field] = v
			}
		}
		out = append(out, RowJSON{Cells: r.Cells, Values: vals})
	}
	return out
}
