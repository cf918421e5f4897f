package table

import (
	"fmt"
	"slices"
	"strings"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

// Filter keeps rows whose rendered cell at col contains value. Matching is
// case-sensitive; an empty value keeps everything.
func Filter(rows []domain.Row, col int, value string) []domain.Row {
	if value == "" || col < 0 {
		return rows
	}
	out := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		if col < len(r.Cells) && strings.Contains(r.Cells[col], value) {
			out = append(out, r)
		}
	}
	return out
}

// Sort returns a sorted copy. Numeric columns compare raw values with a
// stable sort; descending uses the reversed comparator so ties keep their
// input order. Text columns compare rendered cells ascending and descending
// order is the ascending result reversed.
func Sort(rows []domain.Row, col int, numeric bool, dir domain.Direction) []domain.Row {
	out := slices.Clone(rows)
	if col < 0 {
		return out
	}
	if numeric {
		slices.SortStableFunc(out, func(a, b domain.Row) int {
			c := compareNumbers(value(a, col), value(b, col))
			if dir == domain.Descending {
				return -c
			}
			return c
		})
		return out
	}
	slices.SortStableFunc(out, func(a, b domain.Row) int {
		return strings.Compare(cell(a, col), cell(b, col))
	})
	if dir == domain.Descending {
		slices.Reverse(out)
	}
	return out
}

// compareNumbers orders missing values before any number.
func compareNumbers(a, b any) int {
	x, okx := domain.Number(a)
	y, oky := domain.Number(b)
	switch {
	case !okx && !oky:
		return 0
	case !okx:
		return -1
	case !oky:
		return 1
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// Paginate returns rows [perPage*(page-1), min(start+perPage, len)).
func Paginate(rows []domain.Row, page, perPage int) []domain.Row {
	if perPage <= 0 || page < 1 {
		return nil
	}
	start := perPage * (page - 1)
	if start >= len(rows) {
		return []domain.Row{}
	}
	end := min(start+perPage, len(rows))
	return rows[start:end]
}

// ClampPage keeps page within [1, ceil(total/perPage)].
func ClampPage(page, perPage, total int) int {
	last := domain.PageSpec{PerPage: perPage, Total: total}.Pages()
	if page > last {
		page = last
	}
	if page < 1 {
		page = 1
	}
	return page
}

// CheckSort accepts a sortable column in range. The default order (column 0
// ascending) is always accepted.
func CheckSort(fields []domain.FieldSchema, s domain.SortSpec) error {
	if s == (domain.SortSpec{}) {
		return nil
	}
	if s.Column < 0 || s.Column >= len(fields) {
		return fmt.Errorf("sort column %d: %w", s.Column, domain.ErrUnsortable)
	}
	if !fields[s.Column].Sortable {
		return fmt.Errorf("sort column %s: %w", fields[s.Column].Field, domain.ErrUnsortable)
	}
	return nil
}

// FilterColumn resolves a filter field by name or title to a filterable column.
func FilterColumn(fields []domain.FieldSchema, field string) (int, error) {
	col, ok := domain.Entity{Fields: fields}.Column(field)
	if !ok {
		return -1, fmt.Errorf("filter on %q: %w", field, domain.ErrUnknownField)
	}
	if !fields[col].Filterable {
		return -1, fmt.Errorf("filter on %s: %w", fields[col].Field, domain.ErrUnfilterable)
	}
	return col, nil
}

// Compute runs filter, sort and paginate over a full row set. The returned
// state has its page clamped to the filtered total.
func Compute(rows []domain.Row, fields []domain.FieldSchema, st domain.ViewState) ([]domain.Row, domain.PageSpec, domain.ViewState, error) {
	st = st.Normalize()
	filterCol := -1
	if st.Filter.Active() {
		col, err := FilterColumn(fields, st.Filter.Field)
		if err != nil {
			return nil, domain.PageSpec{}, st, err
		}
		filterCol = col
	}
	if len(fields) > 0 {
		if err := CheckSort(fields, st.Sort); err != nil {
			return nil, domain.PageSpec{}, st, err
		}
	}
	numeric := false
	if st.Sort.Column < len(fields) {
		numeric = fields[st.Sort.Column].Numeric
	}

	filtered := Filter(rows, filterCol, st.Filter.Value)
	sorted := Sort(filtered, st.Sort.Column, numeric, st.Sort.Direction)
	st.Page = ClampPage(st.Page, st.PerPage, len(sorted))
	spec := domain.PageSpec{Page: st.Page, PerPage: st.PerPage, Total: len(sorted)}
	return Paginate(sorted, st.Page, st.PerPage), spec, st, nil
}

func value(r domain.Row, col int) any {
	if col < len(r.Values) {
		return r.Values[col]
	}
	return nil
}

func cell(r domain.Row, col int) string {
	if col < len(r.Cells) {
		return r.Cells[col]
	}
	return ""
}
