// Package topn picks the busiest rows by a pair of derived metrics.
package topn

import (
	"slices"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

const DefaultN = 5

// Select drops rows rejected by spec.Where and rows where both primary and
// secondary are zero or less, orders the rest by primary then tiebreak (both
// descending) and keeps the first N.
func Select(rows []domain.Row, spec domain.TopNSpec) []domain.Row {
	n := spec.N
	if n <= 0 {
		n = DefaultN
	}
	tie := spec.Tiebreak
	if tie == "" {
		tie = spec.Secondary
	}
	out := make([]domain.Row, 0, len(rows))
	for _, r := range rows {
		if spec.Where != nil && !spec.Where(r.Record) {
			continue
		}
		if metric(r, spec.Primary) > 0 || metric(r, spec.Secondary) > 0 {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b domain.Row) int {
		if c := cmpDesc(metric(a, spec.Primary), metric(b, spec.Primary)); c != 0 {
			return c
		}
		return cmpDesc(metric(a, tie), metric(b, tie))
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func metric(r domain.Row, field string) float64 {
	v, ok := domain.Number(r.Record[field])
	if !ok {
		return 0
	}
	return v
}

func cmpDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	}
	return 0
}
