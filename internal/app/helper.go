package app

import (
	"github.com/muesli/reflow/truncate"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

// clamp clamps v into [min, max].
func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// colWidths spreads the available width over the entity's columns. Every
// column fits its title; numbers get a fixed band and text columns share
// whatever is left.
func colWidths(fields []domain.FieldSchema, total int) []int {
	const (
		minText, maxText = 8, 60
		minNum, maxNum   = 8, 14
		minBar           = 16
		cellPad          = 2
	)
	w := make([]int, len(fields))
	used := 0
	var flex []int
	for i, f := range fields {
		min := minText
		switch {
		case f.Format == "bar":
			min = minBar
		case f.Numeric:
			min = minNum
		}
		if n := len([]rune(f.Title)) + 2; n > min {
			min = n
		}
		w[i] = min
		used += min + cellPad
		if !f.Numeric {
			flex = append(flex, i)
		}
	}

	remain := total - used
	if remain <= 0 {
		return w
	}
	if len(flex) == 0 {
		for i := range w {
			w[i] = clamp(w[i]+remain/len(w), w[i], maxNum)
		}
		return w
	}
	share := remain / len(flex)
	extra := remain - share*len(flex)
	for _, i := range flex {
		w[i] = clamp(w[i]+share, w[i], maxText)
	}
	// favour the first text column with the remainder, like a name column
	w[flex[0]] = clamp(w[flex[0]]+extra, w[flex[0]], maxText)
	return w
}

func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return truncate.StringWithTail(s, uint(width), "…")
}
