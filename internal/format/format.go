// Package format renders raw attribute values into table cells.
package format

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/ui/widgets"
)

// Missing is rendered for absent numeric values.
const Missing = "-"

// Formatter renders one value. The whole record is passed so a formatter can
// combine attributes.
type Formatter func(value any, rec domain.Record) string

type Registry map[string]Formatter

// Default returns the built-in formatters.
func Default() Registry {
	return Registry{
		"pretty":     Pretty,
		"bytes":      numeric(func(f float64) string { return humanize.IBytes(uint64(f)) }),
		"byterate":   numeric(func(f float64) string { return humanize.IBytes(uint64(f)) + "/s" }),
		"rate":       numeric(func(f float64) string { return humanize.CommafWithDigits(f, 2) + "/s" }),
		"percent":    numeric(func(f float64) string { return fmt.Sprintf("%.0f%%", f*100) }),
		"millicores": numeric(func(f float64) string { return humanize.Comma(int64(f)) + "m" }),
		"cores":      numeric(func(f float64) string { return humanize.FtoaWithDigits(f, 3) }),
		"bar":        numeric(func(f float64) string { return widgets.Bar(f, 10) + fmt.Sprintf(" %3.0f%%", f*100) }),
	}
}

func (r Registry) Lookup(id string) (Formatter, error) {
	f, ok := r[id]
	if !ok {
		return nil, fmt.Errorf("formatter %q: %w", id, domain.ErrUnknownField)
	}
	return f, nil
}

// Pretty adds thousands separators to numbers and passes text through.
func Pretty(v any, _ domain.Record) string {
	if v == nil {
		return Missing
	}
	f, ok := domain.Number(v)
	if !ok {
		return Text(v, nil)
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return humanize.Comma(int64(f))
	}
	return humanize.CommafWithDigits(f, 2)
}

// Text renders v verbatim; nil is empty.
func Text(v any, _ domain.Record) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case bool:
		if s {
			return "yes"
		}
		return "no"
	case []any:
		parts := make([]string, 0, len(s))
		for _, p := range s {
			parts = append(parts, Text(p, nil))
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprint(v)
}

func numeric(fn func(float64) string) Formatter {
	return func(v any, _ domain.Record) string {
		f, ok := domain.Number(v)
		if !ok || math.IsInf(f, 0) {
			return Missing
		}
		if f < 0 {
			f = 0
		}
		return fn(f)
	}
}
