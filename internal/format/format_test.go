package format

import (
	"errors"
	"strings"
	"testing"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

func TestPretty(t *testing.T) {
	cases := map[any]string{
		nil:          "-",
		int64(12345): "12,345",
		1234.5:       "1,234.5",
		"router-a":   "router-a",
	}
	for in, want := range cases {
		if got := Pretty(in, nil); got != want {
			t.Fatalf("Pretty(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestBuiltins(t *testing.T) {
	r := Default()
	cases := []struct {
		id   string
		in   any
		want string
	}{
		{"bytes", float64(2048), "2.0 KiB"},
		{"byterate", float64(1024), "1.0 KiB/s"},
		{"rate", 2.5, "2.5/s"},
		{"percent", 0.42, "42%"},
		{"millicores", int64(1500), "1,500m"},
		{"rate", nil, "-"},
	}
	for _, c := range cases {
		f, err := r.Lookup(c.id)
		if err != nil {
			t.Fatalf("lookup %s: %v", c.id, err)
		}
		if got := f(c.in, nil); got != c.want {
			t.Fatalf("%s(%v) = %q, want %q", c.id, c.in, got, c.want)
		}
	}
}

func TestBarIncludesPercent(t *testing.T) {
	got := Default()["bar"](0.5, nil)
	if !strings.HasSuffix(got, " 50%") || !strings.Contains(got, "█") {
		t.Fatalf("bar = %q", got)
	}
}

func TestLookupUnknown(t *testing.T) {
	if _, err := Default().Lookup("nope"); !errors.Is(err, domain.ErrUnknownField) {
		t.Fatalf("err = %v", err)
	}
}

func TestText(t *testing.T) {
	if got := Text([]any{"a", "b"}, nil); got != "a,b" {
		t.Fatalf("Text = %q", got)
	}
	if got := Text(true, nil); got != "yes" {
		t.Fatalf("Text(true) = %q", got)
	}
}
