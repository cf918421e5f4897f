package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

func entity(name string) domain.Entity {
	return domain.Entity{
		Name:   name,
		Key:    "name",
		Fields: []domain.FieldSchema{{Field: "name", Title: "Name"}},
		Source: func() domain.DataSource {
			return domain.SourceFunc(func(context.Context, int, int) (domain.Page, error) { return domain.Page{}, nil })
		},
	}
}

func TestLookup(t *testing.T) {
	r, err := New(entity("links"), entity("addresses"))
	if err != nil {
		t.Fatal(err)
	}
	if e, err := r.Lookup("addresses"); err != nil || e.Name != "addresses" {
		t.Fatalf("lookup = %v, %v", e.Name, err)
	}
	if _, err := r.Lookup("routers"); !errors.Is(err, domain.ErrUnknownEntity) {
		t.Fatalf("unknown lookup err = %v", err)
	}
	if names := r.Names(); len(names) != 2 || names[0] != "links" {
		t.Fatalf("names = %v", names)
	}
}

func TestRejectsInvalidEntities(t *testing.T) {
	dupField := entity("a")
	dupField.Fields = append(dupField.Fields, domain.FieldSchema{Field: "name"})

	noKey := entity("b")
	noKey.Key = ""
	noKey.Rates = []domain.RateSpec{{Counter: "c", Field: "r"}}

	noSource := entity("c")
	noSource.Source = nil

	cases := map[string][]domain.Entity{
		"duplicate entity":  {entity("x"), entity("x")},
		"duplicate field":   {dupField},
		"rates without key": {noKey},
		"no source":         {noSource},
		"no fields":         {{Name: "d", Source: entity("d").Source}},
	}
	for name, es := range cases {
		if _, err := New(es...); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
