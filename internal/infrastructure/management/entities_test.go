package management

import (
	"testing"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/topn"
)

func TestDelayedLinksCardRanksEndpointsByUnsettled(t *testing.T) {
	var links domain.Entity
	for _, e := range Entities(staticQuerier{}, nil) {
		if e.Name == "links" {
			links = e
		}
	}
	if links.Top == nil {
		t.Fatal("links has no summary")
	}
	link := func(name, typ string, d1, unsettled float64) domain.Row {
		return domain.Row{Record: domain.Record{
			"name":                       name,
			"linkType":                   typ,
			"deliveriesDelayed1SecRate":  d1,
			"deliveriesDelayed10SecRate": 0.0,
			"unsettledCount":             unsettled,
		}}
	}
	rows := []domain.Row{
		link("a", "endpoint", 1, 5),
		link("b", "endpoint", 1, 50),
		link("c", "router-control", 9, 0),
	}
	got := topn.Select(rows, *links.Top)
	if len(got) != 2 || got[0].Record["name"] != "b" || got[1].Record["name"] != "a" {
		t.Fatalf("got %v", got)
	}
}
