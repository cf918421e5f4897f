package management

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

var linkAttrs = []string{
	"name", "identity", "linkType", "linkDir", "owningAddr", "capacity",
	"undeliveredCount", "unsettledCount", "deliveryCount",
	"deliveriesDelayed1Sec", "deliveriesDelayed10Sec", "connectionId",
	"adminStatus", "operStatus",
}

var connectionAttrs = []string{
	"identity", "host", "container", "role", "dir", "isEncrypted", "sasl", "user",
}

var addressAttrs = []string{
	"name", "distribution", "inProcess", "subscriberCount", "remoteCount",
	"deliveriesIngress", "deliveriesEgress", "deliveriesTransit",
}

// Entities returns the router views backed by q.
func Entities(q Querier, log *zap.Logger) []domain.Entity {
	if log == nil {
		log = zap.NewNop()
	}
	return []domain.Entity{
		{
			Name:  "links",
			Title: "Links",
			Key:   "name",
			Fields: []domain.FieldSchema{
				{Field: "name", Title: "Link", Sortable: true, Filterable: true, NoWrap: true},
				{Field: "linkType", Title: "Type", Sortable: true, Filterable: true},
				{Field: "linkDir", Title: "Dir", Sortable: true, Filterable: true},
				{Field: "owningAddr", Title: "Address", Sortable: true, Filterable: true},
				{Field: "connection", Title: "Connection", Sortable: true, Filterable: true},
				{Field: "capacity", Title: "Capacity", Numeric: true, Sortable: true},
				{Field: "unsettledCount", Title: "Unsettled", Numeric: true, Sortable: true},
				{Field: "deliveryRate", Title: "Rate", Numeric: true, Sortable: true, Format: "rate"},
				{Field: "deliveriesDelayed1SecRate", Title: "1 sec rate", Numeric: true, Sortable: true, Format: "rate"},
				{Field: "deliveriesDelayed10SecRate", Title: "10 sec rate", Numeric: true, Sortable: true, Format: "rate"},
			},
			Rates: []domain.RateSpec{
				{Counter: "deliveryCount", Field: "deliveryRate"},
				{Counter: "deliveriesDelayed1Sec", Field: "deliveriesDelayed1SecRate"},
				{Counter: "deliveriesDelayed10Sec", Field: "deliveriesDelayed10SecRate"},
			},
			Top: &domain.TopNSpec{
				Title:     "Links with delayed deliveries",
				Primary:   "deliveriesDelayed1SecRate",
				Secondary: "deliveriesDelayed10SecRate",
				Tiebreak:  "unsettledCount",
				Where:     isEndpoint,
			},
			Source: func() domain.DataSource { return &linkSource{q: q, log: log} },
		},
		{
			Name:  "connections",
			Title: "Connections",
			Key:   "identity",
			Fields: []domain.FieldSchema{
				{Field: "host", Title: "Host", Sortable: true, Filterable: true, NoWrap: true},
				{Field: "container", Title: "Container", Sortable: true, Filterable: true},
				{Field: "role", Title: "Role", Sortable: true, Filterable: true},
				{Field: "dir", Title: "Dir", Sortable: true, Filterable: true},
				{Field: "isEncrypted", Title: "Encrypted", Sortable: true, Filterable: true},
				{Field: "user", Title: "User", Sortable: true, Filterable: true},
				{Field: "identity", Title: "Id", Sortable: true, Filterable: true},
			},
			Source: func() domain.DataSource { return querySource{q: q, entityType: TypeConnection, attrs: connectionAttrs} },
		},
		{
			Name:  "addresses",
			Title: "Addresses",
			Key:   "name",
			Fields: []domain.FieldSchema{
				{Field: "name", Title: "Address", Sortable: true, Filterable: true, NoWrap: true},
				{Field: "distribution", Title: "Distribution", Sortable: true, Filterable: true},
				{Field: "inProcess", Title: "In-proc", Numeric: true, Sortable: true},
				{Field: "subscriberCount", Title: "Local", Numeric: true, Sortable: true},
				{Field: "remoteCount", Title: "Remote", Numeric: true, Sortable: true},
				{Field: "deliveriesIngress", Title: "In", Numeric: true, Sortable: true},
				{Field: "deliveriesEgress", Title: "Out", Numeric: true, Sortable: true},
				{Field: "ingressRate", Title: "In rate", Numeric: true, Sortable: true, Format: "rate"},
				{Field: "egressRate", Title: "Out rate", Numeric: true, Sortable: true, Format: "rate"},
			},
			Rates: []domain.RateSpec{
				{Counter: "deliveriesIngress", Field: "ingressRate"},
				{Counter: "deliveriesEgress", Field: "egressRate"},
			},
			Top: &domain.TopNSpec{
				Title:     "Busiest addresses",
				Primary:   "ingressRate",
				Secondary: "egressRate",
			},
			Source: func() domain.DataSource { return querySource{q: q, entityType: TypeAddress, attrs: addressAttrs} },
		},
	}
}

type querySource struct {
	q          Querier
	entityType string
	attrs      []string
}

func (s querySource) Fetch(ctx context.Context, page, perPage int) (domain.Page, error) {
	resp, err := s.q.Query(ctx, s.entityType, s.attrs)
	if err != nil {
		return domain.Page{}, err
	}
	return domain.Page{Data: resp.Records(), Page: page, PerPage: perPage}, nil
}

// linkSource joins every link to the host of its connection.
type linkSource struct {
	q   Querier
	log *zap.Logger
}

func (s *linkSource) Fetch(ctx context.Context, page, perPage int) (domain.Page, error) {
	resp, err := s.q.Query(ctx, TypeLink, linkAttrs)
	if err != nil {
		return domain.Page{}, err
	}
	links := resp.Records()

	// connection names are cosmetic; links are still shown without them
	conns, err := s.q.Query(ctx, TypeConnection, []string{"identity", "host", "container"})
	if err != nil {
		s.log.Warn("connection lookup failed", zap.Error(err))
		return domain.Page{Data: links, Page: page, PerPage: perPage}, nil
	}
	hosts := make(map[string]string, len(conns.Results))
	for _, c := range conns.Records() {
		hosts[fmt.Sprint(c["identity"])] = coalesce(c["host"], c["container"])
	}
	for _, l := range links {
		if id, ok := l["connectionId"]; ok && id != nil {
			if h, ok := hosts[fmt.Sprint(id)]; ok {
				l["connection"] = h
			}
		}
	}
	return domain.Page{Data: links, Page: page, PerPage: perPage}, nil
}

func isEndpoint(rec domain.Record) bool {
	return rec["linkType"] == "endpoint"
}

func coalesce(vals ...any) string {
	for _, v := range vals {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return ""
}
