// Package prom reads network interface counters from Prometheus.
package prom

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/api"
	promapi "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

// DefaultQueries maps record attributes to the counters they are read from.
var DefaultQueries = map[string]string{
	"rxBytes":  `node_network_receive_bytes_total{device!="lo"}`,
	"txBytes":  `node_network_transmit_bytes_total{device!="lo"}`,
	"rxErrors": `node_network_receive_errs_total{device!="lo"}`,
	"txErrors": `node_network_transmit_errs_total{device!="lo"}`,
}

type Options struct {
	Address         string
	BearerTokenFile string
	Timeout         time.Duration
	Queries         map[string]string
	Clock           clock.PassiveClock
	Logger          *zap.Logger
}

type Source struct {
	prom    promapi.API
	queries map[string]string
	timeout time.Duration
	clock   clock.PassiveClock
	log     *zap.Logger
}

func New(opts Options) (*Source, error) {
	if opts.Address == "" {
		return nil, errors.New("prometheus address is required")
	}
	client, err := api.NewClient(api.Config{
		Address: opts.Address,
		RoundTripper: &bearerAuthRoundTripper{
			parent: api.DefaultRoundTripper,
			token:  readTokenFile(opts.BearerTokenFile),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	if len(opts.Queries) == 0 {
		opts.Queries = DefaultQueries
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Source{
		prom:    promapi.NewAPI(client),
		queries: opts.Queries,
		timeout: opts.Timeout,
		clock:   opts.Clock,
		log:     opts.Logger.Named("prometheus"),
	}, nil
}

// Fetch evaluates every query at the same instant and merges the samples
// into one record per instance/device pair.
func (s *Source) Fetch(ctx context.Context, page, perPage int) (domain.Page, error) {
	ts := s.clock.Now()
	byKey := map[string]domain.Record{}

	attrs := make([]string, 0, len(s.queries))
	for a := range s.queries {
		attrs = append(attrs, a)
	}
	sort.Strings(attrs)

	for _, attr := range attrs {
		vector, err := s.query(ctx, s.queries[attr], ts)
		if err != nil {
			return domain.Page{}, fmt.Errorf("prometheus query %q: %w", attr, err)
		}
		for _, sample := range vector {
			instance := string(sample.Metric["instance"])
			device := string(sample.Metric["device"])
			if instance == "" {
				continue
			}
			key := instance + "/" + device
			rec, ok := byKey[key]
			if !ok {
				rec = domain.Record{"key": key, "instance": instance, "device": device}
				byKey[key] = rec
			}
			rec[attr] = float64(sample.Value)
		}
	}

	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]domain.Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, byKey[k])
	}
	return domain.Page{Data: out, Page: page, PerPage: perPage, Timestamp: ts}, nil
}

func (s *Source) query(ctx context.Context, q string, ts time.Time) (model.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	value, warnings, err := s.prom.Query(ctx, q, ts)
	if err != nil {
		return nil, err
	}
	if len(warnings) > 0 {
		s.log.Warn("query warnings", zap.String("query", q), zap.Strings("warnings", warnings))
	}
	vector, ok := value.(model.Vector)
	if !ok {
		return nil, fmt.Errorf("unexpected result type %T", value)
	}
	return vector, nil
}

// Entity describes the interface table backed by s.
func (s *Source) Entity() domain.Entity {
	return domain.Entity{
		Name:  "interfaces",
		Title: "Interfaces",
		Key:   "key",
		Fields: []domain.FieldSchema{
			{Field: "instance", Title: "Instance", Sortable: true, Filterable: true, NoWrap: true},
			{Field: "device", Title: "Device", Sortable: true, Filterable: true},
			{Field: "rxRate", Title: "RX", Numeric: true, Sortable: true, Format: "byterate"},
			{Field: "txRate", Title: "TX", Numeric: true, Sortable: true, Format: "byterate"},
			{Field: "rxErrorRate", Title: "RX err", Numeric: true, Sortable: true, Format: "rate"},
			{Field: "txErrorRate", Title: "TX err", Numeric: true, Sortable: true, Format: "rate"},
			{Field: "rxBytes", Title: "RX total", Numeric: true, Sortable: true, Format: "bytes"},
			{Field: "txBytes", Title: "TX total", Numeric: true, Sortable: true, Format: "bytes"},
		},
		Rates: []domain.RateSpec{
			{Counter: "rxBytes", Field: "rxRate"},
			{Counter: "txBytes", Field: "txRate"},
			{Counter: "rxErrors", Field: "rxErrorRate"},
			{Counter: "txErrors", Field: "txErrorRate"},
		},
		Top: &domain.TopNSpec{
			Title:     "Busiest interfaces",
			Primary:   "rxRate",
			Secondary: "txRate",
		},
		Source: func() domain.DataSource { return s },
	}
}

type bearerAuthRoundTripper struct {
	parent http.RoundTripper
	token  string
}

func (rt *bearerAuthRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.token != "" {
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+rt.token)
	}
	parent := rt.parent
	if parent == nil {
		parent = http.DefaultTransport
	}
	return parent.RoundTrip(req)
}

func readTokenFile(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
