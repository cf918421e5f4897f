// Package mock is an in-process router management agent with synthetic,
// steadily increasing counters.
package mock

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/kmon/internal/infrastructure/management"
)

type Option func(*Agent)

func WithClock(c clock.PassiveClock) Option { return func(a *Agent) { a.clock = c } }

func WithSeed(seed int64) Option {
	return func(a *Agent) { a.rnd = rand.New(rand.NewSource(seed)) }
}

type link struct {
	name, linkType, dir, addr string
	connID                    int
	capacity                  int
	rate, delay1, delay10     float64 // per second
	deliveries                float64
	delayed1, delayed10       float64
	unsettled                 int
}

type conn struct {
	id                    int
	host, container, role string
	dir                   string
	encrypted             bool
	user                  string
}

type address struct {
	name, distribution string
	subscribers        int
	remotes            int
	inRate, outRate    float64
	ingress, egress    float64
}

// Agent implements management.Querier.
type Agent struct {
	mu    sync.Mutex
	clock clock.PassiveClock
	rnd   *rand.Rand
	start time.Time
	last  time.Time

	links []*link
	conns []conn
	addrs []*address
}

var _ management.Querier = (*Agent)(nil)

func New(opts ...Option) *Agent {
	a := &Agent{
		clock: clock.RealClock{},
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, o := range opts {
		o(a)
	}
	a.start = a.clock.Now()
	a.last = a.start
	a.seed()
	return a
}

func (a *Agent) seed() {
	a.conns = []conn{
		{1, "10.0.1.5:41230", "broker-a", "inter-router", "in", true, "router"},
		{2, "10.0.1.12:5672", "broker-b", "inter-router", "out", true, "router"},
		{3, "10.0.2.3:38812", "orders-svc", "normal", "in", false, "anonymous"},
		{4, "10.0.2.7:38990", "cart-svc", "normal", "in", false, "anonymous"},
		{5, "10.0.3.2:51002", "audit-consumer", "normal", "in", true, "audit"},
	}
	addrs := []struct {
		name, dist string
	}{
		{"orders", "balanced"}, {"cart.events", "multicast"}, {"audit", "closest"},
		{"$management", "closest"}, {"payments", "balanced"},
	}
	for i, ad := range addrs {
		a.addrs = append(a.addrs, &address{
			name:         ad.name,
			distribution: ad.dist,
			subscribers:  1 + i%3,
			remotes:      i % 2,
			inRate:       20 + 40*a.rnd.Float64(),
			outRate:      15 + 40*a.rnd.Float64(),
		})
	}
	for i := 0; i < 12; i++ {
		c := a.conns[i%len(a.conns)]
		ad := a.addrs[i%len(a.addrs)]
		l := &link{
			name:     fmt.Sprintf("link-%d", i+1),
			linkType: "endpoint",
			dir:      []string{"in", "out"}[i%2],
			addr:     ad.name,
			connID:   c.id,
			capacity: 250,
			rate:     5 + 50*a.rnd.Float64(),
		}
		if c.role == "inter-router" {
			l.linkType = "inter-router"
			l.addr = ""
		}
		// a few links back up now and then
		if i%4 == 1 {
			l.delay1 = 0.5 + 2*a.rnd.Float64()
			l.delay10 = 0.1 + 0.5*a.rnd.Float64()
		}
		a.links = append(a.links, l)
	}
}

// advance moves every counter forward by the time elapsed since the last
// query.
func (a *Agent) advance() {
	now := a.clock.Now()
	dt := now.Sub(a.last).Seconds()
	if dt <= 0 {
		return
	}
	a.last = now
	for i, l := range a.links {
		w := a.wobble(i)
		l.deliveries += l.rate * dt * w
		l.delayed1 += l.delay1 * dt * w
		l.delayed10 += l.delay10 * dt * w
		l.unsettled = int(float64(l.capacity) * clamp01(0.1*w+0.2*a.rnd.Float64()))
	}
	for i, ad := range a.addrs {
		w := a.wobble(i + 10)
		ad.ingress += ad.inRate * dt * w
		ad.egress += ad.outRate * dt * w
	}
}

// wobble is a slow oscillation around 1 so rates visibly drift.
func (a *Agent) wobble(seed int) float64 {
	t := a.last.Sub(a.start).Seconds()
	return 1 + 0.4*math.Sin(t/20+float64(seed)) + 0.1*a.rnd.Float64()
}

func (a *Agent) Query(ctx context.Context, entityType string, attrs []string) (management.QueryResponse, error) {
	if err := ctx.Err(); err != nil {
		return management.QueryResponse{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.advance()

	var rows []map[string]any
	switch entityType {
	case management.TypeLink:
		for _, l := range a.links {
			rows = append(rows, map[string]any{
				"name":                   l.name,
				"identity":               l.name,
				"linkType":               l.linkType,
				"linkDir":                l.dir,
				"owningAddr":             coalesce(l.addr, "-"),
				"capacity":               l.capacity,
				"undeliveredCount":       0,
				"unsettledCount":         l.unsettled,
				"deliveryCount":          math.Floor(l.deliveries),
				"deliveriesDelayed1Sec":  math.Floor(l.delayed1),
				"deliveriesDelayed10Sec": math.Floor(l.delayed10),
				"connectionId":           l.connID,
				"adminStatus":            "enabled",
				"operStatus":             "up",
			})
		}
	case management.TypeConnection:
		for _, c := range a.conns {
			rows = append(rows, map[string]any{
				"identity":    c.id,
				"host":        c.host,
				"container":   c.container,
				"role":        c.role,
				"dir":         c.dir,
				"isEncrypted": c.encrypted,
				"sasl":        "PLAIN",
				"user":        c.user,
			})
		}
	case management.TypeAddress:
		for _, ad := range a.addrs {
			rows = append(rows, map[string]any{
				"name":              ad.name,
				"distribution":      ad.distribution,
				"inProcess":         0,
				"subscriberCount":   ad.subscribers,
				"remoteCount":       ad.remotes,
				"deliveriesIngress": math.Floor(ad.ingress),
				"deliveriesEgress":  math.Floor(ad.egress),
				"deliveriesTransit": 0,
			})
		}
	default:
		return management.QueryResponse{}, fmt.Errorf("%s: %w", entityType, management.ErrUnknownType)
	}

	resp := management.QueryResponse{AttributeNames: attrs}
	for _, r := range rows {
		out := make([]any, len(attrs))
		for i, name := range attrs {
			out[i] = r[name]
		}
		resp.Results = append(resp.Results, out)
	}
	return resp, nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func coalesce(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
