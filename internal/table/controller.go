// Package table holds the refresh, filter, sort and paginate state of one
// entity view.
package table

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/format"
	"github.com/HaPhanBaoMinh/kmon/internal/rate"
)

type Status int

const (
	Idle Status = iota
	Fetching
	Ready
)

func (s Status) String() string {
	switch s {
	case Fetching:
		return "fetching"
	case Ready:
		return "ready"
	}
	return "idle"
}

// Request is one issued fetch. Seq grows monotonically per controller.
type Request struct {
	Seq     uint64
	Page    int
	PerPage int
}

// Result is the outcome of a fetch, handed back to Apply.
type Result struct {
	Request
	Snapshot domain.Page
	Err      error
	Took     time.Duration
}

// FetchObserver receives fetch telemetry.
type FetchObserver interface {
	ObserveFetch(entity string, took time.Duration, err error)
	ObserveDropped(entity string)
	ObserveRows(entity string, rows, rateKeys int)
}

type nopObserver struct{}

func (nopObserver) ObserveFetch(string, time.Duration, error) {}
func (nopObserver) ObserveDropped(string)                     {}
func (nopObserver) ObserveRows(string, int, int)              {}

type Options struct {
	Formatters format.Registry
	Window     int
	Clock      clock.PassiveClock
	State      domain.ViewState
	Observer   FetchObserver
	Logger     *zap.Logger
}

// View is a consistent copy of what the controller currently shows.
type View struct {
	Rows    []domain.Row
	Page    domain.PageSpec
	Sort    domain.SortSpec
	Filter  domain.FilterSpec
	Status  Status
	Stale   bool
	Err     error
	Updated time.Time
}

type Controller struct {
	entity domain.Entity
	source domain.DataSource
	cells  []format.Formatter
	est    *rate.Estimator
	clock  clock.PassiveClock
	obs    FetchObserver
	log    *zap.Logger

	mu      sync.Mutex
	state   domain.ViewState
	all     []domain.Row
	visible []domain.Row
	total   int
	issued  uint64
	applied uint64
	stale   bool
	err     error
	updated time.Time
	closed  bool
}

func New(entity domain.Entity, opts Options) (*Controller, error) {
	if entity.Source == nil {
		return nil, fmt.Errorf("entity %s has no data source", entity.Name)
	}
	if opts.Formatters == nil {
		opts.Formatters = format.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	cells := make([]format.Formatter, len(entity.Fields))
	for i, f := range entity.Fields {
		switch {
		case f.Format != "":
			fn, err := opts.Formatters.Lookup(f.Format)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", entity.Name, f.Field, err)
			}
			cells[i] = fn
		case f.Numeric:
			cells[i] = format.Pretty
		default:
			cells[i] = format.Text
		}
	}

	st := opts.State
	if st.Page == 0 && st.PerPage == 0 {
		st = domain.DefaultViewState(entity.Name)
	}
	st = st.Normalize()
	st.Entity = entity.Name
	if CheckSort(entity.Fields, st.Sort) != nil {
		st.Sort = domain.SortSpec{}
	}
	if st.Filter.Field != "" {
		col, err := FilterColumn(entity.Fields, st.Filter.Field)
		if err != nil {
			return nil, err
		}
		st.Filter.Field = entity.Fields[col].Field
	}

	return &Controller{
		entity: entity,
		source: entity.Source(),
		cells:  cells,
		est:    rate.New(opts.Window),
		clock:  opts.Clock,
		obs:    opts.Observer,
		log:    opts.Logger.With(zap.String("entity", entity.Name)),
		state:  st,
	}, nil
}

func (c *Controller) Entity() domain.Entity { return c.entity }

// Refresh issues a fetch of the current page.
func (c *Controller) Refresh() Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.issueLocked()
}

func (c *Controller) issueLocked() Request {
	c.issued++
	return Request{Seq: c.issued, Page: c.state.Page, PerPage: c.state.PerPage}
}

// SetSort reorders the rows already fetched. It never triggers a fetch.
func (c *Controller) SetSort(col int, dir domain.Direction) error {
	if col < 0 || col >= len(c.entity.Fields) {
		return fmt.Errorf("column %d: %w", col, domain.ErrUnsortable)
	}
	if !c.entity.Fields[col].Sortable {
		return fmt.Errorf("column %s: %w", c.entity.Fields[col].Field, domain.ErrUnsortable)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Sort = domain.SortSpec{Column: col, Direction: dir}
	c.recomputeLocked()
	return nil
}

// SetFilter filters on the column whose field name or title is field. An
// empty field or value clears the filter.
func (c *Controller) SetFilter(field, value string) (Request, error) {
	spec := domain.FilterSpec{Value: value}
	if field != "" {
		col, err := FilterColumn(c.entity.Fields, field)
		if err != nil {
			return Request{}, err
		}
		spec.Field = c.entity.Fields[col].Field
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Filter = spec
	c.recomputeLocked()
	return c.issueLocked(), nil
}

func (c *Controller) SetPage(n int) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Page = max(n, 1)
	c.recomputeLocked()
	return c.issueLocked()
}

// SetPerPage changes the page size and goes back to the first page.
func (c *Controller) SetPerPage(n int) Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n < 1 {
		n = domain.DefaultPerPage
	}
	c.state.PerPage = n
	c.state.Page = 1
	c.recomputeLocked()
	return c.issueLocked()
}

// Fetch calls the data source. It does not touch controller state and may
// run on any goroutine.
func (c *Controller) Fetch(ctx context.Context, req Request) Result {
	start := c.clock.Now()
	page, err := c.source.Fetch(ctx, req.Page, req.PerPage)
	took := c.clock.Since(start)
	c.obs.ObserveFetch(c.entity.Name, took, err)
	return Result{Request: req, Snapshot: page, Err: err, Took: took}
}

// Apply installs a fetch result. Results older than the last applied one,
// or arriving after Close, are dropped and Apply reports false.
func (c *Controller) Apply(res Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || res.Seq <= c.applied {
		c.obs.ObserveDropped(c.entity.Name)
		c.log.Debug("dropped superseded result", zap.Uint64("seq", res.Seq), zap.Uint64("applied", c.applied))
		return false
	}
	c.applied = res.Seq
	if res.Err != nil {
		c.stale = true
		c.err = res.Err
		c.log.Warn("fetch failed, keeping previous rows", zap.Uint64("seq", res.Seq), zap.Error(res.Err))
		return true
	}

	at := res.Snapshot.Timestamp
	if at.IsZero() {
		at = c.clock.Now()
	}
	c.all = c.buildRowsLocked(res.Snapshot.Data, at)
	c.stale = false
	c.err = nil
	c.updated = c.clock.Now()
	c.recomputeLocked()
	c.obs.ObserveRows(c.entity.Name, len(c.all), c.est.Len())
	return true
}

// Sync refreshes, fetches and applies in one call.
func (c *Controller) Sync(ctx context.Context) error {
	res := c.Fetch(ctx, c.Refresh())
	if !c.Apply(res) && c.Closed() {
		return domain.ErrClosed
	}
	return res.Err
}

func (c *Controller) buildRowsLocked(recs []domain.Record, at time.Time) []domain.Row {
	live := make(map[domain.RateKey]struct{})
	rows := make([]domain.Row, 0, len(recs))
	for _, src := range recs {
		rec := src.Clone()
		if id, ok := c.keyOf(rec); ok {
			for _, rs := range c.entity.Rates {
				v, ok := domain.Number(rec[rs.Counter])
				if !ok {
					continue
				}
				k := domain.RateKey{Entity: id, Metric: rs.Counter}
				rec[rs.Field] = c.est.Update(k, v, at)
				live[k] = struct{}{}
			}
		}
		rows = append(rows, c.render(rec))
	}
	if n := c.est.Retain(func(k domain.RateKey) bool { _, ok := live[k]; return ok }); n > 0 {
		c.log.Debug("pruned rate keys", zap.Int("count", n))
	}
	return rows
}

func (c *Controller) keyOf(rec domain.Record) (string, bool) {
	if c.entity.Key == "" || len(c.entity.Rates) == 0 {
		return "", false
	}
	v, ok := rec[c.entity.Key]
	if !ok || v == nil {
		return "", false
	}
	id := format.Text(v, rec)
	return id, id != ""
}

func (c *Controller) render(rec domain.Record) domain.Row {
	row := domain.Row{
		Cells:  make([]string, len(c.entity.Fields)),
		Values: make([]any, len(c.entity.Fields)),
		Record: rec,
	}
	for i, f := range c.entity.Fields {
		v := rec[f.Field]
		row.Values[i] = v
		row.Cells[i] = c.cells[i](v, rec)
	}
	return row
}

func (c *Controller) recomputeLocked() {
	rows, spec, st, err := Compute(c.all, c.entity.Fields, c.state)
	if err != nil {
		// state is validated by the mutators
		c.log.Error("recompute", zap.Error(err))
		return
	}
	c.state = st
	c.visible = rows
	c.total = spec.Total
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return View{
		Rows:    c.visible,
		Page:    domain.PageSpec{Page: c.state.Page, PerPage: c.state.PerPage, Total: c.total},
		Sort:    c.state.Sort,
		Filter:  c.state.Filter,
		Status:  c.statusLocked(),
		Stale:   c.stale,
		Err:     c.err,
		Updated: c.updated,
	}
}

func (c *Controller) statusLocked() Status {
	switch {
	case c.issued == 0:
		return Idle
	case c.applied < c.issued:
		return Fetching
	}
	return Ready
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

// Rows returns the full, unfiltered row set of the last successful fetch.
func (c *Controller) Rows() []domain.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.all
}

func (c *Controller) State() domain.ViewState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RateHistory returns the recent instantaneous rates of counter for the
// entity instance rec belongs to.
func (c *Controller) RateHistory(rec domain.Record, counter string) []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id, ok := c.keyOf(rec)
	if !ok {
		return nil
	}
	return c.est.History(domain.RateKey{Entity: id, Metric: counter})
}

func (c *Controller) TrackedKeys() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.est.Len()
}

// Close detaches the controller; later results are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
