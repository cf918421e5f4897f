// Package server runs every registered entity headless and exposes the
// tables as JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
	"github.com/HaPhanBaoMinh/kmon/internal/observability"
	"github.com/HaPhanBaoMinh/kmon/internal/poll"
	"github.com/HaPhanBaoMinh/kmon/internal/registry"
	"github.com/HaPhanBaoMinh/kmon/internal/summary"
	"github.com/HaPhanBaoMinh/kmon/internal/table"
)

type Options struct {
	Interval   time.Duration
	Window     int
	Clock      clock.WithTicker
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
	Logger     *zap.Logger
}

type view struct {
	ctrl   *table.Controller
	card   *summary.Card
	poller *poll.Scheduler
}

type Server struct {
	reg      *registry.Registry
	views    map[string]*view
	interval time.Duration
	gatherer prometheus.Gatherer
	log      *zap.Logger
}

// New builds one controller and poller per entity. Entities with a summary
// share the card's controller.
func New(reg *registry.Registry, opts Options) (*Server, error) {
	if opts.Interval <= 0 {
		opts.Interval = poll.DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	rec := observability.NewRecorder(opts.Registerer)

	s := &Server{
		reg:      reg,
		views:    make(map[string]*view, reg.Len()),
		interval: opts.Interval,
		gatherer: opts.Gatherer,
		log:      opts.Logger.Named("server"),
	}
	for _, name := range reg.Names() {
		e, err := reg.Lookup(name)
		if err != nil {
			return nil, err
		}
		topts := table.Options{Window: opts.Window, Clock: opts.Clock, Observer: rec, Logger: opts.Logger}
		v := &view{}
		if e.Top != nil {
			if v.card, err = summary.New(e, topts); err != nil {
				return nil, err
			}
			v.ctrl = v.card.Controller()
		} else if v.ctrl, err = table.New(e, topts); err != nil {
			return nil, err
		}
		ctrl, log := v.ctrl, s.log.With(zap.String("entity", name))
		v.poller = poll.New(opts.Interval, func(ctx context.Context) {
			if err := ctrl.Sync(ctx); err != nil && !errors.Is(err, domain.ErrClosed) {
				log.Warn("poll failed", zap.Error(err))
			}
		}, poll.WithClock(opts.Clock), poll.WithLogger(log))
		s.views[name] = v
	}
	return s, nil
}

// Start begins polling every entity.
func (s *Server) Start(ctx context.Context) {
	for _, v := range s.views {
		v.poller.Start(ctx)
	}
}

// Stop halts the pollers and detaches the controllers.
func (s *Server) Stop() {
	for _, v := range s.views {
		v.poller.Stop()
		v.ctrl.Close()
	}
}

// Sync polls every entity once, in registration order.
func (s *Server) Sync(ctx context.Context) error {
	var errs []error
	for _, name := range s.reg.Names() {
		if err := s.views[name].ctrl.Sync(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/entities", s.handleEntities)
	mux.HandleFunc("GET /api/entities/{name}", s.handleTable)
	mux.HandleFunc("GET /api/entities/{name}/top", s.handleTop)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (domain.Entity, *view, bool) {
	e, err := s.reg.Lookup(r.PathValue("name"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return domain.Entity{}, nil, false
	}
	return e, s.views[e.Name], true
}

func (s *Server) handleEntities(w http.ResponseWriter, r *http.Request) {
	out := make([]EntityInfo, 0, s.reg.Len())
	for _, name := range s.reg.Names() {
		e, _ := s.reg.Lookup(name)
		info := EntityInfo{Name: e.Name, Title: e.Title, Key: e.Key}
		for _, f := range e.Fields {
			info.Fields = append(info.Fields, FieldInfo{
				Field:      f.Field,
				Title:      f.Title,
				Numeric:    f.Numeric,
				Sortable:   f.Sortable,
				Filterable: f.Filterable,
			})
		}
		if e.Top != nil {
			info.Summary = e.Top.Title
		}
		out = append(out, info)
	}
	writeJSON(w, out)
}

func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	e, v, ok := s.lookup(w, r)
	if !ok {
		return
	}
	st := domain.ParseViewState(r.URL.Query())
	st.Entity = e.Name
	rows, page, st, err := table.Compute(v.ctrl.Rows(), e.Fields, st)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	cur := v.ctrl.View()
	resp := TableResponse{
		Entity:  e.Name,
		State:   st.Values().Encode(),
		Page:    page.Page,
		PerPage: page.PerPage,
		Total:   page.Total,
		Pages:   page.Pages(),
		Status:  cur.Status.String(),
		Stale:   cur.Stale,
		Columns: columns(e),
		Rows:    encodeRows(e, rows),
	}
	if cur.Err != nil {
		resp.Error = cur.Err.Error()
	}
	if !cur.Updated.IsZero() {
		t := cur.Updated
		resp.Updated = &t
	}
	writeJSON(w, resp)
}

func (s *Server) handleTop(w http.ResponseWriter, r *http.Request) {
	e, v, ok := s.lookup(w, r)
	if !ok {
		return
	}
	if v.card == nil {
		writeError(w, http.StatusNotFound, fmt.Errorf("entity %s has no summary", e.Name))
		return
	}
	writeJSON(w, TopResponse{
		Entity:  e.Name,
		Title:   v.card.Title(),
		Caption: v.card.Caption(s.interval),
		Columns: columns(e),
		Rows:    encodeRows(e, v.card.Top()),
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("encode response: %v", err), http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: err.Error()})
}
