// Package poll runs a callback immediately and then on a fixed interval.
package poll

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

const DefaultInterval = 5 * time.Second

type Option func(*Scheduler)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clock.WithTicker) Option {
	return func(s *Scheduler) { s.clock = c }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// Scheduler fires fn on start and every interval until stopped. fn runs on
// the scheduler goroutine; ticks missed while it runs are coalesced.
type Scheduler struct {
	interval time.Duration
	fn       func(context.Context)
	clock    clock.WithTicker
	log      *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, fn func(context.Context), opts ...Option) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	s := &Scheduler{
		interval: interval,
		fn:       fn,
		clock:    clock.RealClock{},
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Scheduler) Interval() time.Duration { return s.interval }

// Start begins polling. Calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	// created before the first callback so the first tick is one interval
	// after start, not after the first callback returns
	ticker := s.clock.NewTicker(s.interval)
	go s.loop(ctx, ticker, s.done)
	s.log.Debug("poller started", zap.Duration("interval", s.interval))
}

func (s *Scheduler) loop(ctx context.Context, ticker clock.Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	s.fn(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			if ctx.Err() != nil {
				return
			}
			s.fn(ctx)
		}
	}
}

// Stop halts polling and waits for the loop to exit; no callback runs after
// Stop returns. Stop is safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Debug("poller stopped")
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}
