// Package rate converts cumulative counters sampled at irregular intervals
// into per-second rates smoothed over a sliding window.
package rate

import (
	"time"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

// DefaultWindow is the number of instantaneous rates averaged per key.
const DefaultWindow = 12

type ring struct {
	buf   []float64
	idx   int
	count int
}

func newRing(n int) *ring {
	if n < 1 {
		n = 1
	}
	return &ring{buf: make([]float64, n)}
}

func (r *ring) add(v float64) {
	r.buf[r.idx] = v
	r.idx++
	if r.idx >= len(r.buf) {
		r.idx = 0
	}
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) mean() float64 {
	if r.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < r.count; i++ {
		sum += r.buf[i]
	}
	return sum / float64(r.count)
}

// values returns the window oldest first.
func (r *ring) values() []float64 {
	out := make([]float64, 0, r.count)
	start := r.idx - r.count
	if start < 0 {
		start += len(r.buf)
	}
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(start+i)%len(r.buf)])
	}
	return out
}

type state struct {
	prev   float64
	prevAt time.Time
	rates  *ring
}

// Estimator keeps one window per RateKey. It is not safe for concurrent use.
type Estimator struct {
	window int
	keys   map[domain.RateKey]*state
}

func New(window int) *Estimator {
	if window < 1 {
		window = DefaultWindow
	}
	return &Estimator{window: window, keys: make(map[domain.RateKey]*state)}
}

// Update records value at instant at and returns the smoothed rate per second.
//
// The first sample of a key returns 0. A sample whose timestamp does not move
// forward is ignored and the current smoothed rate is returned. A decreasing
// counter is taken as a reset: it contributes a rate of 0 and becomes the new
// baseline.
func (e *Estimator) Update(key domain.RateKey, value float64, at time.Time) float64 {
	st, ok := e.keys[key]
	if !ok {
		e.keys[key] = &state{prev: value, prevAt: at, rates: newRing(e.window)}
		return 0
	}
	elapsed := at.Sub(st.prevAt).Seconds()
	if elapsed <= 0 {
		return st.rates.mean()
	}
	delta := value - st.prev
	inst := 0.0
	if delta >= 0 {
		inst = delta / elapsed
	}
	st.rates.add(inst)
	st.prev, st.prevAt = value, at
	return st.rates.mean()
}

// Rate returns the current smoothed rate without recording a sample.
func (e *Estimator) Rate(key domain.RateKey) (float64, bool) {
	st, ok := e.keys[key]
	if !ok {
		return 0, false
	}
	return st.rates.mean(), true
}

// History returns the instantaneous rates in the window, oldest first.
func (e *Estimator) History(key domain.RateKey) []float64 {
	st, ok := e.keys[key]
	if !ok {
		return nil
	}
	return st.rates.values()
}

// Retain drops every key for which live returns false and reports how many
// were removed.
func (e *Estimator) Retain(live func(domain.RateKey) bool) int {
	n := 0
	for k := range e.keys {
		if !live(k) {
			delete(e.keys, k)
			n++
		}
	}
	return n
}

func (e *Estimator) Forget(key domain.RateKey) { delete(e.keys, key) }

// Len reports the number of tracked keys.
func (e *Estimator) Len() int { return len(e.keys) }

func (e *Estimator) Window() int { return e.window }
