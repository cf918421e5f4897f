package rate

import (
	"math"
	"testing"
	"time"

	"github.com/HaPhanBaoMinh/kmon/internal/domain"
)

var key = domain.RateKey{Entity: "link-1", Metric: "deliveryCount"}

func at(sec int) time.Time { return time.Unix(1700000000, 0).Add(time.Duration(sec) * time.Second) }

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-3 }

func TestFirstSampleIsZero(t *testing.T) {
	e := New(3)
	if r := e.Update(key, 100, at(0)); r != 0 {
		t.Fatalf("first rate = %v, want 0", r)
	}
}

func TestWindowScenario(t *testing.T) {
	e := New(3)
	e.Update(key, 0, at(0))
	if r := e.Update(key, 10, at(5)); !approx(r, 2) {
		t.Fatalf("rate after t=5 = %v, want 2", r)
	}
	if r := e.Update(key, 10, at(10)); !approx(r, 1) {
		t.Fatalf("rate after t=10 = %v, want 1", r)
	}
	if r := e.Update(key, 40, at(15)); !approx(r, 2.6667) {
		t.Fatalf("rate after t=15 = %v, want 2.6667", r)
	}
	hist := e.History(key)
	want := []float64{2, 0, 6}
	for i := range want {
		if !approx(hist[i], want[i]) {
			t.Fatalf("history = %v, want %v", hist, want)
		}
	}
}

func TestWindowEvictsOldest(t *testing.T) {
	e := New(2)
	e.Update(key, 0, at(0))
	e.Update(key, 100, at(1))      // 100/s
	e.Update(key, 110, at(2))      // 10/s
	r := e.Update(key, 130, at(3)) // 20/s
	if !approx(r, 15) {
		t.Fatalf("rate = %v, want mean of last two (15)", r)
	}
}

func TestCounterResetContributesZero(t *testing.T) {
	e := New(3)
	e.Update(key, 50, at(0))
	if r := e.Update(key, 10, at(5)); r != 0 {
		t.Fatalf("rate after reset = %v, want 0", r)
	}
	// the reset value is the new baseline
	if r := e.Update(key, 20, at(10)); !approx(r, 1) {
		t.Fatalf("rate after reset baseline = %v, want mean(0,2)=1", r)
	}
}

func TestNonPositiveElapsedIsDropped(t *testing.T) {
	e := New(3)
	e.Update(key, 0, at(0))
	e.Update(key, 10, at(5))
	if r := e.Update(key, 500, at(5)); !approx(r, 2) {
		t.Fatalf("same timestamp rate = %v, want unchanged 2", r)
	}
	if r := e.Update(key, 500, at(4)); !approx(r, 2) {
		t.Fatalf("past timestamp rate = %v, want unchanged 2", r)
	}
	if n := len(e.History(key)); n != 1 {
		t.Fatalf("history len = %d, want 1", n)
	}
	// baseline stayed at (10, t=5)
	if r := e.Update(key, 20, at(10)); !approx(r, 2) {
		t.Fatalf("rate = %v, want mean(2,2)", r)
	}
}

func TestRetainPrunesDeadKeys(t *testing.T) {
	e := New(3)
	other := domain.RateKey{Entity: "link-2", Metric: "deliveryCount"}
	e.Update(key, 1, at(0))
	e.Update(other, 1, at(0))
	removed := e.Retain(func(k domain.RateKey) bool { return k == key })
	if removed != 1 || e.Len() != 1 {
		t.Fatalf("removed=%d len=%d", removed, e.Len())
	}
	if _, ok := e.Rate(other); ok {
		t.Fatal("pruned key still tracked")
	}
	// a returning key starts over
	if r := e.Update(other, 100, at(5)); r != 0 {
		t.Fatalf("rate for re-added key = %v, want 0", r)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	e := New(3)
	a := domain.RateKey{Entity: "x", Metric: "rx"}
	b := domain.RateKey{Entity: "x", Metric: "tx"}
	e.Update(a, 0, at(0))
	e.Update(b, 0, at(0))
	e.Update(a, 10, at(1))
	if r, _ := e.Rate(b); r != 0 {
		t.Fatalf("tx rate leaked from rx: %v", r)
	}
}
