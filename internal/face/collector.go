package face

import (
	"sync"
	"time"
)

// Collector accumulates qualifying candidates over a bounded time window and
// tracks the single best-quality one. Two independent exit conditions decide
// when the best candidate is emitted: a candidate at or above the high-water
// quality mark wins immediately, and an expired window forces the current
// best out. Optimizing purely for the first good-enough frame under-collects
// in low light; always waiting the full window adds needless latency when an
// excellent frame arrives at once.
//
// All access to the window state is serialized internally; Process and Reset
// may be called from any goroutine.
type Collector struct {
	window    time.Duration
	highWater float64

	mu        sync.Mutex
	startTime time.Time // zero iff best is nil
	best      *Candidate

	now func() time.Time
}

// NewCollector creates a collector with the given window duration and
// high-water quality mark.
func NewCollector(window time.Duration, highWater float64) *Collector {
	return &Collector{
		window:    window,
		highWater: highWater,
		now:       time.Now,
	}
}

// Process feeds one candidate into the current window. It returns the window
// winner once an exit condition is met, along with collection progress:
// 1.0 on a winner, otherwise elapsed window fraction capped below 1.0.
func (c *Collector) Process(cand Candidate) (winner *Candidate, progress float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.best == nil {
		c.startTime = now
		cc := cand
		c.best = &cc
	} else if cand.Quality > c.best.Quality {
		cc := cand
		c.best = &cc
	}

	if cand.Quality >= c.highWater {
		return c.emitLocked()
	}

	elapsed := now.Sub(c.startTime)
	if elapsed > c.window {
		return c.emitLocked()
	}

	p := float64(elapsed) / float64(c.window)
	if p >= 1 {
		p = 0.99
	}
	return nil, p
}

// emitLocked hands out the current best and closes the window.
func (c *Collector) emitLocked() (*Candidate, float64) {
	w := c.best
	c.best = nil
	c.startTime = time.Time{}
	return w, 1.0
}

// Reset unconditionally discards the open window, if any. Safe to call on an
// already-empty collector.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.best = nil
	c.startTime = time.Time{}
	c.mu.Unlock()
}

// Open reports whether a collection window is currently open.
func (c *Collector) Open() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.best != nil
}
