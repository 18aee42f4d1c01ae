package spend

import (
	"sync"
	"time"
)

// RollingWindow accumulates spend in fixed-size time buckets and reports
// the sum over a trailing window. Expired buckets are pruned lazily on
// access.
type RollingWindow struct {
	window time.Duration
	bucket time.Duration

	mu      sync.Mutex
	buckets map[int64]float64
}

// NewRollingWindow creates a rolling window of the given span with the
// given bucket granularity.
func NewRollingWindow(window, bucket time.Duration) *RollingWindow {
	return &RollingWindow{
		window:  window,
		bucket:  bucket,
		buckets: make(map[int64]float64),
	}
}

// Add records an amount at the current time.
func (w *RollingWindow) Add(amount float64) {
	w.AddAt(amount, time.Now())
}

// AddAt records an amount at a specific time. Amounts older than the
// window are ignored.
func (w *RollingWindow) AddAt(amount float64, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if time.Since(at) > w.window {
		return
	}
	w.buckets[at.UnixNano()/int64(w.bucket)] += amount
}

// Sum returns the total spend within the trailing window.
func (w *RollingWindow) Sum() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.prune()
	var sum float64
	for _, v := range w.buckets {
		sum += v
	}
	return sum
}

// Reset clears the window.
func (w *RollingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buckets = make(map[int64]float64)
}

// prune drops buckets older than the window. Caller must hold the lock.
func (w *RollingWindow) prune() {
	oldest := time.Now().Add(-w.window).UnixNano() / int64(w.bucket)
	for key := range w.buckets {
		if key < oldest {
			delete(w.buckets, key)
		}
	}
}
