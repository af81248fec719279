package engine

import (
	"sync"
	"time"

	"loginguard/internal/model"
)

// FailureTracker keeps a sliding window of failed logins per user so the
// ingestion layer can derive failed_count_window for events that do not
// carry one.
type FailureTracker struct {
	mu     sync.Mutex
	window time.Duration
	users  map[string]*failureWindow
}

type failureWindow struct {
	times []time.Time
	head  int
}

func NewFailureTracker(window time.Duration) *FailureTracker {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &FailureTracker{
		window: window,
		users:  make(map[string]*failureWindow),
	}
}

func (t *FailureTracker) SetWindow(window time.Duration) {
	if window <= 0 {
		return
	}
	t.mu.Lock()
	t.window = window
	t.mu.Unlock()
}

// Observe records the outcome of a login at ts and returns the user's
// failure count within the window ending at ts. A success contributes
// nothing to the count but does not clear prior failures.
func (t *FailureTracker) Observe(userID string, status model.Status, ts time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.users[userID]
	if !ok {
		w = &failureWindow{}
		t.users[userID] = w
	}
	w.evict(ts.Add(-t.window))
	if status != model.StatusSuccess {
		w.add(ts)
	}
	return w.count()
}

// Count returns the user's current failure count without recording anything.
func (t *FailureTracker) Count(userID string, now time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, ok := t.users[userID]
	if !ok {
		return 0
	}
	w.evict(now.Add(-t.window))
	return w.count()
}

func (w *failureWindow) add(ts time.Time) {
	w.times = append(w.times, ts)
}

func (w *failureWindow) evict(cutoff time.Time) {
	for w.head < len(w.times) {
		if !w.times[w.head].Before(cutoff) {
			break
		}
		w.head++
	}
	if w.head > 0 && w.head*2 >= len(w.times) {
		w.times = append([]time.Time{}, w.times[w.head:]...)
		w.head = 0
	}
}

func (w *failureWindow) count() int {
	return len(w.times) - w.head
}
