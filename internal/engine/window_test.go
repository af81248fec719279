package engine

import (
	"testing"
	"time"

	"loginguard/internal/model"
)

func TestFailureTrackerCountsWithinWindow(t *testing.T) {
	tr := NewFailureTracker(time.Minute)
	now := time.Now().UTC()
	for i := 0; i < 3; i++ {
		tr.Observe("u1", model.StatusFailure, now.Add(time.Duration(i)*time.Second))
	}
	if got := tr.Count("u1", now.Add(3*time.Second)); got != 3 {
		t.Fatalf("expected 3 failures, got %d", got)
	}
}

func TestFailureTrackerEvictsOldFailures(t *testing.T) {
	tr := NewFailureTracker(time.Second)
	now := time.Now().UTC()
	tr.Observe("u1", model.StatusFailure, now)
	tr.Observe("u1", model.StatusFailure, now.Add(100*time.Millisecond))
	if got := tr.Observe("u1", model.StatusFailure, now.Add(2*time.Second)); got != 1 {
		t.Fatalf("expected only the fresh failure after eviction, got %d", got)
	}
}

func TestSuccessDoesNotClearFailures(t *testing.T) {
	tr := NewFailureTracker(time.Minute)
	now := time.Now().UTC()
	tr.Observe("u1", model.StatusFailure, now)
	tr.Observe("u1", model.StatusFailure, now.Add(time.Second))
	if got := tr.Observe("u1", model.StatusSuccess, now.Add(2*time.Second)); got != 2 {
		t.Fatalf("success must not clear failures, got %d", got)
	}
}

func TestFailureTrackerPerUserIsolation(t *testing.T) {
	tr := NewFailureTracker(time.Minute)
	now := time.Now().UTC()
	tr.Observe("u1", model.StatusFailure, now)
	if got := tr.Count("u2", now); got != 0 {
		t.Fatalf("expected 0 for unrelated user, got %d", got)
	}
}
