package ingest

import (
	"testing"
	"time"

	"loginguard/internal/engine"
	"loginguard/internal/model"
)

func TestParseLoginMinimal(t *testing.T) {
	login, err := ParseLogin([]byte(`{"user_id":"alice"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if login.UserID != "alice" {
		t.Fatalf("unexpected user %q", login.UserID)
	}
	if login.Status != model.StatusFailure {
		t.Fatalf("missing status must normalize to failure, got %s", login.Status)
	}
	if login.FailedCountWindow != engine.FailedCountUnset {
		t.Fatalf("expected unset failed count sentinel, got %d", login.FailedCountWindow)
	}
	if login.Timestamp.IsZero() {
		t.Fatalf("expected timestamp defaulted")
	}
}

func TestParseLoginEmailIdentity(t *testing.T) {
	login, err := ParseLogin([]byte(`{"email":"alice@example.com","status":"success"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if login.UserID != "alice@example.com" {
		t.Fatalf("expected email as identity, got %q", login.UserID)
	}
}

func TestParseLoginMissingIdentity(t *testing.T) {
	if _, err := ParseLogin([]byte(`{"city":"Pune"}`)); err == nil {
		t.Fatalf("expected error for missing identity")
	}
}

func TestParseLoginExplicitFailedCount(t *testing.T) {
	login, err := ParseLogin([]byte(`{"user_id":"alice","failed_count_window":5}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if login.FailedCountWindow != 5 {
		t.Fatalf("expected 5, got %d", login.FailedCountWindow)
	}
}

func TestParseStatusNormalization(t *testing.T) {
	cases := map[string]model.Status{
		"success": model.StatusSuccess,
		"SUCCESS": model.StatusSuccess,
		"ok":      model.StatusSuccess,
		"failure": model.StatusFailure,
		"denied":  model.StatusFailure,
		"weird":   model.StatusFailure,
		"":        model.StatusFailure,
	}
	for in, want := range cases {
		if got := ParseStatus(in); got != want {
			t.Fatalf("ParseStatus(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestParseTimestampFormats(t *testing.T) {
	if ts, err := ParseTimestamp("2026-08-31T10:00:00Z"); err != nil || ts.Hour() != 10 {
		t.Fatalf("rfc3339: ts=%v err=%v", ts, err)
	}
	if ts, err := ParseTimestamp("1756634400"); err != nil || ts.IsZero() {
		t.Fatalf("unix seconds: ts=%v err=%v", ts, err)
	}
	if ts, err := ParseTimestamp("1756634400000"); err != nil || !ts.Equal(time.Unix(1756634400, 0).UTC()) {
		t.Fatalf("unix millis: ts=%v err=%v", ts, err)
	}
	if _, err := ParseTimestamp("next tuesday"); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
