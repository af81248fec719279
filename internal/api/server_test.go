package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"loginguard/internal/baseline"
	"loginguard/internal/blocklist"
	"loginguard/internal/config"
	"loginguard/internal/dispatch"
	"loginguard/internal/engine"
	"loginguard/internal/metrics"
	"loginguard/internal/model"
)

func newServerForTest() (*Server, *dispatch.Dispatcher) {
	cfg := config.NewStaticManager(config.DefaultConfig())
	gate := blocklist.NewGate(nil, nil)
	baselines := baseline.NewManager("9-18")
	registry := dispatch.NewRegistry(8, nil)
	d := dispatch.NewDispatcher(registry, nil, nil, 16)
	stats := metrics.NewStore(100)
	eng := engine.NewEngine(cfg.Get(), nil, baselines, gate, d, nil, stats)
	return NewServer(cfg, eng, d, gate, baselines, stats, nil, "test"), d
}

func doJSON(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSubmitAndListLogins(t *testing.T) {
	s, _ := newServerForTest()
	h := s.Handler()

	rec := doJSON(h, http.MethodPost, "/logins", `{"user_id":"alice","city":"Pune","status":"success"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		OK     bool    `json:"ok"`
		Level  string  `json:"level"`
		Reason string  `json:"reason"`
		Score  float64 `json:"score"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.OK || res.Level != "green" || res.Reason != "ok" || res.Score != 0.2 {
		t.Fatalf("unexpected result %+v", res)
	}

	rec = doJSON(h, http.MethodGet, "/logins?limit=10", "")
	var list struct {
		Count  int `json:"count"`
		Logins []struct {
			UserID string `json:"user_id"`
		} `json:"logins"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Logins[0].UserID != "alice" {
		t.Fatalf("unexpected listing %+v", list)
	}
}

func TestSubmitLoginValidation(t *testing.T) {
	s, _ := newServerForTest()
	rec := doJSON(s.Handler(), http.MethodPost, "/logins", `{"city":"Pune"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBlocklistGate(t *testing.T) {
	s, _ := newServerForTest()
	h := s.Handler()

	for i := 0; i < 2; i++ {
		rec := doJSON(h, http.MethodPost, "/blocklist", `{"ip":"1.2.3.4"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	}
	rec := doJSON(h, http.MethodGet, "/blocklist", "")
	var list struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 {
		t.Fatalf("blocking twice must leave one entry, got %d", list.Count)
	}

	rec = doJSON(h, http.MethodPost, "/logins", `{"user_id":"mallory","ip":"1.2.3.4"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for blocked ip, got %d", rec.Code)
	}
	var blocked struct {
		Blocked bool `json:"blocked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &blocked); err != nil || !blocked.Blocked {
		t.Fatalf("expected blocked response, got %s (err=%v)", rec.Body.String(), err)
	}
}

func TestListAlertsAfterElevatedLogin(t *testing.T) {
	s, _ := newServerForTest()
	h := s.Handler()
	doJSON(h, http.MethodPost, "/logins", `{"user_id":"alice","city":"Pune","status":"success","failed_count_window":5}`)

	rec := doJSON(h, http.MethodGet, "/alerts", "")
	var list struct {
		Count  int `json:"count"`
		Alerts []struct {
			Level  string `json:"level"`
			Reason string `json:"reason"`
		} `json:"alerts"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if list.Count != 1 || list.Alerts[0].Level != "yellow" || list.Alerts[0].Reason != "failed_count>3" {
		t.Fatalf("unexpected alerts %+v", list)
	}
}

func TestClearResetsCounters(t *testing.T) {
	s, _ := newServerForTest()
	h := s.Handler()
	doJSON(h, http.MethodPost, "/logins", `{"user_id":"alice","city":"Pune","status":"success"}`)

	var status struct {
		Counters struct {
			Logins int `json:"logins"`
		} `json:"counters"`
	}
	rec := doJSON(h, http.MethodGet, "/status", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Counters.Logins != 1 {
		t.Fatalf("expected one counted login, got %d", status.Counters.Logins)
	}

	if rec := doJSON(h, http.MethodPost, "/admin/clear", ""); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	rec = doJSON(h, http.MethodGet, "/status", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Counters.Logins != 0 {
		t.Fatalf("expected counters reset, got %d", status.Counters.Logins)
	}
}

func TestWebsocketReceivesAlert(t *testing.T) {
	s, d := newServerForTest()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.Run(ctx)

	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Give the subscriber a moment to register before triggering the alert.
	deadline := time.Now().Add(2 * time.Second)
	for d.Registry().Count() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(srv.URL+"/logins", "application/json",
		strings.NewReader(`{"user_id":"alice","city":"Pune","failed_count_window":9}`))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string      `json:"type"`
		Data model.Alert `json:"data"`
	}
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "alert" || msg.Data.Level != model.LevelRed || msg.Data.Reason != "failed_count>7" {
		t.Fatalf("unexpected message %+v", msg)
	}
}
