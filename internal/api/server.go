package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loginguard/internal/baseline"
	"loginguard/internal/blocklist"
	"loginguard/internal/config"
	"loginguard/internal/dispatch"
	"loginguard/internal/engine"
	"loginguard/internal/ingest"
	"loginguard/internal/metrics"
	"loginguard/internal/model"
)

type Server struct {
	cfg        *config.Manager
	engine     *engine.Engine
	dispatcher *dispatch.Dispatcher
	gate       *blocklist.Gate
	baselines  *baseline.Manager
	stats      *metrics.Store
	logger     *slog.Logger
	version    string
}

func NewServer(
	cfg *config.Manager,
	eng *engine.Engine,
	dispatcher *dispatch.Dispatcher,
	gate *blocklist.Gate,
	baselines *baseline.Manager,
	stats *metrics.Store,
	logger *slog.Logger,
	version string,
) *Server {
	return &Server{
		cfg:        cfg,
		engine:     eng,
		dispatcher: dispatcher,
		gate:       gate,
		baselines:  baselines,
		stats:      stats,
		logger:     logger,
		version:    version,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/logins", s.handleLogins)
	mux.HandleFunc("/alerts", s.handleAlerts)
	mux.HandleFunc("/blocklist", s.handleBlocklist)
	mux.HandleFunc("/baselines/cities", s.handleBaselineCities)
	mux.HandleFunc("/admin/clear", s.handleClear)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Start runs the HTTP server and shuts it down when ctx is canceled.
func Start(ctx context.Context, s *Server) *http.Server {
	current := s.cfg.Get().API
	if !current.Enabled {
		if s.logger != nil {
			s.logger.Info("api disabled")
		}
		return nil
	}
	if s.logger != nil {
		s.logger.Info("api enabled", "addr", current.Addr)
	}
	httpServer := &http.Server{Addr: current.Addr, Handler: s.Handler()}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(ctxShutdown)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Error("api server error", "err", err)
			}
		}
	}()
	return httpServer
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	cfg := s.cfg.Get()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"time":        time.Now().UTC().Format(time.RFC3339Nano),
		"version":     s.version,
		"config_path": s.cfg.Path(),
		"counters":    s.stats.Snapshot(),
		"logins":      s.engine.LoginCount(),
		"alerts":      s.dispatcher.AlertCount(),
		"baselines":   s.baselines.Count(),
		"blocked_ips": s.gate.Len(),
		"subscribers": s.dispatcher.Registry().Count(),
		"detection": map[string]any{
			"red_failed_count":    cfg.Detection.RedFailedCount,
			"yellow_failed_count": cfg.Detection.YellowFailedCount,
			"failure_window":      cfg.Detection.FailureWindow.String(),
		},
	})
}

type loginEntry struct {
	ID string `json:"id"`
	model.Login
}

type alertEntry struct {
	ID string `json:"id"`
	model.Alert
}

func (s *Server) handleLogins(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit := s.listLimit(r)
		recs := s.engine.RecentLogins(limit)
		out := make([]loginEntry, 0, len(recs))
		for _, rec := range recs {
			out = append(out, loginEntry{ID: rec.ID, Login: rec.Doc})
		}
		writeJSON(w, http.StatusOK, map[string]any{"logins": out, "count": len(out)})
	case http.MethodPost:
		s.handleSubmitLogin(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleSubmitLogin(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil || len(body) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "empty or unreadable body"})
		return
	}
	login, err := ingest.ParseLogin(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	res := s.engine.SubmitLogin(r.Context(), login)
	if res.Blocked {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"anomaly": true,
			"blocked": true,
			"msg":     "IP blocked",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":       true,
		"login_id": res.LoginID,
		"level":    res.Level,
		"score":    res.Score,
		"reason":   res.Reason,
	})
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit := s.listLimit(r)
	recs := s.dispatcher.Recent(limit)
	out := make([]alertEntry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, alertEntry{ID: rec.ID, Alert: rec.Doc})
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": out, "count": len(out)})
}

func (s *Server) handleBlocklist(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		ips := s.gate.List()
		writeJSON(w, http.StatusOK, map[string]any{"blocked_ips": ips, "count": len(ips)})
	case http.MethodPost:
		var req struct {
			IP string `json:"ip"`
		}
		if err := decodeBody(w, r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		if strings.TrimSpace(req.IP) == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": "ip is required"})
			return
		}
		s.gate.Block(req.IP)
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "ip": strings.TrimSpace(req.IP)})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBaselineCities(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		UserID string `json:"user_id"`
		City   string `json:"city"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if req.UserID == "" || req.City == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "user_id and city are required"})
		return
	}
	b, ok := s.baselines.AddCity(req.UserID, req.City)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "unknown user"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "baseline": b})
}

// handleClear resets the status-endpoint counters. Stored logins, alerts and
// baselines are untouched.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.stats.Clear()
	if s.logger != nil {
		s.logger.Info("counters cleared")
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) listLimit(r *http.Request) int {
	cfg := s.cfg.Get().API
	limit := cfg.DefaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > cfg.MaxListLimit {
		limit = cfg.MaxListLimit
	}
	return limit
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
