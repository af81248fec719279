// Package engine ties the login pipeline together: blocklist gate, login
// persistence, baseline resolution, risk classification and alert dispatch.
package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"loginguard/internal/baseline"
	"loginguard/internal/blocklist"
	"loginguard/internal/config"
	"loginguard/internal/dispatch"
	"loginguard/internal/docstore"
	"loginguard/internal/metrics"
	"loginguard/internal/model"
	"loginguard/internal/storage"
)

// FailedCountUnset marks a login whose failed_count_window was not supplied
// by the caller; the engine derives it from the user's recent failures.
const FailedCountUnset = -1

type Engine struct {
	logger     *slog.Logger
	scorer     atomic.Value
	logins     *docstore.Collection[model.Login]
	baselines  *baseline.Manager
	gate       *blocklist.Gate
	dispatcher *dispatch.Dispatcher
	store      storage.Store
	failures   *FailureTracker
	stats      *metrics.Store
}

// Result is the definite outcome of a submitted login. Blocked results
// carry no classification; everything else carries level, score and reason.
type Result struct {
	LoginID string          `json:"login_id,omitempty"`
	Blocked bool            `json:"blocked"`
	Level   model.RiskLevel `json:"level,omitempty"`
	Score   float64         `json:"score"`
	Reason  string          `json:"reason,omitempty"`
}

func NewEngine(
	cfg *config.Config,
	logger *slog.Logger,
	baselines *baseline.Manager,
	gate *blocklist.Gate,
	dispatcher *dispatch.Dispatcher,
	store storage.Store,
	stats *metrics.Store,
) *Engine {
	e := &Engine{
		logger:     logger,
		logins:     docstore.New[model.Login](nil),
		baselines:  baselines,
		gate:       gate,
		dispatcher: dispatcher,
		store:      store,
		failures:   NewFailureTracker(cfg.Detection.FailureWindow),
		stats:      stats,
	}
	e.scorer.Store(scorerBox{NewRuleScorer(cfg.Detection)})
	return e
}

// scorerBox keeps the value stored in the atomic.Value at a single concrete
// type regardless of the Scorer implementation behind it.
type scorerBox struct {
	s Scorer
}

// SetScorer swaps the classification strategy. Intended for startup wiring
// only.
func (e *Engine) SetScorer(s Scorer) {
	if s != nil {
		e.scorer.Store(scorerBox{s})
	}
}

func (e *Engine) UpdateConfig(cfg *config.Config) {
	e.scorer.Store(scorerBox{NewRuleScorer(cfg.Detection)})
	e.failures.SetWindow(cfg.Detection.FailureWindow)
}

func (e *Engine) currentScorer() Scorer {
	return e.scorer.Load().(scorerBox).s
}

// Start consumes logins from in until ctx is canceled. Used by channel-fed
// sources such as the Kafka consumer.
func (e *Engine) Start(ctx context.Context, in <-chan model.Login) {
	go func() {
		for {
			select {
			case login := <-in:
				e.SubmitLogin(ctx, login)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// SubmitLogin runs the full pipeline for one login event and always returns
// a definite result. The blocklist gate short-circuits ahead of scoring;
// blocked events are not stored.
func (e *Engine) SubmitLogin(ctx context.Context, login model.Login) Result {
	if login.Timestamp.IsZero() {
		login.Timestamp = time.Now().UTC()
	}
	if login.Status == "" {
		login.Status = model.StatusFailure
	}

	if e.gate.IsBlocked(login.IP) {
		e.stats.RecordBlocked()
		if e.logger != nil {
			e.logger.Info("login from blocked ip rejected", "user_id", login.UserID, "ip", login.IP)
		}
		return Result{Blocked: true}
	}

	derived := e.failures.Observe(login.UserID, login.Status, login.Timestamp)
	if login.FailedCountWindow < 0 {
		login.FailedCountWindow = derived
	}

	id := e.logins.Insert(login)
	if e.store != nil {
		if err := e.store.SaveLogin(ctx, id, login); err != nil && e.logger != nil {
			e.logger.Warn("login checkpoint failed", "login_id", id, "err", err)
		}
	}

	b := e.baselines.Resolve(login.UserID, login.City)
	scorer := e.currentScorer()
	level, reason := scorer.Classify(b, login)
	score := scorer.Score(level)
	e.stats.RecordLogin(login.UserID, level, login.Timestamp)

	if level.Elevated() {
		e.dispatcher.Dispatch(ctx, model.Alert{
			UserID:    login.UserID,
			Timestamp: login.Timestamp,
			Level:     level,
			Score:     score,
			Reason:    reason,
		})
	}

	return Result{LoginID: id, Level: level, Score: score, Reason: reason}
}

// RecentLogins returns up to limit logins, most recent first.
func (e *Engine) RecentLogins(limit int) []docstore.Record[model.Login] {
	return docstore.Limit(docstore.SortByCreated(e.logins.Find(nil), true), limit)
}

func (e *Engine) LoginCount() int {
	return e.logins.Len()
}
