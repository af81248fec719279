// Package dispatch persists elevated-risk alerts and fans them out to live
// subscribers. Persistence always happens on the submitting call path;
// delivery runs out-of-band so a slow subscriber never delays the login
// that triggered the alert.
package dispatch

import (
	"context"
	"log/slog"

	"loginguard/internal/docstore"
	"loginguard/internal/model"
	"loginguard/internal/storage"
)

type Dispatcher struct {
	logger   *slog.Logger
	alerts   *docstore.Collection[model.Alert]
	store    storage.Store
	registry *Registry
	jobs     chan model.Alert
}

func NewDispatcher(registry *Registry, store storage.Store, logger *slog.Logger, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		logger:   logger,
		alerts:   docstore.New[model.Alert](nil),
		store:    store,
		registry: registry,
		jobs:     make(chan model.Alert, queueSize),
	}
}

func (d *Dispatcher) Registry() *Registry {
	return d.registry
}

// Run drains the broadcast queue until ctx is canceled, then tears down all
// subscribers.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case alert := <-d.jobs:
			d.registry.Publish(alert)
		case <-ctx.Done():
			d.registry.CloseAll()
			return
		}
	}
}

// Dispatch persists alert and enqueues it for broadcast, returning the
// stored alert's identifier. The enqueue never blocks; when the queue is
// full the broadcast is dropped while the persisted record remains.
func (d *Dispatcher) Dispatch(ctx context.Context, alert model.Alert) string {
	id := d.alerts.Insert(alert)
	if d.store != nil {
		if err := d.store.SaveAlert(ctx, id, alert); err != nil && d.logger != nil {
			d.logger.Warn("alert checkpoint failed", "alert_id", id, "err", err)
		}
	}
	if d.logger != nil {
		d.logger.Warn("alert raised",
			"user_id", alert.UserID,
			"level", string(alert.Level),
			"score", alert.Score,
			"reason", alert.Reason,
		)
	}
	select {
	case d.jobs <- alert:
	default:
		if d.logger != nil {
			d.logger.Warn("broadcast queue full, dropping alert broadcast", "alert_id", id)
		}
	}
	return id
}

// Recent returns up to limit alerts, most recent first.
func (d *Dispatcher) Recent(limit int) []docstore.Record[model.Alert] {
	return docstore.Limit(docstore.SortByCreated(d.alerts.Find(nil), true), limit)
}

func (d *Dispatcher) AlertCount() int {
	return d.alerts.Len()
}
