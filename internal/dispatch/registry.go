package dispatch

import (
	"log/slog"
	"sort"
	"sync"

	"loginguard/internal/model"
)

// Subscriber is one live alert feed. Its lifecycle is
// Subscribe -> Active -> Closed; once closed it is never reused, a
// reconnecting client registers a fresh subscriber.
type Subscriber struct {
	id uint64
	ch chan model.Alert
}

func (s *Subscriber) ID() uint64 {
	return s.id
}

// Alerts is the subscriber's delivery channel. It is closed when the
// subscriber is removed from the registry.
func (s *Subscriber) Alerts() <-chan model.Alert {
	return s.ch
}

// Registry owns the set of active subscribers. Delivery is best-effort and
// isolated: a subscriber that cannot accept an alert is dropped without
// affecting the others.
type Registry struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
	buffer int
	logger *slog.Logger
}

func NewRegistry(buffer int, logger *slog.Logger) *Registry {
	if buffer <= 0 {
		buffer = 64
	}
	return &Registry{
		subs:   make(map[uint64]*Subscriber),
		buffer: buffer,
		logger: logger,
	}
}

func (r *Registry) Subscribe() *Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	sub := &Subscriber{id: r.nextID, ch: make(chan model.Alert, r.buffer)}
	r.subs[sub.id] = sub
	if r.logger != nil {
		r.logger.Info("subscriber connected", "subscriber_id", sub.id, "total", len(r.subs))
	}
	return sub
}

// Unsubscribe removes sub and closes its channel. Calling it for an
// already-removed subscriber is a no-op.
func (r *Registry) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(sub)
}

func (r *Registry) removeLocked(sub *Subscriber) {
	if _, ok := r.subs[sub.id]; !ok {
		return
	}
	delete(r.subs, sub.id)
	close(sub.ch)
	if r.logger != nil {
		r.logger.Info("subscriber disconnected", "subscriber_id", sub.id, "total", len(r.subs))
	}
}

// Publish hands alert to every active subscriber without blocking. A
// subscriber whose buffer is full is treated as failed and removed.
func (r *Registry) Publish(alert model.Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := make([]*Subscriber, 0, len(r.subs))
	for _, sub := range r.subs {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })

	for _, sub := range subs {
		select {
		case sub.ch <- alert:
		default:
			if r.logger != nil {
				r.logger.Warn("subscriber stalled, dropping", "subscriber_id", sub.id)
			}
			r.removeLocked(sub)
		}
	}
}

func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// CloseAll tears down every subscriber, used at shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		delete(r.subs, sub.id)
		close(sub.ch)
	}
}
