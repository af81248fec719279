package blocklist

import (
	"context"
	"log/slog"
	"strings"

	"loginguard/internal/docstore"
	"loginguard/internal/model"
	"loginguard/internal/storage"
)

// Gate holds the set of blocked source IPs consulted ahead of risk scoring.
// Blocking is idempotent: re-blocking an already blocked IP leaves exactly
// one entry.
type Gate struct {
	col    *docstore.Collection[model.BlockedIP]
	store  storage.Store
	logger *slog.Logger
}

func NewGate(store storage.Store, logger *slog.Logger) *Gate {
	return &Gate{
		col:    docstore.New[model.BlockedIP](nil),
		store:  store,
		logger: logger,
	}
}

func (g *Gate) IsBlocked(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	_, ok := g.col.FindOne(func(b model.BlockedIP) bool { return b.IP == ip })
	return ok
}

// Block adds ip to the blocklist and reports whether the entry is new.
func (g *Gate) Block(ip string) bool {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false
	}
	_, created := g.col.Upsert(
		func(b model.BlockedIP) bool { return b.IP == ip },
		model.BlockedIP{IP: ip},
		nil,
	)
	if created && g.logger != nil {
		g.logger.Info("ip blocked", "ip", ip)
	}
	if created && g.store != nil {
		_ = g.store.SaveBlockedIP(context.Background(), model.BlockedIP{IP: ip})
	}
	return created
}

func (g *Gate) List() []string {
	recs := g.col.Find(nil)
	out := make([]string, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Doc.IP)
	}
	return out
}

func (g *Gate) Len() int {
	return g.col.Len()
}
