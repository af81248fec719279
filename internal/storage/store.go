// Package storage checkpoints logins, alerts and blocklist entries to a
// relational database. The in-memory collections remain the source of truth
// for the running process; this layer exists for operators who need the
// history to survive restarts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"loginguard/internal/config"
	"loginguard/internal/model"
)

type Store interface {
	Init(ctx context.Context) error
	Close() error
	SaveLogin(ctx context.Context, id string, login model.Login) error
	SaveAlert(ctx context.Context, id string, alert model.Alert) error
	SaveBlockedIP(ctx context.Context, blocked model.BlockedIP) error
}

func NewStore(cfg config.StorageConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "sqlite":
		return NewSQLite(cfg.DSN)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported storage driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
