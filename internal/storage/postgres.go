package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"loginguard/internal/model"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/loginguard?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS logins (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			user_id TEXT NOT NULL,
			ip TEXT,
			city TEXT,
			device TEXT,
			status TEXT NOT NULL,
			failed_count_window INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_logins_user_ts ON logins(user_id, ts)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id TEXT PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL,
			user_id TEXT NOT NULL,
			level TEXT NOT NULL,
			score DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_ts ON alerts(ts)`,
		`CREATE TABLE IF NOT EXISTS blocked_ips (
			ip TEXT PRIMARY KEY
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *postgresStore) SaveLogin(ctx context.Context, id string, login model.Login) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logins (id, ts, user_id, ip, city, device, status, failed_count_window)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id,
		login.Timestamp.UTC(),
		login.UserID,
		login.IP,
		login.City,
		login.Device,
		string(login.Status),
		login.FailedCountWindow,
	)
	return err
}

func (s *postgresStore) SaveAlert(ctx context.Context, id string, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, user_id, level, score, reason)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id,
		alert.Timestamp.UTC(),
		alert.UserID,
		string(alert.Level),
		alert.Score,
		alert.Reason,
	)
	return err
}

func (s *postgresStore) SaveBlockedIP(ctx context.Context, blocked model.BlockedIP) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO blocked_ips (ip) VALUES ($1) ON CONFLICT (ip) DO NOTHING`,
		blocked.IP,
	)
	return err
}
