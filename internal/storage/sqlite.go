package storage

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"

	"loginguard/internal/model"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:loginguard.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS logins (
			id TEXT PRIMARY KEY,
			ts TEXT NOT NULL,
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
			ts TEXT NOT NULL,
			user_id TEXT NOT NULL,
			level TEXT NOT NULL,
			score REAL NOT NULL,
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

func (s *sqliteStore) SaveLogin(ctx context.Context, id string, login model.Login) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO logins (id, ts, user_id, ip, city, device, status, failed_count_window)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
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

func (s *sqliteStore) SaveAlert(ctx context.Context, id string, alert model.Alert) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alerts (id, ts, user_id, level, score, reason)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id,
		alert.Timestamp.UTC(),
		alert.UserID,
		string(alert.Level),
		alert.Score,
		alert.Reason,
	)
	return err
}

func (s *sqliteStore) SaveBlockedIP(ctx context.Context, blocked model.BlockedIP) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO blocked_ips (ip) VALUES (?)`,
		blocked.IP,
	)
	return err
}
