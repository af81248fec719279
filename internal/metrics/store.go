package metrics

import (
	"sync"
	"time"

	"loginguard/internal/model"
)

// Store accumulates ingest counters surfaced on the status endpoint.
type Store struct {
	mu       sync.Mutex
	logins   int
	blocked  int
	byLevel  map[model.RiskLevel]int
	lastSeen map[string]time.Time
	limit    int
}

type Snapshot struct {
	Logins  int            `json:"logins"`
	Blocked int            `json:"blocked"`
	ByLevel map[string]int `json:"by_level"`
	Users   int            `json:"users"`
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 5000
	}
	return &Store{
		byLevel:  make(map[model.RiskLevel]int),
		lastSeen: make(map[string]time.Time),
		limit:    limit,
	}
}

func (s *Store) RecordLogin(userID string, level model.RiskLevel, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	s.byLevel[level]++
	if userID != "" {
		s.lastSeen[userID] = ts
		if len(s.lastSeen) > s.limit {
			s.evictOldestLocked()
		}
	}
}

func (s *Store) RecordBlocked() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blocked++
}

func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	byLevel := make(map[string]int, len(s.byLevel))
	for level, n := range s.byLevel {
		byLevel[string(level)] = n
	}
	return Snapshot{
		Logins:  s.logins,
		Blocked: s.blocked,
		ByLevel: byLevel,
		Users:   len(s.lastSeen),
	}
}

func (s *Store) evictOldestLocked() {
	var oldestUser string
	var oldest time.Time
	for user, ts := range s.lastSeen {
		if oldestUser == "" || ts.Before(oldest) {
			oldestUser = user
			oldest = ts
		}
	}
	if oldestUser != "" {
		delete(s.lastSeen, oldestUser)
	}
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins = 0
	s.blocked = 0
	s.byLevel = make(map[model.RiskLevel]int)
	s.lastSeen = make(map[string]time.Time)
}
