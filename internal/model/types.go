package model

import "time"

type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

type RiskLevel string

const (
	LevelGreen  RiskLevel = "green"
	LevelYellow RiskLevel = "yellow"
	LevelRed    RiskLevel = "red"
)

// Elevated reports whether a level warrants an alert.
func (l RiskLevel) Elevated() bool {
	return l == LevelYellow || l == LevelRed
}

// Login is a single authentication attempt. Once stored it is append-only.
// FailedCountWindow is the count of recent failures supplied by the
// ingestion layer; the core trusts it as given.
type Login struct {
	UserID            string    `json:"user_id"`
	Timestamp         time.Time `json:"timestamp"`
	IP                string    `json:"ip,omitempty"`
	City              string    `json:"city,omitempty"`
	Device            string    `json:"device,omitempty"`
	Status            Status    `json:"status"`
	FailedCountWindow int       `json:"failed_count_window"`
}

// Baseline captures a user's historically-normal login attributes. One is
// created on the first sighting of a user and mutated only by explicit
// baseline updates, never automatically per login.
type Baseline struct {
	UserID      string   `json:"user_id"`
	UsualCities []string `json:"usual_cities"`
	NormalHours string   `json:"normal_hours"`
}

func (b Baseline) KnowsCity(city string) bool {
	for _, c := range b.UsualCities {
		if c == city {
			return true
		}
	}
	return false
}

func (b Baseline) Clone() Baseline {
	out := b
	out.UsualCities = append([]string(nil), b.UsualCities...)
	return out
}

type Alert struct {
	UserID    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
	Level     RiskLevel `json:"level"`
	Score     float64   `json:"score"`
	Reason    string    `json:"reason"`
}

type BlockedIP struct {
	IP string `json:"ip"`
}
