package engine

import (
	"fmt"
	"strings"

	"loginguard/internal/config"
	"loginguard/internal/model"
)

// Scorer classifies a login against the user's baseline. It is a strategy
// seam: RuleScorer is the threshold-rule implementation; a model-backed
// scorer can be swapped in at startup, never mid-run.
type Scorer interface {
	Classify(baseline model.Baseline, login model.Login) (model.RiskLevel, string)
	Score(level model.RiskLevel) float64
}

// RuleScorer applies fixed escalation rules in order. Later rules only
// escalate the level set by earlier rules, never downgrade it.
type RuleScorer struct {
	det config.DetectionConfig
}

func NewRuleScorer(det config.DetectionConfig) *RuleScorer {
	return &RuleScorer{det: det}
}

func (s *RuleScorer) Classify(baseline model.Baseline, login model.Login) (model.RiskLevel, string) {
	level := model.LevelGreen
	var reasons []string

	if login.FailedCountWindow > s.det.RedFailedCount {
		level = model.LevelRed
		reasons = []string{fmt.Sprintf("failed_count>%d", s.det.RedFailedCount)}
	} else if login.FailedCountWindow > s.det.YellowFailedCount {
		level = model.LevelYellow
		reasons = []string{fmt.Sprintf("failed_count>%d", s.det.YellowFailedCount)}
	}

	// An empty city never counts as new, even against an empty baseline.
	if login.City != "" && !baseline.KnowsCity(login.City) {
		if level == model.LevelGreen {
			level = model.LevelYellow
		} else {
			level = model.LevelRed
		}
		reasons = append(reasons, "new_city")
	}

	if len(reasons) == 0 {
		return level, "ok"
	}
	return level, strings.Join(reasons, ", ")
}

func (s *RuleScorer) Score(level model.RiskLevel) float64 {
	switch level {
	case model.LevelRed:
		return s.det.Scores.Red
	case model.LevelYellow:
		return s.det.Scores.Yellow
	default:
		return s.det.Scores.Green
	}
}
