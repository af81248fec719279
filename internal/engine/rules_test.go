package engine

import (
	"testing"

	"loginguard/internal/config"
	"loginguard/internal/model"
)

func testScorer() *RuleScorer {
	return NewRuleScorer(config.DefaultConfig().Detection)
}

func puneBaseline() model.Baseline {
	return model.Baseline{UserID: "u1", UsualCities: []string{"Pune"}, NormalHours: "9-18"}
}

func TestKnownCityLowFailuresIsGreen(t *testing.T) {
	s := testScorer()
	for _, failed := range []int{0, 1, 2, 3} {
		level, reason := s.Classify(puneBaseline(), model.Login{City: "Pune", FailedCountWindow: failed})
		if level != model.LevelGreen || reason != "ok" {
			t.Fatalf("failed=%d: expected green/ok, got %s/%s", failed, level, reason)
		}
		if got := s.Score(level); got != 0.2 {
			t.Fatalf("expected score 0.2, got %v", got)
		}
	}
}

func TestFailedCountAboveYellowThreshold(t *testing.T) {
	s := testScorer()
	for _, failed := range []int{4, 5, 6, 7} {
		level, reason := s.Classify(puneBaseline(), model.Login{City: "Pune", FailedCountWindow: failed})
		if level != model.LevelYellow || reason != "failed_count>3" {
			t.Fatalf("failed=%d: expected yellow/failed_count>3, got %s/%s", failed, level, reason)
		}
		if got := s.Score(level); got != 0.6 {
			t.Fatalf("expected score 0.6, got %v", got)
		}
	}
}

func TestFailedCountAboveRedThreshold(t *testing.T) {
	s := testScorer()
	level, reason := s.Classify(puneBaseline(), model.Login{City: "Pune", FailedCountWindow: 9})
	if level != model.LevelRed || reason != "failed_count>7" {
		t.Fatalf("expected red/failed_count>7, got %s/%s", level, reason)
	}
	if got := s.Score(level); got != 0.9 {
		t.Fatalf("expected score 0.9, got %v", got)
	}
}

func TestRedWithNewCityAppendsReason(t *testing.T) {
	s := testScorer()
	level, reason := s.Classify(puneBaseline(), model.Login{City: "Mumbai", FailedCountWindow: 8})
	if level != model.LevelRed || reason != "failed_count>7, new_city" {
		t.Fatalf("expected red/'failed_count>7, new_city', got %s/%q", level, reason)
	}
}

func TestNewCityEscalatesGreenToYellow(t *testing.T) {
	s := testScorer()
	level, reason := s.Classify(puneBaseline(), model.Login{City: "Mumbai", FailedCountWindow: 2})
	if level != model.LevelYellow || reason != "new_city" {
		t.Fatalf("expected yellow/new_city, got %s/%s", level, reason)
	}
	if got := s.Score(level); got != 0.6 {
		t.Fatalf("expected score 0.6, got %v", got)
	}
}

func TestNewCityEscalatesYellowToRed(t *testing.T) {
	s := testScorer()
	level, reason := s.Classify(puneBaseline(), model.Login{City: "Mumbai", FailedCountWindow: 5})
	if level != model.LevelRed || reason != "failed_count>3, new_city" {
		t.Fatalf("expected red/'failed_count>3, new_city', got %s/%q", level, reason)
	}
}

func TestEmptyCityNeverCountsAsNew(t *testing.T) {
	s := testScorer()
	empty := model.Baseline{UserID: "u1"}
	level, reason := s.Classify(empty, model.Login{City: "", FailedCountWindow: 0})
	if level != model.LevelGreen || reason != "ok" {
		t.Fatalf("expected green/ok for empty city, got %s/%s", level, reason)
	}
}

func TestUnknownLevelScoresAsGreen(t *testing.T) {
	s := testScorer()
	if got := s.Score(model.RiskLevel("purple")); got != 0.2 {
		t.Fatalf("expected fallback score 0.2, got %v", got)
	}
}
