// Package baseline resolves per-user behavioral baselines, creating a
// default one the first time a user identity is seen.
package baseline

import (
	"loginguard/internal/docstore"
	"loginguard/internal/model"
)

type Manager struct {
	col          *docstore.Collection[model.Baseline]
	defaultHours string
}

func NewManager(defaultNormalHours string) *Manager {
	if defaultNormalHours == "" {
		defaultNormalHours = "9-18"
	}
	return &Manager{
		col:          docstore.New(model.Baseline.Clone),
		defaultHours: defaultNormalHours,
	}
}

// Resolve returns the baseline for userID, creating a default one when the
// user has not been seen before. The first observed city becomes the sole
// usual city. Creation is first-writer-wins: concurrent resolves for the
// same new user converge on one baseline.
func (m *Manager) Resolve(userID, firstCity string) model.Baseline {
	def := model.Baseline{UserID: userID, NormalHours: m.defaultHours}
	if firstCity != "" {
		def.UsualCities = []string{firstCity}
	}
	rec, _ := m.col.Upsert(
		func(b model.Baseline) bool { return b.UserID == userID },
		def,
		nil,
	)
	return rec.Doc
}

func (m *Manager) Get(userID string) (model.Baseline, bool) {
	rec, ok := m.col.FindOne(func(b model.Baseline) bool { return b.UserID == userID })
	if !ok {
		return model.Baseline{}, false
	}
	return rec.Doc, true
}

// AddCity marks city as usual for userID. It reports false when the user is
// unknown; adding an already-usual city is a no-op.
func (m *Manager) AddCity(userID, city string) (model.Baseline, bool) {
	if city == "" {
		return m.Get(userID)
	}
	if _, ok := m.Get(userID); !ok {
		return model.Baseline{}, false
	}
	rec, _ := m.col.Upsert(
		func(b model.Baseline) bool { return b.UserID == userID },
		model.Baseline{},
		func(b *model.Baseline) {
			if !b.KnowsCity(city) {
				b.UsualCities = append(b.UsualCities, city)
			}
		},
	)
	return rec.Doc, true
}

// SetNormalHours replaces the user's normal-hours range.
func (m *Manager) SetNormalHours(userID, hours string) (model.Baseline, bool) {
	if _, ok := m.Get(userID); !ok {
		return model.Baseline{}, false
	}
	rec, _ := m.col.Upsert(
		func(b model.Baseline) bool { return b.UserID == userID },
		model.Baseline{},
		func(b *model.Baseline) { b.NormalHours = hours },
	)
	return rec.Doc, true
}

func (m *Manager) Count() int {
	return m.col.Len()
}
