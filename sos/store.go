package sos

import (
	"slices"

	"github.com/google/uuid"

	"petsos/models"
)

// caseStore is the authoritative id -> case map. Only the engine goroutine touches it.
type caseStore struct {
	cases map[uuid.UUID]models.SOSCase
	order []uuid.UUID // insertion order, used to keep sort ties stable
}

func newCaseStore() *caseStore {
	return &caseStore{cases: make(map[uuid.UUID]models.SOSCase)}
}

func (s *caseStore) get(id uuid.UUID) (models.SOSCase, bool) {
	c, ok := s.cases[id]
	return c, ok
}

func (s *caseStore) put(c models.SOSCase) {
	if _, exists := s.cases[c.ID]; !exists {
		s.order = append(s.order, c.ID)
	}
	s.cases[c.ID] = c
}

func (s *caseStore) len() int { return len(s.cases) }

// snapshot returns deep copies of every case, newest createdAt first.
func (s *caseStore) snapshot() []models.SOSCase {
	out := make([]models.SOSCase, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.cases[id].Clone())
	}
	slices.SortStableFunc(out, func(a, b models.SOSCase) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out
}
