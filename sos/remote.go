package sos

import (
	"context"
	"fmt"
	"slices"

	"petsos/models"
)

// CaseRepository is the remote document store behind NewRemoteService.
// db.FirestoreDB implements it.
type CaseRepository interface {
	SaveCase(ctx context.Context, c models.SOSCase) error
	ListCases(ctx context.Context) ([]models.SOSCase, error)
}

// NewRemoteService returns a Service that writes every mutation through repo
// before committing it locally, and stamps SyncedAt on each successful write.
// Existing documents are loaded into memory first.
func NewRemoteService(ctx context.Context, repo CaseRepository, opts ...Option) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("new remote service: nil repository")
	}
	existing, err := repo.ListCases(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	// Oldest first so insertion order matches creation order.
	slices.SortStableFunc(existing, func(a, b models.SOSCase) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return newService("firestore", repo, existing, opts), nil
}
