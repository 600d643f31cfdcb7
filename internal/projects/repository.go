package projects

import (
	"context"
	"errors"

	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// Load reads a project through g, which may be a store or a transaction.
func Load(ctx context.Context, g kvstore.Getter, id string) (*Project, error) {
	if !IsProjectKey(id) {
		return nil, apperrors.NotFound("Project not found")
	}
	p, err := kvstore.GetJSON[Project](ctx, g, id)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.NotFound("Project not found")
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Save writes p under its id.
func Save(ctx context.Context, s kvstore.Setter, p *Project) error {
	return kvstore.SetJSON(ctx, s, p.ID, p)
}

// List returns every project, ordered by id.
func List(ctx context.Context, store kvstore.Store) ([]Project, error) {
	return kvstore.ListJSON[Project](ctx, store, KeyPrefix)
}
