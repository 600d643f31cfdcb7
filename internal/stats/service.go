// Package stats serves the public registry dashboard figures.
package stats

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"samudra-ledger/registry-backend/internal/credits"
	"samudra-ledger/registry-backend/internal/projects"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// PublicStats is the unauthenticated registry summary.
type PublicStats struct {
	TotalCreditsIssued  float64            `json:"totalCreditsIssued"`
	TotalCreditsRetired float64            `json:"totalCreditsRetired"`
	TotalProjects       int                `json:"totalProjects"`
	Projects            []projects.Project `json:"projects"`
}

type Service struct {
	store  kvstore.Store
	logger *zap.Logger
}

func NewService(store kvstore.Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// EnsureCounters seeds both credit counters with 0 when absent so readers
// always find a number.
func (s *Service) EnsureCounters(ctx context.Context) error {
	return s.store.Transact(ctx, func(tx kvstore.Tx) error {
		for _, key := range []string{credits.CounterIssued, credits.CounterRetired} {
			_, err := tx.Get(ctx, key)
			if errors.Is(err, kvstore.ErrNotFound) {
				if _, err := kvstore.Increment(ctx, tx, key, 0); err != nil {
					return err
				}
				continue
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Public reads the counters and the project list concurrently.
func (s *Service) Public(ctx context.Context) (*PublicStats, error) {
	out := &PublicStats{}
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := kvstore.GetNumber(ctx, s.store, credits.CounterIssued)
		out.TotalCreditsIssued = n
		return err
	})
	g.Go(func() error {
		n, err := kvstore.GetNumber(ctx, s.store, credits.CounterRetired)
		out.TotalCreditsRetired = n
		return err
	})
	g.Go(func() error {
		list, err := projects.List(ctx, s.store)
		out.Projects = list
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, apperrors.Upstream("Failed to fetch public stats", err)
	}
	out.TotalProjects = len(out.Projects)
	return out, nil
}
