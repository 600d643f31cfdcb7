package credits

import (
	"context"
	"errors"

	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// Catalog answers read-only questions about issued credits.
type Catalog struct {
	store kvstore.Store
}

func NewCatalog(store kvstore.Store) *Catalog {
	return &Catalog{store: store}
}

// Load reads a credit through g, which may be a store or a transaction.
func Load(ctx context.Context, g kvstore.Getter, id string) (*CarbonCredit, error) {
	if !IsCreditKey(id) {
		return nil, apperrors.NotFound("Credit not found")
	}
	c, err := kvstore.GetJSON[CarbonCredit](ctx, g, id)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.NotFound("Credit not found")
	}
	return c, err
}

// checkPurchasable reports why c cannot be bought, if it cannot.
func checkPurchasable(c *CarbonCredit) error {
	if c.OwnerID != "" {
		return apperrors.Conflict("Credit has already been purchased")
	}
	if c.IsRetired {
		return apperrors.Conflict("Credit has been retired and is no longer available")
	}
	return nil
}

func (c *Catalog) filter(ctx context.Context, keep func(*CarbonCredit) bool) ([]CarbonCredit, error) {
	all, err := kvstore.ListJSON[CarbonCredit](ctx, c.store, KeyPrefix)
	if err != nil {
		return nil, apperrors.Upstream("Failed to load credits", err)
	}
	out := make([]CarbonCredit, 0)
	for i := range all {
		if keep(&all[i]) {
			out = append(out, all[i])
		}
	}
	return out, nil
}

// Available lists credits nobody owns that are not retired.
func (c *Catalog) Available(ctx context.Context) ([]CarbonCredit, error) {
	return c.filter(ctx, func(cc *CarbonCredit) bool { return cc.Available() })
}

// Owned lists buyerID's unretired credits.
func (c *Catalog) Owned(ctx context.Context, buyerID string) ([]CarbonCredit, error) {
	return c.filter(ctx, func(cc *CarbonCredit) bool { return cc.OwnerID == buyerID && !cc.IsRetired })
}

// AvailableAmount returns the tonnage of a credit that is still for sale.
func (c *Catalog) AvailableAmount(ctx context.Context, creditID string) (float64, error) {
	credit, err := Load(ctx, c.store, creditID)
	if err != nil {
		return 0, err
	}
	if err := checkPurchasable(credit); err != nil {
		return 0, err
	}
	return credit.Amount, nil
}
