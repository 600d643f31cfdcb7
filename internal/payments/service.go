package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// CreditReader reports how many tonnes a credit still offered for sale
// carries.
type CreditReader interface {
	AvailableAmount(ctx context.Context, creditID string) (float64, error)
}

type Service struct {
	store    kvstore.Store
	provider Provider
	credits  CreditReader
	pricing  Pricing
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(store kvstore.Store, provider Provider, credits CreditReader, pricing Pricing, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		provider: provider,
		credits:  credits,
		pricing:  pricing,
		logger:   logger,
		now:      time.Now,
	}
}

// Provider exposes the gateway used to verify purchases.
func (s *Service) Provider() Provider { return s.provider }

// CreateSession opens a checkout session for an available credit.
func (s *Service) CreateSession(ctx context.Context, buyerID, creditID string) (*Session, error) {
	if creditID == "" {
		return nil, apperrors.Validation("Credit ID is required")
	}
	amount, err := s.credits.AvailableAmount(ctx, creditID)
	if err != nil {
		return nil, err
	}
	session, err := s.provider.CreateSession(ctx, creditID, buyerID, amount)
	if err != nil {
		return nil, apperrors.Upstream("Failed to create payment session", err)
	}

	s.logger.Info("Payment session created",
		zap.String("session_id", session.ID),
		zap.String("credit_id", creditID),
		zap.Int64("price_inr", session.PriceInINR),
	)
	return session, nil
}

// VerifySession completes the caller's checkout session.
func (s *Service) VerifySession(ctx context.Context, buyerID, sessionID string) (*Verification, *Session, error) {
	if sessionID == "" {
		return nil, nil, apperrors.Validation("Session ID is required")
	}
	session, err := s.provider.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.BuyerID != buyerID {
		return nil, nil, apperrors.Forbidden("Access denied: payment session belongs to another buyer")
	}
	return s.provider.VerifySession(ctx, sessionID)
}

// RecordPayout stores the seller's share of a purchase.
func (s *Service) RecordPayout(ctx context.Context, in PayoutInput) (*Payout, error) {
	total := s.pricing.PriceINR(in.Credits)
	fee, seller := s.pricing.Split(total)

	buyerID := in.BuyerID
	if buyerID == "" {
		buyerID = "unknown"
	}
	payout := &Payout{
		ID:           payoutKeyPrefix + uuid.NewString(),
		CreditID:     in.CreditID,
		ProjectID:    in.ProjectID,
		ManagerID:    in.ManagerID,
		BuyerID:      buyerID,
		PaymentID:    in.PaymentID,
		TotalAmount:  total,
		PlatformFee:  fee,
		SellerPayout: seller,
		Currency:     CurrencyINR,
		Status:       PayoutPendingTransfer,
		CreatedAt:    s.now().UTC(),
	}
	if err := kvstore.SetJSON(ctx, s.store, payout.ID, payout); err != nil {
		return nil, fmt.Errorf("failed to store payout: %w", err)
	}

	s.logger.Info("Payout recorded",
		zap.String("manager_id", in.ManagerID),
		zap.String("credit_id", in.CreditID),
		zap.Int64("seller_payout_inr", seller),
	)
	return payout, nil
}

// ManagerPayouts lists managerID's payouts and their combined seller share.
func (s *Service) ManagerPayouts(ctx context.Context, managerID string) ([]Payout, int64, error) {
	all, err := kvstore.ListJSON[Payout](ctx, s.store, payoutKeyPrefix)
	if err != nil {
		return nil, 0, apperrors.Upstream("Failed to load payouts", err)
	}
	out := make([]Payout, 0)
	var total int64
	for _, p := range all {
		if p.ManagerID != managerID {
			continue
		}
		out = append(out, p)
		total += p.SellerPayout
	}
	return out, total, nil
}
