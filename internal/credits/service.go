package credits

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/auth"
	"samudra-ledger/registry-backend/internal/chain"
	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/internal/payments"
	"samudra-ledger/registry-backend/internal/projects"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
	"samudra-ledger/registry-backend/pkg/pdf"
)

// PayoutRecorder books the seller's share of a purchase.
type PayoutRecorder interface {
	RecordPayout(ctx context.Context, in payments.PayoutInput) (*payments.Payout, error)
}

// UserDirectory resolves certificate beneficiaries.
type UserDirectory interface {
	GetUser(ctx context.Context, id string) (*auth.User, error)
}

type Service struct {
	*Catalog
	store        kvstore.Store
	payments     payments.Provider
	payouts      PayoutRecorder
	chain        chain.Client
	users        UserDirectory
	publisher    notifications.Publisher
	certificates *pdf.CertificateGenerator
	logger       *zap.Logger
	now          func() time.Time
}

// Deps groups the collaborators of Service.
type Deps struct {
	Store        kvstore.Store
	Payments     payments.Provider
	Payouts      PayoutRecorder
	Chain        chain.Client
	Users        UserDirectory
	Publisher    notifications.Publisher
	Certificates *pdf.CertificateGenerator
	Logger       *zap.Logger
}

func NewService(d Deps) *Service {
	publisher := d.Publisher
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	return &Service{
		Catalog:      NewCatalog(d.Store),
		store:        d.Store,
		payments:     d.Payments,
		payouts:      d.Payouts,
		chain:        d.Chain,
		users:        d.Users,
		publisher:    publisher,
		certificates: d.Certificates,
		logger:       d.Logger,
		now:          time.Now,
	}
}

// Purchase transfers a whole credit to buyerID once the payment checks out.
func (s *Service) Purchase(ctx context.Context, buyerID string, req *PurchaseRequest) (*CarbonCredit, error) {
	if req.CreditID == "" || req.PaymentData == nil {
		return nil, apperrors.Validation("Credit ID and payment data are required")
	}

	if _, err := s.payments.VerifyPayment(ctx, buyerID, req.CreditID, *req.PaymentData); err != nil {
		if apperrors.Is(err, apperrors.KindPaymentRequired) {
			return nil, err
		}
		return nil, apperrors.Upstream("Payment verification failed", err)
	}

	var purchased *CarbonCredit
	err := s.store.Transact(ctx, func(tx kvstore.Tx) error {
		credit, err := Load(ctx, tx, req.CreditID)
		if err != nil {
			return err
		}
		if err := checkPurchasable(credit); err != nil {
			return err
		}
		if req.Amount != nil && *req.Amount != credit.Amount {
			return apperrors.Validation(fmt.Sprintf("Amount must equal the credit amount of %g tCO2e", credit.Amount))
		}
		now := s.now().UTC()
		if err := payments.ClaimPayment(ctx, tx, buyerID, credit.ID, *req.PaymentData, now); err != nil {
			return err
		}
		credit.OwnerID = buyerID
		credit.PurchasedAt = &now
		credit.PaymentID = req.PaymentData.PaymentID
		purchased = credit
		return kvstore.SetJSON(ctx, tx, credit.ID, credit)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Credit purchased",
		zap.String("credit_id", purchased.ID),
		zap.String("buyer_id", buyerID),
		zap.String("payment_id", purchased.PaymentID),
	)

	managerID := s.recordPayout(ctx, purchased, buyerID)
	event := notifications.NewEvent(notifications.EventCreditPurchased, map[string]any{
		"creditId": purchased.ID,
		"amount":   purchased.Amount,
	}).ForUsers(buyerID)
	if managerID != "" {
		event = event.ForUsers(managerID)
	}
	s.publisher.Publish(ctx, event)
	return purchased, nil
}

// recordPayout is best-effort; it returns the project manager's id when known.
func (s *Service) recordPayout(ctx context.Context, credit *CarbonCredit, buyerID string) string {
	project, err := projects.Load(ctx, s.store, credit.ProjectID)
	if err != nil {
		s.logger.Error("Error recording seller payout", zap.String("credit_id", credit.ID), zap.Error(err))
		return ""
	}
	_, err = s.payouts.RecordPayout(ctx, payments.PayoutInput{
		CreditID:  credit.ID,
		ProjectID: credit.ProjectID,
		ManagerID: project.ManagerID,
		BuyerID:   buyerID,
		PaymentID: credit.PaymentID,
		Credits:   credit.Amount,
	})
	if err != nil {
		s.logger.Error("Error recording seller payout", zap.String("credit_id", credit.ID), zap.Error(err))
	}
	return project.ManagerID
}

func checkRetirable(c *CarbonCredit, buyerID string) error {
	if c.OwnerID != buyerID {
		return apperrors.Forbidden("Access denied: You can only retire credits you own")
	}
	if c.IsRetired {
		return apperrors.Conflict("Credit has already been retired")
	}
	return nil
}

// Retire takes one of buyerID's credits out of circulation permanently.
func (s *Service) Retire(ctx context.Context, buyerID string, req *RetireRequest) (*Retirement, error) {
	reason := strings.TrimSpace(req.Reason)
	if req.CreditID == "" || reason == "" {
		return nil, apperrors.Validation("Credit ID and reason are required")
	}

	credit, err := Load(ctx, s.store, req.CreditID)
	if err != nil {
		return nil, err
	}
	if err := checkRetirable(credit, buyerID); err != nil {
		return nil, err
	}

	retirementID := RetirementKeyPrefix + uuid.NewString()
	var txHash string
	if tx, err := s.chain.Submit(ctx, chain.KindCreditRetirement, retirementID); err != nil {
		s.logger.Warn("Credit retirement not anchored on chain", zap.String("credit_id", req.CreditID), zap.Error(err))
	} else {
		txHash = tx.Hash
	}

	var retirement *Retirement
	err = s.store.Transact(ctx, func(tx kvstore.Tx) error {
		credit, err := Load(ctx, tx, req.CreditID)
		if err != nil {
			return err
		}
		if err := checkRetirable(credit, buyerID); err != nil {
			return err
		}

		now := s.now().UTC()
		credit.IsRetired = true
		credit.RetiredBy = buyerID
		credit.RetiredAt = &now
		credit.RetirementReason = reason
		retirement = &Retirement{
			ID:            retirementID,
			CreditID:      credit.ID,
			BuyerID:       buyerID,
			ProjectID:     credit.ProjectID,
			Amount:        credit.Amount,
			Reason:        reason,
			RetiredAt:     now,
			OnChainTxHash: txHash,
		}

		if err := kvstore.SetJSON(ctx, tx, credit.ID, credit); err != nil {
			return err
		}
		if err := kvstore.SetJSON(ctx, tx, retirement.ID, retirement); err != nil {
			return err
		}
		_, err = kvstore.Increment(ctx, tx, CounterRetired, credit.Amount)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Credit retired",
		zap.String("credit_id", retirement.CreditID),
		zap.String("retirement_id", retirement.ID),
		zap.Float64("amount", retirement.Amount),
	)
	s.publisher.Publish(ctx, notifications.NewEvent(notifications.EventCreditRetired, map[string]any{
		"creditId":     retirement.CreditID,
		"retirementId": retirement.ID,
		"amount":       retirement.Amount,
	}))
	return retirement, nil
}

// Retirements lists buyerID's retirements, newest first.
func (s *Service) Retirements(ctx context.Context, buyerID string) ([]Retirement, error) {
	all, err := kvstore.ListJSON[Retirement](ctx, s.store, RetirementKeyPrefix)
	if err != nil {
		return nil, apperrors.Upstream("Failed to load retirements", err)
	}
	out := make([]Retirement, 0)
	for _, r := range all {
		if r.BuyerID == buyerID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RetiredAt.After(out[j].RetiredAt) })
	return out, nil
}

func certificateNumber(retirementID string) string {
	id := strings.ReplaceAll(strings.TrimPrefix(retirementID, RetirementKeyPrefix), "-", "")
	if len(id) > 12 {
		id = id[:12]
	}
	return "SL-" + strings.ToUpper(id)
}

// Certificate renders the retirement certificate for one of buyerID's
// retirements.
func (s *Service) Certificate(ctx context.Context, buyerID, retirementID string) ([]byte, *Retirement, error) {
	if !strings.HasPrefix(retirementID, RetirementKeyPrefix) {
		return nil, nil, apperrors.NotFound("Retirement not found")
	}
	retirement, err := kvstore.GetJSON[Retirement](ctx, s.store, retirementID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, nil, apperrors.NotFound("Retirement not found")
	}
	if err != nil {
		return nil, nil, apperrors.Upstream("Failed to load retirement", err)
	}
	if retirement.BuyerID != buyerID {
		return nil, nil, apperrors.Forbidden("Access denied: You can only download certificates for your own retirements")
	}

	data := pdf.CertificateData{
		CertificateNumber: certificateNumber(retirement.ID),
		RetirementID:      retirement.ID,
		CreditID:          retirement.CreditID,
		Amount:            retirement.Amount,
		Reason:            retirement.Reason,
		RetiredAt:         retirement.RetiredAt,
		OnChainTxHash:     retirement.OnChainTxHash,
	}
	if credit, err := Load(ctx, s.store, retirement.CreditID); err == nil {
		data.EvidenceCID = credit.EvidenceCID
	}
	if project, err := projects.Load(ctx, s.store, retirement.ProjectID); err == nil {
		data.ProjectName = project.Name
		data.EcosystemType = project.EcosystemType
		data.Location = project.Location
	}
	if user, err := s.users.GetUser(ctx, buyerID); err == nil {
		data.BeneficiaryName = user.Name
		data.BeneficiaryEmail = user.Email
	}

	doc, err := s.certificates.Generate(data)
	if err != nil {
		return nil, nil, fmt.Errorf("render certificate: %w", err)
	}
	return doc, retirement, nil
}
