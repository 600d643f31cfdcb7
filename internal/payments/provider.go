package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// ErrPaymentVerification is returned when a payment cannot be confirmed.
var ErrPaymentVerification = apperrors.New(apperrors.KindPaymentRequired, "Payment verification failed")

// ErrPaymentUsed is returned when a payment has already bought a credit.
var ErrPaymentUsed = apperrors.New(apperrors.KindPaymentRequired, "Payment has already been used")

// Provider is the payment gateway.
type Provider interface {
	CreateSession(ctx context.Context, creditID, buyerID string, credits float64) (*Session, error)
	GetSession(ctx context.Context, sessionID string) (*Session, error)
	// VerifySession completes a checkout session and reports the payment it
	// produced.
	VerifySession(ctx context.Context, sessionID string) (*Verification, *Session, error)
	// VerifyPayment checks payment data presented by buyerID for creditID.
	VerifyPayment(ctx context.Context, buyerID, creditID string, data PaymentData) (*Verification, error)
}

// MockProvider is a gateway stand-in that keeps sessions in the key-value
// store and treats every completed checkout as paid.
type MockProvider struct {
	store       kvstore.Store
	pricing     Pricing
	checkoutURL string
	now         func() time.Time
}

var _ Provider = (*MockProvider)(nil)

func NewMockProvider(store kvstore.Store, pricing Pricing, checkoutURL string) *MockProvider {
	return &MockProvider{store: store, pricing: pricing, checkoutURL: checkoutURL, now: time.Now}
}

func randomToken(n int) string {
	s := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(s) {
		n = len(s)
	}
	return s[:n]
}

func (p *MockProvider) CreateSession(ctx context.Context, creditID, buyerID string, credits float64) (*Session, error) {
	id := sessionKeyPrefix + uuid.NewString()
	session := &Session{
		ID:              id,
		CreditID:        creditID,
		BuyerID:         buyerID,
		Amount:          credits,
		PriceInINR:      p.pricing.PriceINR(credits),
		Status:          SessionPending,
		PaymentIntentID: "pi_" + randomToken(24),
		CheckoutURL:     p.checkoutURL + "?session_id=" + url.QueryEscape(id),
		CreatedAt:       p.now().UTC(),
	}
	if err := kvstore.SetJSON(ctx, p.store, id, session); err != nil {
		return nil, fmt.Errorf("failed to store payment session: %w", err)
	}
	return session, nil
}

func (p *MockProvider) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	if !strings.HasPrefix(sessionID, sessionKeyPrefix) {
		return nil, apperrors.NotFound("Payment session not found")
	}
	session, err := kvstore.GetJSON[Session](ctx, p.store, sessionID)
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.NotFound("Payment session not found")
	}
	if err != nil {
		return nil, apperrors.Upstream("Failed to load payment session", err)
	}
	return session, nil
}

func (p *MockProvider) VerifySession(ctx context.Context, sessionID string) (*Verification, *Session, error) {
	session, err := p.GetSession(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session.Status == SessionPending {
		now := p.now().UTC()
		session.Status = SessionCompleted
		session.CompletedAt = &now
		if err := kvstore.SetJSON(ctx, p.store, session.ID, session); err != nil {
			return nil, nil, fmt.Errorf("failed to update payment session: %w", err)
		}
	}
	return &Verification{
		IsValid:   true,
		PaymentID: session.PaymentIntentID,
		Amount:    session.PriceInINR,
		Currency:  CurrencyINR,
		Status:    PaymentSucceeded,
	}, session, nil
}

// VerifyPayment accepts a payment whose status is succeeded. When the data
// names a session, the session must be a completed checkout by buyerID for
// creditID that produced that payment.
func (p *MockProvider) VerifyPayment(ctx context.Context, buyerID, creditID string, data PaymentData) (*Verification, error) {
	if data.PaymentID == "" || data.Status != PaymentSucceeded {
		return nil, ErrPaymentVerification
	}
	v := &Verification{IsValid: true, PaymentID: data.PaymentID, Currency: CurrencyINR, Status: data.Status}
	if data.SessionID == "" {
		return v, nil
	}

	session, err := p.GetSession(ctx, data.SessionID)
	if apperrors.Is(err, apperrors.KindNotFound) {
		return nil, ErrPaymentVerification
	}
	if err != nil {
		return nil, err
	}
	if err := checkSession(session, buyerID, creditID, data.PaymentID); err != nil {
		return nil, err
	}
	v.Amount = session.PriceInINR
	return v, nil
}

func checkSession(session *Session, buyerID, creditID, paymentID string) error {
	if session.BuyerID != buyerID || session.PaymentIntentID != paymentID || session.CreditID != creditID {
		return ErrPaymentVerification
	}
	switch session.Status {
	case SessionCompleted:
		return nil
	case SessionConsumed:
		return ErrPaymentUsed
	default:
		return ErrPaymentVerification
	}
}
