package payments

import (
	"context"
	"errors"
	"strings"
	"time"

	"samudra-ledger/registry-backend/pkg/kvstore"
)

// ClaimPayment spends data on creditID inside tx. It fails when the payment
// was already claimed, and when a named session is not a completed checkout
// for creditID. The session is marked consumed in the same transaction.
func ClaimPayment(ctx context.Context, tx kvstore.Tx, buyerID, creditID string, data PaymentData, now time.Time) error {
	key := claimKeyPrefix + data.PaymentID
	_, err := tx.Get(ctx, key)
	if err == nil {
		return ErrPaymentUsed
	}
	if !errors.Is(err, kvstore.ErrNotFound) {
		return err
	}

	if data.SessionID != "" {
		if !strings.HasPrefix(data.SessionID, sessionKeyPrefix) {
			return ErrPaymentVerification
		}
		session, err := kvstore.GetJSON[Session](ctx, tx, data.SessionID)
		if errors.Is(err, kvstore.ErrNotFound) {
			return ErrPaymentVerification
		}
		if err != nil {
			return err
		}
		if err := checkSession(session, buyerID, creditID, data.PaymentID); err != nil {
			return err
		}
		session.Status = SessionConsumed
		session.ConsumedAt = &now
		if err := kvstore.SetJSON(ctx, tx, session.ID, session); err != nil {
			return err
		}
	}

	return kvstore.SetJSON(ctx, tx, key, &Claim{
		PaymentID: data.PaymentID,
		CreditID:  creditID,
		BuyerID:   buyerID,
		SessionID: data.SessionID,
		ClaimedAt: now,
	})
}
