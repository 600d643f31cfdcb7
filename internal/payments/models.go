// Package payments prices credits, verifies buyer payments and records
// seller payouts.
package payments

import (
	"math"
	"time"
)

// SessionStatus of a checkout session.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
	// SessionConsumed marks a paid session whose payment bought its credit.
	SessionConsumed SessionStatus = "consumed"
)

const (
	CurrencyINR           = "INR"
	PaymentSucceeded      = "succeeded"
	PayoutPendingTransfer = "pending_transfer"
)

// Session is a checkout session created for one credit.
type Session struct {
	ID              string        `json:"id"`
	CreditID        string        `json:"creditId"`
	BuyerID         string        `json:"buyerId"`
	Amount          float64       `json:"amount"`
	PriceInINR      int64         `json:"priceInINR"`
	Status          SessionStatus `json:"status"`
	PaymentIntentID string        `json:"paymentIntentId"`
	CheckoutURL     string        `json:"checkoutUrl"`
	CreatedAt       time.Time     `json:"createdAt"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	ConsumedAt      *time.Time    `json:"consumedAt,omitempty"`
}

// PaymentData is what the buyer presents when purchasing a credit.
type PaymentData struct {
	PaymentID string `json:"paymentId"`
	Status    string `json:"status"`
	SessionID string `json:"sessionId,omitempty"`
}

// Verification is the provider's verdict on a payment.
type Verification struct {
	IsValid   bool   `json:"isValid"`
	PaymentID string `json:"paymentId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Payout is the seller's share of a purchase, awaiting bank transfer.
type Payout struct {
	ID           string    `json:"id"`
	CreditID     string    `json:"creditId"`
	ProjectID    string    `json:"projectId"`
	ManagerID    string    `json:"managerId"`
	BuyerID      string    `json:"buyerId"`
	PaymentID    string    `json:"paymentId"`
	TotalAmount  int64     `json:"totalAmount"`
	PlatformFee  int64     `json:"platformFee"`
	SellerPayout int64     `json:"sellerPayout"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"createdAt"`
}

// PayoutInput describes a completed purchase.
type PayoutInput struct {
	CreditID  string
	ProjectID string
	ManagerID string
	BuyerID   string
	PaymentID string
	Credits   float64
}

// Pricing converts credits to rupees.
type Pricing struct {
	USDPerCredit    float64
	INRPerUSD       float64
	PlatformFeeRate float64
}

// PriceINR is the rounded rupee price of credits tonnes.
func (p Pricing) PriceINR(credits float64) int64 {
	return int64(math.Round(credits * p.USDPerCredit * p.INRPerUSD))
}

// Split divides total into the platform fee and the seller's share.
func (p Pricing) Split(total int64) (fee, seller int64) {
	fee = int64(math.Round(float64(total) * p.PlatformFeeRate))
	return fee, total - fee
}

type CreateSessionRequest struct {
	CreditID string `json:"creditId" binding:"required"`
}

type VerifySessionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
}

// Claim records the credit a payment was spent on. A payment id is claimed
// at most once.
type Claim struct {
	PaymentID string    `json:"paymentId"`
	CreditID  string    `json:"creditId"`
	BuyerID   string    `json:"buyerId"`
	SessionID string    `json:"sessionId,omitempty"`
	ClaimedAt time.Time `json:"claimedAt"`
}

const (
	sessionKeyPrefix = "payment_session_"
	payoutKeyPrefix  = "payout_"
	claimKeyPrefix   = "payment_claim_"
)
