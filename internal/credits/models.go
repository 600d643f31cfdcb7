// Package credits covers the life of a carbon credit after issuance:
// listing, purchase, retirement and retirement certificates.
package credits

import (
	"strings"
	"time"

	"samudra-ledger/registry-backend/internal/payments"
)

const (
	KeyPrefix           = "credit_"
	RetirementKeyPrefix = "retirement_"

	// Registry-wide counters, in tCO2e.
	CounterIssued  = "total_credits_issued"
	CounterRetired = "total_credits_retired"
)

// CarbonCredit is one issued block of verified sequestration. It is sold and
// retired whole.
type CarbonCredit struct {
	ID               string     `json:"id"`
	ProjectID        string     `json:"projectId"`
	Amount           float64    `json:"amount"` // tCO2e
	OwnerID          string     `json:"ownerId,omitempty"`
	IsRetired        bool       `json:"isRetired"`
	RetiredBy        string     `json:"retiredBy,omitempty"`
	RetiredAt        *time.Time `json:"retiredAt,omitempty"`
	RetirementReason string     `json:"retirementReason,omitempty"`
	HealthScore      float64    `json:"healthScore"`
	EvidenceCID      string     `json:"evidenceCid"`
	VerifiedAt       time.Time  `json:"verifiedAt"`
	MRVID            string     `json:"mrvId"`
	OnChainTxHash    string     `json:"onChainTxHash,omitempty"`
	PurchasedAt      *time.Time `json:"purchasedAt,omitempty"`
	PaymentID        string     `json:"paymentId,omitempty"`
}

// Available reports whether the credit can still be bought.
func (c *CarbonCredit) Available() bool {
	return c.OwnerID == "" && !c.IsRetired
}

// Retirement is the immutable record of a credit being taken out of
// circulation.
type Retirement struct {
	ID            string    `json:"id"`
	CreditID      string    `json:"creditId"`
	BuyerID       string    `json:"buyerId"`
	ProjectID     string    `json:"projectId"`
	Amount        float64   `json:"amount"`
	Reason        string    `json:"reason"`
	RetiredAt     time.Time `json:"retiredAt"`
	OnChainTxHash string    `json:"onChainTxHash,omitempty"`
}

// IsCreditKey reports whether key addresses a credit.
func IsCreditKey(key string) bool { return strings.HasPrefix(key, KeyPrefix) }

type PurchaseRequest struct {
	CreditID    string                `json:"creditId"`
	Amount      *float64              `json:"amount"`
	PaymentData *payments.PaymentData `json:"paymentData"`
}

type PurchaseResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	CreditID  string `json:"creditId"`
	PaymentID string `json:"paymentId"`
}

type RetireRequest struct {
	CreditID string `json:"creditId"`
	Reason   string `json:"reason"`
}

// RetirementSummary is the retirement as echoed back to the buyer.
type RetirementSummary struct {
	ID            string    `json:"id"`
	CreditID      string    `json:"creditId"`
	Amount        float64   `json:"amount"`
	Reason        string    `json:"reason"`
	RetiredAt     time.Time `json:"retiredAt"`
	OnChainTxHash string    `json:"onChainTxHash,omitempty"`
}
