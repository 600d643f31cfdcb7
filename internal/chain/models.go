// Package chain records registry events on a ledger and tracks their
// confirmation.
package chain

import "time"

// Kind is the registry event a transaction anchors.
type Kind string

const (
	KindProjectRegistration Kind = "project_registration"
	KindCreditIssuance      Kind = "credit_issuance"
	KindCreditRetirement    Kind = "credit_retirement"
)

// Status of a submitted transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
)

// Transaction is a ledger entry.
type Transaction struct {
	Hash        string     `json:"hash"`
	Kind        Kind       `json:"kind"`
	Reference   string     `json:"reference"`
	Network     string     `json:"network"`
	Status      Status     `json:"status"`
	SubmittedAt time.Time  `json:"submittedAt"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	BlockNumber *int64     `json:"blockNumber,omitempty"`
}

const (
	txKeyPrefix    = "chain_tx_"
	blockHeightKey = "chain_block_height"
)

func txKey(hash string) string { return txKeyPrefix + hash }
