// Package kvstore is the single-table key-value repository every registry
// entity lives in. Values are JSON documents addressed by prefixed string keys
// (project_*, mrv_*, credit_*, ...). Backends: in-memory, gorm (Postgres) and
// DynamoDB.
package kvstore

import (
	"context"
	"encoding/json"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = errors.New("kvstore: key not found")
	// ErrConflict is returned by Transact when a concurrent writer changed a
	// key the transaction read, and retries were exhausted.
	ErrConflict = errors.New("kvstore: concurrent modification")
)

// Entry is a stored row.
type Entry struct {
	Key     string
	Value   json.RawMessage
	Version int64
}

// Getter reads a single key.
type Getter interface {
	Get(ctx context.Context, key string) (*Entry, error)
}

// Setter writes a single key.
type Setter interface {
	Set(ctx context.Context, key string, value json.RawMessage) error
}

// Tx is the view a transaction body gets of the store. Writes become visible
// to other readers only if the body returns nil.
type Tx interface {
	Getter
	Setter
	Delete(ctx context.Context, key string) error
}

// Store is the key-value repository contract.
type Store interface {
	Getter
	Setter
	Delete(ctx context.Context, key string) error
	GetByPrefix(ctx context.Context, prefix string) ([]Entry, error)

	// Transact runs fn atomically: either every write fn made is applied or
	// none is. fn must only touch the store through tx and may be invoked
	// more than once by optimistic backends.
	Transact(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}
