package chain

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"samudra-ledger/registry-backend/internal/notifications"
	"samudra-ledger/registry-backend/pkg/apperrors"
	"samudra-ledger/registry-backend/pkg/kvstore"
)

// Client submits registry events to a ledger.
type Client interface {
	Submit(ctx context.Context, kind Kind, reference string) (*Transaction, error)
	Get(ctx context.Context, hash string) (*Transaction, error)
}

// SimulatedLedger keeps transactions in the key-value store. A transaction
// is confirmed by ConfirmPending once it is older than the confirmation
// delay; block numbers come from a monotonically increasing height counter.
type SimulatedLedger struct {
	store     kvstore.Store
	network   string
	delay     time.Duration
	publisher notifications.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

var _ Client = (*SimulatedLedger)(nil)

func NewSimulatedLedger(store kvstore.Store, network string, delay time.Duration, publisher notifications.Publisher, logger *zap.Logger) *SimulatedLedger {
	if publisher == nil {
		publisher = notifications.NopPublisher{}
	}
	return &SimulatedLedger{
		store:     store,
		network:   network,
		delay:     delay,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func transactionHash(kind Kind, reference string, at time.Time) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%s", kind, reference, at.UnixNano(), uuid.NewString())))
	return "0x" + hex.EncodeToString(sum[:])
}

func (l *SimulatedLedger) Submit(ctx context.Context, kind Kind, reference string) (*Transaction, error) {
	if reference == "" {
		return nil, apperrors.Validation("Transaction reference is required")
	}
	now := l.now().UTC()
	tx := &Transaction{
		Hash:        transactionHash(kind, reference, now),
		Kind:        kind,
		Reference:   reference,
		Network:     l.network,
		Status:      StatusPending,
		SubmittedAt: now,
	}
	if err := kvstore.SetJSON(ctx, l.store, txKey(tx.Hash), tx); err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}

	l.logger.Info("Chain transaction submitted",
		zap.String("hash", tx.Hash),
		zap.String("kind", string(kind)),
		zap.String("reference", reference),
	)
	return tx, nil
}

func (l *SimulatedLedger) Get(ctx context.Context, hash string) (*Transaction, error) {
	tx, err := kvstore.GetJSON[Transaction](ctx, l.store, txKey(hash))
	if errors.Is(err, kvstore.ErrNotFound) {
		return nil, apperrors.NotFound("Transaction not found")
	}
	if err != nil {
		return nil, apperrors.Upstream("Failed to load transaction", err)
	}
	return tx, nil
}

// ConfirmPending confirms every pending transaction older than the
// confirmation delay and returns how many it confirmed.
func (l *SimulatedLedger) ConfirmPending(ctx context.Context) (int, error) {
	txs, err := kvstore.ListJSON[Transaction](ctx, l.store, txKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list transactions: %w", err)
	}

	cutoff := l.now().Add(-l.delay)
	confirmed := 0
	for _, candidate := range txs {
		if candidate.Status != StatusPending || candidate.SubmittedAt.After(cutoff) {
			continue
		}
		tx, err := l.confirm(ctx, candidate.Hash)
		if err != nil {
			l.logger.Error("Failed to confirm transaction", zap.String("hash", candidate.Hash), zap.Error(err))
			continue
		}
		if tx == nil {
			continue
		}
		confirmed++
		l.publisher.Publish(ctx, notifications.NewEvent(notifications.EventChainConfirmed, map[string]any{
			"hash":        tx.Hash,
			"kind":        tx.Kind,
			"reference":   tx.Reference,
			"blockNumber": *tx.BlockNumber,
		}))
	}
	if confirmed > 0 {
		l.logger.Info("Confirmed chain transactions", zap.Int("count", confirmed))
	}
	return confirmed, nil
}

// confirm returns nil when another sweep confirmed hash first.
func (l *SimulatedLedger) confirm(ctx context.Context, hash string) (*Transaction, error) {
	var out *Transaction
	err := l.store.Transact(ctx, func(t kvstore.Tx) error {
		out = nil
		tx, err := kvstore.GetJSON[Transaction](ctx, t, txKey(hash))
		if err != nil {
			return err
		}
		if tx.Status != StatusPending {
			return nil
		}
		height, err := kvstore.Increment(ctx, t, blockHeightKey, 1)
		if err != nil {
			return err
		}
		now := l.now().UTC()
		block := int64(height)
		tx.Status = StatusConfirmed
		tx.ConfirmedAt = &now
		tx.BlockNumber = &block
		if err := kvstore.SetJSON(ctx, t, txKey(hash), tx); err != nil {
			return err
		}
		out = tx
		return nil
	})
	return out, err
}
