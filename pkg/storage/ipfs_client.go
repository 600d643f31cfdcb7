package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Pinner returns a content identifier for evidence attached to MRV results.
type Pinner interface {
	Pin(ctx context.Context, body io.Reader) (string, error)
}

// HashPinner derives a deterministic "Qm..." identifier from the content
// digest without talking to an IPFS node.
type HashPinner struct{}

func NewHashPinner() *HashPinner {
	return &HashPinner{}
}

func (HashPinner) Pin(ctx context.Context, body io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, body); err != nil {
		return "", fmt.Errorf("hash evidence: %w", err)
	}
	return "Qm" + hex.EncodeToString(h.Sum(nil))[:44], nil
}
