package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// GetJSON loads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, g Getter, key string) (*T, error) {
	entry, err := g.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	var v T
	if err := json.Unmarshal(entry.Value, &v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return &v, nil
}

// SetJSON encodes v and stores it under key.
func SetJSON(ctx context.Context, s Setter, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}

// ListJSON decodes every entry under prefix. Entries that fail to decode as T
// are skipped.
func ListJSON[T any](ctx context.Context, s Store, prefix string) ([]T, error) {
	entries, err := s.GetByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(entries))
	for _, e := range entries {
		var v T
		if err := json.Unmarshal(e.Value, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// GetNumber reads a numeric counter, treating an absent key as zero.
func GetNumber(ctx context.Context, g Getter, key string) (float64, error) {
	entry, err := g.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseFloat(string(entry.Value), 64)
	if err != nil {
		return 0, fmt.Errorf("counter %s is not numeric: %w", key, err)
	}
	return n, nil
}

// Increment adds delta to the counter at key inside tx and returns the new
// total.
func Increment(ctx context.Context, tx Tx, key string, delta float64) (float64, error) {
	current, err := GetNumber(ctx, tx, key)
	if err != nil {
		return 0, err
	}
	total := current + delta
	if err := tx.Set(ctx, key, json.RawMessage(strconv.FormatFloat(total, 'f', -1, 64))); err != nil {
		return 0, err
	}
	return total, nil
}
