package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps every entry in process memory. Transactions hold the
// store lock for their whole duration.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Entry
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Entry)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(key)
}

func (s *MemoryStore) get(key string) (*Entry, error) {
	e, ok := s.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return &Entry{Key: e.Key, Value: bytes.Clone(e.Value), Version: e.Version}, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(key, value)
	return nil
}

func (s *MemoryStore) set(key string, value json.RawMessage) {
	prev := s.data[key]
	s.data[key] = Entry{Key: key, Value: bytes.Clone(value), Version: prev.Version + 1}
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *MemoryStore) GetByPrefix(ctx context.Context, prefix string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Entry, 0)
	for k, e := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, Entry{Key: e.Key, Value: bytes.Clone(e.Value), Version: e.Version})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s, writes: make(map[string]*json.RawMessage)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for key, value := range tx.writes {
		if value == nil {
			delete(s.data, key)
			continue
		}
		s.set(key, *value)
	}
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// memoryTx stages writes; a nil value marks a delete.
type memoryTx struct {
	store  *MemoryStore
	writes map[string]*json.RawMessage
}

func (t *memoryTx) Get(ctx context.Context, key string) (*Entry, error) {
	if staged, ok := t.writes[key]; ok {
		if staged == nil {
			return nil, ErrNotFound
		}
		return &Entry{Key: key, Value: bytes.Clone(*staged)}, nil
	}
	return t.store.get(key)
}

func (t *memoryTx) Set(ctx context.Context, key string, value json.RawMessage) error {
	v := json.RawMessage(bytes.Clone(value))
	t.writes[key] = &v
	return nil
}

func (t *memoryTx) Delete(ctx context.Context, key string) error {
	t.writes[key] = nil
	return nil
}
