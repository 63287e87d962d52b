package store

import (
	"bytes"
	"context"
	"sync"
)

// Memory is a map-backed Store for tests and ephemeral deployments.
type Memory struct {
	mu      sync.RWMutex
	records map[Key]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[Key]Record)}
}

func (m *Memory) Put(ctx context.Context, r *Record) error {
	if err := validateRecord(r); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rec := *r
	rec.SignedDocument = bytes.Clone(r.SignedDocument)

	m.mu.Lock()
	m.records[r.Key()] = rec
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, k Key) (*Record, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	rec, ok := m.records[k]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	rec.SignedDocument = bytes.Clone(rec.SignedDocument)
	return &rec, nil
}

func (m *Memory) Delete(ctx context.Context, k Key) (bool, error) {
	if err := k.Validate(); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.records[k]
	delete(m.records, k)
	return ok, nil
}

func (m *Memory) Close() error {
	return nil
}
