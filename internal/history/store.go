// Package history persists completed analyses so past searches can be
// listed. PostgreSQL backs it when DATABASE_URL is configured; otherwise a
// bounded in-memory store keeps the most recent entries for the process
// lifetime.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/grailmeter/grail-meter/apimodels"
)

// Store records and lists past searches.
type Store interface {
	Save(ctx context.Context, rec apimodels.SearchRecord) error
	Recent(ctx context.Context, limit int) ([]apimodels.SearchRecord, error)
	Close() error
}

const memoryCap = 100

// MemoryStore holds recent records in memory, newest first.
type MemoryStore struct {
	mu      sync.RWMutex
	records []apimodels.SearchRecord
	nextID  int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

func (m *MemoryStore) Save(_ context.Context, rec apimodels.SearchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = m.nextID
	m.nextID++
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	}

	m.records = append([]apimodels.SearchRecord{rec}, m.records...)
	if len(m.records) > memoryCap {
		m.records = m.records[:memoryCap]
	}
	return nil
}

func (m *MemoryStore) Recent(_ context.Context, limit int) ([]apimodels.SearchRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}

	out := make([]apimodels.SearchRecord, limit)
	copy(out, m.records[:limit])
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }
