// Package store defines the persistence boundary for compressed records.
// The SQL/HTTP persistence layer itself is out of scope for this module
// (see spec Non-goals); Store is the interface real backends implement.
// The CLI persists through FileStore; MemoryStore is an in-process
// implementation.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/bimmerbailey/sensorpress/internal/record"
)

// ErrNotFound is returned by Load and Delete when id names no record.
var ErrNotFound = errors.New("compressed record not found")

// ListEntry is the metadata-only view List returns, cheap to produce
// without deserializing every record's full template table and stream.
type ListEntry struct {
	ID               string
	DeviceID         string
	TimeRange        *record.TimeRange
	NumTemplates     int
	CompressionRatio float64
}

// Store persists and retrieves compressed records, keyed by an
// opaque id assigned at Save time.
type Store interface {
	Save(ctx context.Context, rec *record.Record) (id string, err error)
	Load(ctx context.Context, id string) (*record.Record, error)
	List(ctx context.Context, deviceID string) ([]ListEntry, error)
	Delete(ctx context.Context, id string) error
}

// MemoryStore is an in-process Store backed by a map, guarded by a
// mutex. Its records live only as long as the process; the CLI does not
// use it (it persists through FileStore).
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*record.Record
	order   []string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*record.Record)}
}

// Save assigns rec a fresh id and stores it.
func (m *MemoryStore) Save(_ context.Context, rec *record.Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("store: cannot save a nil record")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.records[id] = rec
	m.order = append(m.order, id)
	return id, nil
}

// Load returns the record saved under id.
func (m *MemoryStore) Load(_ context.Context, id string) (*record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[id]
	if !ok {
		return nil, fmt.Errorf("store: load %q: %w", id, ErrNotFound)
	}
	return rec, nil
}

// List returns metadata for every record, in save order. When deviceID
// is non-empty, only that device's records are returned.
func (m *MemoryStore) List(_ context.Context, deviceID string) ([]ListEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []ListEntry
	for _, id := range m.order {
		rec, ok := m.records[id]
		if !ok {
			continue // deleted since insertion
		}
		if deviceID != "" && rec.DeviceID != deviceID {
			continue
		}
		out = append(out, ListEntry{
			ID:               id,
			DeviceID:         rec.DeviceID,
			TimeRange:        rec.TimeRange,
			NumTemplates:     rec.Metadata.NumTemplates,
			CompressionRatio: rec.Metadata.CompressionRatio,
		})
	}
	return out, nil
}

// Delete removes the record saved under id.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[id]; !ok {
		return fmt.Errorf("store: delete %q: %w", id, ErrNotFound)
	}
	delete(m.records, id)
	return nil
}
