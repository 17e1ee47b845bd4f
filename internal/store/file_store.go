package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/bimmerbailey/sensorpress/internal/record"
)

// FileStore is a Store backed by one JSON file per record under dir,
// using the record codec (C9) directly as the on-disk layout. It gives
// the compress/decompress CLI invocations, which run as separate
// processes, a persistence boundary that survives between them without
// pulling in a database driver for what the spec scopes out as a SQL
// persistence schema.
type FileStore struct {
	mu  sync.Mutex
	dir string
}

// NewFileStore returns a FileStore rooted at dir, creating it if absent.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %q: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(id string) string {
	return filepath.Join(f.dir, id+".json")
}

// Save assigns rec a fresh id and writes it to <dir>/<id>.json.
func (f *FileStore) Save(_ context.Context, rec *record.Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("store: cannot save a nil record")
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("store: marshal record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	id := uuid.New().String()
	if err := os.WriteFile(f.path(id), data, 0o644); err != nil {
		return "", fmt.Errorf("store: write %q: %w", id, err)
	}
	return id, nil
}

// Load reads and decodes the record stored under id.
func (f *FileStore) Load(_ context.Context, id string) (*record.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store: load %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("store: load %q: %w", id, err)
	}

	var rec record.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("store: decode %q: %w", id, err)
	}
	return &rec, nil
}

// List scans dir for record files and returns metadata for each,
// optionally filtered by deviceID, sorted by id for a stable order.
func (f *FileStore) List(ctx context.Context, deviceID string) ([]ListEntry, error) {
	f.mu.Lock()
	entries, err := os.ReadDir(f.dir)
	f.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("store: list %q: %w", f.dir, err)
	}

	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		ids = append(ids, e.Name()[:len(e.Name())-len(".json")])
	}
	sort.Strings(ids)

	var out []ListEntry
	for _, id := range ids {
		rec, err := f.Load(ctx, id)
		if err != nil {
			continue // removed between the directory scan and the read
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

// Delete removes the file backing id.
func (f *FileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("store: delete %q: %w", id, ErrNotFound)
		}
		return fmt.Errorf("store: delete %q: %w", id, err)
	}
	return nil
}
