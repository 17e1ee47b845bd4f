package store

import (
	"context"
	"errors"
	"testing"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bimmerbailey/sensorpress/internal/record"
)

func sampleRec(deviceID string) *record.Record {
	return &record.Record{
		DeviceID:  deviceID,
		Templates: orderedmap.New[int, []float64](),
		Metadata:  record.Metadata{NumTemplates: 1, CompressionRatio: 2.5},
	}
}

func TestMemoryStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	rec := sampleRec("dev-1")

	id, err := s.Save(ctx, rec)
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if id == "" {
		t.Fatal("Save returned empty id")
	}

	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.DeviceID != "dev-1" {
		t.Errorf("DeviceID = %q, want dev-1", got.DeviceID)
	}
}

func TestMemoryStore_LoadMissingReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Load(context.Background(), "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ListFiltersByDevice(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Save(ctx, sampleRec("dev-1"))
	s.Save(ctx, sampleRec("dev-2"))
	s.Save(ctx, sampleRec("dev-1"))

	entries, err := s.List(ctx, "dev-1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.DeviceID != "dev-1" {
			t.Errorf("entry device = %q, want dev-1", e.DeviceID)
		}
	}
}

func TestMemoryStore_ListAllDevicesWhenEmptyFilter(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.Save(ctx, sampleRec("dev-1"))
	s.Save(ctx, sampleRec("dev-2"))

	entries, err := s.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2", len(entries))
	}
}

func TestMemoryStore_DeleteRemovesRecord(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	id, _ := s.Save(ctx, sampleRec("dev-1"))

	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Load(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_DeleteMissingReturnsErrNotFound(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Delete(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
