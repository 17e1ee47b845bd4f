package ingest

import (
	"context"
	"testing"
)

func TestGenerator_FetchIsDeterministic(t *testing.T) {
	g := NewGenerator()
	ctx := context.Background()

	a, err := g.Fetch(ctx, "dev-1", 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	b, err := g.Fetch(ctx, "dev-1", 50)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if len(a) != 50 || len(b) != 50 {
		t.Fatalf("len(a)=%d len(b)=%d, want 50 each", len(a), len(b))
	}
	for i := range a {
		if a[i].Value != b[i].Value || !a[i].Timestamp.Equal(b[i].Timestamp) {
			t.Fatalf("sample %d differs between runs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestGenerator_DifferentDevicesDiffer(t *testing.T) {
	g := NewGenerator()
	ctx := context.Background()

	a, _ := g.Fetch(ctx, "dev-1", 20)
	b, _ := g.Fetch(ctx, "dev-2", 20)

	identical := true
	for i := range a {
		if a[i].Value != b[i].Value {
			identical = false
			break
		}
	}
	if identical {
		t.Error("expected different devices to produce different series")
	}
}

func TestGenerator_RespectsLimit(t *testing.T) {
	g := NewGenerator()
	got, err := g.Fetch(context.Background(), "dev-1", 7)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 7 {
		t.Errorf("len(got) = %d, want 7", len(got))
	}
}

func TestGenerator_NonPositiveLimitReturnsEmpty(t *testing.T) {
	g := NewGenerator()
	got, err := g.Fetch(context.Background(), "dev-1", 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(got) = %d, want 0", len(got))
	}
}

func TestGenerator_SamplesAreFinite(t *testing.T) {
	g := NewGenerator()
	got, _ := g.Fetch(context.Background(), "dev-1", 100)
	for i, s := range got {
		if !s.IsFinite() {
			t.Errorf("sample %d = %v is not finite", i, s.Value)
		}
	}
}
