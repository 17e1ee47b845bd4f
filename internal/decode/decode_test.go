package decode

import (
	"errors"
	"math"
	"testing"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bimmerbailey/sensorpress/internal/config"
	"github.com/bimmerbailey/sensorpress/internal/engine"
	"github.com/bimmerbailey/sensorpress/internal/record"
)

func noTimeRangeTemplates() *orderedmap.OrderedMap[int, []float64] {
	m := orderedmap.New[int, []float64]()
	m.Set(0, []float64{1, 2})
	return m
}

func samplesFrom(values []float64, start time.Time, step time.Duration) []config.Sample {
	out := make([]config.Sample, len(values))
	for i, v := range values {
		out[i] = config.Sample{Timestamp: start.Add(time.Duration(i) * step), Value: v}
	}
	return out
}

// S5 — record round trip with timestamps.
func TestDecode_RoundTripWithTimestamps(t *testing.T) {
	cfg := config.Defaults()
	cfg.BlockSize, cfg.MinBlockSize, cfg.MaxBlockSize = 4, 4, 4

	e, err := engine.New(cfg)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	values := make([]float64, 100)
	for i := range values {
		values[i] = float64(i % 5)
	}
	rec, err := e.Compress("dev-1", samplesFrom(values, start, 5*time.Minute))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}

	points, err := All(rec)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(points) != 100 {
		t.Fatalf("len(points) = %d, want 100", len(points))
	}

	if points[0].Timestamp == nil || !points[0].Timestamp.Equal(start) {
		t.Errorf("first point timestamp = %v, want %v", points[0].Timestamp, start)
	}

	wantEnd := start.Add(495 * time.Minute)
	last := points[99].Timestamp
	if last == nil {
		t.Fatal("last point has no timestamp")
	}
	if diff := last.Sub(wantEnd); diff < -10*time.Minute || diff > 10*time.Minute {
		t.Errorf("last point timestamp = %v, want within 10 minutes of %v", last, wantEnd)
	}

	for i := 1; i < len(points); i++ {
		if points[i].Timestamp.Before(*points[i-1].Timestamp) {
			t.Fatalf("timestamps not monotonic at index %d", i)
		}
	}
}

func TestDecode_NoTimeRangeOmitsTimestamps(t *testing.T) {
	templates := noTimeRangeTemplates()
	rec := &record.Record{
		DeviceID:      "d",
		Templates:     templates,
		EncodedStream: []record.Block{{TemplateID: 0, SimilarityScore: 1.0, Length: 2, Values: []float64{1, 2}}},
	}

	points, err := All(rec)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("len(points) = %d, want 2", len(points))
	}
	for _, p := range points {
		if p.Timestamp != nil {
			t.Error("expected nil Timestamp when record has no time range")
		}
	}
}

func TestDecode_DanglingReferenceStopsAndErrors(t *testing.T) {
	templates := noTimeRangeTemplates()
	rec := &record.Record{
		DeviceID:  "d",
		Templates: templates,
		EncodedStream: []record.Block{
			{TemplateID: 0, SimilarityScore: 1.0, Length: 2, Values: []float64{1, 2}},
			{TemplateID: 99, SimilarityScore: 0.9, Length: 2}, // dangling
		},
	}

	points, err := All(rec)
	if !errors.Is(err, config.ErrDanglingReference) {
		t.Fatalf("err = %v, want ErrDanglingReference", err)
	}
	if len(points) != 2 {
		t.Errorf("len(points) = %d, want 2 (values from the valid Template block before the dangling one)", len(points))
	}
}

func TestDecode_EarlyStopViaYieldFalse(t *testing.T) {
	templates := noTimeRangeTemplates()
	rec := &record.Record{
		DeviceID:      "d",
		Templates:     templates,
		EncodedStream: []record.Block{{TemplateID: 0, SimilarityScore: 1.0, Length: 4, Values: []float64{1, 2, 3, 4}}},
	}

	var seen []float64
	for p, err := range Decode(rec) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen = append(seen, p.Value)
		if len(seen) == 2 {
			break
		}
	}
	if len(seen) != 2 {
		t.Fatalf("len(seen) = %d, want 2 (range-over-func early break)", len(seen))
	}
}

func TestDecode_TemplateBlockUsesOwnValues(t *testing.T) {
	templates := noTimeRangeTemplates()
	rec := &record.Record{
		DeviceID:      "d",
		Templates:     templates,
		EncodedStream: []record.Block{{TemplateID: 0, SimilarityScore: 1.0, Length: 2, Values: []float64{7, 8}}},
	}
	points, err := All(rec)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(points) != 2 || points[0].Value != 7 || points[1].Value != 8 {
		t.Errorf("points = %+v, want [7 8]", points)
	}
}

func TestDecode_NaNTemplateValuePassesThrough(t *testing.T) {
	templates := noTimeRangeTemplates()
	rec := &record.Record{
		DeviceID:      "d",
		Templates:     templates,
		EncodedStream: []record.Block{{TemplateID: 0, SimilarityScore: 1.0, Length: 1, Values: []float64{math.NaN()}}},
	}
	points, err := All(rec)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if !math.IsNaN(points[0].Value) {
		t.Errorf("points[0].Value = %v, want NaN", points[0].Value)
	}
}
