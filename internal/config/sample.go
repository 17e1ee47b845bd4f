package config

import (
	"math"
	"time"
)

// Sample is a single timestamped scalar reading from a sensor stream.
// Timestamp is expected to be monotonically non-decreasing across a run;
// Value must be finite (see IsFinite) before it reaches the engine.
type Sample struct {
	Timestamp time.Time
	Value     float64
}

// IsFinite reports whether s.Value is usable by the engine. Samples with
// NaN or +-Inf values are dropped at the ingest boundary, never reaching
// the template store or similarity metric.
func (s Sample) IsFinite() bool {
	return !math.IsNaN(s.Value) && !math.IsInf(s.Value, 0)
}

// DropNonFinite filters out samples with non-finite values, returning the
// surviving samples and a count of how many were dropped.
func DropNonFinite(samples []Sample) ([]Sample, int) {
	out := make([]Sample, 0, len(samples))
	dropped := 0
	for _, s := range samples {
		if s.IsFinite() {
			out = append(out, s)
		} else {
			dropped++
		}
	}
	return out, dropped
}
