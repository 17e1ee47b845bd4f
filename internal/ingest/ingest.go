// Package ingest defines the sample-source boundary the compress CLI
// reads from. Real telemetry ingestion (an MQTT subscriber, a time-series
// database query) is out of scope for this module; Source is the
// interface those integrations implement, with Generator as a
// deterministic stand-in for local use and tests.
package ingest

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/bimmerbailey/sensorpress/internal/config"
)

// Source produces a device's samples on demand. limit bounds how many
// samples are returned; implementations may return fewer if the device
// has less history than limit.
type Source interface {
	Fetch(ctx context.Context, deviceID string, limit int) ([]config.Sample, error)
}

// Generator is a deterministic Source: the same (deviceID, limit, Step)
// always reproduces the same sample batch, seeded from a hash of
// deviceID so different devices get visibly different series without
// any external state. It exists so the compress CLI and tests have
// something to run against without a real telemetry backend.
type Generator struct {
	// Start is the timestamp of the first generated sample.
	Start time.Time
	// Step is the spacing between samples.
	Step time.Duration
	// Amplitude and NoiseAmplitude shape the synthetic signal: a sine
	// wave of the given amplitude plus uniform noise.
	Amplitude      float64
	NoiseAmplitude float64
	// Period is the sine wave's period, in samples.
	Period int
}

// NewGenerator returns a Generator with reasonable defaults: a 24-hour
// period at one-minute spacing, amplitude 10, noise amplitude 0.5.
func NewGenerator() *Generator {
	return &Generator{
		Start:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Step:           time.Minute,
		Amplitude:      10,
		NoiseAmplitude: 0.5,
		Period:         1440,
	}
}

// Fetch returns limit deterministic samples for deviceID.
func (g *Generator) Fetch(_ context.Context, deviceID string, limit int) ([]config.Sample, error) {
	if limit <= 0 {
		return nil, nil
	}

	h := fnv.New64a()
	h.Write([]byte(deviceID))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	period := g.Period
	if period <= 0 {
		period = 1440
	}

	out := make([]config.Sample, limit)
	for i := 0; i < limit; i++ {
		phase := 2 * math.Pi * float64(i%period) / float64(period)
		value := g.Amplitude*math.Sin(phase) + (rng.Float64()*2-1)*g.NoiseAmplitude
		out[i] = config.Sample{
			Timestamp: g.Start.Add(time.Duration(i) * g.Step),
			Value:     value,
		}
	}
	return out, nil
}
