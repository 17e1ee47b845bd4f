// Package engine implements the compression engine's block buffer (C3),
// matcher (C4), encoder (C5), and stream state (C7), wired to the
// similarity metric, template store, and block-size controller.
package engine

import (
	"encoding/json"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bimmerbailey/sensorpress/internal/config"
	"github.com/bimmerbailey/sensorpress/internal/controller"
	"github.com/bimmerbailey/sensorpress/internal/record"
	"github.com/bimmerbailey/sensorpress/internal/similarity"
	"github.com/bimmerbailey/sensorpress/internal/templatestore"
)

// Stats is a snapshot of an in-progress or completed run, returned by
// Engine.Stats.
type Stats struct {
	Trials        int
	Hits          int
	HitRatio      float64
	CurrentN      int
	PMin          float64
	RhoMin        float64
	TemplateCount int
}

// Engine is one compression run over one device's sample stream. It is
// not safe for concurrent use: samples must be fed from a single
// goroutine, matching the engine's single-threaded-cooperative model.
type Engine struct {
	cfg config.EngineConfig

	store *templatestore.Store
	ctrl  *controller.Controller

	buf     []float64
	targetN int

	templatesEmitted *orderedmap.OrderedMap[int, []float64]
	stream           []record.Block

	similarities          []float64
	cers                  []float64
	referenceSimilarities []float64

	trials, hits, blockIndex, totalValues int
	samplesSinceClean                     int
	originalSizeBytes                     int

	firstTime, lastTime *time.Time
}

// wireSample mirrors the shape a single ingested sample would take if
// serialized on its own, for measuring original_size the way the source
// does: len(json.dumps(data_point).encode('utf-8')) per point, summed.
type wireSample struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// New validates cfg and constructs a fresh Engine.
func New(cfg config.EngineConfig) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	e.resetState()
	return e, nil
}

func (e *Engine) resetState() {
	kmax := e.cfg.Kmax
	if !e.cfg.AdaptiveBlockSize {
		kmax = 0
	}
	e.store = templatestore.New(e.cfg.MaxTemplates)
	e.ctrl = controller.New(controller.Config{
		InitialN:        e.cfg.BlockSize,
		MinBlockSize:    e.cfg.MinBlockSize,
		MaxBlockSize:    e.cfg.MaxBlockSize,
		Kmax:            kmax,
		Rmin:            e.cfg.Rmin,
		Wc:              e.cfg.Wc,
		ConfidenceLevel: e.cfg.ConfidenceLevel,
	})
	e.buf = nil
	e.targetN = 0
	e.templatesEmitted = orderedmap.New[int, []float64]()
	e.stream = nil
	e.similarities = nil
	e.cers = nil
	e.referenceSimilarities = nil
	e.trials = 0
	e.hits = 0
	e.blockIndex = 0
	e.totalValues = 0
	e.samplesSinceClean = 0
	e.originalSizeBytes = 0
	e.firstTime = nil
	e.lastTime = nil
}

// Reset clears all state, as if the Engine were freshly constructed with
// the same config.
func (e *Engine) Reset() {
	e.resetState()
}

// Seed pre-populates the template store (and the record-bound template
// table) with a template from a prior run's decoded record, so a fresh
// Engine can reference it immediately. See templatestore.Store.Seed and
// the cross-run continuity decision in DESIGN.md.
func (e *Engine) Seed(id int, values []float64) {
	e.store.Seed(id, values, 1)
	cp := make([]float64, len(values))
	copy(cp, values)
	e.templatesEmitted.Set(id, cp)
}

// CompressOne feeds a single sample into the engine, mirroring the
// point-at-a-time ingestion the original implementation offered for
// streaming callers (e.g. an MQTT subscriber) that cannot buffer a full
// batch up front. Non-finite samples are dropped at this boundary
// (§3/§7); no diagnostic is emitted for them.
func (e *Engine) CompressOne(s config.Sample) {
	if !s.IsFinite() {
		return
	}

	if e.firstTime == nil {
		t := s.Timestamp
		e.firstTime = &t
	}
	lt := s.Timestamp
	e.lastTime = &lt

	if e.targetN == 0 {
		e.targetN = e.ctrl.N()
	}

	e.buf = append(e.buf, s.Value)
	e.totalValues++
	if sz, err := json.Marshal(wireSample{Timestamp: s.Timestamp, Value: s.Value}); err == nil {
		e.originalSizeBytes += len(sz)
	}
	e.samplesSinceClean++
	if e.cfg.CleanInterval > 0 && e.samplesSinceClean >= e.cfg.CleanInterval {
		e.store.Prune()
		e.samplesSinceClean = 0
	}

	if len(e.buf) >= e.targetN {
		e.emitBlock(e.buf, true)
		e.buf = nil
		e.targetN = 0
	}
}

// Compress consumes an ordered batch of samples and returns the
// resulting compressed record for deviceID. It returns config.ErrEmptyInput
// if samples is empty; callers may treat that as success with no record.
func (e *Engine) Compress(deviceID string, samples []config.Sample) (*record.Record, error) {
	if len(samples) == 0 {
		return nil, config.ErrEmptyInput
	}
	for _, s := range samples {
		e.CompressOne(s)
	}
	return e.Finish(deviceID)
}

// emitBlock runs the matcher and encoder over a completed (or, when
// matchable is false, forcibly-flushed partial) block of values.
func (e *Engine) emitBlock(values []float64, matchable bool) {
	length := len(values)

	bestID := -1
	bestScore := -1.0
	if matchable {
		for id, tmpl := range e.store.All() {
			if len(tmpl) != length {
				continue
			}
			score := similarity.Score(tmpl, values, e.cfg.MinValues, e.cfg.SimilarityFactor)
			if score > bestScore {
				bestScore = score
				bestID = id
			}
		}
	}

	var blk record.Block
	var hit bool

	if bestID >= 0 && bestScore > e.cfg.PThreshold {
		tmplVals, _ := e.store.Get(bestID)
		cer := similarity.CER(values, tmplVals)
		e.store.Bump(bestID)

		blk = record.Block{TemplateID: bestID, SimilarityScore: bestScore, CER: cer, Length: length}
		hit = true
		e.hits++
		e.referenceSimilarities = append(e.referenceSimilarities, bestScore)
	} else {
		cp := make([]float64, length)
		copy(cp, values)
		newID := e.store.Insert(cp)
		e.templatesEmitted.Set(newID, cp)

		blk = record.Block{TemplateID: newID, SimilarityScore: 1.0, CER: 0.0, Length: length, Values: cp}
	}

	e.similarities = append(e.similarities, blk.SimilarityScore)
	e.cers = append(e.cers, blk.CER)
	e.trials++
	e.stream = append(e.stream, blk)

	e.ctrl.RecordOutcome(e.blockIndex, hit, blk.SimilarityScore, blk.CER)
	e.blockIndex++
}

// Finish flushes any partial block and produces the final record for
// deviceID. After Finish, the engine retains its state (templates,
// stream, counters) until Reset is called; calling Finish again returns
// the same logical result plus whatever has been fed in since.
func (e *Engine) Finish(deviceID string) (*record.Record, error) {
	if len(e.buf) > 0 {
		e.emitBlock(e.buf, false)
		e.buf = nil
		e.targetN = 0
	}

	metadata := record.Metadata{
		HitRatio:                    ratio(e.hits, e.trials),
		AvgCER:                      mean(e.cers),
		AvgSimilarity:               mean(e.similarities),
		AvgSimilarityReferencesOnly: mean(e.referenceSimilarities),
		TotalValues:                 e.totalValues,
		NumTemplates:                e.templatesEmitted.Len(),
	}

	var timeRange *record.TimeRange
	if e.firstTime != nil && e.lastTime != nil {
		timeRange = &record.TimeRange{Start: *e.firstTime, End: *e.lastTime}
	}

	templatesCopy := orderedmap.New[int, []float64]()
	for pair := e.templatesEmitted.Oldest(); pair != nil; pair = pair.Next() {
		v := make([]float64, len(pair.Value))
		copy(v, pair.Value)
		templatesCopy.Set(pair.Key, v)
	}

	rec := &record.Record{
		DeviceID:      deviceID,
		Templates:     templatesCopy,
		EncodedStream: append([]record.Block(nil), e.stream...),
		Metadata:      metadata,
		TimeRange:     timeRange,
	}

	serialized, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if len(serialized) > 0 {
		rec.Metadata.CompressionRatio = float64(e.originalSizeBytes) / float64(len(serialized))
	}

	return rec, nil
}

// Stats returns a snapshot of the engine's running totals.
func (e *Engine) Stats() Stats {
	trialsSC := e.ctrl.TrialsSinceChange()
	hitsSC := e.ctrl.HitsSinceChange()
	pMin := e.ctrl.PMin(hitsSC, trialsSC)

	return Stats{
		Trials:        e.trials,
		Hits:          e.hits,
		HitRatio:      ratio(e.hits, e.trials),
		CurrentN:      e.ctrl.N(),
		PMin:          pMin,
		RhoMin:        controller.RhoMin(e.ctrl.N(), pMin),
		TemplateCount: e.store.Len(),
	}
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var total float64
	for _, v := range vs {
		total += v
	}
	return total / float64(len(vs))
}
