// Package decode reconstructs (timestamp, value) pairs from a compressed
// record (C8).
package decode

import (
	"fmt"
	"iter"
	"time"

	"github.com/bimmerbailey/sensorpress/internal/config"
	"github.com/bimmerbailey/sensorpress/internal/record"
)

// Point is one reconstructed sample. Timestamp is nil when the record
// carries no time range; callers in that case must supply their own
// timestamps out of band.
type Point struct {
	Timestamp *time.Time
	Value     float64
}

// Decode returns a lazy sequence of (Point, error) pairs walking rec's
// encoded stream in order. A non-nil error is yielded as the sequence's
// final element (with a zero Point) and the sequence stops; the only
// error this produces is wrapped config.ErrDanglingReference, when a
// Reference block names a template id absent from rec.Templates.
//
// The decoder does not attempt to recover the original samples exactly:
// it replays each block's stored template values, with timestamps
// distributed evenly across the block's share of the record's time
// range when one is present.
func Decode(rec *record.Record) iter.Seq2[Point, error] {
	return func(yield func(Point, error) bool) {
		blocks := rec.EncodedStream
		n := len(blocks)

		var t0 time.Time
		var delta time.Duration
		hasRange := rec.TimeRange != nil
		if hasRange && n > 0 {
			t0 = rec.TimeRange.Start
			delta = rec.TimeRange.End.Sub(rec.TimeRange.Start) / time.Duration(n)
		}

		for i, blk := range blocks {
			values := blk.Values
			if !blk.IsTemplate() {
				v, ok := rec.Templates.Get(blk.TemplateID)
				if !ok {
					yield(Point{}, fmt.Errorf("%w: encoded_stream[%d] references template %d", config.ErrDanglingReference, i, blk.TemplateID))
					return
				}
				values = v
			}

			if len(values) == 0 {
				continue
			}

			if !hasRange {
				for _, v := range values {
					if !yield(Point{Value: v}, nil) {
						return
					}
				}
				continue
			}

			blockStart := t0.Add(time.Duration(i) * delta)
			blockEnd := blockStart.Add(delta)
			if i == n-1 {
				blockEnd = rec.TimeRange.End
			}
			stride := blockEnd.Sub(blockStart) / time.Duration(len(values))

			for j, v := range values {
				ts := blockStart.Add(time.Duration(j) * stride)
				if !yield(Point{Timestamp: &ts, Value: v}, nil) {
					return
				}
			}
		}
	}
}

// All drains Decode into a slice, for callers that don't need
// incremental consumption. It stops and returns the first error
// encountered, along with whatever points were reconstructed before it.
func All(rec *record.Record) ([]Point, error) {
	var out []Point
	for p, err := range Decode(rec) {
		if err != nil {
			return out, err
		}
		out = append(out, p)
	}
	return out, nil
}
