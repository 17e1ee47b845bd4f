// Package record implements the compressed record type and its
// self-describing wire codec (C9).
package record

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bimmerbailey/sensorpress/internal/config"
)

const timeLayout = "2006-01-02T15:04:05Z"

// Block is one entry in a record's encoded stream. A Reference block has
// a nil Values; a Template block carries the stored vector.
type Block struct {
	TemplateID      int
	SimilarityScore float64
	CER             float64
	Length          int
	Values          []float64
}

// IsTemplate reports whether b is a Template block (carries its own
// vector) rather than a Reference.
func (b Block) IsTemplate() bool {
	return b.Values != nil
}

// Metadata is the compression_metadata object. AvgSimilarity and
// AvgSimilarityReferencesOnly are both carried: the former matches the
// source's accumulator (Template blocks count as similarity 1.0), the
// latter is computed over Reference blocks only and is the more useful
// compression-quality signal in practice.
type Metadata struct {
	CompressionRatio            float64
	HitRatio                    float64
	AvgCER                      float64
	AvgSimilarity               float64
	AvgSimilarityReferencesOnly float64
	TotalValues                 int
	NumTemplates                int
}

// TimeRange is the closed instant pair a run's samples spanned.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Record is the persisted unit for one compression run over one device.
type Record struct {
	DeviceID      string
	Templates     *orderedmap.OrderedMap[int, []float64]
	EncodedStream []Block
	Metadata      Metadata
	TimeRange     *TimeRange
}

type wireBlock struct {
	TemplateID      int      `json:"template_id"`
	SimilarityScore Number   `json:"similarity_score"`
	CER             Number   `json:"cer"`
	Length          int      `json:"length"`
	Values          []Number `json:"values,omitempty"`
}

type wireMetadata struct {
	CompressionRatio            float64 `json:"compression_ratio"`
	HitRatio                    float64 `json:"hit_ratio"`
	AvgCER                      float64 `json:"avg_cer"`
	AvgSimilarity               float64 `json:"avg_similarity"`
	AvgSimilarityReferencesOnly float64 `json:"avg_similarity_references_only"`
	TotalValues                 int     `json:"total_values"`
	NumTemplates                int     `json:"num_templates"`
}

type wireTimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

func blockToWire(b Block) wireBlock {
	wb := wireBlock{
		TemplateID:      b.TemplateID,
		SimilarityScore: Number(b.SimilarityScore),
		CER:             Number(b.CER),
		Length:          b.Length,
	}
	if b.Values != nil {
		wb.Values = make([]Number, len(b.Values))
		for i, v := range b.Values {
			wb.Values[i] = Number(v)
		}
	}
	return wb
}

func blockFromWire(wb wireBlock) Block {
	b := Block{
		TemplateID:      wb.TemplateID,
		SimilarityScore: float64(wb.SimilarityScore),
		CER:             float64(wb.CER),
		Length:          wb.Length,
	}
	if wb.Values != nil {
		b.Values = make([]float64, len(wb.Values))
		for i, v := range wb.Values {
			b.Values[i] = float64(v)
		}
	}
	return b
}

// MarshalJSON writes the record in the self-describing schema: device_id,
// templates (an object keyed by decimal-string ids, in the store's
// insertion order), encoded_stream (array, order preserved), and
// compression_metadata, plus time_range when present.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	deviceIDJSON, err := json.Marshal(r.DeviceID)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`"device_id":`)
	buf.Write(deviceIDJSON)

	buf.WriteString(`,"templates":{`)
	if r.Templates != nil {
		first := true
		for pair := r.Templates.Oldest(); pair != nil; pair = pair.Next() {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			fmt.Fprintf(&buf, `"%d":`, pair.Key)
			values := make([]Number, len(pair.Value))
			for i, v := range pair.Value {
				values[i] = Number(v)
			}
			vj, err := json.Marshal(values)
			if err != nil {
				return nil, err
			}
			buf.Write(vj)
		}
	}
	buf.WriteByte('}')

	streamWire := make([]wireBlock, len(r.EncodedStream))
	for i, b := range r.EncodedStream {
		streamWire[i] = blockToWire(b)
	}
	streamJSON, err := json.Marshal(streamWire)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"encoded_stream":`)
	buf.Write(streamJSON)

	metaWire := wireMetadata{
		CompressionRatio:            r.Metadata.CompressionRatio,
		HitRatio:                    r.Metadata.HitRatio,
		AvgCER:                      r.Metadata.AvgCER,
		AvgSimilarity:               r.Metadata.AvgSimilarity,
		AvgSimilarityReferencesOnly: r.Metadata.AvgSimilarityReferencesOnly,
		TotalValues:                 r.Metadata.TotalValues,
		NumTemplates:                r.Metadata.NumTemplates,
	}
	metaJSON, err := json.Marshal(metaWire)
	if err != nil {
		return nil, err
	}
	buf.WriteString(`,"compression_metadata":`)
	buf.Write(metaJSON)

	if r.TimeRange != nil {
		wtr := wireTimeRange{
			Start: r.TimeRange.Start.UTC().Format(timeLayout),
			End:   r.TimeRange.End.UTC().Format(timeLayout),
		}
		trJSON, err := json.Marshal(wtr)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"time_range":`)
		buf.Write(trJSON)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON parses the self-describing schema. Unknown top-level
// fields are ignored, not rejected. templates is decoded with a
// streaming token walk so its key order (matching the engine's insertion
// order) survives the round trip instead of being re-sorted.
func (r *Record) UnmarshalJSON(data []byte) error {
	var raw struct {
		DeviceID             string              `json:"device_id"`
		Templates            json.RawMessage     `json:"templates"`
		EncodedStream        []wireBlock         `json:"encoded_stream"`
		CompressionMetadata  wireMetadata        `json:"compression_metadata"`
		TimeRange            *wireTimeRange      `json:"time_range"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", config.ErrMalformedRecord, err)
	}

	templates, err := decodeTemplates(raw.Templates)
	if err != nil {
		return err
	}

	stream := make([]Block, len(raw.EncodedStream))
	for i, wb := range raw.EncodedStream {
		stream[i] = blockFromWire(wb)
	}

	r.DeviceID = raw.DeviceID
	r.Templates = templates
	r.EncodedStream = stream
	r.Metadata = Metadata{
		CompressionRatio:            raw.CompressionMetadata.CompressionRatio,
		HitRatio:                    raw.CompressionMetadata.HitRatio,
		AvgCER:                      raw.CompressionMetadata.AvgCER,
		AvgSimilarity:               raw.CompressionMetadata.AvgSimilarity,
		AvgSimilarityReferencesOnly: raw.CompressionMetadata.AvgSimilarityReferencesOnly,
		TotalValues:                 raw.CompressionMetadata.TotalValues,
		NumTemplates:                raw.CompressionMetadata.NumTemplates,
	}

	if raw.TimeRange != nil {
		start, err := time.Parse(timeLayout, raw.TimeRange.Start)
		if err != nil {
			return fmt.Errorf("%w: time_range.start: %v", config.ErrMalformedRecord, err)
		}
		end, err := time.Parse(timeLayout, raw.TimeRange.End)
		if err != nil {
			return fmt.Errorf("%w: time_range.end: %v", config.ErrMalformedRecord, err)
		}
		r.TimeRange = &TimeRange{Start: start, End: end}
	}

	return nil
}

func decodeTemplates(raw json.RawMessage) (*orderedmap.OrderedMap[int, []float64], error) {
	out := orderedmap.New[int, []float64]()
	if len(raw) == 0 {
		return out, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: templates: %v", config.ErrMalformedRecord, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("%w: templates must be an object", config.ErrMalformedRecord)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: templates key: %v", config.ErrMalformedRecord, err)
		}
		keyStr, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: templates key must be a string", config.ErrMalformedRecord)
		}
		var id int
		if _, err := fmt.Sscanf(keyStr, "%d", &id); err != nil {
			return nil, fmt.Errorf("%w: templates key %q is not an integer: %v", config.ErrMalformedRecord, keyStr, err)
		}

		var values []Number
		if err := dec.Decode(&values); err != nil {
			return nil, fmt.Errorf("%w: templates[%s]: %v", config.ErrMalformedRecord, keyStr, err)
		}
		fs := make([]float64, len(values))
		for i, v := range values {
			fs[i] = float64(v)
		}
		out.Set(id, fs)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: templates: %v", config.ErrMalformedRecord, err)
	}

	return out, nil
}
