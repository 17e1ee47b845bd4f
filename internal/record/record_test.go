package record

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

func sampleRecord() *Record {
	templates := orderedmap.New[int, []float64]()
	templates.Set(0, []float64{1, 2, 3, 4})
	templates.Set(3, []float64{10, 20, 30, 40})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(95 * time.Minute)

	return &Record{
		DeviceID:  "sensor-42",
		Templates: templates,
		EncodedStream: []Block{
			{TemplateID: 0, SimilarityScore: 1.0, CER: 0.0, Length: 4, Values: []float64{1, 2, 3, 4}},
			{TemplateID: 0, SimilarityScore: 0.95, CER: 0.02, Length: 4},
			{TemplateID: 3, SimilarityScore: 1.0, CER: 0.0, Length: 4, Values: []float64{10, 20, 30, 40}},
		},
		Metadata: Metadata{
			CompressionRatio:            3.2,
			HitRatio:                    1.0 / 3.0,
			AvgCER:                      0.0067,
			AvgSimilarity:               0.983,
			AvgSimilarityReferencesOnly: 0.95,
			TotalValues:                 12,
			NumTemplates:                2,
		},
		TimeRange: &TimeRange{Start: start, End: end},
	}
}

func TestRecord_RoundTrip(t *testing.T) {
	orig := sampleRecord()

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.DeviceID != orig.DeviceID {
		t.Errorf("DeviceID = %q, want %q", got.DeviceID, orig.DeviceID)
	}
	if got.Templates.Len() != orig.Templates.Len() {
		t.Fatalf("Templates.Len() = %d, want %d", got.Templates.Len(), orig.Templates.Len())
	}
	if len(got.EncodedStream) != len(orig.EncodedStream) {
		t.Fatalf("len(EncodedStream) = %d, want %d", len(got.EncodedStream), len(orig.EncodedStream))
	}
	for i, b := range got.EncodedStream {
		ob := orig.EncodedStream[i]
		if b.TemplateID != ob.TemplateID || b.Length != ob.Length {
			t.Errorf("block %d = %+v, want %+v", i, b, ob)
		}
		if math.Abs(b.SimilarityScore-ob.SimilarityScore) > 1e-9 {
			t.Errorf("block %d similarity = %v, want %v", i, b.SimilarityScore, ob.SimilarityScore)
		}
	}
	if got.TimeRange == nil || !got.TimeRange.Start.Equal(orig.TimeRange.Start) || !got.TimeRange.End.Equal(orig.TimeRange.End) {
		t.Errorf("TimeRange = %+v, want %+v", got.TimeRange, orig.TimeRange)
	}
}

func TestRecord_TemplatesPreserveInsertionOrder(t *testing.T) {
	templates := orderedmap.New[int, []float64]()
	templates.Set(5, []float64{1})
	templates.Set(1, []float64{2})
	templates.Set(12, []float64{3})

	r := &Record{DeviceID: "d", Templates: templates, Metadata: Metadata{}}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	var order []int
	for pair := got.Templates.Oldest(); pair != nil; pair = pair.Next() {
		order = append(order, pair.Key)
	}
	want := []int{5, 1, 12}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
		}
	}
}

func TestRecord_NonFiniteValuesEncodeAsNull(t *testing.T) {
	r := &Record{
		DeviceID: "d",
		Templates: func() *orderedmap.OrderedMap[int, []float64] {
			m := orderedmap.New[int, []float64]()
			m.Set(0, []float64{math.NaN(), 1})
			return m
		}(),
		EncodedStream: []Block{
			{TemplateID: 0, SimilarityScore: math.Inf(1), CER: 0, Length: 2},
		},
	}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal to map: %v", err)
	}
	templates := decoded["templates"].(map[string]interface{})
	values := templates["0"].([]interface{})
	if values[0] != nil {
		t.Errorf("NaN template value encoded as %v, want null", values[0])
	}

	var got Record
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	v, _ := got.Templates.Get(0)
	if !math.IsNaN(v[0]) {
		t.Errorf("decoded template[0][0] = %v, want NaN", v[0])
	}
	if !math.IsNaN(got.EncodedStream[0].SimilarityScore) {
		t.Errorf("decoded similarity_score = %v, want NaN", got.EncodedStream[0].SimilarityScore)
	}
}

func TestRecord_UnmarshalIgnoresUnknownFields(t *testing.T) {
	raw := `{
		"device_id": "d",
		"templates": {"0": [1,2]},
		"encoded_stream": [{"template_id":0,"similarity_score":1.0,"cer":0.0,"length":2,"values":[1,2]}],
		"compression_metadata": {"compression_ratio":1,"hit_ratio":1,"avg_cer":0,"avg_similarity":1,"avg_similarity_references_only":0,"total_values":2,"num_templates":1},
		"future_field": {"nested": true}
	}`

	var got Record
	if err := json.Unmarshal([]byte(raw), &got); err != nil {
		t.Fatalf("Unmarshal with unknown field: %v", err)
	}
	if got.DeviceID != "d" {
		t.Errorf("DeviceID = %q, want d", got.DeviceID)
	}
}

func TestRecord_ReferenceBlockOmitsValues(t *testing.T) {
	r := &Record{
		DeviceID:      "d",
		Templates:     orderedmap.New[int, []float64](),
		EncodedStream: []Block{{TemplateID: 0, SimilarityScore: 0.9, CER: 0.1, Length: 4}},
	}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]interface{}
	json.Unmarshal(data, &decoded)
	stream := decoded["encoded_stream"].([]interface{})
	block := stream[0].(map[string]interface{})
	if _, ok := block["values"]; ok {
		t.Error("Reference block serialized a values field, want omitted")
	}
}

func TestRecord_MalformedJSONReturnsError(t *testing.T) {
	var got Record
	err := json.Unmarshal([]byte(`{not json`), &got)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
