package record

import (
	"encoding/json"
	"math"
)

// Number is a float64 that serializes non-finite values (NaN, ±Inf) as
// JSON null, per the codec requirement that non-finite numerics never
// appear as bare numbers on the wire. Decoding a JSON null back produces
// math.NaN(), the sentinel consumers check for with math.IsNaN.
type Number float64

func (n Number) MarshalJSON() ([]byte, error) {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(f)
}

func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*n = Number(f)
	return nil
}
