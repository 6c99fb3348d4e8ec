package core

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Number is an optional numeric field coming from the backend.
//
// The zero value means "absent". A Number that was set to NaN or ±Inf is
// treated exactly like an absent one by Float, so callers only ever see
// finite values.
type Number struct {
	value float64
	set   bool
}

// Num returns a Number holding v.
func Num(v float64) Number {
	return Number{value: v, set: true}
}

// NumberFrom converts a decoded JSON value into a Number.
// Numbers and numeric strings are accepted; everything else is absent.
func NumberFrom(v any) Number {
	switch x := v.(type) {
	case float64:
		return Num(x)
	case float32:
		return Num(float64(x))
	case int:
		return Num(float64(x))
	case int64:
		return Num(float64(x))
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return Num(f)
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(x), 64); err == nil {
			return Num(f)
		}
	}
	return Number{}
}

// Float returns the value and true only when it is present and finite.
func (n Number) Float() (float64, bool) {
	if !n.set || math.IsNaN(n.value) || math.IsInf(n.value, 0) {
		return 0, false
	}
	return n.value, true
}

// Valid reports whether the number is present and finite.
func (n Number) Valid() bool {
	_, ok := n.Float()
	return ok
}

// UnmarshalJSON never fails: values that are not numbers decode to absent.
func (n *Number) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		*n = Number{}
		return nil
	}
	*n = NumberFrom(v)
	return nil
}

// MarshalJSON writes null for absent or non-finite values.
func (n Number) MarshalJSON() ([]byte, error) {
	if v, ok := n.Float(); ok {
		return json.Marshal(v)
	}
	return []byte("null"), nil
}
