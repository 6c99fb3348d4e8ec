package alerts

import "encoding/json"

// Result is the outcome of normalising a backend response.
// List is never nil.
type Result struct {
	List []Alert
	Raw  any
}

// extractor picks a candidate location out of a response.
type extractor func(raw any) (any, bool)

// extractors are tried in order; the backend has returned every one of
// these shapes at some point.
var extractors = []extractor{
	path("data", "alerts"),
	path("alerts"),
	path("data"),
	func(raw any) (any, bool) { return raw, raw != nil },
}

// Normalize extracts the alert list from a decoded response of unknown shape.
// It never panics and always returns a non-nil list.
func Normalize(raw any) Result {
	for _, extract := range extractors {
		candidate, ok := extract(raw)
		if !ok {
			continue
		}
		if list, ok := asList(candidate); ok {
			return Result{List: list, Raw: raw}
		}
	}
	return Result{List: []Alert{}, Raw: raw}
}

// NormalizeJSON decodes body and normalises it. Bodies that are not JSON
// yield an empty list with the body kept as a string in Raw.
func NormalizeJSON(body []byte) Result {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Normalize(string(body))
	}
	return Normalize(raw)
}

func path(keys ...string) extractor {
	return func(raw any) (any, bool) {
		cur := raw
		for _, k := range keys {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil, false
			}
			cur, ok = m[k]
			if !ok || cur == nil {
				return nil, false
			}
		}
		return cur, true
	}
}

func asList(candidate any) ([]Alert, bool) {
	switch v := candidate.(type) {
	case []any:
		return wrap(v), true
	case []Alert:
		return append([]Alert{}, v...), true
	case map[string]any:
		if inner, ok := v["alerts"].([]any); ok {
			return wrap(inner), true
		}
	}
	return nil, false
}

func wrap(items []any) []Alert {
	out := make([]Alert, len(items))
	for i, it := range items {
		out[i] = New(it)
	}
	return out
}
