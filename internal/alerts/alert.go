// Package alerts fetches alert lists from the backend, normalises their
// loosely defined payload and detects content changes between polls.
package alerts

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Alert is a single alert record as returned by the backend. No field is
// guaranteed; every accessor returns "" when the value is missing.
type Alert struct {
	raw any
}

// New wraps a decoded JSON value.
func New(raw any) Alert {
	return Alert{raw: raw}
}

// Raw returns the decoded value as received.
func (a Alert) Raw() any {
	return a.raw
}

// Fields returns the alert as an object, or nil when it is not one.
func (a Alert) Fields() map[string]any {
	m, _ := a.raw.(map[string]any)
	return m
}

func (a Alert) ID() string        { return a.text("id") }
func (a Alert) Type() string      { return a.text("type") }
func (a Alert) Title() string     { return a.text("title", "name") }
func (a Alert) Message() string   { return a.text("message", "description") }
func (a Alert) Severity() string  { return a.text("severity", "level") }
func (a Alert) CreatedAt() string { return a.text("createdAt", "time") }

// Value returns the raw "value" field.
func (a Alert) Value() any {
	return a.lookup("value")
}

// Key derives a stable identity for list rendering:
// id, else type+createdAt, else the position in the list.
func (a Alert) Key(index int) string {
	if id := a.ID(); id != "" {
		return id
	}
	t, c := a.Type(), a.CreatedAt()
	if t != "" || c != "" {
		return t + c
	}
	return strconv.Itoa(index)
}

// MarshalJSON writes the alert exactly as it was received.
func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.raw)
}

// UnmarshalJSON keeps whatever JSON value it is given.
func (a *Alert) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &a.raw)
}

func (a Alert) lookup(keys ...string) any {
	m := a.Fields()
	if m == nil {
		return nil
	}
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func (a Alert) text(keys ...string) string {
	return scalarText(a.lookup(keys...))
}

func scalarText(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	default:
		return ""
	}
}

// View is the flattened representation served to panel clients.
type View struct {
	Key       string `json:"key"`
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	Title     string `json:"title,omitempty"`
	Message   string `json:"message,omitempty"`
	Severity  string `json:"severity,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	Value     any    `json:"value,omitempty"`
}

// Views flattens a list for display.
func Views(list []Alert) []View {
	out := make([]View, 0, len(list))
	for i, a := range list {
		out = append(out, View{
			Key:       a.Key(i),
			ID:        a.ID(),
			Type:      a.Type(),
			Title:     a.Title(),
			Message:   a.Message(),
			Severity:  a.Severity(),
			CreatedAt: a.CreatedAt(),
			Value:     a.Value(),
		})
	}
	return out
}
