package alerts

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// projection is the subset of an alert that takes part in change detection.
// Fields are read through the same aliases as the accessors.
// Other fields are ignored.
type projection struct {
	ID        any `json:"id"`
	Type      any `json:"type"`
	Title     any `json:"title"`
	Message   any `json:"message"`
	Severity  any `json:"severity"`
	CreatedAt any `json:"createdAt"`
	Value     any `json:"value"`
}

// HashError reports that a list could not be hashed.
type HashError struct {
	Err error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("hash alerts: %v", e.Err)
}

func (e *HashError) Unwrap() error {
	return e.Err
}

// Hash returns a stable SHA-256 content hash over the projection of each alert.
func Hash(list []Alert) (string, error) {
	items := make([]any, len(list))
	for i, a := range list {
		if a.Fields() == nil {
			items[i] = a.raw
			continue
		}
		items[i] = projection{
			ID:        a.lookup("id"),
			Type:      a.lookup("type"),
			Title:     a.lookup("title", "name"),
			Message:   a.lookup("message", "description"),
			Severity:  a.lookup("severity", "level"),
			CreatedAt: a.lookup("createdAt", "time"),
			Value:     a.lookup("value"),
		}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", &HashError{Err: err}
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
