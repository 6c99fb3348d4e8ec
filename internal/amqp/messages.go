package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MaxTitles caps the alert titles carried by one message.
const MaxTitles = 10

// AlertsChangedMessage announces that the polled alert list changed. It
// carries the new content hash and enough of the list for a notification;
// consumers fetch the full list themselves.
type AlertsChangedMessage struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	Seq         uint64    `json:"seq,omitempty"`
	Count       int       `json:"count"`
	ContentHash string    `json:"content_hash"`
	FetchedAt   time.Time `json:"fetched_at"`
	Titles      []string  `json:"titles"`
}

// NewAlertsChangedMessage creates a message with a fresh id. Empty titles
// are skipped and at most MaxTitles are kept.
func NewAlertsChangedMessage(userID string, count int, contentHash string, fetchedAt time.Time, titles []string) *AlertsChangedMessage {
	kept := make([]string, 0, min(len(titles), MaxTitles))
	for _, t := range titles {
		if t == "" {
			continue
		}
		if len(kept) == MaxTitles {
			break
		}
		kept = append(kept, t)
	}
	return &AlertsChangedMessage{
		ID:          uuid.NewString(),
		UserID:      userID,
		Count:       count,
		ContentHash: contentHash,
		FetchedAt:   fetchedAt.UTC(),
		Titles:      kept,
	}
}

func (m *AlertsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertsChangedMessageFromJSON(data []byte) (*AlertsChangedMessage, error) {
	var msg AlertsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
