// Package chat relays user messages to the backend assistant, extracts the
// reply from its loosely shaped response and keeps per-user history.
package chat

import "strings"

// FallbackReply is returned when a response carries no usable text.
const FallbackReply = "Không có nội dung."

type candidate func(body any) any

func field(path ...string) candidate {
	return func(body any) any {
		cur := body
		for _, key := range path {
			m, ok := cur.(map[string]any)
			if !ok {
				return nil
			}
			cur = m[key]
		}
		return cur
	}
}

// replyCandidates are tried in order; the first non-empty string wins.
var replyCandidates = []candidate{
	func(body any) any { return body },
	field("answer"),
	field("reply"),
	field("data", "answer"),
	field("data", "reply"),
	field("data"),
	field("message"),
}

// ExtractReply returns the first non-empty trimmed reply text in body, or
// FallbackReply.
func ExtractReply(body any) string {
	for _, c := range replyCandidates {
		if s, ok := c(body).(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return FallbackReply
}
