package chat

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"fintrack/internal/api"
)

var retryPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)retry in\s+(\d+(?:\.\d+)?)\s*s`),
	regexp.MustCompile(`(?i)try again in\s+(\d+(?:\.\d+)?)\s*(?:s|sec|secs|second|seconds)\b`),
	regexp.MustCompile(`"retryDelay"\s*:\s*"(\d+(?:\.\d+)?)s"`),
}

// RetryAfterSeconds finds a provider rate-limit delay in text and returns
// it rounded up to whole seconds.
func RetryAfterSeconds(text string) (int, bool) {
	for _, re := range retryPatterns {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil || v < 0 {
			continue
		}
		return int(math.Ceil(v)), true
	}
	return 0, false
}

func retryHint(seconds int) string {
	return fmt.Sprintf("Vui lòng thử lại sau ~%d giây.", seconds)
}

// WithRetryHint appends a user facing retry hint when msg embeds a retry
// delay. Other messages are returned unchanged.
func WithRetryHint(msg string) string {
	n, ok := RetryAfterSeconds(msg)
	if !ok {
		return msg
	}
	hint := retryHint(n)
	if strings.Contains(msg, hint) {
		return msg
	}
	return strings.TrimSpace(msg) + " " + hint
}

// NormalizeError converts err into an APIError whose message carries the
// retry hint when the message or response body mentions a delay.
func NormalizeError(err error) *api.APIError {
	src := api.AsAPIError(err)
	if src == nil {
		return nil
	}
	out := *src
	if _, ok := RetryAfterSeconds(out.Message); ok {
		out.Message = WithRetryHint(out.Message)
	} else if n, ok := RetryAfterSeconds(out.Body); ok {
		out.Message = strings.TrimSpace(out.Message) + " " + retryHint(n)
	}
	return &out
}
