package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized is wrapped by every 401 APIError.
var ErrUnauthorized = errors.New("unauthorized")

// APIError is the normalised form of every failed backend call. Status is
// zero for transport failures.
type APIError struct {
	Status  int    `json:"status,omitempty"`
	Message string `json:"message"`
	Body    string `json:"-"`
	Err     error  `json:"-"`
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("api: %s", e.Message)
	}
	return fmt.Sprintf("api: status %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Temporary reports whether retrying later could succeed.
func (e *APIError) Temporary() bool {
	return e.Status == 0 || e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// AsAPIError converts any error into an APIError, keeping an existing one.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &APIError{Message: err.Error(), Err: err}
}

// errorFromResponse builds an APIError from a non-2xx response. The message
// comes from the body's message or error field, then the raw body, then the
// status text.
func errorFromResponse(status int, body []byte) *APIError {
	e := &APIError{Status: status, Body: string(body), Message: messageFromBody(body)}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	if status == http.StatusUnauthorized {
		e.Err = ErrUnauthorized
	}
	return e
}

func messageFromBody(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var env struct {
		Message any `json:"message"`
		Error   any `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		for _, v := range []any{env.Message, env.Error} {
			switch x := v.(type) {
			case string:
				if s := strings.TrimSpace(x); s != "" {
					return s
				}
			case map[string]any:
				if s, ok := x["message"].(string); ok && strings.TrimSpace(s) != "" {
					return strings.TrimSpace(s)
				}
			}
		}
		return trimmed
	}
	var s string
	if err := json.Unmarshal(body, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return trimmed
}
