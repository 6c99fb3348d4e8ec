// Package http provides the panel HTTP server and its handlers.
//
// This file implements the Builder Pattern for constructing JSON responses
// so every handler answers with the same envelope.

package http

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the envelope of every non-2xx panel response. Retryable marks
// backend failures that may succeed if the panel tries again later.
type ErrorBody struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	LoginURL  string `json:"loginUrl,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	data       any
	headers    map[string]string
}

// NewJSONResponse creates a new response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.data = v
	return b
}

// Write sends the built response to the http.ResponseWriter.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}

	if b.data == nil {
		w.WriteHeader(b.statusCode)
		return
	}

	body, err := json.Marshal(b.data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":500,"message":"encoding failed"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(body)
}

// ErrorResponse creates a standard error response.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	return NewJSONResponse().
		Status(statusCode).
		Data(ErrorBody{Status: statusCode, Message: message})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// InternalServerError creates a 500 Internal Server Error response.
func InternalServerError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, message)
}

// UnauthorizedError creates a 401 response pointing at the login page.
func UnauthorizedError(message, loginURL string) *JSONResponseBuilder {
	return NewJSONResponse().
		Status(http.StatusUnauthorized).
		Data(ErrorBody{Status: http.StatusUnauthorized, Message: message, LoginURL: loginURL})
}

// TextResponse wraps a rendered report.
type TextResponse struct {
	Kind      string `json:"kind"`
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
	Text      string `json:"text"`
}
