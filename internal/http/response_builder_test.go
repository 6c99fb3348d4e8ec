package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("X-Custom", "value").
		Data(map[string]int{"n": 1}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Error("custom header not set")
	}
	if w.Body.String() != `{"n":1}` {
		t.Errorf("Body = %q", w.Body.String())
	}
}

func TestJSONResponseBuilder_NoBody(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("code=%d body=%q", w.Code, w.Body.String())
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Data(func() {}).Write(w)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("code=%d", w.Code)
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name string
		b    *JSONResponseBuilder
		code int
		msg  string
	}{
		{"bad request", BadRequestError("bad"), http.StatusBadRequest, "bad"},
		{"not found", NotFoundError("nope"), http.StatusNotFound, "nope"},
		{"internal default text", InternalServerError(""), http.StatusInternalServerError, "Internal Server Error"},
		{"unauthorized", UnauthorizedError("login", "/login"), http.StatusUnauthorized, "login"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.b.Write(w)
			if w.Code != tt.code {
				t.Fatalf("code=%d, want %d", w.Code, tt.code)
			}
			var body ErrorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatal(err)
			}
			if body.Status != tt.code || body.Message != tt.msg {
				t.Fatalf("body = %+v", body)
			}
		})
	}
}
