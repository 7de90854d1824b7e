package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, origins []string, method, origin string) *httptest.ResponseRecorder {
	t.Helper()
	handler := CORS(origins, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(method, "/api/users/login", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCORSWildcard(t *testing.T) {
	rec := corsRequest(t, []string{"*"}, http.MethodPost, "https://app.example")

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORSEchoesAllowedOrigin(t *testing.T) {
	rec := corsRequest(t, []string{"https://app.example"}, http.MethodPost, "https://App.Example")

	assert.Equal(t, "https://App.Example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSSkipsUnknownOrigin(t *testing.T) {
	rec := corsRequest(t, []string{"https://app.example"}, http.MethodPost, "https://evil.example")

	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCORSAnswersPreflight(t *testing.T) {
	rec := corsRequest(t, []string{"*"}, http.MethodOptions, "https://app.example")

	// Preflight never reaches the wrapped handler.
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
