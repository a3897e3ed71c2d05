package observe

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimMethod(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"GET /search", "/search"},
		{"GET /search/{kind}", "/search/{kind}"},
		{"GET /artists/{id}/top-tracks", "/artists/{id}/top-tracks"},
		{"POST /token", "/token"},
		{"DELETE /items/123", "/items/123"},
		{"HEAD /status", "/status"},
		{"OPTIONS /cors", "/cors"},
		{"/tracks", "/tracks"},
		{"INVALID /path", "INVALID /path"},
		{"get /test", "get /test"},
		{"GET", "GET"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, TrimMethod(tt.pattern))
		})
	}
}

func TestMux_ServesTracedAndUntracedRoutes(t *testing.T) {
	mux := NewMux(http.NewServeMux())

	mux.Handle("GET /tracks/{id}", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("track " + r.PathValue("id")))
	}))
	mux.HandleUntraced("GET /healthcheck", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tracks/abc", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "track abc", rr.Body.String())

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/unknown", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
