package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	tests := []struct {
		name      string
		handler   http.HandlerFunc
		wantLevel string
		wantCode  int
		wantBytes float64
	}{
		{
			name:      "implicit 200",
			handler:   func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("hello")) },
			wantLevel: "INFO", wantCode: 200, wantBytes: 5,
		},
		{
			name:      "client error",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNotFound) },
			wantLevel: "WARN", wantCode: 404,
		},
		{
			name:      "server error",
			handler:   func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			wantLevel: "ERROR", wantCode: 503,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			h := chimiddleware.RequestID(Logger(logger)(tt.handler))
			req := httptest.NewRequest(http.MethodGet, "/auth/github/callback?code=secret&state=s", nil)
			h.ServeHTTP(httptest.NewRecorder(), req)

			var entry map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))

			assert.Equal(t, tt.wantLevel, entry["level"])
			assert.Equal(t, "request completed", entry["msg"])
			assert.Equal(t, "/auth/github/callback", entry["path"])
			assert.Equal(t, float64(tt.wantCode), entry["status"])
			assert.Equal(t, tt.wantBytes, entry["bytes"])
			assert.NotEmpty(t, entry["requestID"])
			assert.NotContains(t, buf.String(), "secret")
		})
	}
}
