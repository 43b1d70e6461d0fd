package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/tasks-api/internal/api/shared"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceMiddleware(t *testing.T) {
	buf, log := logger.NewCaptureLogger(t)

	var seen string
	handler := NewTraceMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = shared.GetTraceID(r.Context())
		logger.FromContext(r.Context()).Info("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generates trace id", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		_, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, seen, rec.Header().Get(shared.TraceIDHeader))
		logger.AssertLogField(t, buf, "trace_id", seen)
		logger.AssertLogField(t, buf, "status", float64(http.StatusTeapot))
	})

	t.Run("reuses client trace id", func(t *testing.T) {
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(shared.TraceIDHeader, id)

		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, id, seen)
	})

	t.Run("replaces malformed trace id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(shared.TraceIDHeader, "not a uuid")

		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.NotEqual(t, "not a uuid", seen)
	})
}
