package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/tasks-api/internal/api/shared"
	"github.com/phrazzld/tasks-api/internal/idempotency"
	"github.com/phrazzld/tasks-api/internal/platform/logger"
	"github.com/phrazzld/tasks-api/internal/redact"
)

// IdempotencyKeyHeader names the optional request header deduplicating writes.
const IdempotencyKeyHeader = "Idempotency-Key"

// maxIdempotencyKeyLength bounds keys stored in Redis.
const maxIdempotencyKeyLength = 128

// NewIdempotencyMiddleware rejects a repeated Idempotency-Key from the same
// owner with 409 Conflict. A key whose request fails (status >= 400) or
// panics is released so the client may retry it. Requests without the header pass
// through. It must run after authentication.
func NewIdempotencyMiddleware(deduper idempotency.Deduper) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			if len(key) > maxIdempotencyKeyLength {
				shared.RespondWithError(w, r, http.StatusBadRequest, "Idempotency key too long")
				return
			}

			userID, ok := shared.GetUserID(r.Context())
			if !ok {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "User ID not found or invalid")
				return
			}

			ctx := r.Context()
			log := logger.FromContext(ctx)

			added, err := deduper.Add(ctx, userID.String(), key)
			if err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable,
					"Idempotency store unavailable", err, shared.WithRetryAfter(1))
				return
			}
			if !added {
				log.Debug("duplicate idempotency key", slog.String("key", key))
				shared.RespondWithError(w, r, http.StatusConflict, "Duplicate request")
				return
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			completed := false
			// Runs while a handler panic unwinds, before any outer recoverer.
			defer func() {
				if completed && ww.Status() < http.StatusBadRequest {
					return
				}
				if err := deduper.Remove(context.WithoutCancel(ctx), userID.String(), key); err != nil {
					log.Warn("failed to release idempotency key",
						slog.String("key", key),
						redact.Attr(err))
				}
			}()

			next.ServeHTTP(ww, r)
			completed = true
		})
	}
}
