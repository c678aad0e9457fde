package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/nomadride/surge-engine/internal/domain/types"
	wrap "github.com/nomadride/surge-engine/pkg/logger/wrapper"
)

const requestIDHeader = "X-Request-ID"

// RequestID propagates the caller's request ID or mints one, making every
// log line of the request correlatable.
func (h *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := types.WithRequestIDContext(r.Context(), requestID)
		ctx = wrap.WithRequestID(ctx, requestID)

		w.Header().Set(requestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
