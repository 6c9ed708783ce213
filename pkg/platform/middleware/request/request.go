// Package request provides request ID middleware for tracing requests
// across logs, audit events, and error responses.
package request

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"conveyr/pkg/requestcontext"
)

// HeaderRequestID is the header used to propagate request IDs from clients
// and gateways.
const HeaderRequestID = "X-Request-ID"

// RequestID assigns each request an ID, honoring one supplied by the caller.
// The ID is stored in the context and echoed back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	return requestcontext.RequestID(ctx)
}
