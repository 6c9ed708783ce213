package testutil

import (
	"context"
	"net/http"
	"time"

	id "conveyr/pkg/domain"
	authmw "conveyr/pkg/platform/middleware/auth"
	"conveyr/pkg/requestcontext"
)

// WithActor adds an authenticated participant to the request context.
// This simulates what the auth middleware would do for authenticated requests.
// If the participantID is not a valid UUID, it will not be added to the context.
func WithActor(req *http.Request, participantID string) *http.Request {
	parsed, err := id.ParseParticipantID(participantID)
	if err != nil {
		return req
	}
	ctx := context.WithValue(req.Context(), authmw.ContextKeyParticipantID, participantID)
	ctx = requestcontext.WithActorID(ctx, parsed)
	return req.WithContext(ctx)
}

// WithTenant adds a tenant ID to the request context.
func WithTenant(req *http.Request, tenantID string) *http.Request {
	ctx := context.WithValue(req.Context(), authmw.ContextKeyTenantID, tenantID)
	return req.WithContext(ctx)
}

// WithRequestTime pins the request clock so time-dependent behaviour such as
// release expiry can be tested deterministically.
func WithRequestTime(req *http.Request, at time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), at))
}

// WithContextValue adds an arbitrary key-value pair to the request context.
func WithContextValue(req *http.Request, key, value any) *http.Request {
	ctx := context.WithValue(req.Context(), key, value)
	return req.WithContext(ctx)
}
