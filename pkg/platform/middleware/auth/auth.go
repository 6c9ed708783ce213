package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	id "conveyr/pkg/domain"
	request "conveyr/pkg/platform/middleware/request"
	"conveyr/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	ParticipantID string
	TenantID      string
	JTI           string
}

// Context keys for storing authenticated participant information
type contextKeyParticipantID struct{}
type contextKeyTenantID struct{}

var (
	ContextKeyParticipantID = contextKeyParticipantID{}
	ContextKeyTenantID      = contextKeyTenantID{}
)

// GetParticipantID retrieves the authenticated participant ID from the context
func GetParticipantID(ctx context.Context) string {
	participantID, ok := ctx.Value(ContextKeyParticipantID).(string)
	if !ok {
		return ""
	}
	return participantID
}

// GetTenantID retrieves the tenant ID from the context
func GetTenantID(ctx context.Context) string {
	tenantID, ok := ctx.Value(ContextKeyTenantID).(string)
	if !ok {
		return ""
	}
	return tenantID
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			const bearerPrefix = "Bearer "
			if token, ok := strings.CutPrefix(authHeader, bearerPrefix); ok {
				claims, err := validator.ValidateToken(token)
				if err != nil {
					ctx := r.Context()
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", request.GetRequestID(ctx),
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
					return
				}

				ctx := r.Context()
				ctx = context.WithValue(ctx, ContextKeyParticipantID, claims.ParticipantID)
				ctx = context.WithValue(ctx, ContextKeyTenantID, claims.TenantID)

				// Downstream services read the actor from requestcontext so
				// audit entries carry the authenticated participant.
				if actorID, err := id.ParseParticipantID(claims.ParticipantID); err == nil {
					ctx = requestcontext.WithActorID(ctx, actorID)
				}

				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			// No Authorization header or invalid format
			ctx := r.Context()
			logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", request.GetRequestID(ctx),
			)
			writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
		})
	}
}
