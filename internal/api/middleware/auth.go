package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mystari/mystari-api/internal/api/apierr"
	"github.com/mystari/mystari-api/internal/metrics"
	"github.com/mystari/mystari-api/internal/services/auth"
)

// TokenCookie is the cookie that carries the session token for browser clients
const TokenCookie = "token"

type contextKey string

const claimsContextKey contextKey = "claims"

// TokenVerifier checks a session token
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// Auth creates the authentication gate. Requests without a token are
// rejected before verification; requests with a bad token are rejected
// after it. Admitted requests carry the claims in their context.
func Auth(tokens TokenVerifier, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				m.RecordAuth(metrics.OpGate, metrics.OutcomeRejected)
				apierr.WriteError(w, apierr.NewUnauthenticatedError())
				return
			}

			claims, err := tokens.Verify(token)
			if err != nil {
				m.RecordAuth(metrics.OpGate, metrics.OutcomeRejected)
				apierr.WriteError(w, auth.ErrInvalidToken)
				return
			}

			m.RecordAuth(metrics.OpGate, metrics.OutcomeSuccess)
			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken extracts the session token from the request
func extractToken(r *http.Request) string {
	// Check Authorization header first
	// The scheme name is case-insensitive
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}

	// Fall back to cookie
	cookie, err := r.Cookie(TokenCookie)
	if err == nil {
		return cookie.Value
	}

	return ""
}

// GetClaims returns the verified claims from the request context
func GetClaims(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*auth.Claims)
	return claims
}

// MustGetClaims returns the verified claims or panics
func MustGetClaims(ctx context.Context) *auth.Claims {
	claims := GetClaims(ctx)
	if claims == nil {
		panic("no claims in context - auth middleware not applied?")
	}
	return claims
}
