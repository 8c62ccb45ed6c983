package response

import (
	"github.com/mystari/mystari-api/internal/services/auth"
)

// TokenResponse is the response for authentication endpoints
type TokenResponse struct {
	Token string `json:"token"`
}

// TokenResponseFromSession creates a TokenResponse from a session
func TokenResponseFromSession(s *auth.Session) TokenResponse {
	return TokenResponse{Token: s.Token}
}

// HealthResponse reports service status
type HealthResponse struct {
	Status string `json:"status"`
}
