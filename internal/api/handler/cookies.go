package handler

import (
	"net/http"
	"time"

	"github.com/mystari/mystari-api/internal/api/middleware"
)

// CookieConfig controls cookie attributes
type CookieConfig struct {
	Secure bool
}

// setTokenCookie stores the session token for cookie-carrier clients
func setTokenCookie(w http.ResponseWriter, cfg CookieConfig, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
