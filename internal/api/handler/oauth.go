package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/mystari/mystari-api/internal/api/response"
	"github.com/mystari/mystari-api/internal/dependencies/random"
	"github.com/mystari/mystari-api/internal/metrics"
	"github.com/mystari/mystari-api/internal/services/auth"
	"github.com/mystari/mystari-api/internal/services/oauth"
)

// StateCookie holds the OAuth state between redirect and callback
const StateCookie = "oauth_state"

const (
	stateBytes    = 16
	stateLifetime = 10 * time.Minute
)

// OAuthConfig holds the redirect targets after a provider callback
type OAuthConfig struct {
	CallbackPath    string
	SuccessRedirect string
	FailureRedirect string
	Cookies         CookieConfig
}

// OAuthHandler delegates sign-in to an external provider and ends in the
// same session token as a password login
type OAuthHandler struct {
	provider    oauth.Provider
	authService *auth.Service
	random      random.Random
	metrics     *metrics.Metrics
	config      OAuthConfig
	logger      *slog.Logger
}

// NewOAuthHandler creates a new OAuth handler
func NewOAuthHandler(provider oauth.Provider, authService *auth.Service, rnd random.Random, m *metrics.Metrics, cfg OAuthConfig, logger *slog.Logger) *OAuthHandler {
	return &OAuthHandler{
		provider:    provider,
		authService: authService,
		random:      rnd,
		metrics:     m,
		config:      cfg,
		logger:      logger,
	}
}

// Start handles GET /api/auth/{provider} by redirecting to the consent page
func (h *OAuthHandler) Start(w http.ResponseWriter, r *http.Request) {
	state := h.random.Token(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    state,
		Path:     h.config.CallbackPath,
		MaxAge:   int(stateLifetime.Seconds()),
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	response.Redirect(w, r, h.provider.AuthCodeURL(state))
}

// Callback handles GET /api/auth/{provider}/callback
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// The state is single use
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookie,
		Value:    "",
		Path:     h.config.CallbackPath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	query := r.URL.Query()
	if providerErr := query.Get("error"); providerErr != "" {
		h.fail(w, r, "provider returned error", slog.String("provider_error", providerErr))
		return
	}

	cookie, err := r.Cookie(StateCookie)
	state := query.Get("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		h.fail(w, r, "state mismatch")
		return
	}

	code := query.Get("code")
	if code == "" {
		h.fail(w, r, "missing authorization code")
		return
	}

	profile, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, r, "exchange failed", slog.String("error", err.Error()))
		return
	}

	userID, err := h.authService.ExchangeExternalIdentity(r.Context(), auth.ExternalProfile{
		Provider: h.provider.Name(),
		Subject:  profile.Subject,
		Email:    profile.Email,
		Name:     profile.Name,
	})
	if err != nil {
		h.fail(w, r, "identity exchange failed", slog.String("error", err.Error()))
		return
	}

	session, err := h.authService.IssueSession(userID)
	if err != nil {
		h.fail(w, r, "issuing session failed", slog.String("error", err.Error()))
		return
	}

	h.metrics.RecordAuth(metrics.OpOAuth, metrics.OutcomeSuccess)
	setTokenCookie(w, h.config.Cookies, session.Token, session.ExpiresAt)
	response.Redirect(w, r, h.config.SuccessRedirect)
}

func (h *OAuthHandler) fail(w http.ResponseWriter, r *http.Request, reason string, attrs ...any) {
	h.metrics.RecordAuth(metrics.OpOAuth, metrics.OutcomeRejected)
	h.logger.Warn("oauth sign-in failed", append([]any{
		slog.String("provider", h.provider.Name()),
		slog.String("reason", reason),
	}, attrs...)...)
	response.Redirect(w, r, h.config.FailureRedirect)
}
