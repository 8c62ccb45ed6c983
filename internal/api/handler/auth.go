package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/mystari/mystari-api/internal/api/middleware"
	"github.com/mystari/mystari-api/internal/api/request"
	"github.com/mystari/mystari-api/internal/api/response"
	"github.com/mystari/mystari-api/internal/metrics"
	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/services/auth"
)

// AuthHandler handles registration, login and password changes
type AuthHandler struct {
	authService *auth.Service
	metrics     *metrics.Metrics
	cookies     CookieConfig
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *auth.Service, m *metrics.Metrics, cookies CookieConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		metrics:     m,
		cookies:     cookies,
		logger:      logger,
	}
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req request.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		h.metrics.RecordAuth(metrics.OpRegister, outcome(err))
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.metrics.RecordAuth(metrics.OpRegister, metrics.OutcomeSuccess)
	setTokenCookie(w, h.cookies, session.Token, session.ExpiresAt)
	response.JSON(w, http.StatusCreated, response.TokenResponseFromSession(session))
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req request.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.metrics.RecordAuth(metrics.OpLogin, outcome(err))
		writeServiceError(w, r, h.logger, err)
		return
	}

	h.metrics.RecordAuth(metrics.OpLogin, metrics.OutcomeSuccess)
	setTokenCookie(w, h.cookies, session.Token, session.ExpiresAt)
	response.JSON(w, http.StatusOK, response.TokenResponseFromSession(session))
}

// ChangePassword handles PUT /api/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.MustGetClaims(r.Context())
	userID, err := model.ParseID(claims.UserID)
	if err != nil {
		WriteError(w, auth.ErrInvalidToken)
		return
	}

	var req request.ChangePasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, err)
		return
	}

	if err := h.authService.ChangePassword(r.Context(), userID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	response.NoContent(w)
}

// outcome classifies a failed auth attempt for metrics
func outcome(err error) string {
	var ve *model.ValidationError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, model.ErrEmailTaken), errors.As(err, &ve):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
