package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mystari/mystari-api/internal/model"
	"github.com/mystari/mystari-api/internal/services/auth"
)

// APIError represents an API error response
type APIError struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Fields  []model.FieldError `json:"fields,omitempty"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest     = "INVALID_REQUEST"
	CodeInvalidID          = "INVALID_ID"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeEmailTaken         = "EMAIL_TAKEN"
	CodeUsernameTaken      = "USERNAME_TAKEN"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeUnauthenticated    = "UNAUTHENTICATED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodePlayerNotFound     = "PLAYER_NOT_FOUND"
	CodeNotFound           = "NOT_FOUND"
	CodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	CodeUnavailable        = "UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// Status returns the HTTP status WriteError would use for err
func Status(err error) int {
	return toHTTPError(err).status
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	// Check for specific error types
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return &httpError{http.StatusBadRequest, APIError{CodeValidationFailed, "Invalid fields", ve.Fields}}
	}

	switch {
	// Map model errors
	case errors.Is(err, model.ErrInvalidID):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidID, Message: "Invalid player ID"}}
	case errors.Is(err, model.ErrEmailTaken):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeEmailTaken, Message: "Email already in use"}}
	case errors.Is(err, model.ErrUsernameTaken):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeUsernameTaken, Message: "Username already in use"}}
	case errors.Is(err, model.ErrPlayerNotFound):
		return &httpError{http.StatusNotFound, APIError{Code: CodePlayerNotFound, Message: "Player not found"}}

	// Map auth errors
	case errors.Is(err, auth.ErrInvalidCredentials):
		return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidCredentials, Message: "Invalid credentials"}}
	case errors.Is(err, auth.ErrInvalidToken):
		return &httpError{http.StatusUnauthorized, APIError{Code: CodeInvalidToken, Message: "Invalid token"}}

	default:
		return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{Code: CodeInvalidRequest, Message: message}}
}

// NewUnauthenticatedError is returned when no token was presented
func NewUnauthenticatedError() error {
	return &httpError{http.StatusUnauthorized, APIError{Code: CodeUnauthenticated, Message: "No token, authorization denied"}}
}

// NewNotFoundError creates a generic not found error
func NewNotFoundError() error {
	return &httpError{http.StatusNotFound, APIError{Code: CodeNotFound, Message: "Not found"}}
}

// NewMethodNotAllowedError is returned when the path exists for other methods
func NewMethodNotAllowedError() error {
	return &httpError{http.StatusMethodNotAllowed, APIError{Code: CodeMethodNotAllowed, Message: "Method not allowed"}}
}

// NewUnavailableError is returned when a dependency is unreachable
func NewUnavailableError() error {
	return &httpError{http.StatusServiceUnavailable, APIError{Code: CodeUnavailable, Message: "Service unavailable"}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{Code: CodeInternalError, Message: "Server error"}}
}
