package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mystari/mystari-api/internal/api/apierr"
	"github.com/mystari/mystari-api/internal/metrics"
	"github.com/mystari/mystari-api/internal/middleware"
)

// Recovery creates panic recovery middleware for the API.
// Recovered panics are counted and answered with the JSON internal error body.
func Recovery(logger *slog.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return middleware.Recovery(logger, func(w http.ResponseWriter, _ *http.Request, _ any) {
		m.PanicsTotal.Inc()
		apierr.WriteError(w, apierr.NewInternalError())
	})
}
