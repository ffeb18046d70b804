package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"certchain/internal/platform/health"
	"certchain/internal/platform/metrics"
	"certchain/internal/platform/middleware"
)

// RequestTimeout bounds synchronous handlers. Submissions continue in the
// background past it.
const RequestTimeout = 30 * time.Second

// NewRouter wires all endpoints with the shared middleware stack.
// metricsHandler may be nil.
func NewRouter(h *Handler, hh *health.Handler, metricsHandler http.Handler, logger *slog.Logger, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger, m))

	hh.Register(r)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return http.TimeoutHandler(next, RequestTimeout, `{"error":"timeout"}`)
		})
		h.Register(r)
	})
	return r
}
