// Package httpapi composes the module handlers into the service's HTTP
// surface. Handlers own their routes; this package owns the shared
// middleware chain and the operational endpoints.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"anchorid/internal/platform/middleware"
)

// Registrar is anything that can attach its routes to the router.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports readiness of a backing dependency.
type HealthChecker func(r *http.Request) error

// Limited wraps a Registrar so its routes mount behind extra middleware,
// such as a rate limiter on the biometric endpoints.
func Limited(h Registrar, mw ...func(http.Handler) http.Handler) Registrar {
	return limitedRegistrar{inner: h, middleware: mw}
}

type limitedRegistrar struct {
	inner      Registrar
	middleware []func(http.Handler) http.Handler
}

func (l limitedRegistrar) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(l.middleware...)
		l.inner.Register(gr)
	})
}

// NewRouter wires the shared middleware chain, the operational endpoints,
// and every module handler.
func NewRouter(logger *slog.Logger, health HealthChecker, handlers ...Registrar) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if health != nil {
			if err := health(req); err != nil {
				logger.WarnContext(req.Context(), "health check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("unavailable\n"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	for _, h := range handlers {
		h.Register(r)
	}
	return r
}
