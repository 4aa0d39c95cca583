package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

const requestTimeout = 15 * time.Second

// Check reports whether one dependency is reachable.
type Check func(ctx context.Context) error

// NewRouter builds the root router. /healthz is liveness only; readiness runs every
// named check and answers 503 when any of them fails.
func NewRouter(log zerolog.Logger, ready map[string]Check) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, AccessLog(log))
	r.Use(middleware.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()

		status := make(map[string]string, len(ready))
		code := http.StatusOK
		for name, check := range ready {
			if err := check(ctx); err != nil {
				log.Warn().Err(err).Str("check", name).Msg("readiness check failed")
				status[name] = "down"
				code = http.StatusServiceUnavailable
				continue
			}
			status[name] = "up"
		}
		writeJSON(w, code, status)
	})
	return r
}
