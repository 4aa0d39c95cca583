package httpx

import (
	"fmt"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/ariefcatur/chulbuli-jewels.git/internal/auth"
	"github.com/ariefcatur/chulbuli-jewels.git/internal/redisx"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// AccessLog writes one structured line per request and turns panics into a 500 envelope.
func AccessLog(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			// identity is attached further down the chain, so read it through a holder
			var userID string
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					log.Error().
						Str("request_id", middleware.GetReqID(r.Context())).
						Str("panic", fmt.Sprint(rec)).
						Bytes("stack", debug.Stack()).
						Msg("handler panic")
					if ww.Status() == 0 {
						writeError(ww, http.StatusInternalServerError, "Internal server error")
					}
				}

				ev := log.Info()
				switch {
				case ww.Status() >= 500:
					ev = log.Error()
				case ww.Status() >= 400:
					ev = log.Warn()
				}
				ev.Str("request_id", middleware.GetReqID(r.Context())).
					Str("user_id", userID).
					Str("method", r.Method).
					Str("url", r.URL.RequestURI()).
					Str("remote", r.RemoteAddr).
					Int("status", ww.Status()).
					Int("bytes", ww.BytesWritten()).
					Dur("duration", time.Since(start)).
					Msg("http request")
			}()

			next.ServeHTTP(ww, r.WithContext(withUserSink(r.Context(), &userID)))
		})
	}
}

// RateLimit rejects clients over the limiter's quota with 429. Redis failures let requests through.
func RateLimit(l *redisx.FixedWindow, log zerolog.Logger, msg string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			client := clientIP(r)
			ok, err := l.Allow(r.Context(), client)
			if err != nil {
				log.Warn().Err(err).Str("scope", l.Scope).Msg("rate limiter unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				log.Warn().Str("scope", l.Scope).Str("client", client).Msg("rate limit exceeded")
				retry := int(l.RetryAfter().Seconds() + 0.999)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Limit))
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": msg, "retryAfter": retry})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP returns the host part of RemoteAddr, which RealIP has already resolved from proxy headers.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// recordUser copies the authenticated user id into the access log holder, if any.
func recordUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sink := userSink(r.Context()); sink != nil {
			*sink = auth.UserID(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}
