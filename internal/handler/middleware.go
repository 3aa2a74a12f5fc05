package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/fertilizer-advisor/internal/metrics"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const maxRequestIDLength = 128

// RequestID tags each request with an ID and a request-scoped logger
// reachable through zerolog.Ctx.
func RequestID(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > maxRequestIDLength {
				id = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, id)

			reqLogger := logger.With().Str("request_id", id).Logger()
			next.ServeHTTP(w, r.WithContext(reqLogger.WithContext(r.Context())))
		})
	}
}

// AccessLog logs every request and, when m is not nil, records HTTP metrics
// labelled by route pattern.
func AccessLog(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(start)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			if m != nil {
				m.RecordHTTPRequest(r.Method, route, status, duration)
			}

			logAccess(zerolog.Ctx(r.Context()), status).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", duration).
				Str("remote_addr", r.RemoteAddr).
				Msg("request")
		})
	}
}

// logAccess picks the level for a request of the given status.
func logAccess(logger *zerolog.Logger, status int) *zerolog.Event {
	switch {
	case status >= http.StatusInternalServerError:
		return logger.Error()
	case status >= http.StatusBadRequest:
		return logger.Warn()
	default:
		return logger.Info()
	}
}

// BodyLimit caps request bodies at limit bytes. A non-positive limit disables the cap.
func BodyLimit(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
