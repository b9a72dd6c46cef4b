package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/bloglist/pkg"
)

const RequestIDHeader = "X-Request-Id"

// clientIP falls back to the raw remote addr when the forwarded one is unusable.
func clientIP(r *http.Request) string {
	ip, err := pkg.ReadUserIP(r)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

type requestIDKey struct{}

// RequestIDFromContext returns the id assigned by LogRequest, or "" outside of a request.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// LogRequest tags each request with an id (reusing an incoming X-Request-Id) and logs it once served.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			begin := time.Now()
			resp := &responseWriter{w, http.StatusOK}
			next.ServeHTTP(resp, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, requestID)))

			log.WithFields(log.Fields{
				"request_id": requestID,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     resp.statusCode,
				"duration":   time.Since(begin).String(),
				"ip":         clientIP(r),
				"ua":         r.Header.Get("User-Agent"),
			}).Trace("request served")
		})
	}
}
