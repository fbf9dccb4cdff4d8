package middleware

import (
	"context"
	"net/http"
	"time"
)

// RequestObserver records served requests. Implemented by the metrics package.
type RequestObserver interface {
	ObserveRequest(method, route string, status int, elapsed time.Duration)
}

type routeKey struct{}

// SetRoute records the matched route pattern for the Metrics middleware.
// The router calls it from inside the matched handler.
func SetRoute(ctx context.Context, pattern string) {
	if holder, ok := ctx.Value(routeKey{}).(*string); ok {
		*holder = pattern
	}
}

// Metrics records request count and latency labelled by route pattern, so
// path parameters do not explode label cardinality.
func Metrics(observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			route := "unmatched"
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r.WithContext(context.WithValue(r.Context(), routeKey{}, &route)))

			observer.ObserveRequest(r.Method, route, rw.statusCode, time.Since(start))
		})
	}
}
