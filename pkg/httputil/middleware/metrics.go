package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/edgeflare/dbapi/pkg/metrics"
)

// Metrics records request counts and latencies labelled by the matched route pattern. It must
// be installed with Router.Use so that it runs after routing.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := NewResponseRecorder(w)

		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(rec.StatusCode)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
