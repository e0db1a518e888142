package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"mitabo/internal/metrics"
)

// Metrics records request count, duration, and in-flight gauge for
// every request.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		path := normalizePath(r.URL.Path)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

// normalizePath collapses dynamic segments so label cardinality stays
// bounded.
func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/media/"):
		return "/media/*"
	case strings.HasPrefix(path, "/hls/"):
		return "/hls/*"
	case strings.HasPrefix(path, "/api/videos/"):
		rest := strings.TrimPrefix(path, "/api/videos/")
		parts := strings.SplitN(rest, "/", 2)
		if len(parts) == 2 {
			return "/api/videos/{id}/" + parts[1]
		}
		return "/api/videos/{id}"
	case strings.HasPrefix(path, "/api/users/"):
		rest := strings.TrimPrefix(path, "/api/users/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/api/users/{username}" + rest[i:]
		}
		return "/api/users/{username}"
	case strings.HasPrefix(path, "/api/admin/users/"):
		rest := strings.TrimPrefix(path, "/api/admin/users/")
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			return "/api/admin/users/{id}" + rest[i:]
		}
		return "/api/admin/users/{id}"
	default:
		return path
	}
}
