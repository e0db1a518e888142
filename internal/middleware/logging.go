// Package middleware provides the HTTP middleware chain: request
// logging and Prometheus instrumentation.
package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"mitabo/internal/logging"
)

// statusRecorder captures the response status for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += int64(n)
	return n, err
}

// Logging logs each request on completion. When logStatic is false,
// successful requests under /media/ and /hls/ are skipped to keep
// segment fetches from flooding the log.
func Logging(logStatic bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			if !logStatic && rec.status < 400 && isStaticPath(r.URL.Path) {
				return
			}

			logging.Info("%s %s %s %d %dB %s",
				clientIP(r),
				sanitizeLogField(r.Method),
				sanitizeLogField(r.URL.RequestURI()),
				rec.status,
				rec.bytes,
				time.Since(start).Round(time.Microsecond),
			)
		})
	}
}

func isStaticPath(path string) bool {
	return strings.HasPrefix(path, "/media/") || strings.HasPrefix(path, "/hls/")
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return sanitizeLogField(strings.TrimSpace(fwd))
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// sanitizeLogField strips control characters so request data cannot
// forge log lines.
func sanitizeLogField(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
