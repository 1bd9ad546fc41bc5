package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iho/ledgerflow/internal/infrastructure/metrics"
)

// Metrics returns a middleware that records request counts and latency.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			path := normalizePath(r.URL.Path)

			m.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.statusCode)).Inc()
			m.HTTPDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// Path prefixes followed by an identifier, and the label that replaces it.
var identifiedPaths = []struct {
	prefix string
	label  string
}{
	{"/api/v1/accounts/", ":number"},
	{"/api/v1/transactions/", ":reference"},
}

// normalizePath normalizes URL paths to avoid high cardinality.
// /api/v1/accounts/ACC_ALICE -> /api/v1/accounts/:number
func normalizePath(path string) string {
	for _, p := range identifiedPaths {
		rest, ok := strings.CutPrefix(path, p.prefix)
		if !ok || rest == "" || rest[0] == '/' {
			continue
		}

		suffix := ""
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			suffix = rest[i:]
		}
		return p.prefix + p.label + suffix
	}

	return path
}
