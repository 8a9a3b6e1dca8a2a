package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/anatoliahealth/medtour-crm/internal/tenancy"
	"github.com/anatoliahealth/medtour-crm/pkg/logging"
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// RequestLogger emits structured logs for every HTTP request. Paths and org
// ids are logged; request bodies never are, since lead text is sensitive.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := r.Header.Get("X-Request-ID")
			if reqID == "" {
				reqID = uuid.NewString()
			}
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"request_id", reqID,
				"remote_ip", r.RemoteAddr,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if orgID, ok := tenancy.OrgIDFromContext(r.Context()); ok {
				attrs = append(attrs, "org_id", orgID)
			}
			logger.Info("request completed", attrs...)
		})
	}
}
