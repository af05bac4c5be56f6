package middleware

import (
	"log/slog"
	"net/http"

	"github.com/user/carewatch/internal/adapter/metrics"
)

const retryHeader = "X-Slack-Retry-Num"

// ReplayGuard is a middleware factory that short-circuits platform redelivery
// attempts. The platform retries when it does not get a fast 200; the
// original delivery was already admitted, so a retry is acknowledged without
// ever reaching the handler.
func ReplayGuard(m *metrics.IntakeMetrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if retry := r.Header.Get(retryHeader); retry != "" {
				m.Event("replay")
				logger.Debug("redelivery acknowledged without processing",
					"retry_num", retry,
					"retry_reason", r.Header.Get("X-Slack-Retry-Reason"),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(`{"ok":true}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
