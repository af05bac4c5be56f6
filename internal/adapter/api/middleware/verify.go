package middleware

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/user/carewatch/internal/adapter/metrics"
	"github.com/user/carewatch/internal/domain"
)

const (
	signatureHeader = "X-Slack-Signature"
	timestampHeader = "X-Slack-Request-Timestamp"

	maxEventBodySize = 1 << 20
)

type contextKey string

const orgIDKey contextKey = "org_id"

// OrgID returns the tenant resolved by the verification middleware.
func OrgID(ctx context.Context) string {
	org, _ := ctx.Value(orgIDKey).(string)
	return org
}

// VerifySignature is a middleware factory that authenticates inbound platform
// callbacks. It checks the v0 HMAC signature against the tenant's signing
// secret and rejects requests whose timestamp falls outside the acceptance
// window. The tenant comes from the org query parameter, falling back to
// defaultOrg for single-tenant deployments.
func VerifySignature(tenants domain.TenantConfigRepository, defaultOrg string, maxAge time.Duration, m *metrics.IntakeMetrics, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org := r.URL.Query().Get("org")
			if org == "" {
				org = defaultOrg
			}

			secret, err := tenants.SigningSecret(r.Context(), org)
			if err != nil {
				logger.Error("signing secret lookup failed", "org_id", org, "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxEventBodySize))
			if err != nil {
				http.Error(w, "Payload too large", http.StatusRequestEntityTooLarge)
				return
			}

			ts := r.Header.Get(timestampHeader)
			if !validSignature(secret, ts, body, r.Header.Get(signatureHeader), maxAge) {
				m.Event("verify_failed")
				logger.Warn("signature verification failed", "org_id", org, "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// Hand the handler a replayable body and the resolved tenant.
			r.Body = io.NopCloser(bytes.NewReader(body))
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), orgIDKey, org)))
		})
	}
}

func validSignature(secret, timestamp string, body []byte, got string, maxAge time.Duration) bool {
	if secret == "" || timestamp == "" || got == "" {
		return false
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := time.Since(time.Unix(unix, 0))
	if age > maxAge || age < -maxAge {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + timestamp + ":"))
	mac.Write(body)
	want := "v0=" + hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(want), []byte(got))
}
