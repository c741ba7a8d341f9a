package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tinywideclouds/go-push-dispatch/pkg/dispatch"
)

// SecretEnvVar names the setting holding the shared secret.
const SecretEnvVar = "MC_SENDPUSH_TOKEN"

// NewSharedSecretMiddleware admits requests carrying the configured secret in
// either the x-token header or an Authorization: Bearer header.
//
// An empty secret is a server misconfiguration and rejects every request with
// 500, so a missing setting never turns into an open endpoint.
func NewSharedSecretMiddleware(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	logger = logger.With("component", "SharedSecretAuth")
	expected := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(expected) == 0 {
				err := &dispatch.ConfigError{Key: SecretEnvVar}
				logger.Error("Rejecting request: shared secret not configured", "err", err)
				WriteError(w, http.StatusInternalServerError, err.Error())
				return
			}

			presented, present := presentedSecret(r)
			if !present {
				WriteError(w, http.StatusBadRequest, "Missing auth token")
				return
			}
			if subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				logger.Warn("Rejecting request: invalid shared secret", "remote_addr", r.RemoteAddr)
				WriteError(w, http.StatusUnauthorized, "Missing or invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// presentedSecret extracts the caller's secret. x-token wins over
// Authorization. present is false only when neither header was sent; a
// malformed Authorization header is present but yields no secret.
func presentedSecret(r *http.Request) (secret string, present bool) {
	if v := r.Header.Get("X-Token"); v != "" {
		return v, true
	}
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return "", false
	}
	scheme, value, ok := strings.Cut(authz, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", true
	}
	return strings.TrimSpace(value), true
}
