package api_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tinywideclouds/go-push-dispatch/internal/api"
)

func TestSharedSecretMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	testCases := []struct {
		name           string
		secret         string
		headers        map[string]string
		expectedStatus int
		expectedBody   string
	}{
		{"x-token accepted", "s3cret", map[string]string{"x-token": "s3cret"}, http.StatusTeapot, ""},
		{"Bearer accepted", "s3cret", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusTeapot, ""},
		{"Lowercase bearer accepted", "s3cret", map[string]string{"Authorization": "bearer s3cret"}, http.StatusTeapot, ""},
		{"x-token wins over Authorization", "s3cret", map[string]string{"x-token": "s3cret", "Authorization": "Bearer nope"}, http.StatusTeapot, ""},
		{"No credentials", "s3cret", nil, http.StatusBadRequest, "Missing auth token"},
		{"Wrong x-token", "s3cret", map[string]string{"x-token": "guess"}, http.StatusUnauthorized, "Missing or invalid token"},
		{"Prefix of secret", "s3cret", map[string]string{"x-token": "s3cre"}, http.StatusUnauthorized, "Missing or invalid token"},
		{"Wrong scheme", "s3cret", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized, "Missing or invalid token"},
		{"Malformed Authorization", "s3cret", map[string]string{"Authorization": "s3cret"}, http.StatusUnauthorized, "Missing or invalid token"},
		{"Secret not configured", "", map[string]string{"x-token": "anything"}, http.StatusInternalServerError,
			"Server misconfigured: Missing MC_SENDPUSH_TOKEN env var"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := api.NewSharedSecretMiddleware(tc.secret, newTestLogger())(okHandler)
			req := httptest.NewRequest(http.MethodPost, "/dispatch", nil)
			for k, v := range tc.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()

			h.ServeHTTP(w, req)

			assert.Equal(t, tc.expectedStatus, w.Code)
			if tc.expectedBody != "" {
				assert.JSONEq(t, `{"ok":false,"error":"`+tc.expectedBody+`"}`, w.Body.String())
			}
		})
	}
}
