// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/constants"
	"github.com/taibuivan/sleeporgive/internal/platform/middleware"
	"github.com/taibuivan/sleeporgive/internal/platform/sec"
)

var ok = http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
	writer.WriteHeader(http.StatusOK)
})

func requestFrom(ip string) *http.Request {
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.RemoteAddr = ip + ":4242"
	return request
}

/*
TestRateLimit_PerIP verifies that each client IP owns its own bucket.
*/
func TestRateLimit_PerIP(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handler := middleware.RateLimit(ctx, middleware.BurstLimit{RPS: 0.001, Burst: 1})(ok)

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, requestFrom("10.0.0.1"))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, requestFrom("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get(constants.HeaderRetryAfter))

	other := httptest.NewRecorder()
	handler.ServeHTTP(other, requestFrom("10.0.0.2"))
	assert.Equal(t, http.StatusOK, other.Code)
}

/*
TestRealIP verifies the precedence of proxy headers over the peer address.
*/
func TestRealIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"peer", nil, "192.0.2.7"},
		{"real_ip", map[string]string{constants.HeaderXRealIP: "198.51.100.1"}, "198.51.100.1"},
		{"forwarded_first_hop", map[string]string{constants.HeaderXForwardedFor: "203.0.113.5, 10.0.0.1"}, "203.0.113.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := requestFrom("192.0.2.7")
			for key, value := range tt.headers {
				request.Header.Set(key, value)
			}
			assert.Equal(t, tt.want, middleware.RealIP(request))
		})
	}
}

type verifierFunc func(bearer, cookie string) *sec.Principal

func (fn verifierFunc) Principal(_ context.Context, bearer, cookie string) (*sec.Principal, error) {
	return fn(bearer, cookie), nil
}

/*
TestAuthenticate verifies that both session halves are required.
*/
func TestAuthenticate(t *testing.T) {
	verifier := verifierFunc(func(bearer, cookie string) *sec.Principal {
		if bearer == "b" && cookie == "c" {
			return &sec.Principal{UserID: "user-1"}
		}
		return nil
	})
	handler := middleware.Authenticate(verifier)(middleware.RequireAuth(ok))

	tests := []struct {
		name   string
		header string
		cookie string
		status int
	}{
		{"anonymous", "", "", http.StatusUnauthorized},
		{"bad_scheme", "Basic b", "c", http.StatusUnauthorized},
		{"missing_cookie", "Bearer b", "", http.StatusUnauthorized},
		{"valid", "Bearer b", "c", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := requestFrom("192.0.2.7")
			if tt.header != "" {
				request.Header.Set(constants.HeaderAuthorization, tt.header)
			}
			if tt.cookie != "" {
				request.AddCookie(&http.Cookie{Name: constants.SessionCookieName, Value: tt.cookie})
			}

			recorder := httptest.NewRecorder()
			handler.ServeHTTP(recorder, request)
			require.Equal(t, tt.status, recorder.Code)
		})
	}
}
