// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/constants"
	"github.com/taibuivan/sleeporgive/internal/platform/ctxutil"
	"github.com/taibuivan/sleeporgive/internal/platform/respond"
	"github.com/taibuivan/sleeporgive/internal/platform/sec"
)

// SessionVerifier resolves a bearer token and its companion cookie into a principal.
//
// Implementations return (nil, nil) when the pair does not identify a live session.
type SessionVerifier interface {
	Principal(ctx context.Context, bearer, cookie string) (*sec.Principal, error)
}

// Authenticate resolves the session presented by the request.
//
// # Flow
//  1. Read 'Authorization: Bearer <token>'. Without it the request is anonymous.
//  2. Read the session cookie, if any, as the browser-bound second factor.
//  3. Ask the [SessionVerifier]; any mismatch is a plain 401.
//  4. Inject [*sec.Principal] into the request context.
func Authenticate(verifier SessionVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get(constants.HeaderAuthorization)

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			scheme, bearer, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || bearer == "" {
				respond.Error(writer, request, apperr.Unauthorized("Invalid authorization format"))
				return
			}

			var cookie string
			if c, err := request.Cookie(constants.SessionCookieName); err == nil {
				cookie = c.Value
			}

			// ── 3. Session Verification ───────────────────────────────────────
			principal, err := verifier.Principal(request.Context(), bearer, cookie)
			if err != nil {
				respond.Error(writer, request, err)
				return
			}
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Invalid or expired session"))
				return
			}

			if recorder, ok := writer.(principalRecorder); ok {
				recorder.recordUser(principal.UserID)
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetPrincipal(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}
		next.ServeHTTP(writer, request)
	})
}
