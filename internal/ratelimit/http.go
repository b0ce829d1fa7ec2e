// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ratelimit

import (
	"net/http"

	"github.com/taibuivan/sleeporgive/internal/platform/middleware"
	"github.com/taibuivan/sleeporgive/internal/platform/respond"
)

// KeyFunc picks the subject a request is limited by.
type KeyFunc func(request *http.Request) string

// ByClientIP limits by the proxy-aware client address.
func ByClientIP(request *http.Request) string {
	return middleware.RealIP(request)
}

/*
Middleware enforces limiter on every request, scoped by key.

The RateLimit-* headers are written on every response, allowed or not.
Denied requests get a 429 with Retry-After.
*/
func Middleware(service *Service, limiter Limiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			decision, err := service.Bump(request.Context(), limiter.For(key(request)))
			if err != nil {
				respond.Error(writer, request, err)
				return
			}

			decision.WriteHeaders(writer.Header())

			if err := decision.Err("requests"); err != nil {
				respond.Error(writer, request, err)
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
