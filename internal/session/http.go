// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package session

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/constants"
	"github.com/taibuivan/sleeporgive/internal/platform/respond"
)

// Handler exposes the logout endpoint.
type Handler struct {
	service      *Service
	cookieSecure bool
}

// NewHandler creates a session handler.
func NewHandler(service *Service, cookieSecure bool) *Handler {
	return &Handler{service: service, cookieSecure: cookieSecure}
}

// Routes mounts POST /logout.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/", handler.logout)
	return router
}

// logout handles POST /logout
func (handler *Handler) logout(writer http.ResponseWriter, request *http.Request) {
	scheme, bearer, found := strings.Cut(request.Header.Get(constants.HeaderAuthorization), " ")
	if !found || !strings.EqualFold(scheme, "bearer") || bearer == "" {
		respond.Error(writer, request, apperr.ValidationError("Missing Authorization header"))
		return
	}

	if err := handler.service.Revoke(request.Context(), bearer); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ClearCookie(writer, handler.cookieSecure)
	respond.NoContent(writer)
}

// # Cookie Helpers

// SetCookie hands the browser-bound half of a new session to the client.
func SetCookie(writer http.ResponseWriter, value string, secure bool) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    value,
		Path:     constants.SessionCookiePath,
		MaxAge:   int(constants.SessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(writer http.ResponseWriter, secure bool) {
	http.SetCookie(writer, &http.Cookie{
		Name:     constants.SessionCookieName,
		Value:    "",
		Path:     constants.SessionCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
