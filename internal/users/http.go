// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sleeporgive/internal/platform/middleware"
	requestutil "github.com/taibuivan/sleeporgive/internal/platform/request"
	"github.com/taibuivan/sleeporgive/internal/platform/respond"
)

// Handler exposes the account endpoints.
type Handler struct {
	service *Service
}

// NewHandler creates a users handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterJoin adds the sign-up availability checks to the /join router,
// which is shared with the verification and auth handlers.
func (handler *Handler) RegisterJoin(router chi.Router) {
	router.Get("/checkemail", handler.checkEmail)
	router.Get("/checkusername", handler.checkUsername)
}

// MeRoutes mounts the endpoints for the authenticated user.
func (handler *Handler) MeRoutes() chi.Router {
	router := chi.NewRouter()
	router.Use(middleware.RequireAuth)
	router.Get("/me", handler.me)
	return router
}

// checkEmail handles GET /join/checkemail?email=
func (handler *Handler) checkEmail(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.EnsureEmailAvailable(request.Context(), requestutil.Query(request, "email")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]bool{"available": true})
}

// checkUsername handles GET /join/checkusername?username=
func (handler *Handler) checkUsername(writer http.ResponseWriter, request *http.Request) {
	if err := handler.service.EnsureUsernameAvailable(request.Context(), requestutil.Query(request, "username")); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]bool{"available": true})
}

// me handles GET /user/me
func (handler *Handler) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	user, err := handler.service.Get(request.Context(), principal.UserID)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, user)
}
