// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/sleeporgive/internal/platform/middleware"
	requestutil "github.com/taibuivan/sleeporgive/internal/platform/request"
	"github.com/taibuivan/sleeporgive/internal/platform/respond"
	"github.com/taibuivan/sleeporgive/internal/session"
	"github.com/taibuivan/sleeporgive/internal/users"
)

// Handler implements the login and sign-up endpoints.
//
// Both hand out the session bearer in the body and the cookie half as an
// HttpOnly cookie.
type Handler struct {
	service      *Service
	cookieSecure bool
}

// NewHandler constructs a new [Handler] with its service dependency.
func NewHandler(service *Service, cookieSecure bool) *Handler {
	return &Handler{service: service, cookieSecure: cookieSecure}
}

// Routes returns the /login router.
//
// # Endpoints
//   - POST /authorize : Advances a login attempt.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Post("/authorize", handler.authorize)
	return router
}

// RegisterJoin adds POST /create-user to the /join router.
func (handler *Handler) RegisterJoin(router chi.Router) {
	router.Post("/create-user", handler.createUser)
}

type authorizeRequest struct {
	Ticket string `json:"ticket"`
	Email  string `json:"email"`
	Code   string `json:"code"`
}

type emailSentResponse struct {
	EmailSent bool   `json:"emailSent"`
	Message   string `json:"message"`
}

type authorizedResponse struct {
	*users.User
	AuthToken string `json:"authToken"`
}

// authorize handles POST /login/authorize
//
// # Returns
//   - 200 {emailSent} when a login code was mailed.
//   - 200 with the user and authToken once the attempt succeeded.
//   - 400 when the request cannot advance the attempt.
func (handler *Handler) authorize(writer http.ResponseWriter, request *http.Request) {
	var body authorizeRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	result, err := handler.service.Authorize(request.Context(), AuthorizeInput{
		Ticket:     body.Ticket,
		Email:      body.Email,
		Code:       body.Code,
		ClientAddr: middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	if result.EmailSent {
		respond.OK(writer, emailSentResponse{EmailSent: true, Message: "Email verification sent"})
		return
	}

	session.SetCookie(writer, result.Completion.Credentials.Cookie, handler.cookieSecure)
	respond.OK(writer, authorizedResponse{
		User:      result.Completion.User,
		AuthToken: result.Completion.Credentials.Bearer,
	})
}

type createUserRequest struct {
	EmailVerificationClientTicket string `json:"emailVerificationClientTicket"`
	EmailVerificationCode         string `json:"emailVerificationCode"`
	users.RegisterInput
}

type createUserResponse struct {
	UserID    string `json:"userId"`
	AuthToken string `json:"authToken"`
}

// createUser handles POST /join/create-user
func (handler *Handler) createUser(writer http.ResponseWriter, request *http.Request) {
	var body createUserRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	completion, err := handler.service.SignUp(request.Context(), SignUpInput{
		EmailVerificationClientTicket: body.EmailVerificationClientTicket,
		EmailVerificationCode:         body.EmailVerificationCode,
		Account:                       body.RegisterInput,
		ClientAddr:                    middleware.RealIP(request),
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	session.SetCookie(writer, completion.Credentials.Cookie, handler.cookieSecure)
	respond.OK(writer, createUserResponse{
		UserID:    completion.User.ID,
		AuthToken: completion.Credentials.Bearer,
	})
}
