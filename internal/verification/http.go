// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	requestutil "github.com/taibuivan/sleeporgive/internal/platform/request"
	"github.com/taibuivan/sleeporgive/internal/platform/respond"
)

// EmailAvailability rejects addresses that already belong to an account.
type EmailAvailability interface {
	EnsureEmailAvailable(context context.Context, email string) error
}

// Handler exposes the verification endpoints.
type Handler struct {
	service  *Service
	accounts EmailAvailability
}

// NewHandler creates a verification handler.
func NewHandler(service *Service, accounts EmailAvailability) *Handler {
	return &Handler{service: service, accounts: accounts}
}

// Routes mounts GET /email-verification-code.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()
	router.Get("/", handler.code)
	return router
}

// RegisterJoin adds POST /send-verification-email to the /join router.
func (handler *Handler) RegisterJoin(router chi.Router) {
	router.Post("/send-verification-email", handler.sendSignUpEmail)
}

// code handles GET /email-verification-code?code_ticket=
func (handler *Handler) code(writer http.ResponseWriter, request *http.Request) {
	code, err := handler.service.AcquireCode(request.Context(), requestutil.Query(request, FieldCodeTicket))
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]string{"code": code})
}

type sendRequest struct {
	Email  string `json:"email"`
	Ticket string `json:"ticket"`
}

// sendSignUpEmail handles POST /join/send-verification-email
func (handler *Handler) sendSignUpEmail(writer http.ResponseWriter, request *http.Request) {
	var body sendRequest
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.accounts.EnsureEmailAvailable(request.Context(), body.Email); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if err := handler.service.Create(request.Context(), body.Ticket, body.Email, PurposeSignUp, ""); err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, map[string]bool{"emailSent": true})
}
