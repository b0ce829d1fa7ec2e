// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/users"
	"github.com/taibuivan/sleeporgive/internal/verification"
)

func newRouter(f fixture) http.Handler {
	handler := verification.NewHandler(f.service, f.users)

	router := chi.NewRouter()
	router.Route("/join", handler.RegisterJoin)
	router.Mount("/email-verification-code", handler.Routes())
	return router
}

/*
TestHandler_SignUpFlow sends the sign-up mail and reads the code back over HTTP.
*/
func TestHandler_SignUpFlow(t *testing.T) {
	f := newFixture(t)
	router := newRouter(f)

	_, err := f.users.Register(context.Background(), users.RegisterInput{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	send := func(email string) *httptest.ResponseRecorder {
		body := `{"email":"` + email + `","ticket":"` + newTicket(t) + `"}`
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodPost, "/join/send-verification-email", strings.NewReader(body)))
		return recorder
	}

	// 1. A registered address is refused before any mail is queued.
	assert.Equal(t, http.StatusConflict, send("alice@example.com").Code)
	assert.Empty(t, f.mailer.Sent())

	// 2. A new address gets a mail.
	recorder := send("bob@example.com")
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Len(t, f.mailer.Sent(), 1)

	// 3. The code page reveals the same code twice.
	codeTicket := codeTicketFrom(t, f.mailer.Sent()[0])
	read := func() string {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/email-verification-code?code_ticket="+codeTicket, nil))
		require.Equal(t, http.StatusOK, recorder.Code)

		var envelope struct {
			Data struct {
				Code string `json:"code"`
			} `json:"data"`
		}
		require.NoError(t, json.NewDecoder(recorder.Body).Decode(&envelope))
		return envelope.Data.Code
	}
	first := read()
	assert.Len(t, first, verification.CodeDigits)
	assert.Equal(t, first, read())

	// 4. An unknown ticket is a 404.
	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/email-verification-code?code_ticket="+newTicket(t), nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}
