// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package respond_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/respond"
)

/*
TestError_Envelope verifies status codes, envelope fields and the Retry-After header.
*/
func TestError_Envelope(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantStatus     int
		wantCode       string
		wantRetryAfter string
		wantNewCode    bool
	}{
		{"rate_limited", apperr.RateLimited(42), http.StatusTooManyRequests, apperr.CodeRateLimited, "42", false},
		{"exhausted", apperr.Exhausted("Too many tries"), http.StatusGone, apperr.CodeExhausted, "", true},
		{"transient", apperr.TransientConflict("retry"), http.StatusConflict, apperr.CodeConcurrentUpdate, "", false},
		{"plain_error", errors.New("boom"), http.StatusInternalServerError, apperr.CodeInternal, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			request := httptest.NewRequest(http.MethodGet, "/", nil)

			respond.Error(recorder, request, tt.err)

			assert.Equal(t, tt.wantStatus, recorder.Code)
			assert.Equal(t, tt.wantRetryAfter, recorder.Header().Get("Retry-After"))

			var body respond.ErrorEnvelope
			require.NoError(t, json.NewDecoder(recorder.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantNewCode, body.RequireNewCode)
		})
	}
}

/*
TestError_HidesCause ensures internal causes never reach the client.
*/
func TestError_HidesCause(t *testing.T) {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/", nil)

	respond.Error(recorder, request, apperr.Internal(errors.New("pq: relation sessions does not exist")))

	assert.NotContains(t, recorder.Body.String(), "sessions")
}
