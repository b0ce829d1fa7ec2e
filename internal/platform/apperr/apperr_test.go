// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
)

/*
TestAppError_Taxonomy checks the status and flags of each constructor.
*/
func TestAppError_Taxonomy(t *testing.T) {
	tests := []struct {
		name           string
		err            *apperr.AppError
		status         int
		code           string
		requireNewCode bool
		retryable      bool
	}{
		{"not_found", apperr.NotFound("Session"), http.StatusNotFound, apperr.CodeNotFound, false, false},
		{"conflict", apperr.Conflict("dup"), http.StatusConflict, apperr.CodeConflict, false, false},
		{"transient", apperr.TransientConflict("race"), http.StatusConflict, apperr.CodeConcurrentUpdate, false, true},
		{"rate_limited", apperr.RateLimited(12), http.StatusTooManyRequests, apperr.CodeRateLimited, false, false},
		{"exhausted", apperr.Exhausted("expired"), http.StatusGone, apperr.CodeExhausted, true, false},
		{"incorrect_code", apperr.IncorrectCode("nope", false), http.StatusBadRequest, apperr.CodeIncorrectCode, false, false},
		{"validation", apperr.ValidationError("bad"), http.StatusBadRequest, apperr.CodeValidation, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.requireNewCode, tt.err.RequireNewCode)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}
}

/*
TestAppError_Unwrap verifies that wrapped AppErrors are still discoverable.
*/
func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("mail_store_claim_failed: %w", apperr.Internal(cause))

	ae := apperr.As(wrapped)
	require.NotNil(t, ae)
	assert.Equal(t, apperr.CodeInternal, ae.Code)
	assert.ErrorIs(t, wrapped, cause)

	assert.True(t, apperr.IsNotFound(fmt.Errorf("x: %w", apperr.NotFound("Attempt"))))
	assert.False(t, apperr.IsNotFound(cause))
	assert.Equal(t, 12, apperr.RateLimited(12).RetryAfterSeconds)
}
