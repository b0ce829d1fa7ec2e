// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package verification_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/dberr"
	"github.com/taibuivan/sleeporgive/internal/platform/postgres/pgtest"
	"github.com/taibuivan/sleeporgive/internal/platform/sec"
	"github.com/taibuivan/sleeporgive/internal/verification"
)

func newPostgresVerification(t *testing.T) (*verification.PostgresRepository, *verification.Verification) {
	t.Helper()

	repo := verification.NewPostgresRepository(pgtest.Open(t, "verification"))
	codeTicket, err := sec.GenerateSecureToken()
	require.NoError(t, err)

	record := &verification.Verification{
		ClientTicket:   newTicket(t),
		Email:          "alice@example.com",
		CodeTicketHash: codeTicket.Hash,
		CreatedAt:      time.Now().UTC(),
		Purpose:        verification.PurposeLogin,
	}
	inserted, err := repo.Insert(context.Background(), record)
	require.NoError(t, err)
	require.True(t, inserted)
	return repo, record
}

/*
TestPostgresRepository_InsertAndAcquire keeps the first ticket and the first code.
*/
func TestPostgresRepository_InsertAndAcquire(t *testing.T) {
	ctx := context.Background()
	repo, record := newPostgresVerification(t)

	duplicate := *record
	duplicate.Email = "mallory@example.com"
	inserted, err := repo.Insert(ctx, &duplicate)
	require.NoError(t, err)
	assert.False(t, inserted)

	first, err := repo.AcquireCode(ctx, record.CodeTicketHash, "123456")
	require.NoError(t, err)
	second, err := repo.AcquireCode(ctx, record.CodeTicketHash, "654321")
	require.NoError(t, err)

	require.NotNil(t, second.Code)
	assert.Equal(t, "123456", *first.Code)
	assert.Equal(t, "123456", *second.Code)
	assert.Equal(t, "alice@example.com", second.Email)
}

/*
TestPostgresRepository_ConsumeCountsEveryCommittedTry races rejected submissions.

Each submission either commits its try with the business error or loses the
serializable race and surfaces as a retryable CONCURRENT_UPDATE.
*/
func TestPostgresRepository_ConsumeCountsEveryCommittedTry(t *testing.T) {
	ctx := context.Background()
	repo, record := newPostgresVerification(t)
	reject := func(*verification.Verification) error {
		return apperr.IncorrectCode("Incorrect verification code.", false)
	}

	const submitters = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for range submitters {
		wg.Add(1)
		go func() {
			defer wg.Done()
			appErr := apperr.As(dberr.Wrap(repo.Consume(ctx, record.ClientTicket, reject), "Verification"))
			if !assert.NotNil(t, appErr) {
				return
			}

			mu.Lock()
			defer mu.Unlock()
			switch appErr.Code {
			case apperr.CodeIncorrectCode:
				committed++
			case apperr.CodeConcurrentUpdate:
				assert.True(t, appErr.Retryable)
			default:
				t.Errorf("unexpected code %s", appErr.Code)
			}
		}()
	}
	wg.Wait()

	require.Positive(t, committed)
	stored, err := repo.Find(ctx, record.ClientTicket)
	require.NoError(t, err)
	assert.Equal(t, committed, stored.TryCount)
}

/*
TestPostgresRepository_ConsumeDeletesOnSuccess removes the record once the check passes.
*/
func TestPostgresRepository_ConsumeDeletesOnSuccess(t *testing.T) {
	ctx := context.Background()
	repo, record := newPostgresVerification(t)

	err := repo.Consume(ctx, record.ClientTicket, func(v *verification.Verification) error {
		require.NotNil(t, v)
		assert.Equal(t, 1, v.TryCount)
		return nil
	})
	require.NoError(t, err)

	_, err = repo.Find(ctx, record.ClientTicket)
	assert.True(t, apperr.IsNotFound(err))

	var seen *verification.Verification
	err = repo.Consume(ctx, record.ClientTicket, func(v *verification.Verification) error {
		seen = v
		return nil
	})
	require.NoError(t, err)
	assert.Nil(t, seen)
}
