// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package mail_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/mail"
	"github.com/taibuivan/sleeporgive/internal/platform/postgres/pgtest"
	"github.com/taibuivan/sleeporgive/pkg/uuid"
)

func insertPostgresMail(t *testing.T, repo *mail.PostgresRepository, address string, retries int, pauseUntil *time.Time) string {
	t.Helper()
	row := &mail.OutgoingMail{
		ID:           uuid.New(),
		Address:      address,
		Subject:      "Hello",
		Content:      "<p>Hello</p>",
		ContentPlain: "Hello",
		Status:       mail.StatusPending,
		RetryCount:   retries,
		PauseUntil:   pauseUntil,
		Purpose:      "test",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, repo.Insert(context.Background(), row))
	return row.ID
}

/*
TestPostgresRepository_ClaimSkipsLockedRow verifies that a row being sent is invisible to other claimers.
*/
func TestPostgresRepository_ClaimSkipsLockedRow(t *testing.T) {
	ctx := context.Background()
	repo := mail.NewPostgresRepository(pgtest.Open(t, "mail"))
	now := time.Now().UTC()
	id := insertPostgresMail(t, repo, "carol@example.com", 0, nil)

	claimed, err := repo.ClaimNext(ctx, now, func(ctx context.Context, row *mail.OutgoingMail) mail.Update {
		assert.Equal(t, id, row.ID)

		again, err := repo.ClaimNext(ctx, now, func(context.Context, *mail.OutgoingMail) mail.Update {
			t.Error("row claimed twice")
			return mail.Update{Status: mail.StatusFailed}
		})
		assert.NoError(t, err)
		assert.False(t, again)

		return mail.Update{Status: mail.StatusDelivered, RetryCount: row.RetryCount}
	})
	require.NoError(t, err)
	assert.True(t, claimed)

	row, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, mail.StatusDelivered, row.Status)
}

/*
TestPostgresRepository_ClaimOrder prefers fewer retries and skips paused rows.
*/
func TestPostgresRepository_ClaimOrder(t *testing.T) {
	ctx := context.Background()
	repo := mail.NewPostgresRepository(pgtest.Open(t, "mail"))
	now := time.Now().UTC().Truncate(time.Millisecond)
	later := now.Add(time.Hour)

	retried := insertPostgresMail(t, repo, "retried@example.com", 2, nil)
	paused := insertPostgresMail(t, repo, "paused@example.com", 0, &later)
	fresh := insertPostgresMail(t, repo, "fresh@example.com", 0, nil)

	var order []string
	for {
		claimed, err := repo.ClaimNext(ctx, now, func(_ context.Context, row *mail.OutgoingMail) mail.Update {
			order = append(order, row.ID)
			return mail.Update{Status: mail.StatusDelivered, RetryCount: row.RetryCount}
		})
		require.NoError(t, err)
		if !claimed {
			break
		}
	}
	assert.Equal(t, []string{fresh, retried}, order)

	next, err := repo.NextPause(ctx, now)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, later.Equal(*next))

	row, err := repo.Get(ctx, paused)
	require.NoError(t, err)
	assert.Equal(t, mail.StatusPending, row.Status)
}
