// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/sleeporgive/internal/auth"
	"github.com/taibuivan/sleeporgive/internal/mail"
	"github.com/taibuivan/sleeporgive/internal/platform/apperr"
	"github.com/taibuivan/sleeporgive/internal/platform/sec"
	"github.com/taibuivan/sleeporgive/internal/platform/sqlite"
	"github.com/taibuivan/sleeporgive/internal/ratelimit"
	"github.com/taibuivan/sleeporgive/internal/session"
	"github.com/taibuivan/sleeporgive/internal/users"
	"github.com/taibuivan/sleeporgive/internal/verification"
)

// # Fixture

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db       *sql.DB
	service  *auth.Service
	users    *users.Service
	sessions *session.Service
	verifier *verification.Service
	mail     *mail.Service
	outbox   *mail.OutboxTransport
	clock    *clock

	seen map[string]bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	outbox, err := mail.NewOutboxTransport(filepath.Join(t.TempDir(), "outbox.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = outbox.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := &clock{now: time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)}
	limits := ratelimit.NewService(ratelimit.NewSQLiteStore(db), ratelimit.WithClock(c.Now))
	accounts := users.NewService(users.NewSQLiteRepository(db), logger)
	sessions := session.NewService(session.NewSQLiteRepository(db), accounts, logger)

	mailer := mail.NewService(mail.NewSQLiteRepository(db), limits, outbox, nil, mail.Config{
		From:          "notification@sleep.example.org",
		MessageIDHost: "sleep.example.org",
		MaxRetries:    3,
		RetryBackoff:  30 * time.Second,
	}, logger, mail.WithClock(c.Now))

	verifier := verification.NewService(
		verification.NewSQLiteRepository(db), limits, mailer, accounts,
		verification.Config{AppName: "SleepOrGive", Origin: "https://sleep.example.org"},
		logger, verification.WithClock(c.Now),
	)

	service := auth.NewService(auth.NewSQLiteRepository(db), verifier, sessions, accounts, logger, auth.WithClock(c.Now))

	return &fixture{
		db:       db,
		service:  service,
		users:    accounts,
		sessions: sessions,
		verifier: verifier,
		mail:     mailer,
		outbox:   outbox,
		clock:    c,
		seen:     map[string]bool{},
	}
}

func newTicket(t *testing.T) (string, []byte) {
	t.Helper()
	token, err := sec.GenerateSecureToken()
	require.NoError(t, err)
	return token.Plaintext, token.Hash
}

func (f *fixture) register(t *testing.T, username string) *users.User {
	t.Helper()
	user, err := f.users.Register(context.Background(), users.RegisterInput{
		Username: username,
		Email:    username + "@example.com",
	})
	require.NoError(t, err)
	return user
}

var codeTicketPattern = regexp.MustCompile(`code_ticket=([A-Za-z0-9_-]+)`)

// deliver drains the queue through the outbox and returns the mails to address
// that were not seen by an earlier call.
func (f *fixture) deliver(t *testing.T, address string) []mail.OutboxRecord {
	t.Helper()
	ctx := context.Background()

	for range 20 {
		hint, err := f.mail.DeliverNext(ctx)
		require.NoError(t, err)
		if hint == nil {
			break
		}
	}

	records, err := f.outbox.List(address)
	require.NoError(t, err)

	fresh := make([]mail.OutboxRecord, 0, len(records))
	for _, record := range records {
		if !f.seen[record.MessageID] {
			f.seen[record.MessageID] = true
			fresh = append(fresh, record)
		}
	}
	return fresh
}

// code delivers the single new mail to address and reveals its code.
func (f *fixture) code(t *testing.T, address string) string {
	t.Helper()

	fresh := f.deliver(t, address)
	require.Len(t, fresh, 1)

	match := codeTicketPattern.FindStringSubmatch(fresh[0].Text)
	require.Len(t, match, 2, "no code link in %q", fresh[0].Text)

	code, err := f.verifier.AcquireCode(context.Background(), match[1])
	require.NoError(t, err)
	return code
}

func (f *fixture) count(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

// # State Machine

/*
TestUpdateAttemptState_RaceHasOneWinner races writers on one snapshot.
*/
func TestUpdateAttemptState_RaceHasOneWinner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	_, hash := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, hash, "203.0.113.9", auth.State{}))

	const writers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []auth.State
		losers  []error
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := auth.State{EmailVerificationClientTicket: fmt.Sprintf("ticket-%d", i)}
			err := f.service.UpdateAttemptState(ctx, hash, auth.State{}, next)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners = append(winners, next)
			} else {
				losers = append(losers, err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, winners, 1)
	require.Len(t, losers, writers-1)
	for _, err := range losers {
		appErr := apperr.As(err)
		require.NotNil(t, appErr)
		assert.Equal(t, apperr.CodeConcurrentUpdate, appErr.Code)
		assert.True(t, appErr.Retryable)
	}

	state, owner, err := f.service.GetAttemptState(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, winners[0], state)
	assert.Equal(t, user.ID, owner)
}

/*
TestGetAttemptState_NotFound signals that a fresh attempt must be started.
*/
func TestGetAttemptState_NotFound(t *testing.T) {
	f := newFixture(t)
	_, hash := newTicket(t)

	_, _, err := f.service.GetAttemptState(context.Background(), hash)
	assert.True(t, apperr.IsNotFound(err))
}

/*
TestStartAttempt_ResetsExisting verifies the upsert by ticket hash.
*/
func TestStartAttempt_ResetsExisting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alice := f.register(t, "alice")
	bob := f.register(t, "bob")

	_, hash := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, alice.ID, hash, "", auth.State{FirstSignUpAutoLogin: true}))
	require.NoError(t, f.service.StartAttempt(ctx, bob.ID, hash, "", auth.State{}))

	state, owner, err := f.service.GetAttemptState(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, auth.State{}, state)
	assert.Equal(t, bob.ID, owner)
	assert.Equal(t, 1, f.count(t, "auth_attempts"))
}

/*
TestCompleteAttempt_OnlyOnce checks that a second completion mints no session.
*/
func TestCompleteAttempt_OnlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	_, hash := newTicket(t)
	state := auth.State{FirstSignUpAutoLogin: true}
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, hash, "", state))

	completion, err := f.service.CompleteAttempt(ctx, hash, state)
	require.NoError(t, err)
	assert.Equal(t, user.ID, completion.User.ID)
	assert.NotEmpty(t, completion.Credentials.Bearer)
	assert.NotEmpty(t, completion.Credentials.Cookie)

	_, err = f.service.CompleteAttempt(ctx, hash, state)
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperr.CodeConflict, appErr.Code)
	assert.False(t, appErr.Retryable)

	assert.Equal(t, 1, f.count(t, "sessions"))
}

/*
TestCompleteAttempt_Unsuccessful refuses a state that does not authenticate.
*/
func TestCompleteAttempt_Unsuccessful(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	_, hash := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, hash, "", auth.State{}))

	_, err := f.service.CompleteAttempt(ctx, hash, auth.State{})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
	assert.Equal(t, 0, f.count(t, "sessions"))
}

/*
TestStartEmailSubflow_Idempotent sends one mail for two calls.
*/
func TestStartEmailSubflow_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	_, hash := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, hash, "", auth.State{}))

	first, err := f.service.StartEmailSubflow(ctx, hash)
	require.NoError(t, err)
	second, err := f.service.StartEmailSubflow(ctx, hash)
	require.NoError(t, err)

	assert.NotEmpty(t, first.EmailVerificationClientTicket)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, f.count(t, "outgoing_mail"))
	assert.Len(t, f.deliver(t, user.PrimaryEmail), 1)
}

/*
TestSolveEmailSubflow_NotStarted requires a mailed code first.
*/
func TestSolveEmailSubflow_NotStarted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	_, hash := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, hash, "", auth.State{}))

	_, err := f.service.SolveEmailSubflow(ctx, hash, "123456")
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))
}

/*
TestSolveEmailSubflow_ExhaustionClearsTicket drops a dead verification from the state.
*/
func TestSolveEmailSubflow_ExhaustionClearsTicket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	_, hash := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, hash, "", auth.State{}))
	started, err := f.service.StartEmailSubflow(ctx, hash)
	require.NoError(t, err)
	code := f.code(t, user.PrimaryEmail)

	// 1. Wrong codes below the limit keep the ticket.
	for try := 1; try < verification.DefaultMaxTries; try++ {
		_, err := f.service.SolveEmailSubflow(ctx, hash, wrongCode(code))
		appErr := apperr.As(err)
		require.NotNil(t, appErr, "try %d", try)
		assert.Equal(t, apperr.CodeIncorrectCode, appErr.Code)
		assert.False(t, appErr.RequireNewCode)

		state, _, err := f.service.GetAttemptState(ctx, hash)
		require.NoError(t, err)
		assert.Equal(t, started, state)
	}

	// 2. The last try exhausts the code, even a correct one.
	_, err = f.service.SolveEmailSubflow(ctx, hash, code)
	appErr := apperr.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperr.CodeExhausted, appErr.Code)
	assert.True(t, appErr.RequireNewCode)

	state, _, err := f.service.GetAttemptState(ctx, hash)
	require.NoError(t, err)
	assert.Empty(t, state.EmailVerificationClientTicket)

	// 3. The next start mails a fresh code.
	restarted, err := f.service.StartEmailSubflow(ctx, hash)
	require.NoError(t, err)
	assert.NotEqual(t, started.EmailVerificationClientTicket, restarted.EmailVerificationClientTicket)
	assert.Len(t, f.deliver(t, user.PrimaryEmail), 1)
}

// # Flows

/*
TestAuthorize_LoginFlow walks a login from the first request to the session.
*/
func TestAuthorize_LoginFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")
	ticket, _ := newTicket(t)

	// 1. The email starts the attempt and mails a code.
	result, err := f.service.Authorize(ctx, auth.AuthorizeInput{Ticket: ticket, Email: "Alice@Example.com", ClientAddr: "203.0.113.9"})
	require.NoError(t, err)
	assert.True(t, result.EmailSent)

	// 2. Without a code the attempt cannot advance.
	_, err = f.service.Authorize(ctx, auth.AuthorizeInput{Ticket: ticket})
	assert.True(t, apperr.HasCode(err, apperr.CodeValidation))

	// 3. The mailed code completes it.
	code := f.code(t, user.PrimaryEmail)
	result, err = f.service.Authorize(ctx, auth.AuthorizeInput{Ticket: ticket, Code: code})
	require.NoError(t, err)
	require.NotNil(t, result.Completion)
	assert.False(t, result.EmailSent)
	assert.Equal(t, user.ID, result.Completion.User.ID)

	validated, err := f.sessions.Validate(ctx, result.Completion.Credentials.Bearer, result.Completion.Credentials.Cookie)
	require.NoError(t, err)
	require.NotNil(t, validated)
	assert.Equal(t, user.ID, validated.ID)

	// 4. Replaying the solved attempt mints nothing.
	_, err = f.service.Authorize(ctx, auth.AuthorizeInput{Ticket: ticket, Code: code})
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
	assert.Equal(t, 1, f.count(t, "sessions"))
}

/*
TestAuthorize_Rejections covers requests that cannot start an attempt.
*/
func TestAuthorize_Rejections(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "alice")
	ticket, _ := newTicket(t)

	tests := []struct {
		name  string
		input auth.AuthorizeInput
		check func(error) bool
	}{
		{"missing_ticket", auth.AuthorizeInput{Email: "alice@example.com"}, func(err error) bool { return apperr.HasCode(err, apperr.CodeValidation) }},
		{"malformed_ticket", auth.AuthorizeInput{Ticket: "abc", Email: "alice@example.com"}, func(err error) bool { return apperr.HasCode(err, apperr.CodeValidation) }},
		{"missing_email", auth.AuthorizeInput{Ticket: ticket}, func(err error) bool { return apperr.HasCode(err, apperr.CodeValidation) }},
		{"unknown_email", auth.AuthorizeInput{Ticket: ticket, Email: "nobody@example.com"}, apperr.IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.Authorize(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}
	assert.Equal(t, 0, f.count(t, "auth_attempts"))
}

/*
TestSignUp_CreatesAndLogsIn consumes a sign-up verification and issues the first session.
*/
func TestSignUp_CreatesAndLogsIn(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticket, _ := newTicket(t)
	require.NoError(t, f.verifier.Create(ctx, ticket, "bob@example.com", verification.PurposeSignUp, ""))
	code := f.code(t, "bob@example.com")

	input := auth.SignUpInput{
		EmailVerificationClientTicket: ticket,
		EmailVerificationCode:         code,
		Account:                       users.RegisterInput{Username: "bob", Email: "bob@example.com"},
		ClientAddr:                    "203.0.113.9",
	}
	completion, err := f.service.SignUp(ctx, input)
	require.NoError(t, err)

	registered, err := f.users.LookupEmail(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, completion.User.ID)

	validated, err := f.sessions.Validate(ctx, completion.Credentials.Bearer, completion.Credentials.Cookie)
	require.NoError(t, err)
	require.NotNil(t, validated)
	assert.Equal(t, registered.ID, validated.ID)

	// A replay hits the taken username.
	_, err = f.service.SignUp(ctx, input)
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))
}

/*
TestSignUp_ConflictKeepsCode checks that a taken username does not burn the verification.
*/
func TestSignUp_ConflictKeepsCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.register(t, "carol")

	ticket, _ := newTicket(t)
	require.NoError(t, f.verifier.Create(ctx, ticket, "dave@example.com", verification.PurposeSignUp, ""))
	code := f.code(t, "dave@example.com")

	input := auth.SignUpInput{
		EmailVerificationClientTicket: ticket,
		EmailVerificationCode:         code,
		Account:                       users.RegisterInput{Username: "carol", Email: "dave@example.com"},
	}
	_, err := f.service.SignUp(ctx, input)
	assert.True(t, apperr.HasCode(err, apperr.CodeConflict))

	input.Account.Username = "dave"
	completion, err := f.service.SignUp(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, "dave", completion.User.Username)
}

/*
TestSignUp_WrongCode leaves no account behind.
*/
func TestSignUp_WrongCode(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ticket, _ := newTicket(t)
	require.NoError(t, f.verifier.Create(ctx, ticket, "erin@example.com", verification.PurposeSignUp, ""))
	code := f.code(t, "erin@example.com")

	_, err := f.service.SignUp(ctx, auth.SignUpInput{
		EmailVerificationClientTicket: ticket,
		EmailVerificationCode:         wrongCode(code),
		Account:                       users.RegisterInput{Username: "erin", Email: "erin@example.com"},
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeIncorrectCode))
	assert.Equal(t, 0, f.count(t, "users"))
}

/*
TestPrune removes only stale unsuccessful attempts.
*/
func TestPrune(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.register(t, "alice")

	_, stale := newTicket(t)
	_, succeeded := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, stale, "", auth.State{}))
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, succeeded, "", auth.State{FirstSignUpAutoLogin: true}))
	_, err := f.service.CompleteAttempt(ctx, succeeded, auth.State{FirstSignUpAutoLogin: true})
	require.NoError(t, err)

	f.clock.Advance(auth.StaleAttemptAge + time.Minute)
	_, fresh := newTicket(t)
	require.NoError(t, f.service.StartAttempt(ctx, user.ID, fresh, "", auth.State{}))

	deleted, err := f.service.Prune(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, _, err = f.service.GetAttemptState(ctx, stale)
	assert.True(t, apperr.IsNotFound(err))
	for _, hash := range [][]byte{succeeded, fresh} {
		_, _, err := f.service.GetAttemptState(ctx, hash)
		assert.NoError(t, err)
	}
}
