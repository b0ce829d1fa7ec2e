// Copyright (c) 2026 SleepOrGive. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command api is the entry point for the SleepOrGive HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Open the relational store (PostgreSQL + migrations, or SQLite).
//  4. Connect to Redis when configured.
//  5. Pick the mail transport.
//  6. Wire services, the background scheduler and HTTP handlers.
//  7. Start HTTP server and scheduler with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/taibuivan/sleeporgive/internal/api"
	"github.com/taibuivan/sleeporgive/internal/auth"
	"github.com/taibuivan/sleeporgive/internal/jobs"
	"github.com/taibuivan/sleeporgive/internal/mail"
	"github.com/taibuivan/sleeporgive/internal/platform/config"
	"github.com/taibuivan/sleeporgive/internal/platform/constants"
	"github.com/taibuivan/sleeporgive/internal/platform/migration"
	pgstore "github.com/taibuivan/sleeporgive/internal/platform/postgres"
	redisstore "github.com/taibuivan/sleeporgive/internal/platform/redis"
	"github.com/taibuivan/sleeporgive/internal/platform/sqlite"
	"github.com/taibuivan/sleeporgive/internal/ratelimit"
	"github.com/taibuivan/sleeporgive/internal/session"
	"github.com/taibuivan/sleeporgive/internal/users"
	"github.com/taibuivan/sleeporgive/internal/verification"
)

// stores bundles the repositories of one storage backend.
type stores struct {
	users         users.Repository
	sessions      session.Repository
	attempts      auth.Repository
	verifications verification.Repository
	mail          mail.Repository
	limits        ratelimit.Store
	check         api.Check
	close         func()
}

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	level := new(slog.LevelVar)
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With(slog.String(constants.FieldApp, constants.AppName))
	slog.SetDefault(log)

	log.Info("service_initializing", slog.String("version", constants.AppVersion))

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		level.Set(slog.LevelDebug)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("database_driver", cfg.DatabaseDriver),
		slog.String("rate_limit_backend", cfg.RateLimitBackend),
		slog.String("mail_transport", cfg.MailTransport),
	)

	// Root context for startup. Use a 30s deadline so misconfiguration is
	// caught quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Relational Store ───────────────────────────────────────────────
	store, err := openStores(startupCtx, cfg, log)
	must(log, err, "open "+cfg.DatabaseDriver)
	defer store.close()

	checks := []api.Check{store.check}

	// ── 4. Redis ──────────────────────────────────────────────────────────
	if cfg.RedisURL != "" {
		rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, log)
		must(log, err, "connect to redis")
		defer func() {
			log.Info("closing_redis_client")
			if cerr := rdb.Close(); cerr != nil {
				log.Error("redis_close_failed", slog.Any("error", cerr))
			}
		}()

		checks = append(checks, api.Check{Name: "redis", Ping: func(ctx context.Context) error {
			return redisstore.Ping(ctx, rdb)
		}})
		if cfg.RateLimitBackend == config.RateLimitBackendRedis {
			store.limits = ratelimit.NewRedisStore(rdb)
		}
	}

	// ── 5. Mail Transport ─────────────────────────────────────────────────
	transport, closeTransport, err := openTransport(cfg)
	must(log, err, "open mail transport")
	defer closeTransport()

	// ── 6. Domain Wiring ──────────────────────────────────────────────────
	limits := ratelimit.NewService(store.limits)
	accounts := users.NewService(store.users, log)
	sessions := session.NewService(store.sessions, accounts, log)

	// The scheduler is the mail service's waker and runs its delivery job.
	var mailer *mail.Service
	var verifier *verification.Service
	var authService *auth.Service

	scheduler := jobs.New(log, []jobs.Job{
		{Name: "mail_delivery", Run: func(ctx context.Context) (*time.Time, error) {
			return mailer.DeliverNext(ctx)
		}},
		{Name: "housekeeping", Run: jobs.Housekeeping(log, cfg.HousekeepingInterval, time.Now,
			jobs.Prune{Name: "email_verification", Run: func(ctx context.Context) (int64, error) { return verifier.Prune(ctx) }},
			jobs.Prune{Name: "auth_attempts", Run: func(ctx context.Context) (int64, error) { return authService.Prune(ctx) }},
		)},
	}, jobs.WithRestartBackoff(cfg.SchedulerRestartBackoff))

	mailer = mail.NewService(store.mail, limits, transport, scheduler, mail.Config{
		From:          cfg.MailFrom,
		MessageIDHost: messageIDHost(cfg.Origin),
		MaxRetries:    cfg.MailMaxRetries,
		RetryBackoff:  cfg.MailRetryBackoff,
	}, log)

	verifier = verification.NewService(store.verifications, limits, mailer, accounts, verification.Config{
		AppName:  cfg.AppName,
		Origin:   cfg.Origin,
		TTL:      cfg.VerificationTTL,
		MaxTries: cfg.VerificationMaxTries,
	}, log)

	authService = auth.NewService(store.attempts, verifier, sessions, accounts, log)

	// ── 7. HTTP Server ────────────────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(checks, log)

	rootCtx, rootCancel := context.WithCancel(context.Background())
	defer rootCancel()

	server := api.NewServer(rootCtx, cfg, log, sessions, api.Handlers{
		Liveness:      liveness,
		Readiness:     readiness,
		Auth:          auth.NewHandler(authService, cfg.CookieSecure),
		Users:         users.NewHandler(accounts),
		Verification:  verification.NewHandler(verifier, accounts),
		Session:       session.NewHandler(sessions, cfg.CookieSecure),
		AuthRateLimit: ratelimit.Middleware(limits, ratelimit.AuthByIP, ratelimit.ByClientIP),
	})

	// ── 8. Background Jobs ────────────────────────────────────────────────
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(rootCtx)
	}()
	scheduler.TriggerImmediate()

	// ── 9. Graceful Shutdown ──────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown_signal_received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server_startup_error", slog.Any("error", err))
	}

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting_down_server", slog.Duration("timeout", shutdownTimeout))

	shutdownErr := server.Shutdown(shutdownTimeout)

	rootCancel()
	<-schedulerDone

	if shutdownErr != nil {
		log.Error("shutdown_error", slog.Any("error", shutdownErr))
		os.Exit(1)
	}

	log.Info("server_stopped_cleanly")
}

// openStores connects the configured backend and returns its repositories.
func openStores(ctx context.Context, cfg *config.Config, log *slog.Logger) (*stores, error) {
	if cfg.DatabaseDriver == config.DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0o755); err != nil {
			return nil, err
		}
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Info("sqlite_opened", slog.String("path", cfg.SQLitePath))

		return &stores{
			users:         users.NewSQLiteRepository(db),
			sessions:      session.NewSQLiteRepository(db),
			attempts:      auth.NewSQLiteRepository(db),
			verifications: verification.NewSQLiteRepository(db),
			mail:          mail.NewSQLiteRepository(db),
			limits:        ratelimit.NewSQLiteStore(db),
			check:         api.Check{Name: "sqlite", Ping: func(ctx context.Context) error { return sqlite.Ping(ctx, db) }},
			close: func() {
				log.Info("closing_sqlite")
				_ = db.Close()
			},
		}, nil
	}

	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return nil, err
	}
	// The mail worker keeps its claimed row locked for the whole send.
	pool, err := pgstore.NewPool(ctx, cfg.DatabaseURL, pgstore.PoolOptions{
		MaxConns:    cfg.DatabaseMaxConns,
		HeldByJobs:  1,
		HoldTimeout: mail.SendTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	return &stores{
		users:         users.NewPostgresRepository(pool),
		sessions:      session.NewPostgresRepository(pool),
		attempts:      auth.NewPostgresRepository(pool),
		verifications: verification.NewPostgresRepository(pool),
		mail:          mail.NewPostgresRepository(pool),
		limits:        ratelimit.NewPostgresStore(pool),
		check:         api.Check{Name: "postgres", Ping: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) }},
		close: func() {
			log.Info("closing_postgres_pool")
			pool.Close()
		},
	}, nil
}

// openTransport returns the configured mail transport and its closer.
func openTransport(cfg *config.Config) (mail.Transport, func(), error) {
	if cfg.MailTransport == config.MailTransportPostmark {
		return mail.NewPostmarkTransport(cfg.PostmarkEndpoint, cfg.PostmarkServerToken), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.MailOutboxPath), 0o755); err != nil {
		return nil, nil, err
	}
	outbox, err := mail.NewOutboxTransport(cfg.MailOutboxPath)
	if err != nil {
		return nil, nil, err
	}
	return outbox, func() { _ = outbox.Close() }, nil
}

// messageIDHost is the host part of the public origin, used in Message-IDs.
func messageIDHost(origin string) string {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Hostname() == "" {
		return "localhost"
	}
	return parsed.Hostname()
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is limited to startup wiring. After startup, all errors are returned
// and handled explicitly.
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup_failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
