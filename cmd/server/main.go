// Copyright 2026 The EHSAdmin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/greenledger/ehsadmin/docs"
	"github.com/greenledger/ehsadmin/internal/audit"
	"github.com/greenledger/ehsadmin/internal/authz"
	"github.com/greenledger/ehsadmin/internal/config"
	"github.com/greenledger/ehsadmin/internal/guard"
	"github.com/greenledger/ehsadmin/internal/identity"
	"github.com/greenledger/ehsadmin/internal/observability/logger"
	"github.com/greenledger/ehsadmin/internal/observability/metrics"
	"github.com/greenledger/ehsadmin/internal/observability/tracing"
	"github.com/greenledger/ehsadmin/internal/permission"
	"github.com/greenledger/ehsadmin/internal/session"
	"github.com/greenledger/ehsadmin/internal/store/postgres"
	"github.com/greenledger/ehsadmin/internal/store/redis"
	transportHTTP "github.com/greenledger/ehsadmin/internal/transport/http"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.InitLogger(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Format:      cfg.Observability.LogFormat,
		ServiceName: cfg.Observability.ServiceName,
		OTel:        cfg.Observability.OTELEnabled,
	})

	// The permission tables are compiled in; refuse to start on drift.
	if err := errors.Join(permission.CheckConsistency(), guard.CheckPolicy()); err != nil {
		slog.Error("permission tables are inconsistent", logger.Error(err))
		os.Exit(1)
	}

	// Phase: CLI Commands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "bootstrap":
			if err := runBootstrap(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Bootstrap failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		case "migrate":
			if err := runMigrate(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "Migration failed: %v\n", err)
				os.Exit(1)
			}
			os.Exit(0)
		}
	}

	slog.Info("starting ehs admin server", logger.String("version", cfg.Observability.ServiceVersion))
	if err := run(cfg); err != nil {
		slog.Error("server failed", logger.Error(err))
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize tracer
	tracer, err := tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Observability.OTELEnabled,
		ServiceName:    cfg.Observability.ServiceName,
		ServiceVersion: cfg.Observability.ServiceVersion,
		SamplingRate:   cfg.Observability.SamplingRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracer: %w", err)
	}
	defer shutdown("tracer", tracer.Shutdown)

	// Initialize meter
	meter, err := metrics.New(ctx, metrics.Config{Enabled: cfg.Observability.MetricsEnabled}, cfg.Observability.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize meter: %w", err)
	}
	defer shutdown("meter", meter.Shutdown)

	// Initialize database
	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("connected to database")

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db)
	roleRepo := postgres.NewRoleRepository(db)
	sessionRepo := postgres.NewSessionRepository(db)

	// Initialize services
	auditLogger := audit.NewSlogLogger()
	authzService := authz.NewService(roleRepo, auditLogger, meter.GetMeter())
	identityService := identity.NewService(
		userRepo,
		roleRepo,
		newPasswordHasher(cfg),
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	sessionService := session.NewService(sessionRepo, cfg.Session.Lifetime, cfg.Session.IdleTimeout)
	signer, err := session.NewSigner(cfg.Session.Secret, cfg.Session.Issuer)
	if err != nil {
		return err
	}

	// Seed system roles and the first administrator
	bootstrapService := identity.NewBootstrapService(identityService, authzService, auditLogger)
	if err := bootstrapService.Bootstrap(ctx, bootstrapConfig(cfg)); err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	// Session cleanup
	janitor, err := session.NewJanitor(sessionService, cfg.Session.CleanupSchedule, auditLogger)
	if err != nil {
		return err
	}
	purged, err := meter.CreateCounter("ehs_sessions_purged_total", "Expired or idle sessions removed by the janitor")
	if err != nil {
		return err
	}
	sweep, err := meter.CreateHistogram("ehs_session_sweep_duration_seconds", "Duration of session cleanup sweeps", "s")
	if err != nil {
		return err
	}
	janitor.Instrument(purged, sweep)
	janitor.Start()
	defer janitor.Stop(context.Background())

	// Rate limiter
	limiter, closeLimiter, err := newLimiter(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// Initialize HTTP handler
	handler := transportHTTP.NewHandler(
		identityService,
		sessionService,
		authzService,
		signer,
		guard.New(meter.GetMeter()),
		auditLogger,
		transportHTTP.SessionConfig{
			CookieName:     cfg.Session.CookieName,
			CookieDomain:   cfg.Session.CookieDomain,
			CookiePath:     cfg.Session.CookiePath,
			CookieSecure:   cfg.Session.CookieSecure,
			CookieSameSite: sameSiteMode(cfg.Session.CookieSameSite),
			CSRFSecret:     []byte(cfg.Session.Secret),
		},
	)

	routerCfg := transportHTTP.RouterConfig{
		Limiter:        limiter,
		Pinger:         db,
		RequestTimeout: cfg.Server.WriteTimeout,
	}
	if cfg.Observability.MetricsEnabled {
		routerCfg.Metrics = meter.Handler()
	}
	router := transportHTTP.NewRouter(handler, routerCfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting http server", logger.Component("server"), logger.Operation("listen"), logger.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func connectDB(ctx context.Context, cfg *config.Config) (*postgres.DB, error) {
	db, err := postgres.New(ctx, postgres.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func newPasswordHasher(cfg *config.Config) *identity.PasswordHasher {
	return identity.NewPasswordHasher(
		cfg.Security.Argon2Memory,
		cfg.Security.Argon2Iterations,
		cfg.Security.Argon2Parallelism,
		cfg.Security.Argon2SaltLength,
		cfg.Security.Argon2KeyLength,
	)
}

func bootstrapConfig(cfg *config.Config) identity.BootstrapConfig {
	return identity.BootstrapConfig{
		AdminEmail:    cfg.Bootstrap.AdminEmail,
		AdminName:     cfg.Bootstrap.AdminName,
		AdminPassword: cfg.Bootstrap.AdminPassword,
	}
}

// newLimiter shares the limit through redis when REDIS_URL is set and falls
// back to a per-process limiter otherwise.
func newLimiter(ctx context.Context, cfg *config.Config) (transportHTTP.Limiter, func(), error) {
	if cfg.RateLimit.RedisURL == "" {
		return transportHTTP.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst), func() {}, nil
	}
	client, err := redis.Connect(ctx, cfg.RateLimit.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("using redis rate limiter")
	limiter := redis.NewLimiter(client, "ehs:ratelimit", cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)
	return limiter, func() { _ = client.Close() }, nil
}

func sameSiteMode(s string) http.SameSite {
	switch s {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func shutdown(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		slog.Warn("shutdown failed", logger.Component(name), logger.Error(err))
	}
}

func runBootstrap(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	auditLogger := audit.NewSlogLogger()
	roleRepo := postgres.NewRoleRepository(db)
	authzService := authz.NewService(roleRepo, auditLogger, nil)
	identityService := identity.NewService(
		postgres.NewUserRepository(db),
		roleRepo,
		newPasswordHasher(cfg),
		auditLogger,
		cfg.Security.LockoutMaxAttempts,
		cfg.Security.LockoutDuration,
	)
	bootstrapService := identity.NewBootstrapService(identityService, authzService, auditLogger)

	return bootstrapService.Bootstrap(ctx, bootstrapConfig(cfg))
}

func runMigrate(cfg *config.Config) error {
	ctx := context.Background()
	db, err := connectDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	fmt.Println("Applying initial schema...")
	if err := db.Migrate(ctx, postgres.InitialSchema); err != nil {
		return err
	}
	fmt.Println("Migration successful.")
	return nil
}
