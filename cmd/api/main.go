package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/hms/config"
	"github.com/jwalitptl/hms/internal/blob"
	"github.com/jwalitptl/hms/internal/email"
	authhandler "github.com/jwalitptl/hms/internal/handler/auth"
	"github.com/jwalitptl/hms/internal/handler/health"
	labhandler "github.com/jwalitptl/hms/internal/handler/lab"
	"github.com/jwalitptl/hms/internal/handler/prometheus"
	userhandler "github.com/jwalitptl/hms/internal/handler/user"
	xrayhandler "github.com/jwalitptl/hms/internal/handler/xray"
	"github.com/jwalitptl/hms/internal/middleware"
	"github.com/jwalitptl/hms/internal/repository"
	"github.com/jwalitptl/hms/internal/repository/memory"
	"github.com/jwalitptl/hms/internal/repository/postgres"
	redisrepo "github.com/jwalitptl/hms/internal/repository/redis"
	"github.com/jwalitptl/hms/internal/router"
	authService "github.com/jwalitptl/hms/internal/service/auth"
	labService "github.com/jwalitptl/hms/internal/service/lab"
	userService "github.com/jwalitptl/hms/internal/service/user"
	xrayService "github.com/jwalitptl/hms/internal/service/xray"
	"github.com/jwalitptl/hms/internal/worker"
	"github.com/jwalitptl/hms/pkg/auth"
	"github.com/jwalitptl/hms/pkg/logger"
	"github.com/jwalitptl/hms/pkg/metrics"
	"github.com/jwalitptl/hms/pkg/security"
)

const tokenSweepInterval = 10 * time.Minute

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		JSON:       cfg.Log.JSON,
	}).SetGlobal()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("server exited properly")
}

func run(ctx context.Context, cfg *config.Config) error {
	m := metrics.NewMetrics("hms", nil)

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	checks := map[string]health.Checker{"database": db}

	var tokens repository.TokenRepository
	if cfg.Redis.URL != "" {
		rdb, err := redisrepo.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer rdb.Close()
		tokens = redisrepo.NewTokenRepository(rdb, m)
		checks["redis"] = health.CheckerFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	} else {
		log.Warn().Msg("redis.url is empty, keeping codes and revocations in memory")
		mem := memory.NewTokenRepository()
		tokens = mem
		if s, ok := mem.(worker.Sweeper); ok {
			go worker.NewSweepWorker("tokens", s, tokenSweepInterval, log.Logger).Start(ctx)
		}
	}

	blobs, err := blob.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open image storage: %w", err)
	}

	base := postgres.NewBaseRepository(db)
	users := postgres.NewUserRepository(base)
	labs := postgres.NewLabRepository(base)
	xrays := postgres.NewXrayRepository(base)

	mailer := email.New(cfg.SMTP, log.Logger, m)
	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expiry)

	authSvc := authService.NewService(users, tokens, security.NewBcryptHasher(cfg.Security.BcryptCost),
		jwtSvc, mailer, m, log.Logger, authService.Config{CodeTTL: cfg.Redis.CodeTTL, AdminEmails: cfg.Security.AdminEmails})
	userSvc := userService.NewService(users, authSvc)
	labSvc := labService.NewService(labs, users, m, log.Logger)
	xraySvc := xrayService.NewService(xrays, users, blobs, m, log.Logger)

	r := router.NewRouter(
		middleware.NewAuthMiddleware(authSvc, cfg.JWT.CookieName),
		router.Handlers{
			Auth:    authhandler.NewHandler(authSvc, authhandler.CookieConfig{Name: cfg.JWT.CookieName, Secure: cfg.JWT.CookieSecure}),
			User:    userhandler.NewHandler(userSvc),
			Lab:     labhandler.NewHandler(labSvc),
			Xray:    xrayhandler.NewHandler(xraySvc),
			Health:  health.NewHandler(checks),
			Metrics: prometheus.New(nil),
		},
		m,
		routerConfig(cfg),
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.Server.Port).Str("storage", string(blobs.Driver())).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

func routerConfig(cfg *config.Config) router.RouterConfig {
	rc := router.RouterConfig{
		CORSConfig: middleware.DefaultCORSConfig(cfg.Security.AllowedOrigins),
		Security:   middleware.DefaultSecurityConfig(cfg.JWT.CookieSecure),
		SizeLimit:  middleware.DefaultSizeLimitConfig(),
		Debug:      cfg.Log.Level == "debug",
	}
	if cfg.Server.MaxBodyBytes > 0 {
		rc.SizeLimit.MaxUploadSize = cfg.Server.MaxBodyBytes
	}
	if cfg.RateLimit.Enabled {
		rc.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		rc.RateBurst = cfg.RateLimit.Burst
	}
	return rc
}
