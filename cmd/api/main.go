// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/carterperez-dev/course-portal/internal/admin"
	"github.com/carterperez-dev/course-portal/internal/application"
	"github.com/carterperez-dev/course-portal/internal/auth"
	"github.com/carterperez-dev/course-portal/internal/config"
	"github.com/carterperez-dev/course-portal/internal/core"
	"github.com/carterperez-dev/course-portal/internal/course"
	"github.com/carterperez-dev/course-portal/internal/health"
	"github.com/carterperez-dev/course-portal/internal/message"
	"github.com/carterperez-dev/course-portal/internal/middleware"
	"github.com/carterperez-dev/course-portal/internal/server"
	"github.com/carterperez-dev/course-portal/internal/user"
)

const (
	drainDelay = 5 * time.Second
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	if err := loadEnvFile(*envPath); err != nil {
		slog.Error("load env file", "error", err)
		os.Exit(1)
	}

	if err := run(*configPath); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

// loadEnvFile seeds the environment from a dotenv file. A missing file is
// fine; variables already set in the environment win.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

//nolint:funlen // bootstrap code is inherently verbose
func run(configPath string) error {
	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGINT,
		syscall.SIGTERM,
	)
	defer stop()

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		configPath = ""
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Log)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"name", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	var telemetry *core.Telemetry
	if cfg.Otel.Enabled {
		tel, telErr := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if telErr != nil {
			logger.Warn("failed to initialize telemetry", "error", telErr)
		} else {
			telemetry = tel
			logger.Info("OpenTelemetry tracer initialized",
				"endpoint", cfg.Otel.Endpoint,
			)
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return err
	}
	logger.Info("database connected",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	if cfg.Database.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close() //nolint:errcheck // already failing
			return err
		}
		logger.Info("database migrations applied")
	}

	redis, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close() //nolint:errcheck // already failing
		return err
	}
	logger.Info("redis connected",
		"pool_size", cfg.Redis.PoolSize,
	)

	tokens, err := auth.NewTokenManager(cfg.Session)
	if err != nil {
		return err
	}
	logger.Info("session tokens initialized",
		"algorithm", "HS256",
		"ttl", tokens.TTL().String(),
	)

	userRepo := user.NewRepository(db.DB)
	userSvc := user.NewService(userRepo)

	authSvc := auth.NewService(
		tokens,
		userSvc,
		auth.NewRedisRevocationStore(redis.Client),
	)
	authHandler := auth.NewHandler(authSvc)
	userHandler := user.NewHandler(userSvc, authSvc)

	courseSvc := course.NewService(course.NewRepository(db.DB))
	courseHandler := course.NewHandler(courseSvc)

	applicationSvc := application.NewService(application.NewRepository(db.DB))
	applicationHandler := application.NewHandler(applicationSvc)

	messageSvc := message.NewService(
		message.NewRepository(db.DB),
		userSvc,
		message.NewRedisBroker(redis.Client),
	)
	messageHandler := message.NewHandler(messageSvc, cfg.CORS.AllowedOrigins)

	healthHandler := health.NewHandler(
		health.Dependency{Name: "database", Checker: db},
		health.Dependency{Name: "redis", Checker: redis},
	)

	adminHandler := admin.NewHandler(admin.HandlerConfig{
		DBStats:            db.Stats,
		RedisStats:         redis.PoolStats,
		DBPing:             db.Ping,
		RedisPing:          redis.Ping,
		UserCounts:         userSvc.Counts,
		CountClasses:       courseSvc.Count,
		CountApplications:  applicationSvc.CountPending,
		CountConversations: messageSvc.CountConversations,
	})

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: healthHandler,
		Logger:        logger,
	})

	router := srv.Router()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(logger))
	router.Use(
		middleware.NewRateLimiter(redis.Client, middleware.RateLimitConfig{
			Limit: middleware.PerMinute(
				cfg.RateLimit.Requests,
				cfg.RateLimit.Burst,
			),
			FailOpen:   true,
			BypassFunc: isHealthCheck,
		}).Handler,
	)
	router.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	router.Use(middleware.CORS(cfg.CORS))

	healthHandler.RegisterRoutes(router)

	authenticator := middleware.Authenticator(authSvc)
	optionalAuth := middleware.OptionalAuth(authSvc)
	adminOnly := middleware.RequireAdmin
	sendLimiter := middleware.TieredRateLimiter(
		redis.Client,
		"message_send",
		middleware.DefaultTiers,
	)

	router.Route("/api", func(r chi.Router) {
		authHandler.RegisterRoutes(r, authenticator)

		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		courseHandler.RegisterRoutes(r, optionalAuth, authenticator, adminOnly)
		applicationHandler.RegisterRoutes(r, authenticator, adminOnly)
		messageHandler.RegisterRoutes(r, authenticator, adminOnly, sendLimiter)
		adminHandler.RegisterRoutes(r, authenticator, adminOnly)
	})

	mountPages(router, cfg.Web, middleware.AdminPageGuard(authSvc))

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.ShutdownTimeout+drainDelay+5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, drainDelay); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}

	if err := redis.Close(); err != nil {
		logger.Error("redis close error", "error", err)
	}

	if err := db.Close(); err != nil {
		logger.Error("database close error", "error", err)
	}

	logger.Info("application stopped")
	return nil
}

// mountPages serves the static page layer. Everything under the admin
// prefix sits behind the admin page guard.
func mountPages(
	router chi.Router,
	cfg config.WebConfig,
	guard func(http.Handler) http.Handler,
) {
	if cfg.StaticDir == "" {
		return
	}

	files := http.FileServer(http.Dir(cfg.StaticDir))

	prefix := strings.TrimSuffix(cfg.AdminPrefix, "/")
	if prefix != "" {
		router.With(guard).Handle(prefix, files)
		router.With(guard).Handle(prefix+"/*", files)
	}

	router.Handle("/*", files)
}

func isHealthCheck(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/livez", "/readyz":
		return true
	}
	return false
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
