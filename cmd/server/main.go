package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"bookshelf/docs" // swagger docs

	"bookshelf/internal/auth"
	"bookshelf/internal/cache"
	"bookshelf/internal/config"
	"bookshelf/internal/db"
	"bookshelf/internal/handler"
	"bookshelf/internal/metrics"
	"bookshelf/internal/notify"
	"bookshelf/internal/repository"
	"bookshelf/internal/router"
	"bookshelf/internal/service"
)

// @title Bookshelf Auth API
// @version 1.0
// @description Account registration with email verification codes, login and session token refresh.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		return err
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	checks := map[string]handler.HealthCheck{"mysql": sqlDB.PingContext}

	// Without Redis codes are not delivered; dispatches are only logged.
	var dispatcher notify.OTPDispatcher = notify.NewLogDispatcher(logger)
	if cfg.RedisAddr != "" {
		cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer cacheClient.Close()
		dispatcher = notify.NewRedisDispatcher(cacheClient, cfg.OTPOutbox)
		checks["redis"] = cacheClient.Ping
	}

	// Initialize auth components
	jwtService, err := auth.NewJWTService(auth.TokenConfig{
		Secret:    cfg.SecretKey,
		Algorithm: cfg.Algorithm,
		AccessTTL: cfg.AccessTTL(),
	})
	if err != nil {
		return err
	}
	hasher := auth.NewBcryptHasher(cfg.BcryptCost)

	userRepo := repository.NewUserRepository(gormDB)
	authService, err := service.NewAuthService(userRepo, hasher, auth.NewDigitGenerator(), jwtService, dispatcher, logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics.RegisterMetrics(registry)

	health := handler.NewHealthHandler(time.Now(), checks)

	configureSwagger(cfg)

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Deps{
		Config:      cfg,
		Logger:      logger,
		Tokens:      jwtService,
		Gatherer:    registry,
		AuthHandler: handler.NewAuthHandler(authService, handler.CookieConfig{Secure: cfg.CookieSecure}),
		Health:      health,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		logger.Info("listening", slog.String("addr", addr), slog.String("auth_prefix", cfg.AuthPrefix()))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func configureSwagger(cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/" + strings.Trim(cfg.APIBaseURL, "/")
	if cfg.SwaggerHost == "" {
		return
	}
	// SwaggerHost may already include scheme (http:// or https://)
	host := cfg.SwaggerHost
	switch {
	case strings.HasPrefix(host, "https://"):
		docs.SwaggerInfo.Schemes = []string{"https"}
		host = strings.TrimPrefix(host, "https://")
	case strings.HasPrefix(host, "http://"):
		host = strings.TrimPrefix(host, "http://")
	}
	docs.SwaggerInfo.Host = host
}
