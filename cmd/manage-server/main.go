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

	"github.com/google/uuid"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/simple-manage/pkg/managecms/api"
	"github.com/tendant/simple-manage/pkg/managecms/config"
)

// Settings holds process level settings; the service itself is configured
// through config.WithEnv.
type Settings struct {
	LogLevel        string        `env:"MANAGE_LOG_LEVEL" env-default:"info"`
	LogFormat       string        `env:"MANAGE_LOG_FORMAT" env-default:"text"`
	ShutdownTimeout time.Duration `env:"MANAGE_SHUTDOWN_TIMEOUT" env-default:"10s"`
	DevTokenSpaces  string        `env:"MANAGE_DEV_TOKEN_SPACES" env-default:"*"`
}

func newLogger(settings Settings) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(settings.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(settings.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	var settings Settings
	if err := cleanenv.ReadEnv(&settings); err != nil {
		slog.Error("Failed to read settings", "error", err)
		os.Exit(1)
	}
	logger := newLogger(settings)
	slog.SetDefault(logger)

	serverConfig, err := config.Load(config.WithEnv("MANAGE_"))
	if err != nil {
		logger.Error("Failed to load server configuration", "error", err)
		os.Exit(1)
	}

	if serverConfig.JWTSecret == "" {
		serverConfig.JWTSecret = uuid.NewString()
		token, err := api.NewToken(api.NewAuth(serverConfig.JWTSecret), "dev",
			strings.Split(settings.DevTokenSpaces, ","), []string{api.ScopeManage}, 24*time.Hour)
		if err != nil {
			logger.Error("Failed to issue development token", "error", err)
			os.Exit(1)
		}
		logger.Warn("No JWT secret configured, using an ephemeral one", "dev_token", token)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := serverConfig.BuildService(ctx, logger)
	if err != nil {
		logger.Error("Failed to build service", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	handler, err := NewRouter(svc, serverConfig, logger, nil, nil)
	if err != nil {
		logger.Error("Failed to build router", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              ":" + serverConfig.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Manage server starting",
			"port", serverConfig.Port,
			"environment", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"default_storage", serverConfig.DefaultStorageBackend,
			"locales", serverConfig.Locales,
			"events", serverConfig.EventSink)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exiting")
}
