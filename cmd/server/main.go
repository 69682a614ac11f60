// Package main initializes and starts the LearnCode HTTP server,
// setting up configuration, logging, database connections, the course
// catalog, repositories, services and handlers.
package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/learncode/internal/config"
	"github.com/atinyakov/learncode/internal/content"
	"github.com/atinyakov/learncode/internal/db"
	"github.com/atinyakov/learncode/internal/envelope"
	"github.com/atinyakov/learncode/internal/lock"
	"github.com/atinyakov/learncode/internal/logger"
	"github.com/atinyakov/learncode/internal/repository"
	"github.com/atinyakov/learncode/internal/server/handler/http"
	"github.com/atinyakov/learncode/internal/service"
	"github.com/atinyakov/learncode/internal/tutor"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

const (
	cleanerInterval = time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	// Parse command-line, file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		log.Log.Fatal("failed to init logger", zap.Error(err))
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if options.AuthSecret == "" {
		// Requests still get served: protected routes answer 500 until the
		// secret is configured.
		zapLogger.Warn("AUTH_SECRET is not set; protected endpoints will fail")
	}
	keys := envelope.NewKeyring(options.AuthSecret)

	// Per-user lock for credential updates.
	locker, closeLocker, err := lock.Open(ctx, options.RedisAddr, lock.DefaultTTL, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot connect to redis", zap.Error(err))
	}
	defer func() { _ = closeLocker() }()

	// Initialize PostgreSQL connection.
	postgresDB, err := db.InitPostgres(options.DatabaseDSN)
	if err != nil {
		zapLogger.Fatal("cannot init database", zap.Error(err))
	}
	defer func() { _ = postgresDB.Close() }()

	// Drop step chats nobody touched within the retention period.
	db.StartChatCleaner(ctx, postgresDB, cleanerInterval, options.ChatRetention, zapLogger)

	// Load course content.
	catalog, err := content.NewCatalog(ctx, options.ContentDir, zapLogger)
	if err != nil {
		zapLogger.Fatal("cannot load content", zap.String("dir", options.ContentDir), zap.Error(err))
	}

	// Initialize repositories.
	secretStore := repository.NewPostgresSecretStore(postgresDB)
	chatRepo := repository.NewPostgresChatRepository(postgresDB)

	// Initialize business-logic services.
	credentials := service.NewCredentialService(secretStore, keys, locker, zapLogger)
	chats := service.NewChatService(chatRepo, catalog, credentials, tutor.NewClient, map[tutor.Provider]string{
		tutor.OpenAI:    options.OpenAIBaseURL,
		tutor.Anthropic: options.AnthropicBaseURL,
		tutor.Ollama:    options.OllamaBaseURL,
	}, zapLogger)

	// Create HTTP handlers.
	courseHandler := &http.CourseHandler{Content: catalog, Log: zapLogger}
	settingsHandler := &http.SettingsHandler{Settings: credentials, Log: zapLogger}
	chatHandler := &http.ChatHandler{Chats: chats, Log: zapLogger}

	// Build the router with middleware and routes.
	router := http.NewRouter(courseHandler, settingsHandler, chatHandler, options.AuthSecret, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zapLogger.Info("starting HTTP server", zap.String("addr", options.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if options.WatchContent {
		g.Go(func() error {
			if err := catalog.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("content watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}
