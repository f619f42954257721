package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pairchat/auth"
	"pairchat/domain"
	"pairchat/infrastructure/web"
	"pairchat/infrastructure/ws"
	"pairchat/internal"
	"pairchat/moderation"
	"pairchat/observability"
	"pairchat/repositories"
	"pairchat/runtime"
	"pairchat/runtime/workers"
	"pairchat/services"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/database"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Server terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := logs.GetLoggerFromString(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	options := buildBadgerOpts(config, logger, ctx)

	db, err := badger.Open(options)
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}

	if logger.Enabled(ctx, slog.LevelDebug) && config.DebugPort > 0 {
		endpoint := "/inspect"
		url := fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint)
		logger.Info("Debug Badger inspector available", "url", url)
		database.StartDebugServer(db, config.DebugPort, endpoint, MessageMapper)
	}

	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeCfg := bluge.DefaultConfig(config.BlugeFilepath)
	blugeWriter, err := bluge.OpenWriter(blugeCfg)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to open bluge writer: %w", err)
	}
	defer func() {
		logger.Info("Closing Bluge...")
		_ = blugeWriter.Close()
	}()

	// 3. Repositories & Moderation
	messageRepository := repositories.NewMessageRepository(db, logger, config.HistoryPageSize)
	userRepository := repositories.NewUserRepository(db)
	messageIndex := repositories.NewMessageIndex(blugeWriter, logger)
	store := repositories.NewStore(messageRepository, userRepository, messageIndex, logger)

	words, err := moderation.LoadWords()
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to load censored words: %w", err)
	}
	moderator, err := moderation.NewModerator(logger, words.Words, charReplacement)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to build moderator: %w", err)
	}
	logger.Info("Moderation dictionaries loaded",
		"words", len(words.Words), "languages", strings.Join(words.Languages, ","))

	// 4. Live chat runtime
	metrics := observability.NewMetrics()
	registry := runtime.NewRegistry()
	pipeline := runtime.NewPipeline(logger, store, registry, moderator, metrics, config.MaxContentLength)
	typing := runtime.NewTypingTracker(logger, registry, metrics, config.TypingQuietPeriod)
	receipts := runtime.NewReadReceipts(logger, store, registry, metrics)

	tokens := auth.NewTokenManager(config.JWTSecret, config.AuthTokenDuration)
	authService := services.NewAuthService(userRepository, tokens)
	chatService := services.NewChatService(messageRepository, userRepository, messageIndex,
		store, registry, receipts)

	// 5. Supervision
	sup := workers.NewSupervisor(logger).
		Add(runtime.NewPresenceWorker(logger, registry, metrics)).
		Add(workers.NewMonitoringWorker(logger, metrics, config.MetricInterval))

	// 6. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go sup.Run(ctx)

	// 7. HTTP & Websocket surface
	app := fiber.New(fiber.Config{
		AppName:               "pairchat",
		DisableStartupMessage: true,
	})
	app.Use(fiberrecover.New())
	app.Use(cors.New())

	handlers := web.NewHandlers(logger, authService, chatService, pipeline)
	handlers.Register(app)

	gateway := ws.NewGateway(logger, authService, registry, pipeline, typing, receipts,
		metrics, config.SendBufferSize)
	app.Use("/ws", gateway.Upgrade)
	app.Get("/ws", gateway.Handler())

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)

	// Use an error channel to capture Listen() issues asynchronously.
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := app.Listen(address); err != nil {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	// 8. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 9. Final Cleanup (Graceful Shutdown)
	// We let in-flight requests finish and the workers drain before closing the stores.
	logger.Info("Shutting down gracefully...")
	if err := app.ShutdownWithTimeout(config.ShutdownTimeout); err != nil {
		logger.Warn("HTTP shutdown incomplete", "error", err)
	}
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// MessageMapper renders our key families in the Badger inspector.
func MessageMapper(key string, val []byte) database.InspectRow {
	row := database.DefaultMapper(key, val)

	switch {
	case strings.HasPrefix(key, "msg:"):
		row.Type = "MESSAGE"
		var m domain.Message
		if err := json.Unmarshal(val, &m); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.EntityID = m.ID.String()
		row.Timestamp = m.CreatedAt.Format(time.RFC3339)
		row.Detail = fmt.Sprintf("%s -> %s: %s", m.SenderID, m.ReceiverID, m.Body)
	case strings.HasPrefix(key, "unread:"):
		row.Type = "UNREAD"
		row.Detail = string(val)
	case strings.HasPrefix(key, "user:"):
		row.Type = "USER"
		var u domain.User
		if err := json.Unmarshal(val, &u); err != nil {
			row.Detail = "Error: unmarshal failed"
			return row
		}
		row.EntityID = u.ID
		row.Detail = u.Username
	case strings.HasPrefix(key, "useremail:"):
		row.Type = "EMAIL_INDEX"
		row.Detail = string(val)
	}

	return row
}
