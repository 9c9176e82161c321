// Command legiod runs the Legio API server: login against migrated
// WordPress credentials, poll resolution, and the admin sync trigger.
package main

import (
	"context"
	"crypto/sha256"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/legionews/legio/httpapi"
	"github.com/legionews/legio/store"
	"github.com/legionews/legio/wpsync"
)

func main() {
	// Local development keeps its settings in .env; absence is fine.
	godotenv.Load()

	port := env("PORT", "3000")
	dbPath := env("DATABASE_PATH", "data/database.sqlite")
	logLevel := env("LOG_LEVEL", "info")

	secretInput := os.Getenv("JWT_SECRET")
	if secretInput == "" {
		slog.Error("JWT_SECRET is required")
		os.Exit(1)
	}
	// Derive a 32-byte HS256 secret regardless of the input length.
	secretHash := sha256.Sum256([]byte(secretInput))
	jwtSecret := secretHash[:]

	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	st, err := store.Open(dbPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	syncCfg, err := wpsync.ConfigFromEnv()
	if err != nil {
		slog.Error("sync config", "error", err)
		os.Exit(1)
	}
	if path := os.Getenv("SYNC_CONFIG"); path != "" {
		if err := wpsync.LoadConfigFile(path, &syncCfg); err != nil {
			slog.Error("sync config file", "error", err)
			os.Exit(1)
		}
	}

	if syncCfg.SyncOnStart {
		if !syncCfg.Source.Configured() {
			slog.Error("WP_SYNC_ON_START is set but the WordPress source is not configured")
			os.Exit(1)
		}
		stats, err := wpsync.Run(ctx, logger, st, syncCfg)
		if err != nil {
			slog.Error("startup sync failed", "error", err)
			os.Exit(1)
		}
		slog.Info("startup sync done", "users", stats.Users, "news", stats.News, "polls", stats.Polls)
	}

	api := httpapi.New(st, jwtSecret, syncCfg, logger)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "addr", srv.Addr, "db", dbPath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
	slog.Info("server stopped")
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
