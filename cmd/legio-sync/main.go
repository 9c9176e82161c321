// Command legio-sync performs one WordPress-to-Legio sync run and prints
// the import statistics as JSON. Exit code 1 on any failure, including the
// empty-source abort.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/legionews/legio/store"
	"github.com/legionews/legio/wpsync"
)

func main() {
	godotenv.Load()

	var (
		dbPath     = flag.String("db", envOr("DATABASE_PATH", "data/database.sqlite"), "path to the Legio SQLite database")
		configPath = flag.String("config", "", "optional YAML sync configuration file")
		full       = flag.Bool("full", true, "full replace: wipe target content tables before importing")
		quiet      = flag.Bool("quiet", false, "suppress progress logging, print only the final stats")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := wpsync.ConfigFromEnv()
	if err != nil {
		slog.Error("sync config", "error", err)
		os.Exit(1)
	}
	if *configPath != "" {
		if err := wpsync.LoadConfigFile(*configPath, &cfg); err != nil {
			slog.Error("sync config file", "error", err)
			os.Exit(1)
		}
	}
	cfg.FullReplace = *full

	st, err := store.Open(*dbPath)
	if err != nil {
		slog.Error("open database", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	stats, err := wpsync.Run(ctx, logger, st, cfg)
	if err != nil {
		slog.Error("sync failed", "error", err)
		os.Exit(1)
	}

	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")
	out.Encode(stats)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
