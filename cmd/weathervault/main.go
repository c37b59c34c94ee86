package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	kongdotenv "github.com/titusjaka/kong-dotenv-go"
	_ "modernc.org/sqlite"

	"github.com/nwalsh/weathervault/internal/api"
	"github.com/nwalsh/weathervault/internal/config"
	"github.com/nwalsh/weathervault/internal/ingest"
	"github.com/nwalsh/weathervault/internal/openweather"
	"github.com/nwalsh/weathervault/internal/store"
	"github.com/nwalsh/weathervault/internal/videosearch"
)

func main() {
	var cfg config.Config
	kong.Parse(&cfg,
		kong.Name("weathervault"),
		kong.Description("Weather record ingestion and lookup service."),
		kong.Configuration(kongdotenv.ENVFileReader, ".env"),
	)

	logger := newLogger(cfg.LogLevel, cfg.Debug)
	slog.SetDefault(logger)

	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		logger.Error("open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")

	st := store.New(db, cfg.QueryLimit)
	if err := st.Migrate(); err != nil {
		logger.Error("migrate", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrated", "path", cfg.DBPath)

	weather := openweather.New(cfg.OpenWeatherAPIKey, cfg.RequestTimeout)

	var videos ingest.VideoClient
	if cfg.YouTubeAPIKey != "" {
		videos = videosearch.New(cfg.YouTubeAPIKey, cfg.RequestTimeout, logger)
	} else {
		logger.Info("video enrichment disabled: no YouTube API key")
	}

	orch := ingest.New(st, weather, videos, logger)

	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	server := api.NewServer(st, orch, addr, cfg.CORSOrigins, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting server", "addr", addr)
	if err := server.Run(ctx); err != nil {
		logger.Error("server", "error", err)
		os.Exit(1)
	}
}

func newLogger(level string, debug bool) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	if debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
