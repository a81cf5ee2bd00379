package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brrrr1/MediaFetch/internal/api"
	"github.com/brrrr1/MediaFetch/internal/config"
	"github.com/brrrr1/MediaFetch/internal/daemon"
	mflog "github.com/brrrr1/MediaFetch/internal/log"
	"github.com/brrrr1/MediaFetch/internal/telemetry"
)

var (
	version   = "v1.0.0"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Optional .env file, ignored when absent.
	_ = godotenv.Load()

	// Safe defaults until config is loaded.
	mflog.Configure(mflog.Config{
		Level:   "info",
		Service: "mediafetch",
		Version: version,
	})
	logger := mflog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "config.load_failed").
			Str("config_path", *configPath).
			Msg("failed to load configuration")
	}

	mflog.Configure(mflog.Config{
		Level:   cfg.LogLevel,
		Service: "mediafetch",
		Version: version,
	})

	if *configPath != "" {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "file").
			Str("path", *configPath).
			Msg("loaded configuration from file")
	} else {
		logger.Info().
			Str("event", "config.loaded").
			Str("source", "env+defaults").
			Msg("loaded configuration from environment and defaults")
	}

	telemetryProvider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    "mediafetch",
		ServiceVersion: version,
		ExporterType:   cfg.TracingExporter,
		Endpoint:       cfg.TracingEndpoint,
		SamplingRate:   cfg.TracingSample,
	})
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "telemetry.init_failed").
			Msg("failed to initialize tracing")
	}

	logger.Info().
		Str("event", "startup").
		Str("version", version).
		Str("commit", commit).
		Str("build_date", buildDate).
		Str("addr", cfg.ListenAddr).
		Msg("starting mediafetch")

	logger.Info().Msgf("→ yt-dlp: %s", cfg.YTDLPPath)
	logger.Info().Msgf("→ ffmpeg: %s", cfg.FFmpegPath)
	if cfg.WebDir != "" {
		logger.Info().Msgf("→ Web UI: %s", cfg.WebDir)
	} else {
		logger.Info().Msg("→ Web UI: disabled")
	}
	if cfg.MetricsEnabled {
		if cfg.MetricsAddr != "" {
			logger.Info().Msgf("→ Metrics: %s", cfg.MetricsAddr)
		} else {
			logger.Info().Msg("→ Metrics: /metrics on API listener")
		}
	}

	server := api.New(cfg)

	deps := daemon.Deps{
		APIHandler: server.Handler(),
	}
	if cfg.MetricsEnabled && cfg.MetricsAddr != "" {
		deps.MetricsHandler = promhttp.Handler()
	}

	mgr, err := daemon.NewManager(cfg, deps)
	if err != nil {
		logger.Fatal().
			Err(err).
			Str("event", "daemon.init_failed").
			Msg("failed to create daemon manager")
	}

	mgr.RegisterShutdownHook("telemetry", telemetryProvider.Shutdown)

	if err := mgr.Start(ctx); err != nil {
		logger.Error().
			Err(err).
			Str("event", "daemon.exit").
			Msg("daemon exited with error")
		os.Exit(1)
	}

	logger.Info().Str("event", "daemon.exit").Msg("daemon exited cleanly")
}
