// Package config builds the immutable runtime configuration for MediaFetch.
// Precedence: environment (MEDIAFETCH_*) > optional YAML file > defaults.
// The resulting App value is constructed once at startup and treated as
// read-only by every component that receives it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// App is the resolved, read-only application configuration.
type App struct {
	ListenAddr string // API listen address
	WebDir     string // static asset root served on non-API paths ("" disables)

	YTDLPPath  string // extraction tool binary
	FFmpegPath string // transcoding tool binary

	AllowedOrigins []string // CORS allow-list; ["*"] allows all
	LogLevel       string

	MetricsEnabled bool
	MetricsAddr    string // separate Prometheus listener ("" serves on the API router)

	// Grace between SIGTERM and SIGKILL when tearing down pipeline stages.
	KillGrace time.Duration

	TracingEnabled  bool
	TracingExporter string // "http" or "grpc"
	TracingEndpoint string
	TracingSample   float64
}

// fileConfig mirrors the optional YAML config file.
type fileConfig struct {
	ListenAddr     string   `yaml:"listenAddr"`
	WebDir         string   `yaml:"webDir"`
	YTDLPPath      string   `yaml:"ytdlpPath"`
	FFmpegPath     string   `yaml:"ffmpegPath"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	LogLevel       string   `yaml:"logLevel"`
	MetricsEnabled *bool    `yaml:"metricsEnabled"`
	MetricsAddr    string   `yaml:"metricsAddr"`
	KillGrace      string   `yaml:"killGrace"`
}

// Load builds the App configuration. path may be empty (no config file); a
// missing file at an explicitly given path is an error.
func Load(path string) (App, error) {
	cfg := App{
		ListenAddr:      ":3000",
		WebDir:          "",
		YTDLPPath:       "yt-dlp",
		FFmpegPath:      "ffmpeg",
		AllowedOrigins:  []string{"*"},
		LogLevel:        "info",
		MetricsEnabled:  true,
		MetricsAddr:     "",
		KillGrace:       3 * time.Second,
		TracingExporter: "http",
		TracingSample:   1.0,
	}

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
		if err != nil {
			return App{}, fmt.Errorf("read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return App{}, fmt.Errorf("parse config file %s: %w", path, err)
		}
		applyFile(&cfg, fc)
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

func applyFile(cfg *App, fc fileConfig) {
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}
	if fc.WebDir != "" {
		cfg.WebDir = fc.WebDir
	}
	if fc.YTDLPPath != "" {
		cfg.YTDLPPath = fc.YTDLPPath
	}
	if fc.FFmpegPath != "" {
		cfg.FFmpegPath = fc.FFmpegPath
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.MetricsEnabled != nil {
		cfg.MetricsEnabled = *fc.MetricsEnabled
	}
	if fc.MetricsAddr != "" {
		cfg.MetricsAddr = fc.MetricsAddr
	}
	if fc.KillGrace != "" {
		if d, err := time.ParseDuration(fc.KillGrace); err == nil {
			cfg.KillGrace = d
		}
	}
}

func applyEnv(cfg *App) {
	cfg.ListenAddr = ParseString("MEDIAFETCH_LISTEN", cfg.ListenAddr)
	// PORT alone (the original deployment convention) also works.
	if port := ParseString("PORT", ""); port != "" && os.Getenv("MEDIAFETCH_LISTEN") == "" {
		cfg.ListenAddr = ":" + port
	}
	cfg.WebDir = ParseString("MEDIAFETCH_WEB_DIR", cfg.WebDir)
	cfg.YTDLPPath = ParseString("MEDIAFETCH_YTDLP_PATH", cfg.YTDLPPath)
	cfg.FFmpegPath = ParseString("MEDIAFETCH_FFMPEG_PATH", cfg.FFmpegPath)
	if origins := ParseString("MEDIAFETCH_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitCSV(origins)
	}
	cfg.LogLevel = ParseString("MEDIAFETCH_LOG_LEVEL", cfg.LogLevel)
	cfg.MetricsEnabled = ParseBool("MEDIAFETCH_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsAddr = ParseString("MEDIAFETCH_METRICS_ADDR", cfg.MetricsAddr)
	cfg.KillGrace = ParseDuration("MEDIAFETCH_KILL_GRACE", cfg.KillGrace)

	cfg.TracingEnabled = ParseBool("MEDIAFETCH_TRACING_ENABLED", cfg.TracingEnabled)
	cfg.TracingExporter = ParseString("MEDIAFETCH_TRACING_EXPORTER", cfg.TracingExporter)
	cfg.TracingEndpoint = ParseString("MEDIAFETCH_TRACING_ENDPOINT", cfg.TracingEndpoint)
	cfg.TracingSample = ParseFloat("MEDIAFETCH_TRACING_SAMPLE", cfg.TracingSample)
}

func (c App) validate() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen address must not be empty")
	}
	if strings.TrimSpace(c.YTDLPPath) == "" {
		return fmt.Errorf("yt-dlp path must not be empty")
	}
	if strings.TrimSpace(c.FFmpegPath) == "" {
		return fmt.Errorf("ffmpeg path must not be empty")
	}
	if c.KillGrace <= 0 {
		return fmt.Errorf("kill grace must be positive, got %s", c.KillGrace)
	}
	return nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
