// Package api provides the HTTP surface of MediaFetch: the JSON endpoints,
// the download streaming endpoint, and the static catch-all.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/brrrr1/MediaFetch/internal/api/middleware"
	"github.com/brrrr1/MediaFetch/internal/config"
	"github.com/brrrr1/MediaFetch/internal/log"
	"github.com/brrrr1/MediaFetch/internal/media"
	"github.com/brrrr1/MediaFetch/internal/pipeline"
)

// metadataResolver is the lookup the server depends on. Satisfied by
// *media.Resolver; narrowed to an interface so handler tests can stub it.
type metadataResolver interface {
	Resolve(ctx context.Context, rawURL string) (media.Metadata, error)
}

// Server wires the domain components behind the HTTP routes. Configuration
// is read-only after construction; every download request gets its own
// pipeline run with no shared mutable state between requests.
type Server struct {
	cfg      config.App
	tools    media.Tools
	resolver metadataResolver
	orch     *pipeline.Orchestrator
	logger   zerolog.Logger
}

// New constructs the API server from the startup configuration.
func New(cfg config.App) *Server {
	return &Server{
		cfg:      cfg,
		tools:    media.Tools{YTDLP: cfg.YTDLPPath, FFmpeg: cfg.FFmpegPath},
		resolver: media.NewResolver(cfg.YTDLPPath),
		orch:     pipeline.New(cfg.KillGrace),
		logger:   log.WithComponent("api"),
	}
}

// Handler builds the routed HTTP handler with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableCORS:     true,
		AllowedOrigins: s.cfg.AllowedOrigins,
		EnableMetrics:  s.cfg.MetricsEnabled,
		TracingService: "mediafetch-api",
		EnableLogging:  true,
	})

	r.Get("/api/health", s.handleHealth)
	r.Post("/api/info", s.handleInfo)
	r.Get("/api/download", s.handleDownload)

	if s.cfg.MetricsEnabled && s.cfg.MetricsAddr == "" {
		r.Handle("/metrics", promhttp.Handler())
	}

	if s.cfg.WebDir != "" {
		r.NotFound(s.secureFileServer().ServeHTTP)
		s.logger.Debug().
			Str("web_dir", s.cfg.WebDir).
			Msg("static catch-all enabled")
	}

	return r
}
