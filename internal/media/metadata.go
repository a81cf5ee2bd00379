package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/brrrr1/MediaFetch/internal/log"
	"github.com/brrrr1/MediaFetch/internal/telemetry"
)

// Metadata is the normalized record produced once per /api/info request.
type Metadata struct {
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail,omitempty"`
	Duration  string `json:"duration"`
	Platform  string `json:"platform"`
}

// Resolver invokes the extraction tool in metadata-only mode.
type Resolver struct {
	ytdlp  string
	logger zerolog.Logger
}

// NewResolver returns a Resolver using the given yt-dlp binary.
func NewResolver(ytdlpPath string) *Resolver {
	return &Resolver{
		ytdlp:  ytdlpPath,
		logger: log.WithComponent("resolver"),
	}
}

// ytdlpInfo is the subset of yt-dlp --dump-json output we consume.
type ytdlpInfo struct {
	Title      string `json:"title"`
	Thumbnail  string `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
	Duration       float64 `json:"duration"`
	DurationString string  `json:"duration_string"`
	ExtractorKey   string  `json:"extractor_key"`
}

// Resolve runs the extraction tool once, bounded by ctx, and normalizes its
// structured output. A failed attempt surfaces as *ResolutionError
// immediately; there are no retries and never a partial record.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (Metadata, error) {
	tracer := telemetry.Tracer("mediafetch.resolver")
	ctx, span := tracer.Start(ctx, "media.resolve",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String(telemetry.MediaURLKey, rawURL)),
	)
	defer span.End()

	start := time.Now()

	// #nosec G204 -- binary path comes from startup config, URL is a single argv entry
	cmd := exec.CommandContext(ctx, r.ytdlp, "--dump-json", "--no-warnings", rawURL)
	out, err := cmd.Output()
	if err != nil {
		observeResolve(time.Since(start), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction tool failed")

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			r.logger.Warn().
				Str("event", "resolve.tool_failed").
				Str("url", rawURL).
				Int("exit_code", exitErr.ExitCode()).
				Str("stderr", truncateForLog(string(exitErr.Stderr), 500)).
				Msg("extraction tool exited non-zero")
		}
		return Metadata{}, &ResolutionError{URL: rawURL, Err: fmt.Errorf("run extraction tool: %w", err)}
	}

	var info ytdlpInfo
	if err := json.Unmarshal(out, &info); err != nil {
		observeResolve(time.Since(start), false)
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparsable tool output")
		return Metadata{}, &ResolutionError{URL: rawURL, Err: fmt.Errorf("parse tool output: %w", err)}
	}
	if info.Title == "" {
		observeResolve(time.Since(start), false)
		span.SetStatus(codes.Error, "no usable title")
		return Metadata{}, &ResolutionError{URL: rawURL, Err: errors.New("no usable title in extractor output")}
	}

	meta := Metadata{
		Title:     info.Title,
		Thumbnail: pickThumbnail(info),
		Duration:  displayDuration(info),
		Platform:  platformLabel(info.ExtractorKey),
	}

	observeResolve(time.Since(start), true)
	span.SetAttributes(attribute.String(telemetry.PlatformKey, meta.Platform))
	span.SetStatus(codes.Ok, "resolved")

	r.logger.Debug().
		Str("event", "resolve.ok").
		Str("url", rawURL).
		Str("platform", meta.Platform).
		Str("duration", meta.Duration).
		Msg("metadata resolved")

	return meta, nil
}

// pickThumbnail prefers the last entry of the thumbnails list (yt-dlp orders
// them worst to best), falling back to the single thumbnail field.
func pickThumbnail(info ytdlpInfo) string {
	if n := len(info.Thumbnails); n > 0 && info.Thumbnails[n-1].URL != "" {
		return info.Thumbnails[n-1].URL
	}
	return info.Thumbnail
}

// displayDuration prefers the tool's pre-formatted string; otherwise raw
// seconds are rendered as M:SS.
func displayDuration(info ytdlpInfo) string {
	if info.DurationString != "" {
		return info.DurationString
	}
	return FormatDuration(info.Duration)
}

// FormatDuration renders whole seconds as M:SS with zero-padded seconds.
func FormatDuration(seconds float64) string {
	total := int(seconds)
	if total < 0 {
		total = 0
	}
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

// platformLabel upper-cases the first rune of the extractor key, falling back
// to a generic label when absent.
func platformLabel(key string) string {
	if key == "" {
		return "Video"
	}
	r, size := utf8.DecodeRuneInString(key)
	return string(unicode.ToUpper(r)) + key[size:]
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + fmt.Sprintf("... (truncated, %d bytes total)", len(s))
}
