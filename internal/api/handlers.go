package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brrrr1/MediaFetch/internal/log"
	"github.com/brrrr1/MediaFetch/internal/media"
	"github.com/brrrr1/MediaFetch/internal/pipeline"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"message": "MediaFetch Backend is running",
	})
}

type infoRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	var req infoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if err := media.ValidateReference(req.URL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	meta, err := s.resolver.Resolve(r.Context(), req.URL)
	if err != nil {
		logger.Warn().Err(err).
			Str("event", "info.resolve_failed").
			Str("url", req.URL).
			Msg("metadata resolution failed")
		writeError(w, http.StatusInternalServerError, "Failed to get video info")
		return
	}

	writeJSON(w, http.StatusOK, meta)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "api")

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusBadRequest, "URL is required")
		return
	}
	if err := media.ValidateReference(rawURL); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind := media.ParseOutputKind(r.URL.Query().Get("format"))

	logger.Info().
		Str("event", "download.start").
		Str("url", rawURL).
		Str("format", kind.String()).
		Msg("starting download")

	// The title drives the attachment filename, so a download needs one
	// resolver round trip before any stage launches.
	meta, err := s.resolver.Resolve(r.Context(), rawURL)
	if err != nil {
		logger.Warn().Err(err).
			Str("event", "download.resolve_failed").
			Str("url", rawURL).
			Msg("metadata resolution failed")
		writeError(w, http.StatusInternalServerError, "Failed to get video info")
		return
	}

	plan := media.BuildPlan(s.tools, rawURL, kind, meta.Title)

	written, err := s.orch.Run(r.Context(), plan, newHTTPSink(w))
	switch {
	case err == nil:
		logger.Info().
			Str("event", "download.completed").
			Int64("bytes", written).
			Str("filename", plan.Filename).
			Msg("download completed")

	case errors.Is(err, pipeline.ErrCancelled):
		// Client went away; nothing to answer.
		logger.Info().
			Str("event", "download.cancelled").
			Int64("bytes", written).
			Msg("client disconnected")

	case written == 0:
		// Nothing reached the wire yet, so a structured error is still
		// possible. Drop the attachment headers committed for the stream.
		logger.Error().Err(err).
			Str("event", "download.failed").
			Msg("pipeline failed before first byte")
		clearDownloadHeaders(w)
		writeError(w, http.StatusInternalServerError, "Download failed")

	default:
		// Binary bytes already flowed; there is no in-band way to signal
		// failure. Drop the connection so the client sees a truncated body.
		logger.Error().Err(err).
			Str("event", "download.aborted").
			Int64("bytes", written).
			Msg("pipeline failed mid-stream, aborting connection")
		panic(http.ErrAbortHandler)
	}
}

// httpSink adapts an http.ResponseWriter to the pipeline sink contract,
// flushing after each write so bytes reach the client promptly.
type httpSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func newHTTPSink(w http.ResponseWriter) *httpSink {
	s := &httpSink{w: w}
	if f, ok := w.(http.Flusher); ok {
		s.flusher = f
	}
	return s
}

func (s *httpSink) SetHeader(key, value string) {
	s.w.Header().Set(key, value)
}

func (s *httpSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err == nil && s.flusher != nil {
		s.flusher.Flush()
	}
	return n, err
}
