package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brrrr1/MediaFetch/internal/config"
	"github.com/brrrr1/MediaFetch/internal/log"
	"github.com/brrrr1/MediaFetch/internal/media"
	"github.com/brrrr1/MediaFetch/internal/pipeline"
)

func newFileServerTest(t *testing.T) (*Server, string) {
	t.Helper()
	webDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(webDir, "app.js"), []byte("console.log(1)"), 0o644))

	srv := &Server{
		cfg: config.App{
			ListenAddr:     ":0",
			WebDir:         webDir,
			AllowedOrigins: []string{"*"},
			KillGrace:      time.Second,
		},
		tools:    media.Tools{},
		resolver: &stubResolver{},
		orch:     pipeline.New(time.Second),
		logger:   log.WithComponent("api"),
	}
	return srv, webDir
}

func TestFileServerServesIndex(t *testing.T) {
	srv, _ := newFileServerTest(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<html>app</html>", rec.Body.String())
}

func TestFileServerServesAsset(t *testing.T) {
	srv, _ := newFileServerTest(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/app.js", nil)

	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestFileServerNotFound(t *testing.T) {
	srv, _ := newFileServerTest(t)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/missing.css", nil)

	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileServerETagRoundTrip(t *testing.T) {
	srv, _ := newFileServerTest(t)

	first := httptest.NewRecorder()
	srv.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/app.js", nil))
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)

	second := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/app.js", nil)
	req.Header.Set("If-None-Match", etag)
	srv.Handler().ServeHTTP(second, req)
	assert.Equal(t, http.StatusNotModified, second.Code)
}

func TestFileServerBlocksTraversal(t *testing.T) {
	srv, webDir := newFileServerTest(t)
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(webDir), "secret.txt"), []byte("secret"), 0o600))

	for _, path := range []string{
		"/../secret.txt",
		"/%2e%2e/secret.txt",
		"/..%2fsecret.txt",
		"/%252e%252e/secret.txt",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.secureFileServer().ServeHTTP(rec, req)
		assert.NotEqual(t, http.StatusOK, rec.Code, "path %s must not be served", path)
		assert.NotContains(t, rec.Body.String(), "secret", "path %s leaked content", path)
	}
}

func TestIsPathTraversal(t *testing.T) {
	assert.True(t, isPathTraversal("/../etc/passwd"))
	assert.True(t, isPathTraversal("/%2e%2e/x"))
	assert.True(t, isPathTraversal("/a/%252e%252e/b"))
	assert.True(t, isPathTraversal("/a\x00b"))
	assert.False(t, isPathTraversal("/index.html"))
	assert.False(t, isPathTraversal("/assets/app.js"))
}
