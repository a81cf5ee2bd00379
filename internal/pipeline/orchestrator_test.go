package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/brrrr1/MediaFetch/internal/media"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// memorySink records header and write ordering so tests can assert the
// commit-before-bytes guarantee.
type memorySink struct {
	mu      sync.Mutex
	headers map[string]string
	data    []byte
	// true if a header was set after the first byte arrived
	headerAfterByte bool
	writeErr        error
}

func newMemorySink() *memorySink {
	return &memorySink{headers: make(map[string]string)}
}

func (s *memorySink) SetHeader(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.data) > 0 {
		s.headerAfterByte = true
	}
	s.headers[key] = value
}

func (s *memorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.data = append(s.data, p...)
	return len(p), nil
}

func (s *memorySink) bytes() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.data...)
}

func stubStage(t *testing.T, name, script string) media.StageSpec {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stub stages require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))
	return media.StageSpec{Name: name, Executable: path}
}

func planOf(stages ...media.StageSpec) media.Plan {
	for i := range stages {
		if i == len(stages)-1 {
			stages[i].Role |= media.RoleTerminal
		}
	}
	return media.Plan{
		Stages:      stages,
		Filename:    "out.bin",
		ContentType: "application/octet-stream",
	}
}

func TestRunSingleStage(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()

	plan := planOf(stubStage(t, "producer", `printf 'hello world'`))

	n, err := orch.Run(context.Background(), plan, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(11), n)
	assert.Equal(t, "hello world", string(sink.bytes()))
	assert.Equal(t, `attachment; filename="out.bin"`, sink.headers["Content-Disposition"])
	assert.Equal(t, "application/octet-stream", sink.headers["Content-Type"])
	assert.False(t, sink.headerAfterByte, "headers must be committed before the first byte")
}

func TestRunTwoStagePipe(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()

	plan := planOf(
		stubStage(t, "producer", `printf 'abc'`),
		stubStage(t, "transformer", `tr 'a-z' 'A-Z'`),
	)

	n, err := orch.Run(context.Background(), plan, sink)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, "ABC", string(sink.bytes()))
}

func TestRunEmptyPlan(t *testing.T) {
	orch := New(time.Second)
	_, err := orch.Run(context.Background(), media.Plan{}, newMemorySink())
	require.Error(t, err)
}

func TestRunLaunchFailure(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()

	plan := planOf(media.StageSpec{Name: "ghost", Executable: "/nonexistent/tool"})

	n, err := orch.Run(context.Background(), plan, sink)
	require.Error(t, err)
	assert.Zero(t, n)

	var launchErr *LaunchError
	require.ErrorAs(t, err, &launchErr)
	assert.Equal(t, "ghost", launchErr.Stage)
}

func TestRunStageFailureBeforeOutput(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()

	plan := planOf(stubStage(t, "broken", `echo 'boom' >&2; exit 3`))

	n, err := orch.Run(context.Background(), plan, sink)
	require.Error(t, err)
	assert.Zero(t, n, "failed stage must not have produced sink bytes")

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "broken", stageErr.Stage)
	assert.Equal(t, 3, stageErr.ExitCode)
}

func TestRunStageFailureMidStream(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()

	plan := planOf(stubStage(t, "flaky", `printf 'partial'; exit 2`))

	n, err := orch.Run(context.Background(), plan, sink)
	require.Error(t, err)
	assert.Equal(t, int64(7), n)
	assert.Equal(t, "partial", string(sink.bytes()))

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, 2, stageErr.ExitCode)
}

func TestRunProducerFailurePropagates(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()

	plan := planOf(
		stubStage(t, "producer", `exit 5`),
		stubStage(t, "transformer", `cat`),
	)

	_, err := orch.Run(context.Background(), plan, sink)
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "producer", stageErr.Stage)
	assert.Equal(t, 5, stageErr.ExitCode)
}

func TestRunDownstreamFailureTerminatesProducer(t *testing.T) {
	orch := New(200 * time.Millisecond)
	sink := newMemorySink()

	// The producer streams forever; only tearing the whole pipeline down on
	// the transformer's failure lets the run finish.
	plan := planOf(
		stubStage(t, "producer", `while :; do printf 'data'; sleep 0.05; done`),
		stubStage(t, "transformer", `exit 1`),
	)

	done := make(chan struct{})
	var n int64
	var err error
	go func() {
		defer close(done)
		n, err = orch.Run(context.Background(), plan, sink)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("downstream stage failure did not unwind the pipeline")
	}

	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, "transformer", stageErr.Stage)
	assert.Equal(t, 1, stageErr.ExitCode)
	assert.Zero(t, n, "no bytes may reach the sink when the terminal stage dies silently")
}

func TestRunSinkFailureTerminatesProducer(t *testing.T) {
	orch := New(200 * time.Millisecond)
	sink := newMemorySink()
	sink.writeErr = os.ErrClosed

	plan := planOf(stubStage(t, "producer", `while :; do printf 'data'; sleep 0.05; done`))

	done := make(chan struct{})
	var err error
	go func() {
		defer close(done)
		_, err = orch.Run(context.Background(), plan, sink)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("sink failure did not unwind the pipeline")
	}

	require.Error(t, err)
	require.NotErrorIs(t, err, ErrCancelled)
	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
}

func TestRunCancellation(t *testing.T) {
	orch := New(200 * time.Millisecond)
	sink := newMemorySink()

	plan := planOf(stubStage(t, "slow", `sleep 30`))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var n int64
	var err error
	go func() {
		defer close(done)
		n, err = orch.Run(ctx, plan, sink)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancellation")
	}

	require.ErrorIs(t, err, ErrCancelled)
	assert.Zero(t, n)
}

func TestRunAlreadyCancelledContext(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()

	plan := planOf(stubStage(t, "never", `sleep 30`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := orch.Run(ctx, plan, sink)
	require.ErrorIs(t, err, ErrCancelled)
}

func TestRunSinkWriteFailure(t *testing.T) {
	orch := New(time.Second)
	sink := newMemorySink()
	sink.writeErr = os.ErrClosed

	plan := planOf(stubStage(t, "producer", `printf 'data'`))

	n, err := orch.Run(context.Background(), plan, sink)
	require.Error(t, err)
	assert.Zero(t, n)

	var relayErr *RelayError
	require.ErrorAs(t, err, &relayErr)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "headers_sent", StateHeadersSent.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "completed", StateCompleted.String())
	assert.Equal(t, "failed", StateFailed.String())
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "unknown", State(99).String())
}
