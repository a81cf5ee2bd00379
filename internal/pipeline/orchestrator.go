// Package pipeline launches the subprocess topology described by a media.Plan
// and relays the terminal stage's output into an HTTP response sink. One run
// exists per download request; its processes never outlive the response.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/brrrr1/MediaFetch/internal/log"
	"github.com/brrrr1/MediaFetch/internal/media"
	"github.com/brrrr1/MediaFetch/internal/procgroup"
	"github.com/brrrr1/MediaFetch/internal/telemetry"
)

// State tracks a run through its lifecycle. Exactly one terminal state is
// reached per run.
type State int32

const (
	StateIdle State = iota
	StateHeadersSent
	StateStreaming
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateHeadersSent:
		return "headers_sent"
	case StateStreaming:
		return "streaming"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Orchestrator drives pipeline runs. Safe for concurrent use; each Run owns
// its processes and pipes exclusively.
type Orchestrator struct {
	grace time.Duration
}

// New returns an Orchestrator that allows grace between SIGTERM and SIGKILL
// when tearing down stages.
func New(grace time.Duration) *Orchestrator {
	return &Orchestrator{grace: grace}
}

// Run executes the plan against the sink. Headers are committed strictly
// before any process launch, which strictly precedes any byte reaching the
// sink. The returned byte count tells the caller whether a structured error
// response is still possible (zero bytes) or the connection must be dropped.
//
// Cancellation of ctx (client disconnect, server shutdown) terminates every
// stage process; Run returns ErrCancelled in that case.
func (o *Orchestrator) Run(ctx context.Context, plan media.Plan, sink Sink) (int64, error) {
	if len(plan.Stages) == 0 {
		return 0, errors.New("empty pipeline plan")
	}

	tracer := telemetry.Tracer("mediafetch.pipeline")
	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.Int(telemetry.StageCountKey, len(plan.Stages))),
	)
	defer span.End()

	r := &run{
		plan:   plan,
		sink:   sink,
		grace:  o.grace,
		logger: log.WithComponentFromContext(ctx, "pipeline"),
	}
	defer r.teardown()

	err := r.execute(ctx)
	bytes := r.out.count.Load()

	recordRun(r.state, bytes)
	span.SetAttributes(
		attribute.Int64(telemetry.BytesOutKey, bytes),
		attribute.String(telemetry.RunOutcomeKey, r.state.String()),
	)
	if err != nil && !errors.Is(err, ErrCancelled) {
		span.RecordError(err)
		span.SetStatus(codes.Error, r.state.String())
	} else {
		span.SetStatus(codes.Ok, r.state.String())
	}

	return bytes, err
}

// run is the live handle for one plan execution: the PipelineRun of the data
// model. It owns the stage processes and their pipes for the request's
// lifetime.
type run struct {
	plan   media.Plan
	sink   Sink
	grace  time.Duration
	logger zerolog.Logger

	state   State
	cmds    []*exec.Cmd
	reaping bool // waiter goroutines own the cmd.Waits
	out     countingWriter
}

func (r *run) transition(next State) {
	r.logger.Debug().
		Str("event", "pipeline.state").
		Str("old_state", r.state.String()).
		Str("new_state", next.String()).
		Msg("state transition")
	r.state = next
}

func (r *run) execute(ctx context.Context) error {
	// Header commit. Must happen before any process starts so that an early
	// failure can still be converted into a structured error response.
	r.sink.SetHeader("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.plan.Filename))
	r.sink.SetHeader("Content-Type", r.plan.ContentType)
	r.transition(StateHeadersSent)
	r.out.sink = r.sink

	terminalOut, stderrs, err := r.wire()
	if err != nil {
		r.transition(StateFailed)
		return err
	}

	if err := r.launch(ctx); err != nil {
		r.transition(StateFailed)
		return err
	}
	r.transition(StateStreaming)

	// Stderr is diagnostic only: logged line by line, never relayed, never a
	// state trigger by itself.
	var scanDone []chan struct{}
	for i, stderr := range stderrs {
		ch := make(chan struct{})
		scanDone = append(scanDone, ch)
		go r.scanStderr(r.plan.Stages[i].Name, stderr, ch)
	}

	r.reaping = true
	g := &errgroup.Group{}
	last := len(r.cmds) - 1

	// A failed stage must bring the rest of the pipeline down with it.
	// The parent keeps pipe ends open until each stage's Wait, so an
	// upstream producer never sees EPIPE on its own and would block
	// writing forever.
	failStage := func(err error) error {
		if err != nil {
			r.terminateAll()
		}
		return err
	}

	for i := 0; i < last; i++ {
		i := i
		g.Go(func() error {
			<-scanDone[i]
			return failStage(r.reap(i))
		})
	}
	g.Go(func() error {
		_, copyErr := io.Copy(&r.out, terminalOut)
		if copyErr != nil {
			// The sink is gone; stop stages that are still producing.
			r.terminateAll()
		}
		<-scanDone[last]
		waitErr := failStage(r.reap(last))
		if copyErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &RelayError{Err: copyErr}
		}
		return waitErr
	})

	// Single cancellation entry point: client disconnect and server shutdown
	// both arrive as ctx cancellation and terminate exactly this run's stages.
	finished := make(chan struct{})
	var watch sync.WaitGroup
	watch.Add(1)
	go func() {
		defer watch.Done()
		select {
		case <-ctx.Done():
			r.logger.Info().
				Str("event", "pipeline.cancelled").
				Msg("context done, terminating stages")
			r.terminateAll()
		case <-finished:
		}
	}()

	err = g.Wait()
	close(finished)
	watch.Wait()

	switch {
	case ctx.Err() != nil:
		r.transition(StateCancelled)
		return ErrCancelled
	case err != nil:
		r.transition(StateFailed)
		return err
	default:
		r.transition(StateCompleted)
		return nil
	}
}

// wire builds the stage commands and connects stage i's stdout to stage
// i+1's stdin via OS pipes. The kernel pipe is the only buffer between
// stages, so sink backpressure throttles producers naturally.
func (r *run) wire() (io.Reader, []io.Reader, error) {
	n := len(r.plan.Stages)
	r.cmds = make([]*exec.Cmd, n)
	stderrs := make([]io.Reader, n)

	var prevOut io.ReadCloser
	var terminalOut io.Reader
	for i, st := range r.plan.Stages {
		// #nosec G204 -- executables come from startup config, args from the pure plan builder
		cmd := exec.Command(st.Executable, st.Args...)
		procgroup.Set(cmd)
		if i > 0 {
			cmd.Stdin = prevOut
		}

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			return nil, nil, &LaunchError{Stage: st.Name, Err: err}
		}
		if i < n-1 {
			prevOut = stdout
		} else {
			terminalOut = stdout
		}

		stderr, err := cmd.StderrPipe()
		if err != nil {
			return nil, nil, &LaunchError{Stage: st.Name, Err: err}
		}
		stderrs[i] = stderr
		r.cmds[i] = cmd
	}
	return terminalOut, stderrs, nil
}

func (r *run) launch(ctx context.Context) error {
	for i, cmd := range r.cmds {
		if err := ctx.Err(); err != nil {
			return ErrCancelled
		}
		if err := cmd.Start(); err != nil {
			return &LaunchError{Stage: r.plan.Stages[i].Name, Err: err}
		}
		stagesLaunchedTotal.Inc()
		r.logger.Debug().
			Str("event", "pipeline.stage_started").
			Str("stage", r.plan.Stages[i].Name).
			Int("pid", cmd.Process.Pid).
			Msg("stage process started")
	}
	return nil
}

func (r *run) scanStderr(stage string, stderr io.Reader, done chan<- struct{}) {
	defer close(done)
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		r.logger.Debug().
			Str("event", "pipeline.stage_stderr").
			Str("stage", stage).
			Str("line", scanner.Text()).
			Msg("stage diagnostic output")
	}
}

func (r *run) reap(i int) error {
	err := r.cmds[i].Wait()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		r.logger.Warn().
			Str("event", "pipeline.stage_failed").
			Str("stage", r.plan.Stages[i].Name).
			Int("exit_code", exitErr.ExitCode()).
			Msg("stage exited non-zero")
		return &StageError{Stage: r.plan.Stages[i].Name, ExitCode: exitErr.ExitCode(), Err: err}
	}
	return &StageError{Stage: r.plan.Stages[i].Name, ExitCode: -1, Err: err}
}

// terminateAll signals every stage group: SIGTERM now, SIGKILL after the
// grace. Signalling exited processes is a no-op, so this is idempotent.
func (r *run) terminateAll() {
	for _, cmd := range r.cmds {
		procgroup.Terminate(cmd, r.grace)
	}
}

// teardown is the single cleanup path, reached from every terminal state. It
// force-kills whatever might still be running and, when the waiter goroutines
// never started (launch failure), reaps started processes here.
func (r *run) teardown() {
	for _, cmd := range r.cmds {
		if cmd == nil || cmd.Process == nil {
			continue
		}
		_ = procgroup.Kill(cmd)
	}
	if !r.reaping {
		for _, cmd := range r.cmds {
			if cmd != nil && cmd.Process != nil {
				_ = cmd.Wait()
			}
		}
	}
}

// countingWriter relays bytes to the sink while tracking how many made it
// out; the caller uses the count to decide whether headers were committed.
type countingWriter struct {
	sink  Sink
	count atomic.Int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.sink.Write(p)
	w.count.Add(int64(n))
	return n, err
}
