package daemon

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brrrr1/MediaFetch/internal/config"
)

func testConfig() config.App {
	return config.App{
		ListenAddr: "127.0.0.1:0",
		KillGrace:  time.Second,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestNewManagerRequiresAPIHandler(t *testing.T) {
	_, err := NewManager(testConfig(), Deps{})
	require.Error(t, err)
}

func TestShutdownBeforeStart(t *testing.T) {
	mgr, err := NewManager(testConfig(), Deps{APIHandler: okHandler()})
	require.NoError(t, err)

	err = mgr.Shutdown(context.Background())
	assert.ErrorIs(t, err, ErrManagerNotStarted)
}

func TestStartAndGracefulShutdown(t *testing.T) {
	mgr, err := NewManager(testConfig(), Deps{APIHandler: okHandler()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()

	// Let the listener come up, then signal shutdown.
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not shut down")
	}
}

func TestStartTwiceFails(t *testing.T) {
	mgr, err := NewManager(testConfig(), Deps{APIHandler: okHandler()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)

	err = mgr.Start(ctx)
	require.Error(t, err)

	cancel()
	<-done
}

func TestShutdownHooksRunInReverseOrder(t *testing.T) {
	mgr, err := NewManager(testConfig(), Deps{APIHandler: okHandler()})
	require.NoError(t, err)

	var order []string
	mgr.RegisterShutdownHook("first", func(context.Context) error {
		order = append(order, "first")
		return nil
	})
	mgr.RegisterShutdownHook("second", func(context.Context) error {
		order = append(order, "second")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("manager did not shut down")
	}

	assert.Equal(t, []string{"second", "first"}, order)
}
