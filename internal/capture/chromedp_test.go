package capture

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAllocatorOptions(t *testing.T) {
	t.Parallel()

	base := allocatorOptions(LaunchOptions{})
	full := allocatorOptions(LaunchOptions{
		Width:     800,
		Height:    600,
		UserAgent: "agent",
		ExecPath:  "/usr/bin/chromium",
		CIMode:    true,
	})
	assert.Len(t, full, len(base)+4)
}

func TestForwardCancel(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	defer stop()
	cancelParent()

	select {
	case <-child.Done():
	case <-time.After(time.Second):
		t.Fatal("child context was not canceled")
	}
}

func TestForwardCancelStop(t *testing.T) {
	t.Parallel()

	parent, cancelParent := context.WithCancel(context.Background())
	child, cancelChild := context.WithCancel(context.Background())
	defer cancelChild()

	stop := forwardCancel(parent, cancelChild)
	stop()
	cancelParent()

	time.Sleep(20 * time.Millisecond)
	assert.NoError(t, child.Err())
}

type memorySink struct {
	data []byte
}

func (s *memorySink) Save(_ context.Context, name string, data []byte) (string, error) {
	s.data = data
	return name, nil
}

func TestPollReady(t *testing.T) {
	t.Parallel()

	t.Run("ReadyAfterFailures", func(t *testing.T) {
		t.Parallel()
		calls := 0
		err := pollReady(context.Background(), time.Millisecond, func(context.Context) (bool, error) {
			calls++
			switch calls {
			case 1:
				return false, errors.New("execution context was destroyed")
			case 2:
				return false, nil
			default:
				return true, nil
			}
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("TimeoutKeepsLastEvaluationError", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := pollReady(ctx, time.Millisecond, func(context.Context) (bool, error) {
			return false, errors.New("cannot find context with specified id")
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Contains(t, err.Error(), "cannot find context with specified id")
	})

	t.Run("TimeoutWithoutEvaluationError", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := pollReady(ctx, time.Millisecond, func(context.Context) (bool, error) {
			return false, nil
		})
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotContains(t, err.Error(), "last evaluation error")
	})
}

func TestChromedpCaptureIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser integration test in short mode")
	}
	execPath, ok := FindExecPath("")
	if !ok {
		t.Skip("no Chrome binary available")
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><h1>hello</h1></body></html>`))
	}))
	defer srv.Close()

	tiers := LocalTiers()
	tiers.Settle = 0
	tiers.MaxRetries = 1
	sink := &memorySink{}
	engine := NewEngine(NewChromedpLauncher(), sink, noSleep{}, Options{Tiers: tiers, ExecPath: execPath}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	res := engine.Capture(ctx, Target{URL: srv.URL, Width: 640, Height: 480}, "local.png")

	require.True(t, res.Success, "capture failed: %v", res.Err)
	assert.True(t, bytes.HasPrefix(sink.data, []byte("\x89PNG")))
}

type noSleep struct{}

func (noSleep) Sleep(context.Context, time.Duration) error { return nil }
