package capture

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrLaunch marks a browser that could not be started.
	ErrLaunch = errors.New("browser launch failed")
	// ErrRetriesExhausted marks a capture that failed on every attempt.
	ErrRetriesExhausted = errors.New("capture retries exhausted")
	// ErrSave marks a screenshot that was taken but could not be written.
	ErrSave = errors.New("screenshot save failed")
)

// Target is one URL to capture at a fixed viewport.
type Target struct {
	URL    string
	Width  int
	Height int
}

// Result is the outcome of capturing one Target.
type Result struct {
	URL      string
	Path     string
	Success  bool
	Attempts int
	Duration time.Duration
	Err      error
}

// WaitCondition selects how long navigation waits before returning.
type WaitCondition int

const (
	// WaitDOMContentLoaded waits until the document has been parsed.
	WaitDOMContentLoaded WaitCondition = iota
	// WaitCommit returns as soon as the navigation has been committed.
	WaitCommit
)

// String implements fmt.Stringer.
func (w WaitCondition) String() string {
	switch w {
	case WaitDOMContentLoaded:
		return "domcontentloaded"
	case WaitCommit:
		return "commit"
	default:
		return "unknown"
	}
}

// LaunchOptions configures one browser process.
type LaunchOptions struct {
	Width     int
	Height    int
	UserAgent string
	ExecPath  string
	CIMode    bool
}

// Launcher starts an isolated browser.
type Launcher interface {
	Launch(ctx context.Context, opts LaunchOptions) (Browser, error)
}

// Browser is a single page in a dedicated browser process. Close must
// release the process.
type Browser interface {
	Navigate(ctx context.Context, url string, wait WaitCondition) error
	WaitVisible(ctx context.Context, selector string) error
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// ImageSink persists screenshot bytes under a file name and returns the path.
type ImageSink interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// Sleeper waits between steps.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
