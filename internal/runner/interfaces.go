package runner

import (
	"context"
	"time"

	"github.com/JakeFAU/screenshot-daily/internal/capture"
)

// Prober reports whether a URL answers with HTTP 200.
type Prober interface {
	Reachable(ctx context.Context, url string) bool
}

// Capturer screenshots one target. It reports failures in the Result.
type Capturer interface {
	Capture(ctx context.Context, target capture.Target, fileName string) capture.Result
}

// OutputDir is the directory screenshots are written to.
type OutputDir interface {
	Dir() string
	Ensure() error
	Clear(ctx context.Context) error
}

// Pusher makes the output directory public, e.g. by git push.
type Pusher interface {
	Push(ctx context.Context, dir string) error
}

// Notifier announces image URLs.
type Notifier interface {
	SendImages(ctx context.Context, urls []string) error
}

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
