package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const (
	readyPollInterval  = 100 * time.Millisecond
	domReadyExpression = `document.readyState !== "loading" && location.href !== "about:blank"`
)

// ChromedpLauncher starts a dedicated headless Chrome process per capture.
type ChromedpLauncher struct{}

// NewChromedpLauncher creates a launcher backed by chromedp.
func NewChromedpLauncher() *ChromedpLauncher {
	return &ChromedpLauncher{}
}

// Launch starts Chrome with the viewport and user agent from opts.
func (l *ChromedpLauncher) Launch(ctx context.Context, opts LaunchOptions) (Browser, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	b := &chromedpBrowser{
		tabCtx:      tabCtx,
		cancelTab:   tabCancel,
		cancelAlloc: allocCancel,
	}

	// The first Run allocates the browser and must use the tab context
	// itself; later step deadlines then only abort the step.
	if err := chromedp.Run(tabCtx, chromedp.EmulateViewport(int64(opts.Width), int64(opts.Height))); err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("start chrome: %w", err)
	}
	return b, nil
}

func allocatorOptions(opts LaunchOptions) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-software-rasterizer", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if opts.Width > 0 && opts.Height > 0 {
		out = append(out, chromedp.WindowSize(opts.Width, opts.Height))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.CIMode {
		out = append(out, chromedp.Flag("single-process", true))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	return out
}

type chromedpBrowser struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once
	closeErr    error
}

// Navigate loads url and waits according to wait.
func (b *chromedpBrowser) Navigate(ctx context.Context, url string, wait WaitCondition) error {
	return b.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var res page.NavigateReturns
		if err := cdp.Execute(ctx, page.CommandNavigate, page.Navigate(url), &res); err != nil {
			return fmt.Errorf("navigate %s: %w", url, err)
		}
		if res.ErrorText != "" {
			return fmt.Errorf("navigate %s: %s", url, res.ErrorText)
		}
		if wait == WaitCommit {
			return nil
		}
		return waitDOMContentLoaded(ctx)
	}))
}

// WaitVisible blocks until selector matches a visible element.
func (b *chromedpBrowser) WaitVisible(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// Screenshot captures the current viewport as PNG.
func (b *chromedpBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := b.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, err
	}
	return buf, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (b *chromedpBrowser) Close() error {
	b.closeOnce.Do(func() {
		err := chromedp.Cancel(b.tabCtx)
		b.cancelTab()
		b.cancelAlloc()
		if err != nil && !errors.Is(err, context.Canceled) {
			b.closeErr = fmt.Errorf("close chrome: %w", err)
		}
	})
	return b.closeErr
}

// run executes actions on the tab, bounded by ctx's deadline and cancellation.
func (b *chromedpBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(b.tabCtx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(b.tabCtx)
	}
	defer cancel()

	stopForward := forwardCancel(ctx, cancel)
	defer stopForward()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		return fmt.Errorf("chromedp run: %w", err)
	}
	return nil
}

func waitDOMContentLoaded(ctx context.Context) error {
	return pollReady(ctx, readyPollInterval, func(ctx context.Context) (bool, error) {
		var ready bool
		err := chromedp.Evaluate(domReadyExpression, &ready).Do(ctx)
		return ready, err
	})
}

// pollReady calls check every interval until it reports ready. When ctx ends
// first, the last check error is kept in the returned error.
func pollReady(ctx context.Context, interval time.Duration, check func(context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	var lastErr error
	for {
		ready, err := check(ctx)
		if err == nil && ready {
			return nil
		}
		if err != nil {
			lastErr = err
		}
		select {
		case <-ctx.Done():
			if lastErr != nil {
				return fmt.Errorf("wait dom content loaded: %w (last evaluation error: %v)", ctx.Err(), lastErr)
			}
			return fmt.Errorf("wait dom content loaded: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
