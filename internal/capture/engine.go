// Package capture drives a headless browser to screenshot one URL at a time.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// DefaultRootSelector is the element whose presence marks rendered content.
const DefaultRootSelector = "body"

// DefaultUserAgent is a fixed desktop Chrome user agent.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// Options holds per-engine browser settings.
type Options struct {
	Tiers        Tiers
	CIMode       bool
	UserAgent    string
	ExecPath     string
	RootSelector string
}

// Engine captures screenshots with one fresh browser per Target.
type Engine struct {
	launcher Launcher
	sink     ImageSink
	sleeper  Sleeper
	opts     Options
	logger   *zap.Logger
}

// NewEngine wires the capture engine.
func NewEngine(launcher Launcher, sink ImageSink, sleeper Sleeper, opts Options, logger *zap.Logger) *Engine {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RootSelector == "" {
		opts.RootSelector = DefaultRootSelector
	}
	if opts.Tiers.MaxRetries < 0 {
		opts.Tiers.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		launcher: launcher,
		sink:     sink,
		sleeper:  sleeper,
		opts:     opts,
		logger:   logger,
	}
}

// Capture screenshots target into fileName. It never panics and never
// returns an error; failures are reported in Result.Err.
func (e *Engine) Capture(ctx context.Context, target Target, fileName string) (result Result) {
	start := time.Now()
	result = Result{URL: target.URL}
	logger := e.logger.With(zap.String("url", target.URL))
	defer func() {
		if r := recover(); r != nil {
			result.Success = false
			result.Path = ""
			result.Err = fmt.Errorf("capture panicked: %v", r)
			logger.Error("capture panicked", zap.Any("panic", r))
		}
		result.Duration = time.Since(start)
	}()

	logger.Info("capture started", zap.Int("width", target.Width), zap.Int("height", target.Height))
	browser, err := e.launcher.Launch(ctx, LaunchOptions{
		Width:     target.Width,
		Height:    target.Height,
		UserAgent: e.opts.UserAgent,
		ExecPath:  e.opts.ExecPath,
		CIMode:    e.opts.CIMode,
	})
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrLaunch, err)
		logger.Error("browser launch failed", zap.Error(err))
		return result
	}
	defer func() {
		if cerr := browser.Close(); cerr != nil {
			logger.Warn("browser close failed", zap.Error(cerr))
		}
	}()

	data, attempts, err := e.shoot(ctx, browser, target.URL, logger)
	result.Attempts = attempts
	if err != nil {
		result.Err = err
		logger.Error("capture failed", zap.Int("attempts", attempts), zap.Error(err))
		return result
	}

	path, err := e.sink.Save(ctx, fileName, data)
	if err != nil {
		result.Err = fmt.Errorf("%w: %w", ErrSave, err)
		logger.Error("screenshot save failed", zap.Error(err))
		return result
	}
	result.Path = path
	result.Success = true
	logger.Info("capture succeeded", zap.String("path", path), zap.Int("attempts", attempts))
	return result
}

// shoot runs the first attempt and then the bounded retry loop.
func (e *Engine) shoot(ctx context.Context, browser Browser, url string, logger *zap.Logger) ([]byte, int, error) {
	tiers := e.opts.Tiers
	data, err := e.firstAttempt(ctx, browser, url, logger)
	if err == nil {
		return data, 1, nil
	}
	logger.Warn("first capture attempt failed", zap.Error(err))

	lastErr := err
	attempts := 1
	for retry := 1; retry <= tiers.MaxRetries; retry++ {
		if ctx.Err() != nil {
			return nil, attempts, fmt.Errorf("capture canceled: %w", ctx.Err())
		}
		attempts++
		logger.Info("retrying capture", zap.Int("retry", retry), zap.Int("max_retries", tiers.MaxRetries))
		data, err := e.retryAttempt(ctx, browser, url)
		if err == nil {
			logger.Info("capture retry succeeded", zap.Int("retry", retry))
			return data, attempts, nil
		}
		lastErr = err
		logger.Warn("capture retry failed", zap.Int("retry", retry), zap.Error(err))
		if retry < tiers.MaxRetries {
			if serr := e.sleeper.Sleep(ctx, tiers.RetryDelay); serr != nil {
				return nil, attempts, fmt.Errorf("capture canceled: %w", serr)
			}
		}
	}
	return nil, attempts, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func (e *Engine) firstAttempt(ctx context.Context, browser Browser, url string, logger *zap.Logger) ([]byte, error) {
	tiers := e.opts.Tiers
	if err := withTimeout(ctx, tiers.Navigate, func(stepCtx context.Context) error {
		return browser.Navigate(stepCtx, url, WaitDOMContentLoaded)
	}); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := e.sleeper.Sleep(ctx, tiers.Settle); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	if err := withTimeout(ctx, tiers.RootElement, func(stepCtx context.Context) error {
		return browser.WaitVisible(stepCtx, e.opts.RootSelector)
	}); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("wait root element: %w", ctx.Err())
		}
		logger.Warn("root element not found, taking screenshot anyway",
			zap.String("selector", e.opts.RootSelector), zap.Error(err))
	}
	return e.screenshot(ctx, browser, tiers.Screenshot)
}

func (e *Engine) retryAttempt(ctx context.Context, browser Browser, url string) ([]byte, error) {
	tiers := e.opts.Tiers
	if err := withTimeout(ctx, tiers.RetryNavigate, func(stepCtx context.Context) error {
		return browser.Navigate(stepCtx, url, WaitCommit)
	}); err != nil {
		return nil, fmt.Errorf("navigate: %w", err)
	}
	if err := e.sleeper.Sleep(ctx, tiers.RetryDelay); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}
	return e.screenshot(ctx, browser, tiers.RetryScreenshot)
}

func (e *Engine) screenshot(ctx context.Context, browser Browser, timeout time.Duration) ([]byte, error) {
	var data []byte
	err := withTimeout(ctx, timeout, func(stepCtx context.Context) error {
		var err error
		data, err = browser.Screenshot(stepCtx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("screenshot: empty image")
	}
	return data, nil
}

func withTimeout(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(stepCtx)
}
