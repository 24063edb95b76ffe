// Package runner executes one screenshot run: probe, capture, publish,
// then push, notify and clean up.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/screenshot-daily/internal/capture"
	"github.com/JakeFAU/screenshot-daily/internal/config"
	"github.com/JakeFAU/screenshot-daily/internal/events"
	"github.com/JakeFAU/screenshot-daily/internal/metrics"
	"github.com/JakeFAU/screenshot-daily/internal/notify"
	"github.com/JakeFAU/screenshot-daily/internal/publish"
)

const reportTimeout = 30 * time.Second

var (
	// ErrNoCaptures is returned when no target produced a published image.
	ErrNoCaptures = errors.New("no screenshots captured")
	// ErrNotifyFailed is returned when the webhook call fails.
	ErrNotifyFailed = errors.New("notification failed")
	// ErrCleanupFailed is returned when the output directory cannot be prepared or cleared.
	ErrCleanupFailed = errors.New("output cleanup failed")
)

// Deps are the collaborators of a run. Pusher, Metrics and Events are
// optional.
type Deps struct {
	Prober    Prober
	Capturer  Capturer
	Output    OutputDir
	Publisher publish.Publisher
	Pusher    Pusher
	Notifier  Notifier
	Clock     Clock
	IDs       IDGenerator
	Metrics   *metrics.Recorder
	Events    events.Publisher
	Logger    *zap.Logger
}

// Runner drives a single run.
type Runner struct {
	cfg    config.Config
	deps   Deps
	logger *zap.Logger
}

// New constructs a Runner.
func New(cfg config.Config, deps Deps) *Runner {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps, logger: logger.Named("runner")}
}

// Mode names the run mode derived from the configuration.
func Mode(cfg config.Config) string {
	switch {
	case cfg.CIMode:
		return ModeCI
	case cfg.DebugLocal:
		return ModeDebugLocal
	default:
		return ModeLocal
	}
}

// Run executes the run. The Summary is populated even when an error is
// returned.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		r.logger.Warn("generate run id failed", zap.Error(err))
	}
	logger := r.logger.With(zap.String("run_id", runID))

	summary := Summary{
		RunID:     runID,
		Mode:      Mode(r.cfg),
		StartedAt: r.deps.Clock.Now(),
		Total:     len(r.cfg.URLs),
	}
	logger.Info("run started",
		zap.String("mode", summary.Mode),
		zap.Int("targets", summary.Total),
		zap.String("output_dir", r.deps.Output.Dir()),
	)

	runErr := r.execute(ctx, &summary, logger)
	summary.FinishedAt = r.deps.Clock.Now()

	r.report(ctx, summary, runErr, logger)
	if runErr != nil {
		logger.Error("run failed", zap.Int("succeeded", summary.Succeeded()), zap.Error(runErr))
	} else {
		logger.Info("run completed",
			zap.Int("succeeded", summary.Succeeded()),
			zap.Int("targets", summary.Total),
			zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
		)
	}
	return summary, runErr
}

func (r *Runner) execute(ctx context.Context, summary *Summary, logger *zap.Logger) error {
	if !r.cfg.NoCleanup {
		if err := r.deps.Output.Clear(ctx); err != nil {
			return fmt.Errorf("%w: clear before run: %w", ErrCleanupFailed, err)
		}
		logger.Debug("output directory cleared")
	}
	if err := r.deps.Output.Ensure(); err != nil {
		return fmt.Errorf("%w: prepare output: %w", ErrCleanupFailed, err)
	}

	for _, url := range r.cfg.URLs {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run canceled: %w", err)
		}
		r.processTarget(ctx, url, summary, logger)
	}
	logger.Info("captures finished",
		zap.Int("succeeded", summary.Succeeded()),
		zap.Int("reachable", summary.Reachable),
		zap.Int("targets", summary.Total),
	)
	if summary.Succeeded() == 0 {
		return ErrNoCaptures
	}

	if r.cfg.DebugLocal {
		if err := r.push(ctx, summary, logger); err != nil {
			return err
		}
	}

	// The pushed files stay on disk: the output directory is tracked, so
	// removing them here would leave unstaged deletions in the working tree.
	return r.announce(ctx, summary, logger)
}

func (r *Runner) processTarget(ctx context.Context, url string, summary *Summary, logger *zap.Logger) {
	logger = logger.With(zap.String("url", url))

	reachable := r.deps.Prober.Reachable(ctx, url)
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveProbe(url, reachable)
	}
	if !reachable {
		logger.Warn("url unreachable, skipping")
		summary.Skipped = append(summary.Skipped, url)
		return
	}
	summary.Reachable++

	fileName := capture.FileName(url)
	res := r.deps.Capturer.Capture(ctx, capture.Target{
		URL:    url,
		Width:  r.cfg.Width,
		Height: r.cfg.Height,
	}, fileName)

	var publicURL string
	if res.Success {
		var err error
		publicURL, err = r.deps.Publisher.Publish(ctx, res.Path, fileName)
		if err != nil {
			logger.Error("publish screenshot failed", zap.String("path", res.Path), zap.Error(err))
			res.Success = false
			res.Err = fmt.Errorf("publish: %w", err)
		}
	}
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveCapture(url, res.Success, res.Attempts, res.Duration)
	}
	summary.Results = append(summary.Results, res)
	if !res.Success {
		return
	}

	summary.Images = append(summary.Images, PublishedImage{
		SourceURL: url,
		FileName:  fileName,
		LocalPath: res.Path,
		PublicURL: publicURL,
	})
	logger.Info("screenshot published", zap.String("public_url", publicURL))
}

// push publishes the output directory and waits for the host to serve it.
// A failed push is logged and skips the wait.
func (r *Runner) push(ctx context.Context, summary *Summary, logger *zap.Logger) error {
	if r.deps.Pusher == nil {
		return nil
	}
	if err := r.deps.Pusher.Push(ctx, r.cfg.OutputDir); err != nil {
		logger.Error("push screenshots failed", zap.Error(err))
		return nil
	}
	summary.Pushed = true

	delay := r.cfg.SettleDelay()
	logger.Info("waiting for hosting to sync", zap.Duration("delay", delay))
	if err := r.deps.Clock.Sleep(ctx, delay); err != nil {
		return fmt.Errorf("settle after push: %w", err)
	}
	return nil
}

func (r *Runner) announce(ctx context.Context, summary *Summary, logger *zap.Logger) error {
	if r.cfg.CIMode {
		path := r.cfg.Publish.URLListFile
		if err := notify.SaveURLs(path, summary.URLs()); err != nil {
			logger.Error("save image url list failed", zap.String("path", path), zap.Error(err))
		} else {
			summary.URLListSaved = true
			logger.Info("image urls saved for a later notify step", zap.String("path", path))
		}
		r.observeNotification("deferred")
		return nil
	}
	if r.cfg.NoWebhook {
		logger.Info("webhook disabled")
		r.observeNotification("disabled")
		return nil
	}

	summary.NotifyAttempted = true
	err := r.deps.Notifier.SendImages(ctx, summary.URLs())
	switch {
	case err == nil:
		summary.Notified = true
		r.observeNotification("sent")
		logger.Info("notification sent", zap.Int("images", summary.Succeeded()))
		return nil
	case errors.Is(err, notify.ErrNotConfigured):
		r.observeNotification("skipped")
		logger.Warn("webhook key not configured, notification skipped")
		return nil
	default:
		r.observeNotification("failed")
		return fmt.Errorf("%w: %w", ErrNotifyFailed, err)
	}
}

func (r *Runner) observeNotification(result string) {
	if r.deps.Metrics != nil {
		r.deps.Metrics.ObserveNotification(result)
	}
}

// report publishes the run event and exports metrics. Failures are logged.
func (r *Runner) report(ctx context.Context, summary Summary, runErr error, logger *zap.Logger) {
	reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), reportTimeout)
	defer cancel()

	if r.deps.Events != nil {
		id, err := r.deps.Events.Publish(reportCtx, events.TypeRunCompleted, summary.Event(runErr))
		if err != nil {
			logger.Warn("publish run event failed", zap.Error(err))
		} else {
			logger.Debug("run event published", zap.String("message_id", id))
		}
	}

	if r.deps.Metrics == nil {
		return
	}
	r.deps.Metrics.ObserveRun(summary.Succeeded(), summary.FinishedAt.Sub(summary.StartedAt), summary.FinishedAt)
	if path := r.cfg.Metrics.Textfile; path != "" {
		if err := r.deps.Metrics.WriteTextfile(path); err != nil {
			logger.Warn("write metrics textfile failed", zap.Error(err))
		}
	}
	if gateway := r.cfg.Metrics.PushgatewayURL; gateway != "" {
		if err := r.deps.Metrics.Push(reportCtx, gateway, r.cfg.Metrics.Job); err != nil {
			logger.Warn("push metrics failed", zap.Error(err))
		}
	}
}
