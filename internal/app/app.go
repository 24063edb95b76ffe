// Package app builds the long-lived services for one invocation and owns
// their shutdown.
package app

import (
	"context"
	"fmt"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/screenshot-daily/internal/capture"
	"github.com/JakeFAU/screenshot-daily/internal/clock/system"
	"github.com/JakeFAU/screenshot-daily/internal/config"
	"github.com/JakeFAU/screenshot-daily/internal/events"
	pubsubevents "github.com/JakeFAU/screenshot-daily/internal/events/pubsub"
	"github.com/JakeFAU/screenshot-daily/internal/id/uuid"
	"github.com/JakeFAU/screenshot-daily/internal/metrics"
	"github.com/JakeFAU/screenshot-daily/internal/notify"
	"github.com/JakeFAU/screenshot-daily/internal/probe"
	"github.com/JakeFAU/screenshot-daily/internal/publish"
	"github.com/JakeFAU/screenshot-daily/internal/runner"
	"github.com/JakeFAU/screenshot-daily/internal/storage/gcs"
	"github.com/JakeFAU/screenshot-daily/internal/storage/local"
)

// Option customises App construction.
type Option func(*options)

type options struct {
	launcher      capture.Launcher
	storageClient *storage.Client
	pubsubClient  *pubsub.Client
	commandRunner publish.CommandRunner
}

// WithLauncher replaces the chromedp launcher.
func WithLauncher(l capture.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithStorageClient supplies a GCS client instead of dialing one.
func WithStorageClient(c *storage.Client) Option {
	return func(o *options) { o.storageClient = c }
}

// WithPubSubClient supplies a Pub/Sub client instead of dialing one.
func WithPubSubClient(c *pubsub.Client) Option {
	return func(o *options) { o.pubsubClient = c }
}

// WithCommandRunner replaces os/exec for git.
func WithCommandRunner(r publish.CommandRunner) Option {
	return func(o *options) { o.commandRunner = r }
}

// App holds the services shared by the commands.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	deps     runner.Deps
	notifier *notify.Notifier

	storageClient *storage.Client
	pubsubClient  *pubsub.Client
	eventsPub     *pubsubevents.Publisher
	ownsStorage   bool
	ownsPubSub    bool
}

// New wires every collaborator of a run from cfg. It fails fast when a
// configured backend cannot be reached.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{cfg: cfg, logger: logger}

	store, err := local.New(local.Config{BaseDir: cfg.OutputDir})
	if err != nil {
		return nil, fmt.Errorf("init output store: %w", err)
	}
	clock := system.New()

	launcher := o.launcher
	if launcher == nil {
		launcher = capture.NewChromedpLauncher()
	}
	execPath := cfg.Capture.ExecPath
	if found, ok := capture.FindExecPath(execPath); ok {
		execPath = found
	}
	engine := capture.NewEngine(launcher, store, clock, capture.Options{
		Tiers:        capture.TiersFor(cfg.CIMode, cfg.Capture.MaxRetries),
		CIMode:       cfg.CIMode,
		UserAgent:    cfg.Capture.UserAgent,
		ExecPath:     execPath,
		RootSelector: cfg.Capture.RootSelector,
	}, logger.Named("capture"))

	a.notifier = notify.New(notify.Config{
		Endpoint: cfg.WebhookEndpoint(),
		Timeout:  cfg.WebhookTimeout(),
		Title:    cfg.Webhook.Title,
	}, notify.NewHTTPClient(cfg.WebhookTimeout()), logger.Named("notify"))

	a.deps = runner.Deps{
		Prober: probe.New(probe.Config{
			UserAgent: cfg.Probe.UserAgent,
			Timeout:   cfg.ProbeTimeout(),
		}, logger.Named("probe")),
		Capturer: engine,
		Output:   store,
		Notifier: a.notifier,
		Clock:    clock,
		IDs:      uuid.New(),
		Logger:   logger,
	}

	if err := a.initPublisher(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initEvents(ctx, o); err != nil {
		a.Close()
		return nil, err
	}
	if cfg.Metrics.Textfile != "" || cfg.Metrics.PushgatewayURL != "" {
		a.deps.Metrics = metrics.New()
	}
	logger.Debug("application services initialized",
		zap.String("publish_backend", cfg.Publish.Backend),
		zap.Bool("events", cfg.EventsEnabled()),
		zap.Bool("metrics", a.deps.Metrics != nil),
	)
	return a, nil
}

func (a *App) initPublisher(ctx context.Context, o options) error {
	switch a.cfg.Publish.Backend {
	case config.BackendGCS:
		client := o.storageClient
		if client == nil {
			var err error
			client, err = storage.NewClient(ctx)
			if err != nil {
				return fmt.Errorf("init storage client: %w", err)
			}
			a.ownsStorage = true
		}
		a.storageClient = client
		pub, err := gcs.New(client, gcs.Config{
			Bucket: a.cfg.Publish.GCSBucket,
			Prefix: a.cfg.Publish.GCSPrefix,
		}, a.logger.Named("gcs"))
		if err != nil {
			return fmt.Errorf("init gcs publisher: %w", err)
		}
		a.deps.Publisher = pub
		a.logger.Info("publishing to GCS", zap.String("bucket", a.cfg.Publish.GCSBucket))
	default:
		a.deps.Publisher = publish.NewGitPublisher(a.cfg.HostingRepository(), a.cfg.Publish.Branch, a.cfg.OutputDir)
		a.deps.Pusher = publish.NewGitPusher(publish.GitConfig{
			UserName:  a.cfg.Publish.GitUserName,
			UserEmail: a.cfg.Publish.GitUserEmail,
			Message:   a.cfg.Publish.CommitMessage,
		}, o.commandRunner, a.logger.Named("git"))
	}
	return nil
}

func (a *App) initEvents(ctx context.Context, o options) error {
	if !a.cfg.EventsEnabled() {
		return nil
	}
	client := o.pubsubClient
	if client == nil {
		var err error
		client, err = pubsub.NewClient(ctx, a.cfg.Events.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub client: %w", err)
		}
		a.ownsPubSub = true
	}
	a.pubsubClient = client
	a.eventsPub = pubsubevents.New(client.Topic(a.cfg.Events.Topic))
	a.deps.Events = a.eventsPub
	a.logger.Info("publishing run events", zap.String("topic", a.cfg.Events.Topic))
	return nil
}

// Logger returns the shared logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Deps returns the run collaborators.
func (a *App) Deps() runner.Deps {
	return a.deps
}

// Notifier returns the webhook notifier.
func (a *App) Notifier() *notify.Notifier {
	return a.notifier
}

// Events returns the run event publisher, or nil when disabled.
func (a *App) Events() events.Publisher {
	return a.deps.Events
}

// Runner builds a runner for the configured run.
func (a *App) Runner() *runner.Runner {
	return runner.New(a.cfg, a.deps)
}

// Close releases the clients the App created.
func (a *App) Close() {
	if a.eventsPub != nil {
		a.eventsPub.Close()
	}
	if a.ownsPubSub && a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("close pubsub client failed", zap.Error(err))
		}
	}
	if a.ownsStorage && a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			a.logger.Warn("close storage client failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
