// Package config loads and validates run configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Publish backends.
const (
	BackendGit = "git"
	BackendGCS = "gcs"
)

// DefaultWebhookBaseURL is the chat webhook endpoint the secret key is appended to.
const DefaultWebhookBaseURL = "https://qyapi.weixin.qq.com/cgi-bin/webhook/send?key="

// DefaultURLs are captured when no URL is configured.
var DefaultURLs = []string{
	"https://www.gd.gov.cn",
	"https://zfsg.gd.gov.cn",
	"https://www.gdjct.gd.gov.cn",
	"https://www.gdzz.gov.cn",
	"https://www.gdzwfw.gov.cn",
	"https://www.gdpc.gov.cn",
}

// Config captures every knob for one run. It is resolved once at startup
// and passed by value afterwards.
type Config struct {
	URLs       []string      `mapstructure:"urls"`
	OutputDir  string        `mapstructure:"output_dir"`
	Width      int           `mapstructure:"width"`
	Height     int           `mapstructure:"height"`
	NoWebhook  bool          `mapstructure:"no_webhook"`
	NoCleanup  bool          `mapstructure:"no_cleanup"`
	Verbose    bool          `mapstructure:"verbose"`
	CIMode     bool          `mapstructure:"-"`
	DebugLocal bool          `mapstructure:"-"`
	Probe      ProbeConfig   `mapstructure:"probe"`
	Capture    CaptureConfig `mapstructure:"capture"`
	Webhook    WebhookConfig `mapstructure:"webhook"`
	Publish    PublishConfig `mapstructure:"publish"`
	Events     EventsConfig  `mapstructure:"events"`
	Metrics    MetricsConfig `mapstructure:"metrics"`
	Logging    LoggingConfig `mapstructure:"logging"`
}

// ProbeConfig controls the reachability check.
type ProbeConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// CaptureConfig controls the headless browser.
type CaptureConfig struct {
	MaxRetries   int    `mapstructure:"max_retries"`
	UserAgent    string `mapstructure:"user_agent"`
	ExecPath     string `mapstructure:"exec_path"`
	RootSelector string `mapstructure:"root_selector"`
}

// WebhookConfig describes the chat webhook.
type WebhookConfig struct {
	Key            string `mapstructure:"key"`
	BaseURL        string `mapstructure:"base_url"`
	Title          string `mapstructure:"title"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// PublishConfig describes where images are hosted.
type PublishConfig struct {
	Backend         string `mapstructure:"backend"`
	Repository      string `mapstructure:"repository"`
	LocalRepository string `mapstructure:"local_repository"`
	Branch          string `mapstructure:"branch"`
	URLListFile     string `mapstructure:"url_list_file"`
	SettleSeconds   int    `mapstructure:"settle_seconds"`
	CommitMessage   string `mapstructure:"commit_message"`
	GitUserName     string `mapstructure:"git_user_name"`
	GitUserEmail    string `mapstructure:"git_user_email"`
	GCSBucket       string `mapstructure:"gcs_bucket"`
	GCSPrefix       string `mapstructure:"gcs_prefix"`
}

// EventsConfig holds the optional Pub/Sub topic for run summaries.
type EventsConfig struct {
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// MetricsConfig selects where run metrics are exported.
type MetricsConfig struct {
	Textfile       string `mapstructure:"textfile"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// flagKeys maps CLI flag names onto configuration keys.
var flagKeys = map[string]string{
	"urls":       "urls",
	"img-dir":    "output_dir",
	"width":      "width",
	"height":     "height",
	"no-webhook": "no_webhook",
	"no-cleanup": "no_cleanup",
	"verbose":    "verbose",
}

// Load builds a Config from defaults, an optional config file, the
// environment and explicit flags, in increasing order of precedence.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNAPSHOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if err := bindEnv(v); err != nil {
		return Config{}, err
	}
	if err := bindFlags(v, flags); err != nil {
		return Config{}, err
	}
	if err := readConfigFile(v, path); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	// Runners export CI with arbitrary values (woodpecker, 1, true), so the
	// mode switches are only on for a literal "true".
	cfg.CIMode = isTrue(v.GetString("ci"))
	cfg.DebugLocal = isTrue(v.GetString("debug_local"))
	cfg.URLs = cleanURLs(cfg.URLs)
	if len(cfg.URLs) == 0 {
		cfg.URLs = append([]string(nil), DefaultURLs...)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func isTrue(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "true")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("urls", DefaultURLs)
	v.SetDefault("output_dir", "screenshots")
	v.SetDefault("width", 1920)
	v.SetDefault("height", 1080)
	v.SetDefault("no_webhook", false)
	v.SetDefault("no_cleanup", false)
	v.SetDefault("verbose", false)
	v.SetDefault("ci", false)
	v.SetDefault("debug_local", false)
	v.SetDefault("probe.timeout_seconds", 10)
	v.SetDefault("probe.user_agent", "")
	v.SetDefault("capture.max_retries", 5)
	v.SetDefault("capture.user_agent", "")
	v.SetDefault("capture.exec_path", "")
	v.SetDefault("capture.root_selector", "body")
	v.SetDefault("webhook.key", "")
	v.SetDefault("webhook.base_url", DefaultWebhookBaseURL)
	v.SetDefault("webhook.title", "📸 Daily Screenshots")
	v.SetDefault("webhook.timeout_seconds", 30)
	v.SetDefault("publish.backend", BackendGit)
	v.SetDefault("publish.repository", "user/repo")
	v.SetDefault("publish.local_repository", "")
	v.SetDefault("publish.branch", "main")
	v.SetDefault("publish.url_list_file", "image_urls.txt")
	v.SetDefault("publish.settle_seconds", 5)
	v.SetDefault("publish.commit_message", "feat: add daily screenshots")
	v.SetDefault("publish.git_user_name", "github-actions[bot]")
	v.SetDefault("publish.git_user_email", "github-actions[bot]@users.noreply.github.com")
	v.SetDefault("publish.gcs_bucket", "")
	v.SetDefault("publish.gcs_prefix", "")
	v.SetDefault("events.project_id", "")
	v.SetDefault("events.topic", "")
	v.SetDefault("metrics.textfile", "")
	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "screenshot_daily")
	v.SetDefault("logging.development", true)
}

// bindEnv wires the unprefixed variables a CI runner provides.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"webhook.key":        {"SNAPSHOT_WEBHOOK_KEY", "WEBHOOK_KEY"},
		"publish.repository": {"SNAPSHOT_PUBLISH_REPOSITORY", "GITHUB_REPOSITORY"},
		"publish.branch":     {"SNAPSHOT_PUBLISH_BRANCH", "GITHUB_REF_NAME"},
		"debug_local":        {"SNAPSHOT_DEBUG_LOCAL", "DEBUG_LOCAL"},
		"ci":                 {"SNAPSHOT_CI", "CI"},
	}
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("bind flag %s: %w", name, err)
		}
	}
	return nil
}

func readConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		return nil
	}
	v.SetConfigName("screenshot-daily")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.screenshot-daily")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func cleanURLs(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, u := range raw {
		if trimmed := strings.TrimSpace(u); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.URLs) == 0 {
		return fmt.Errorf("urls must not be empty")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("width and height must be > 0, got %dx%d", c.Width, c.Height)
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return fmt.Errorf("output_dir is required")
	}
	if c.Probe.TimeoutSeconds <= 0 {
		return fmt.Errorf("probe.timeout_seconds must be > 0")
	}
	if c.Capture.MaxRetries < 0 {
		return fmt.Errorf("capture.max_retries must be >= 0")
	}
	if c.Webhook.TimeoutSeconds <= 0 {
		return fmt.Errorf("webhook.timeout_seconds must be > 0")
	}
	switch c.Publish.Backend {
	case BackendGit:
	case BackendGCS:
		if c.Publish.GCSBucket == "" {
			return fmt.Errorf("publish.gcs_bucket must be set when publish.backend is %q", BackendGCS)
		}
	default:
		return fmt.Errorf("unknown publish.backend %q", c.Publish.Backend)
	}
	if (c.Events.ProjectID == "") != (c.Events.Topic == "") {
		return fmt.Errorf("events.project_id and events.topic must be set together")
	}
	return nil
}

// WebhookEndpoint derives the webhook URL from the secret key. It is empty
// when no key is configured.
func (c Config) WebhookEndpoint() string {
	if c.Webhook.Key == "" {
		return ""
	}
	return c.Webhook.BaseURL + url.QueryEscape(c.Webhook.Key)
}

// HostingRepository returns the repository image links point at.
func (c Config) HostingRepository() string {
	if c.DebugLocal && c.Publish.LocalRepository != "" {
		return c.Publish.LocalRepository
	}
	return c.Publish.Repository
}

// ProbeTimeout converts the probe timeout to a duration.
func (c Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Probe.TimeoutSeconds) * time.Second
}

// WebhookTimeout converts the webhook timeout to a duration.
func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.Webhook.TimeoutSeconds) * time.Second
}

// SettleDelay is the wait after a push before links are announced.
func (c Config) SettleDelay() time.Duration {
	return time.Duration(c.Publish.SettleSeconds) * time.Second
}

// EventsEnabled reports whether run summaries should be published.
func (c Config) EventsEnabled() bool {
	return c.Events.ProjectID != "" && c.Events.Topic != ""
}
