package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearRunnerEnv blanks the CI variables so tests behave the same on any runner.
func clearRunnerEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{"CI", "DEBUG_LOCAL", "WEBHOOK_KEY", "GITHUB_REPOSITORY", "GITHUB_REF_NAME"} {
		t.Setenv(name, "")
	}
	t.Chdir(t.TempDir())
}

func newFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.StringSlice("urls", nil, "")
	fs.String("img-dir", "screenshots", "")
	fs.Int("width", 1920, "")
	fs.Int("height", 1080, "")
	fs.Bool("no-webhook", false, "")
	fs.Bool("no-cleanup", false, "")
	fs.BoolP("verbose", "v", false, "")
	return fs
}

func TestLoadDefaults(t *testing.T) {
	clearRunnerEnv(t)

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultURLs, cfg.URLs)
	assert.Equal(t, "screenshots", cfg.OutputDir)
	assert.Equal(t, 1920, cfg.Width)
	assert.Equal(t, 1080, cfg.Height)
	assert.False(t, cfg.CIMode)
	assert.False(t, cfg.DebugLocal)
	assert.Equal(t, 10*time.Second, cfg.ProbeTimeout())
	assert.Equal(t, 30*time.Second, cfg.WebhookTimeout())
	assert.Equal(t, 5*time.Second, cfg.SettleDelay())
	assert.Equal(t, 5, cfg.Capture.MaxRetries)
	assert.Equal(t, BackendGit, cfg.Publish.Backend)
	assert.Equal(t, "main", cfg.Publish.Branch)
	assert.Equal(t, "user/repo", cfg.HostingRepository())
	assert.Empty(t, cfg.WebhookEndpoint())
	assert.False(t, cfg.EventsEnabled())
}

func TestLoadRunnerEnvironment(t *testing.T) {
	clearRunnerEnv(t)
	t.Setenv("CI", "true")
	t.Setenv("WEBHOOK_KEY", "abc-123")
	t.Setenv("GITHUB_REPOSITORY", "octo/shots")
	t.Setenv("GITHUB_REF_NAME", "daily")
	t.Setenv("SNAPSHOT_CAPTURE_MAX_RETRIES", "2")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.True(t, cfg.CIMode)
	assert.Equal(t, "octo/shots", cfg.HostingRepository())
	assert.Equal(t, "daily", cfg.Publish.Branch)
	assert.Equal(t, DefaultWebhookBaseURL+"abc-123", cfg.WebhookEndpoint())
	assert.Equal(t, 2, cfg.Capture.MaxRetries)
}

func TestLoadDebugLocalRepository(t *testing.T) {
	clearRunnerEnv(t)
	t.Setenv("DEBUG_LOCAL", "true")
	t.Setenv("SNAPSHOT_PUBLISH_LOCAL_REPOSITORY", "me/debug-shots")

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.True(t, cfg.DebugLocal)
	assert.Equal(t, "me/debug-shots", cfg.HostingRepository())
}

func TestLoadNonBooleanModeValues(t *testing.T) {
	tests := []struct {
		name       string
		ci         string
		debugLocal string
		wantCI     bool
		wantDebug  bool
	}{
		{name: "WoodpeckerCI", ci: "woodpecker", debugLocal: "", wantCI: false, wantDebug: false},
		{name: "NumericCI", ci: "1", debugLocal: "yes", wantCI: false, wantDebug: false},
		{name: "MixedCase", ci: "TRUE", debugLocal: " True ", wantCI: true, wantDebug: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearRunnerEnv(t)
			t.Setenv("CI", tt.ci)
			t.Setenv("DEBUG_LOCAL", tt.debugLocal)

			cfg, err := Load("", nil)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCI, cfg.CIMode)
			assert.Equal(t, tt.wantDebug, cfg.DebugLocal)
		})
	}
}

func TestLoadFlagsWinOverEnvironment(t *testing.T) {
	clearRunnerEnv(t)
	t.Setenv("SNAPSHOT_OUTPUT_DIR", "from-env")
	t.Setenv("SNAPSHOT_WIDTH", "800")

	fs := newFlags(t)
	require.NoError(t, fs.Parse([]string{
		"--urls", "https://a.example,https://b.example",
		"--img-dir", "from-flag",
		"--no-webhook",
		"-v",
	}))

	cfg, err := Load("", fs)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.URLs)
	assert.Equal(t, "from-flag", cfg.OutputDir)
	assert.Equal(t, 800, cfg.Width, "unset flag must not shadow the environment")
	assert.True(t, cfg.NoWebhook)
	assert.True(t, cfg.Verbose)
	assert.False(t, cfg.NoCleanup)
}

func TestLoadWithFileOverrides(t *testing.T) {
	clearRunnerEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
urls:
  - https://example.com
output_dir: shots
width: 1280
height: 720
capture:
  max_retries: 1
webhook:
  key: file-key
  base_url: http://hook.local/send?key=
  title: Morning
publish:
  backend: gcs
  gcs_bucket: my-bucket
  gcs_prefix: daily
events:
  project_id: proj
  topic: runs
metrics:
  textfile: /tmp/shots.prom
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com"}, cfg.URLs)
	assert.Equal(t, "shots", cfg.OutputDir)
	assert.Equal(t, 1280, cfg.Width)
	assert.Equal(t, 720, cfg.Height)
	assert.Equal(t, 1, cfg.Capture.MaxRetries)
	assert.Equal(t, "http://hook.local/send?key=file-key", cfg.WebhookEndpoint())
	assert.Equal(t, "Morning", cfg.Webhook.Title)
	assert.Equal(t, BackendGCS, cfg.Publish.Backend)
	assert.Equal(t, "my-bucket", cfg.Publish.GCSBucket)
	assert.True(t, cfg.EventsEnabled())
	assert.Equal(t, "/tmp/shots.prom", cfg.Metrics.Textfile)
	assert.False(t, cfg.Logging.Development)
}

func TestLoadMissingFile(t *testing.T) {
	clearRunnerEnv(t)

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	valid := Config{
		URLs:      []string{"https://example.com"},
		OutputDir: "shots",
		Width:     100,
		Height:    100,
		Probe:     ProbeConfig{TimeoutSeconds: 1},
		Webhook:   WebhookConfig{TimeoutSeconds: 1},
		Publish:   PublishConfig{Backend: BackendGit},
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*Config){
		"no urls":          func(c *Config) { c.URLs = nil },
		"zero width":       func(c *Config) { c.Width = 0 },
		"negative height":  func(c *Config) { c.Height = -1 },
		"empty output dir": func(c *Config) { c.OutputDir = " " },
		"probe timeout":    func(c *Config) { c.Probe.TimeoutSeconds = 0 },
		"negative retries": func(c *Config) { c.Capture.MaxRetries = -1 },
		"webhook timeout":  func(c *Config) { c.Webhook.TimeoutSeconds = 0 },
		"unknown backend":  func(c *Config) { c.Publish.Backend = "ftp" },
		"gcs no bucket":    func(c *Config) { c.Publish.Backend = BackendGCS },
		"half events":      func(c *Config) { c.Events.Topic = "runs" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			cfg := valid
			cfg.URLs = append([]string(nil), valid.URLs...)
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
