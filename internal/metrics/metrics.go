// Package metrics exposes Prometheus collectors for one screenshot run.
package metrics

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Recorder owns a private registry so each run exports only its own series.
type Recorder struct {
	registry *prometheus.Registry

	probesTotal          *prometheus.CounterVec
	capturesTotal        *prometheus.CounterVec
	captureAttempts      prometheus.Histogram
	captureDuration      *prometheus.HistogramVec
	notificationsTotal   *prometheus.CounterVec
	publishedImages      prometheus.Gauge
	runDurationSeconds   prometheus.Gauge
	lastSuccessTimestamp prometheus.Gauge
}

// New registers the screenshot collectors on a fresh registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Recorder{
		registry: reg,
		probesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshot_probes_total",
				Help: "Reachability probes, labeled by site and result.",
			},
			[]string{"site", "result"},
		),
		capturesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshot_captures_total",
				Help: "Capture outcomes, labeled by site and status.",
			},
			[]string{"site", "status"},
		),
		captureAttempts: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "screenshot_capture_attempts",
				Help:    "Browser attempts needed per capture.",
				Buckets: []float64{1, 2, 3, 4, 5, 6},
			},
		),
		captureDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "screenshot_capture_duration_seconds",
				Help:    "Wall time of one capture including retries, labeled by site.",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"site"},
		),
		notificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "screenshot_notifications_total",
				Help: "Webhook notifications, labeled by result.",
			},
			[]string{"result"},
		),
		publishedImages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "screenshot_published_images",
				Help: "Images published by the last run.",
			},
		),
		runDurationSeconds: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "screenshot_run_duration_seconds",
				Help: "Wall time of the last run.",
			},
		),
		lastSuccessTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "screenshot_last_success_timestamp_seconds",
				Help: "Unix time of the last run with at least one published image.",
			},
		),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveProbe records one reachability check.
func (r *Recorder) ObserveProbe(site string, reachable bool) {
	result := "unreachable"
	if reachable {
		result = "reachable"
	}
	r.probesTotal.WithLabelValues(SanitizeSite(site), result).Inc()
}

// ObserveCapture records one capture outcome.
func (r *Recorder) ObserveCapture(site string, success bool, attempts int, duration time.Duration) {
	status := "failure"
	if success {
		status = "success"
	}
	sanitized := SanitizeSite(site)
	r.capturesTotal.WithLabelValues(sanitized, status).Inc()
	r.captureDuration.WithLabelValues(sanitized).Observe(duration.Seconds())
	if attempts > 0 {
		r.captureAttempts.Observe(float64(attempts))
	}
}

// ObserveNotification records a webhook outcome such as "sent" or "skipped".
func (r *Recorder) ObserveNotification(result string) {
	r.notificationsTotal.WithLabelValues(result).Inc()
}

// ObserveRun records the end of a run.
func (r *Recorder) ObserveRun(published int, duration time.Duration, finished time.Time) {
	r.publishedImages.Set(float64(published))
	r.runDurationSeconds.Set(duration.Seconds())
	if published > 0 {
		r.lastSuccessTimestamp.Set(float64(finished.Unix()))
	}
}

// WriteTextfile writes the registry in the node-exporter textfile format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Push sends the registry to a Pushgateway under job.
func (r *Recorder) Push(ctx context.Context, gatewayURL, job string) error {
	if err := push.New(gatewayURL, job).Gatherer(r.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}
