// Package probe checks that a URL answers with HTTP 200 before a capture is attempted.
package probe

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one probe request.
const DefaultTimeout = 10 * time.Second

// maxBodyBytes caps how much of a probed page is read.
const maxBodyBytes = 1 << 20

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Prober issues plain GET requests through a Colly collector.
type Prober struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Prober.
func New(cfg Config, logger *zap.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
		colly.MaxBodySize(maxBodyBytes),
	)
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	return &Prober{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Reachable reports whether rawURL answered with 200. Errors are logged,
// never returned.
func (p *Prober) Reachable(ctx context.Context, rawURL string) bool {
	status, err := p.Status(ctx, rawURL)
	if err != nil {
		p.logger.Warn("url probe failed", zap.String("url", rawURL), zap.Error(err))
		return false
	}
	if status != http.StatusOK {
		p.logger.Warn("url not reachable", zap.String("url", rawURL), zap.Int("status", status))
		return false
	}
	p.logger.Info("url reachable", zap.String("url", rawURL))
	return true
}

// Status performs one GET and returns the final status code.
func (p *Prober) Status(ctx context.Context, rawURL string) (int, error) {
	var (
		status   int
		fetchErr error
	)
	collector := p.baseCollector.Clone()
	collector.AllowURLRevisit = true
	collector.ParseHTTPErrorResponse = true

	collector.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(rawURL)
	}()

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("probe canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return status, fmt.Errorf("probe visit failed: %w", err)
		}
		if fetchErr != nil {
			return status, fmt.Errorf("probe response failed: %w", fetchErr)
		}
		return status, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       30 * time.Second,
	}
}
