// Package notify posts image links to a chat webhook as a markdown message.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shouni/go-http-kit/httpkit"
	"go.uber.org/zap"
)

// DefaultTimeout bounds one webhook request.
const DefaultTimeout = 30 * time.Second

// DefaultTitle heads the image message.
const DefaultTitle = "📸 Daily Screenshots"

var (
	// ErrNotConfigured is returned when no webhook endpoint is set.
	ErrNotConfigured = errors.New("webhook not configured")
	// ErrRejected is returned when the webhook answers with a non-zero errcode.
	ErrRejected = errors.New("webhook rejected message")
)

// RejectedError carries the code and message of a refused webhook call.
type RejectedError struct {
	Code    int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: errcode=%d errmsg=%q", ErrRejected, e.Code, e.Message)
}

// Unwrap lets errors.Is match ErrRejected.
func (e *RejectedError) Unwrap() error { return ErrRejected }

// Config describes the webhook endpoint.
type Config struct {
	Endpoint string
	Timeout  time.Duration
	Title    string
}

// Doer sends one HTTP request. Both *http.Client and the httpkit client
// satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the httpkit client used for webhook calls. Retries
// are off: a repeated POST would post the message twice.
func NewHTTPClient(timeout time.Duration) Doer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return httpkit.New(timeout, httpkit.WithMaxRetries(0))
}

// Notifier sends markdown messages to the webhook.
type Notifier struct {
	cfg    Config
	client Doer
	logger *zap.Logger
}

type markdownBody struct {
	Content string `json:"content"`
}

type message struct {
	MsgType    string       `json:"msgtype"`
	MarkdownV2 markdownBody `json:"markdown_v2"`
}

type reply struct {
	ErrCode *int   `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// New builds a Notifier. A nil client gets NewHTTPClient(cfg.Timeout).
func New(cfg Config, client Doer, logger *zap.Logger) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Title == "" {
		cfg.Title = DefaultTitle
	}
	if client == nil {
		client = NewHTTPClient(cfg.Timeout)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{cfg: cfg, client: client, logger: logger}
}

// Configured reports whether an endpoint is set.
func (n *Notifier) Configured() bool {
	return strings.TrimSpace(n.cfg.Endpoint) != ""
}

// FormatImages renders the message body for urls.
func FormatImages(title string, urls []string) string {
	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString("\n\n")
	for i, u := range urls {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("![](")
		b.WriteString(u)
		b.WriteByte(')')
	}
	return b.String()
}

// SendImages posts one message listing every image URL.
func (n *Notifier) SendImages(ctx context.Context, urls []string) error {
	return n.Send(ctx, FormatImages(n.cfg.Title, urls))
}

// Send posts content as a markdown_v2 message. It does not retry.
func (n *Notifier) Send(ctx context.Context, content string) error {
	if !n.Configured() {
		n.logger.Warn("webhook key not set, skipping notification")
		return ErrNotConfigured
	}

	payload, err := json.Marshal(message{MsgType: "markdown_v2", MarkdownV2: markdownBody{Content: content}})
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, n.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Error("webhook request failed", zap.Error(err))
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read webhook reply: %w", err)
	}
	var r reply
	if err := json.Unmarshal(body, &r); err != nil {
		n.logger.Error("webhook reply is not JSON", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return fmt.Errorf("decode webhook reply (status %d): %w", resp.StatusCode, err)
	}
	if r.ErrCode != nil && *r.ErrCode != 0 {
		n.logger.Error("webhook rejected message", zap.Int("errcode", *r.ErrCode), zap.String("errmsg", r.ErrMsg))
		return &RejectedError{Code: *r.ErrCode, Message: r.ErrMsg}
	}
	n.logger.Info("webhook message sent", zap.Int("bytes", len(content)))
	return nil
}
