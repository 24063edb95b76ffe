// Package gcs publishes screenshots to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/screenshot-daily/internal/publish"
)

const pngContentType = "image/png"

// Config captures the bucket and optional object prefix.
type Config struct {
	Bucket string
	Prefix string
}

// Publisher uploads images to a bucket and links them by public URL.
type Publisher struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

var _ publish.Publisher = (*Publisher)(nil)

// New creates a GCS-backed publisher.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// ObjectName is the object key fileName is stored under.
func (p *Publisher) ObjectName(fileName string) string {
	if p.prefix == "" {
		return fileName
	}
	return path.Join(p.prefix, fileName)
}

// Publish uploads the file at localPath and returns its public HTTPS URL.
func (p *Publisher) Publish(ctx context.Context, localPath, fileName string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open screenshot: %w", err)
	}
	defer func() { _ = f.Close() }()

	object := p.ObjectName(fileName)
	uri, err := p.PutObject(ctx, object, pngContentType, f)
	if err != nil {
		return "", err
	}
	p.logger.Debug("screenshot uploaded", zap.String("uri", uri))
	return publish.GCSURL(p.bucket, object), nil
}

// PutObject uploads data to the configured bucket and returns a gs:// URI.
func (p *Publisher) PutObject(ctx context.Context, objectPath string, contentType string, r io.Reader) (string, error) {
	if strings.TrimSpace(objectPath) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := p.client.Bucket(p.bucket).Object(objectPath).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	// Daily captures overwrite the same names.
	writer.CacheControl = "no-cache, max-age=0"
	if _, err := io.Copy(writer, r); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", p.bucket, objectPath), nil
}
