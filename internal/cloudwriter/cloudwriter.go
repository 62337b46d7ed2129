// Package cloudwriter buffers objects and uploads them to cloud storage
// when they are closed.
package cloudwriter

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/chrisdamba/trafikcam/internal/models"
)

type CloudWriter interface {
	Write(data []byte) (int, error)
	Close() error
}

type CloudWriterFactory interface {
	NewWriter(ctx context.Context, bucket, objectPath, contentType string) (CloudWriter, error)
}

// NewFactory returns the writer factory of the configured provider.
func NewFactory(ctx context.Context, cfg models.CloudStorageConfig) (CloudWriterFactory, error) {
	switch cfg.Provider {
	case "", "s3":
		return NewS3WriterFactory(ctx, cfg.Region)
	default:
		return nil, fmt.Errorf("unsupported cloud storage provider: %s", cfg.Provider)
	}
}

// ObjectKey joins key elements under prefix with forward slashes.
func ObjectKey(prefix string, elem ...string) string {
	parts := make([]string, 0, len(elem)+1)
	if p := strings.Trim(prefix, "/"); p != "" {
		parts = append(parts, p)
	}
	parts = append(parts, elem...)
	return path.Join(parts...)
}
