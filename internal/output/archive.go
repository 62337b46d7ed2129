package output

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/chrisdamba/trafikcam/internal/cloudwriter"
	"github.com/chrisdamba/trafikcam/internal/models"
)

// ArchiveSink uploads every fetched camera image to cloud storage.
type ArchiveSink struct {
	factory cloudwriter.CloudWriterFactory
	bucket  string
	prefix  string
}

func NewArchiveSink(factory cloudwriter.CloudWriterFactory, bucket, prefix string) *ArchiveSink {
	return &ArchiveSink{factory: factory, bucket: bucket, prefix: prefix}
}

// ObjectKey is {prefix}/{location}/{photo time}.{ext}.
func (a *ArchiveSink) ObjectKey(result *models.CycleResult, contentType string) string {
	ext := "jpg"
	if strings.HasPrefix(contentType, "image/png") {
		ext = "png"
	}
	name := models.FormatTime(result.Camera.ObservationTime()) + "." + ext
	return cloudwriter.ObjectKey(a.prefix, result.Location, name)
}

func (a *ArchiveSink) Publish(ctx context.Context, result *models.CycleResult, state models.CameraState) error {
	if len(result.Image) == 0 {
		return nil
	}

	contentType := http.DetectContentType(result.Image)
	key := a.ObjectKey(result, contentType)
	w, err := a.factory.NewWriter(ctx, a.bucket, key, contentType)
	if err != nil {
		return fmt.Errorf("failed to create archive writer: %w", err)
	}
	if _, err := w.Write(result.Image); err != nil {
		w.Close()
		return fmt.Errorf("failed to buffer image %s: %w", key, err)
	}
	return w.Close()
}
