// Package detector supplies vehicle detection for camera images.
package detector

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/chrisdamba/trafikcam/internal/models"
)

// Detector finds vehicles in an encoded image. An empty result means no
// cars were seen and is not an error.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]models.CarRectangle, error)
}

// Func adapts a plain function to Detector.
type Func func(ctx context.Context, image []byte) ([]models.CarRectangle, error)

func (f Func) Detect(ctx context.Context, image []byte) ([]models.CarRectangle, error) {
	return f(ctx, image)
}

// None never detects anything.
var None = Func(func(context.Context, []byte) ([]models.CarRectangle, error) {
	return []models.CarRectangle{}, nil
})

// New returns the detector selected by cfg.
func New(cfg models.DetectorConfig, logger *slog.Logger) (Detector, error) {
	switch cfg.Kind {
	case models.DetectorKindNone:
		return None, nil
	case models.DetectorKindRemote:
		return NewRemote(cfg.URL, &http.Client{Timeout: cfg.Timeout}, logger), nil
	default:
		return nil, fmt.Errorf("unsupported detector kind: %s", cfg.Kind)
	}
}
