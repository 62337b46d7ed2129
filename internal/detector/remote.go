package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/chrisdamba/trafikcam/internal/models"
)

// Remote posts images to an inference service and reads back bounding boxes.
type Remote struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

type detectResponse struct {
	Boxes []models.CarRectangle `json:"boxes"`
}

func NewRemote(url string, httpClient *http.Client, logger *slog.Logger) *Remote {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Remote{url: url, httpClient: httpClient, logger: logger}
}

func (r *Remote) Detect(ctx context.Context, image []byte) ([]models.CarRectangle, error) {
	if len(image) == 0 {
		return []models.CarRectangle{}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("failed to build detection request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("detection request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("detection service returned %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode detection response: %w", err)
	}
	if decoded.Boxes == nil {
		decoded.Boxes = []models.CarRectangle{}
	}

	r.logger.Debug("detection_complete", "cars", len(decoded.Boxes), "image_bytes", len(image))
	return decoded.Boxes, nil
}
