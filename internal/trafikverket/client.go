package trafikverket

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chrisdamba/trafikcam/internal/models"
)

const dataPath = "/v2/data.json"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL, apiKey string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

type apiResponse struct {
	Response struct {
		Result []apiResult `json:"RESULT"`
	} `json:"RESPONSE"`
}

type apiResult struct {
	Camera []apiCamera `json:"Camera"`
	Error  *apiError   `json:"ERROR"`
}

type apiError struct {
	Source  string `json:"SOURCE"`
	Message string `json:"MESSAGE"`
}

type apiCamera struct {
	ID               string      `json:"Id"`
	Name             string      `json:"Name"`
	Description      string      `json:"Description"`
	Location         string      `json:"Location"`
	Type             string      `json:"Type"`
	Direction        json.Number `json:"Direction"`
	PhotoURL         string      `json:"PhotoUrl"`
	PhotoTime        *time.Time  `json:"PhotoTime"`
	HasFullSizePhoto bool        `json:"HasFullSizePhoto"`
	Active           bool        `json:"Active"`
	Deleted          bool        `json:"Deleted"`
	ModifiedTime     *time.Time  `json:"ModifiedTime"`
}

func (c apiCamera) toModel() models.CameraInfo {
	info := models.CameraInfo{
		ID:            c.ID,
		Name:          c.Name,
		Description:   c.Description,
		Location:      c.Location,
		Type:          c.Type,
		Direction:     c.Direction.String(),
		PhotoURL:      c.PhotoURL,
		FullSizePhoto: c.HasFullSizePhoto,
		Active:        c.Active,
		Deleted:       c.Deleted,
	}
	if c.PhotoTime != nil {
		info.PhotoTime = *c.PhotoTime
	}
	if c.ModifiedTime != nil {
		info.ModifiedTime = *c.ModifiedTime
	}
	return info
}

// GetCamera looks a camera up by its name.
func (c *Client) GetCamera(ctx context.Context, location string) (models.CameraInfo, error) {
	filter := Equal("Name", location)
	cameras, err := c.queryCameras(ctx, &filter, 0)
	if err != nil {
		return models.CameraInfo{}, err
	}

	switch len(cameras) {
	case 0:
		return models.CameraInfo{}, fmt.Errorf("%w: %s", ErrNoCameraFound, location)
	case 1:
		return cameras[0].toModel(), nil
	default:
		return models.CameraInfo{}, fmt.Errorf("%w: %d cameras named %s", ErrMultipleCamerasFound, len(cameras), location)
	}
}

// ListCameras returns the active traffic flow cameras that have both a
// location and a description.
func (c *Client) ListCameras(ctx context.Context) ([]models.CameraInfo, error) {
	filter := And(
		Equal("Type", models.TrafficFlowCameraType),
		Equal("Active", "true"),
		Equal("Deleted", "false"),
	)
	cameras, err := c.queryCameras(ctx, &filter, 0)
	if err != nil {
		return nil, err
	}

	result := make([]models.CameraInfo, 0, len(cameras))
	for _, cam := range cameras {
		if cam.Location == "" || cam.Description == "" {
			continue
		}
		result = append(result, cam.toModel())
	}
	return result, nil
}

func (c *Client) queryCameras(ctx context.Context, filter *Filter, limit int) ([]apiCamera, error) {
	body, err := buildRequest(c.apiKey, objectTypeCamera, cameraSchemaVersion, cameraFields, limit, filter)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+dataPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknown, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnknown, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("%w: status %d", ErrInvalidAuthentication, resp.StatusCode)
	}

	var decoded apiResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("%w: status %d", ErrUnknown, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnknown, err)
	}

	var cameras []apiCamera
	for _, result := range decoded.Response.Result {
		if result.Error != nil {
			return nil, classifyAPIError(result.Error)
		}
		cameras = append(cameras, result.Camera...)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnknown, resp.StatusCode)
	}

	c.logger.Debug("trafikverket_query", "objecttype", objectTypeCamera, "results", len(cameras))
	return cameras, nil
}

func classifyAPIError(e *apiError) error {
	if strings.Contains(strings.ToLower(e.Message), "invalid authentication") ||
		strings.EqualFold(e.Source, "Authentication") {
		return fmt.Errorf("%w: %s", ErrInvalidAuthentication, e.Message)
	}
	return fmt.Errorf("%w: %s: %s", ErrUnknown, e.Source, e.Message)
}
