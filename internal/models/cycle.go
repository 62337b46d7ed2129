package models

import "time"

// CycleResult is the outcome of one refresh cycle for a location. It is
// rebuilt every cycle and replaces the previous one as a whole.
type CycleResult struct {
	ID           string         `json:"cycle_id"`
	Location     string         `json:"location"`
	Camera       CameraInfo     `json:"camera"`
	Image        []byte         `json:"-"`
	Detections   []CarRectangle `json:"detections"`
	TrafficLevel TrafficLevel   `json:"traffic_level"`
	CompletedAt  time.Time      `json:"completed_at"`
}

// CarCount is the number of vehicles detected in the cycle.
func (r *CycleResult) CarCount() int {
	return len(r.Detections)
}

// CameraState is the read-only snapshot exposed to consumers of a location.
type CameraState struct {
	IsActive      bool             `json:"is_active"`
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Location      string           `json:"location"`
	Type          string           `json:"type"`
	Image         []byte           `json:"-"`
	HasImage      bool             `json:"has_image"`
	Statistics    []StatPoint      `json:"statistics"`
	TrafficLevel  TrafficLevel     `json:"traffic_measure"`
	CarRectangles []map[string]int `json:"car_rectangles"`
	CycleID       string           `json:"cycle_id"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// NewCameraState builds the snapshot for a cycle and the statistics that
// were current when it was published.
func NewCameraState(result *CycleResult, statistics []StatPoint) CameraState {
	rects := make([]map[string]int, 0, len(result.Detections))
	for _, r := range result.Detections {
		rects = append(rects, r.ToMap())
	}
	stats := make([]StatPoint, len(statistics))
	copy(stats, statistics)

	return CameraState{
		IsActive:      result.Camera.Active,
		Name:          result.Camera.Name,
		Description:   result.Camera.Description,
		Location:      result.Camera.Location,
		Type:          result.Camera.Type,
		Image:         result.Image,
		HasImage:      result.Image != nil,
		Statistics:    stats,
		TrafficLevel:  result.TrafficLevel,
		CarRectangles: rects,
		CycleID:       result.ID,
		UpdatedAt:     result.CompletedAt,
	}
}
