package output

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chrisdamba/trafikcam/internal/models"
)

const EventTypeTrafficCycle = "traffic_cycle"

// CycleEvent is the serialized form of a published refresh cycle.
type CycleEvent struct {
	Timestamp    int64                 `json:"timestamp"`
	EventType    string                `json:"eventType"`
	CycleID      string                `json:"cycleId"`
	Location     string                `json:"location"`
	CameraID     string                `json:"cameraId,omitempty"`
	CameraName   string                `json:"cameraName"`
	PhotoTime    string                `json:"photoTime"`
	HasImage     bool                  `json:"hasImage"`
	CarCount     int                   `json:"carCount"`
	TrafficLevel models.TrafficLevel   `json:"trafficLevel"`
	Detections   []models.CarRectangle `json:"detections"`
}

func NewCycleEvent(result *models.CycleResult) CycleEvent {
	return CycleEvent{
		Timestamp:    result.CompletedAt.Unix(),
		EventType:    EventTypeTrafficCycle,
		CycleID:      result.ID,
		Location:     result.Location,
		CameraID:     result.Camera.ID,
		CameraName:   result.Camera.Name,
		PhotoTime:    models.FormatTime(result.Camera.ObservationTime()),
		HasImage:     result.Image != nil,
		CarCount:     result.CarCount(),
		TrafficLevel: result.TrafficLevel,
		Detections:   result.Detections,
	}
}

// Publisher writes a CycleEvent for every published cycle to each of its
// destinations.
type Publisher struct {
	topic        string
	destinations []Destination
}

func NewPublisher(topic string, destinations ...Destination) *Publisher {
	if topic == "" {
		topic = models.TopicTrafficCycles
	}
	return &Publisher{topic: topic, destinations: destinations}
}

func (p *Publisher) Publish(ctx context.Context, result *models.CycleResult, state models.CameraState) error {
	msg, err := json.Marshal(NewCycleEvent(result))
	if err != nil {
		return fmt.Errorf("failed to marshal cycle event: %w", err)
	}

	var errs []error
	for _, dest := range p.destinations {
		if err := dest.WriteMessage(p.topic, msg); err != nil {
			errs = append(errs, fmt.Errorf("%T: %w", dest, err))
		}
	}
	return errors.Join(errs...)
}

func (p *Publisher) Close() error {
	var errs []error
	for _, dest := range p.destinations {
		if err := dest.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
