// Package control applies camera add and remove commands received from a
// Kafka topic to the running set of coordinators.
package control

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/chrisdamba/trafikcam/internal/coordinator"
	"github.com/chrisdamba/trafikcam/internal/models"
)

type Command struct {
	Type     string `json:"type"`
	Location string `json:"location"`
}

// CameraSet is the part of coordinator.Manager that commands act on.
type CameraSet interface {
	Add(ctx context.Context, location string) (*coordinator.RefreshCoordinator, error)
	Remove(location string) error
}

func DecodeCommand(raw []byte) (Command, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var cmd Command
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("decode command: %w", err)
	}
	cmd.Type = strings.ToLower(strings.TrimSpace(cmd.Type))
	cmd.Location = strings.TrimSpace(cmd.Location)

	if cmd.Location == "" {
		return Command{}, errors.New("location missing or empty")
	}
	switch cmd.Type {
	case models.CommandAddCamera, models.CommandRemoveCamera:
	default:
		return Command{}, fmt.Errorf("unknown command type %q", cmd.Type)
	}
	return cmd, nil
}

// Apply executes cmd. Adding a tracked camera, adding one whose setup will
// be retried or removing an untracked one is not an error.
func Apply(ctx context.Context, cameras CameraSet, cmd Command) error {
	switch cmd.Type {
	case models.CommandAddCamera:
		_, err := cameras.Add(ctx, cmd.Location)
		if errors.Is(err, coordinator.ErrAlreadyTracked) || errors.Is(err, coordinator.ErrSetupRetry) {
			return nil
		}
		return err
	case models.CommandRemoveCamera:
		err := cameras.Remove(cmd.Location)
		if errors.Is(err, coordinator.ErrNotTracked) {
			return nil
		}
		return err
	default:
		return fmt.Errorf("unknown command type %q", cmd.Type)
	}
}
