package models

import "time"

// CameraInfo is the upstream metadata of a traffic camera.
type CameraInfo struct {
	ID            string    `json:"id"`
	Name          string    `json:"camera_name"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	Type          string    `json:"camera_type"`
	Direction     string    `json:"direction,omitempty"`
	PhotoURL      string    `json:"photourl,omitempty"`
	PhotoTime     time.Time `json:"phototime"`
	FullSizePhoto bool      `json:"fullsizephoto"`
	Active        bool      `json:"active"`
	Deleted       bool      `json:"deleted"`
	ModifiedTime  time.Time `json:"modified"`
}

// HasPhoto reports whether the camera currently publishes an image.
func (c CameraInfo) HasPhoto() bool {
	return c.PhotoURL != ""
}

// ImageURL returns the URL of the largest image variant available.
func (c CameraInfo) ImageURL() string {
	if c.FullSizePhoto {
		return c.PhotoURL + "?type=fullsize"
	}
	return c.PhotoURL
}

// ObservationTime is the photo time, or UnknownPhotoTime when upstream
// did not report one.
func (c CameraInfo) ObservationTime() time.Time {
	if c.PhotoTime.IsZero() {
		return UnknownPhotoTime
	}
	return c.PhotoTime
}
