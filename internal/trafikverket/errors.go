package trafikverket

import "errors"

var (
	ErrInvalidAuthentication = errors.New("invalid authentication")
	ErrNoCameraFound         = errors.New("no camera found")
	ErrMultipleCamerasFound  = errors.New("multiple cameras found")
	ErrUnknown               = errors.New("unknown trafikverket error")
)
