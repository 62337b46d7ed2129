package coordinator

import (
	"errors"
	"fmt"

	"github.com/chrisdamba/trafikcam/internal/trafikverket"
)

var (
	// ErrAuthFailed means the upstream API rejected the credentials. The
	// cycle must not be retried until the API key is replaced.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrUpdateFailed is a failed cycle that the next scheduled refresh may fix.
	ErrUpdateFailed = errors.New("update failed")
	// ErrDetectionFailed means the detector could not process the image.
	ErrDetectionFailed = errors.New("car detection failed")

	// ErrSetupRetry means a camera's first refresh failed but the location
	// is kept and the refresh is retried on the normal schedule.
	ErrSetupRetry = errors.New("camera setup will be retried")

	ErrAlreadyTracked = errors.New("camera already tracked")
	ErrNotTracked     = errors.New("camera not tracked")
)

// IsFatal reports whether err requires reconfiguration rather than a retry.
func IsFatal(err error) bool {
	return errors.Is(err, ErrAuthFailed)
}

func metadataError(location string, err error) error {
	if errors.Is(err, trafikverket.ErrInvalidAuthentication) {
		return fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}
	return fmt.Errorf("%w: camera %s: %w", ErrUpdateFailed, location, err)
}
