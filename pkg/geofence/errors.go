package geofence

import (
	"errors"
	"strings"
)

var ErrPreflightFailed = errors.New("geofence preflight failed")

// PreflightError lists every environment check that failed.
type PreflightError struct {
	Problems []string
}

func (e *PreflightError) Error() string {
	return ErrPreflightFailed.Error() + ": " + strings.Join(e.Problems, "; ")
}

func (e *PreflightError) Unwrap() error {
	return ErrPreflightFailed
}

func (e *PreflightError) Is(target error) bool {
	return target == ErrPreflightFailed
}

// IsPreflightError checks whether err is a preflight failure.
func IsPreflightError(err error) bool {
	var preflight *PreflightError

	return errors.As(err, &preflight)
}
