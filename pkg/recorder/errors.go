package recorder

import (
	"errors"
	"fmt"
)

// DeviceError indicates the capture device could not be opened or died
// mid-session. It is sticky: once raised, Start refuses to arm until
// RetryDevice is called.
type DeviceError struct {
	Err error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("recorder: capture device unavailable: %v", e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// IsDeviceError reports whether err is a DeviceError.
func IsDeviceError(err error) bool {
	var devErr *DeviceError
	return errors.As(err, &devErr)
}
