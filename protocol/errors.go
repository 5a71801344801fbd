package protocol

import (
	"errors"
	"fmt"
)

// TransportError represents a failed USB round-trip. Code follows libusb
// conventions (see the Result* constants).
type TransportError struct {
	// Op is the protocol operation that failed
	Op string

	// Code is the transport result code
	Code int
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed: %s (%d)", e.Op, ResultName(e.Code), e.Code)
}

// DeviceGone reports whether the failure means the device has left the bus.
// A device resetting itself after a transfer is expected to produce one of
// these codes, so callers typically treat them as benign.
func (e *TransportError) DeviceGone() bool {
	return e.Code == ResultNoDevice || e.Code == ResultNotFound
}

// IsDeviceGone returns true if err is a TransportError whose code means the
// device has disconnected or can no longer be found.
func IsDeviceGone(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.DeviceGone()
}
