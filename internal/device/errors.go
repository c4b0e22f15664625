package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrMalformedDeviceList) {
//	    // keep the previous snapshot
//	}
var (
	// ErrMalformedDeviceList is returned when a device list body cannot be decoded.
	ErrMalformedDeviceList = errors.New("device: malformed device list")

	// ErrInvalidID is returned when a device identifier is missing or not a string/number.
	ErrInvalidID = errors.New("device: invalid id")

	// ErrDeviceNotFound is returned when a device ID is not present in the current metadata.
	ErrDeviceNotFound = errors.New("device: not found")
)
