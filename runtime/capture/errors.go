package capture

import (
	"errors"
	"strings"
)

var (
	// ErrPermissionDenied indicates the OS or user refused device access.
	ErrPermissionDenied = errors.New("device permission denied")

	// ErrDeviceUnavailable indicates a missing or unusable device.
	ErrDeviceUnavailable = errors.New("device unavailable")

	// ErrNotOpen indicates a read from a device that has not been opened.
	ErrNotOpen = errors.New("device not open")
)

// permissionMarkers are substrings that device backends use when access is refused.
var permissionMarkers = []string{
	"permission denied",
	"not authorized",
	"not permitted",
	"access denied",
}

// classifyDeviceError maps backend error text onto ErrPermissionDenied when
// it describes refused access, and ErrDeviceUnavailable otherwise.
func classifyDeviceError(msg string) error {
	lower := strings.ToLower(msg)
	for _, marker := range permissionMarkers {
		if strings.Contains(lower, marker) {
			return ErrPermissionDenied
		}
	}
	return ErrDeviceUnavailable
}
