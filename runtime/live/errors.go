package live

import (
	"errors"

	pkgerrors "github.com/RahulMirji/Cloth-Recommendation-sub001/pkg/errors"
)

const component = "live"

// Error kinds. Use errors.Is against these to classify session errors.
var (
	ErrConnection   = errors.New("connection failed")
	ErrPermission   = errors.New("permission denied")
	ErrDevice       = errors.New("capture device failed")
	ErrConfig       = errors.New("invalid configuration")
	ErrNotConnected = errors.New("not connected")
)

var (
	// ErrProtocolViolation is returned by the machine when an envelope is
	// sent in a state that does not allow it. Sessions report it as a
	// NotConnectedError.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrQueueFull is returned when realtime media is dropped because the
	// outbound queue is at capacity.
	ErrQueueFull = errors.New("outbound queue full")

	// ErrSessionEnded is returned by Start after Stop.
	ErrSessionEnded = errors.New("session has ended")
)

// ConnectionError reports a transport that failed to open or closed before
// the session became active, or a live session lost to a transport failure.
type ConnectionError struct {
	*pkgerrors.ContextualError
}

func newConnectionError(op string, cause error) *ConnectionError {
	return &ConnectionError{pkgerrors.New(component, op, cause).WithKind(ErrConnection)}
}

// PermissionError reports a capture device the user or OS refused.
type PermissionError struct {
	*pkgerrors.ContextualError
}

func newPermissionError(op string, cause error) *PermissionError {
	return &PermissionError{pkgerrors.New(component, op, cause).WithKind(ErrPermission)}
}

// DeviceError reports a capture device that failed after it was opened,
// such as a microphone unplugged mid-session.
type DeviceError struct {
	*pkgerrors.ContextualError
}

func newDeviceError(op string, cause error) *DeviceError {
	return &DeviceError{pkgerrors.New(component, op, cause).WithKind(ErrDevice)}
}

// ConfigError reports invalid or missing options.
type ConfigError struct {
	*pkgerrors.ContextualError
}

func newConfigError(op string, cause error) *ConfigError {
	return &ConfigError{pkgerrors.New(component, op, cause).WithKind(ErrConfig)}
}

// NotConnectedError reports a send attempted while the session is not active.
type NotConnectedError struct {
	*pkgerrors.ContextualError
	State State
}

func newNotConnectedError(op string, state State, cause error) *NotConnectedError {
	err := pkgerrors.New(component, op, cause).
		WithKind(ErrNotConnected).
		WithDetails(map[string]any{"state": state.String()})
	return &NotConnectedError{ContextualError: err, State: state}
}
