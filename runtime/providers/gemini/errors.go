package gemini

import (
	"errors"
	"fmt"
)

// ErrDecode is the sentinel matched by every *DecodeError.
var ErrDecode = errors.New("decode error")

// Common codec errors.
var (
	// ErrUnsupportedMimeType indicates a media chunk whose MIME type is not PCM audio.
	ErrUnsupportedMimeType = errors.New("unsupported mime type")

	// ErrInvalidSampleRate indicates a PCM MIME type carrying an unsupported rate.
	ErrInvalidSampleRate = errors.New("invalid sample rate")

	// ErrInvalidChunkSize indicates PCM data not aligned to the 16-bit sample size.
	ErrInvalidChunkSize = errors.New("invalid chunk size: must be multiple of sample size")

	// ErrInvalidBase64 indicates a media payload that is not valid base64.
	ErrInvalidBase64 = errors.New("invalid base64 payload")
)

// DecodeError reports inbound media that could not be decoded. It is logged
// and the chunk dropped; it never terminates a session.
type DecodeError struct {
	MimeType string
	Err      error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("gemini decode %q: %v", e.MimeType, e.Err)
}

// Unwrap returns the specific cause.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecode
}
