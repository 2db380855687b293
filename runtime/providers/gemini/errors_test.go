package gemini

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeError(t *testing.T) {
	err := &DecodeError{MimeType: "audio/mp3", Err: ErrUnsupportedMimeType}

	assert.Contains(t, err.Error(), "audio/mp3")
	assert.Contains(t, err.Error(), "unsupported mime type")
	assert.True(t, errors.Is(err, ErrDecode))
	assert.True(t, errors.Is(err, ErrUnsupportedMimeType))
	assert.False(t, errors.Is(err, ErrInvalidBase64))
}
