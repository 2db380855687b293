package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrInvalidRate is returned for non-positive sample rates.
var ErrInvalidRate = errors.New("invalid sample rate")

// ResamplePCM16 converts little-endian 16-bit mono PCM between sample rates
// by linear interpolation. Equal rates return a copy.
func ResamplePCM16(pcm []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d", ErrInvalidRate, fromRate, toRate)
	}
	if len(pcm)%pcmBytesPerSample != 0 {
		return nil, fmt.Errorf("pcm length %d is not a whole number of samples", len(pcm))
	}
	if fromRate == toRate {
		return append([]byte(nil), pcm...), nil
	}

	in := len(pcm) / pcmBytesPerSample
	out := in * toRate / fromRate
	if in == 0 || out == 0 {
		return []byte{}, nil
	}

	sample := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*pcmBytesPerSample:]))) //nolint:gosec // PCM16 reinterpretation
	}
	step := float64(fromRate) / float64(toRate)
	dst := make([]byte, out*pcmBytesPerSample)
	for i := 0; i < out; i++ {
		pos := float64(i) * step
		idx := int(pos)
		var v float64
		if idx >= in-1 {
			v = sample(in - 1)
		} else {
			s0, s1 := sample(idx), sample(idx+1)
			v = s0 + (pos-float64(idx))*(s1-s0)
		}
		binary.LittleEndian.PutUint16(dst[i*pcmBytesPerSample:], uint16(int16(v))) //nolint:gosec // PCM16 reinterpretation
	}
	return dst, nil
}
