// Package audio provides raw LINEAR16 audio for streaming speech recognition.
package audio

import (
	"context"
	"encoding/binary"
	"errors"
)

// DefaultFramesPerBuffer is the number of samples in one chunk.
const DefaultFramesPerBuffer = 1024

// ErrUnavailable is returned when the binary was built without microphone support.
var ErrUnavailable = errors.New("microphone source not available: rebuild with -tags portaudio")

// Source produces chunks of mono little-endian 16 bit PCM. The channel closes
// when the source is exhausted or ctx is cancelled.
type Source interface {
	Start(ctx context.Context) (<-chan []byte, error)
}

// EncodeLinear16 converts samples to little-endian bytes.
func EncodeLinear16(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}
