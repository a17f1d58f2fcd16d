//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"log/slog"
)

// Microphone stub when portaudio is not available.
type Microphone struct{}

func NewMicrophone(_ int, _ *slog.Logger) *Microphone {
	return &Microphone{}
}

func (m *Microphone) Start(_ context.Context) (<-chan []byte, error) {
	return nil, ErrUnavailable
}
