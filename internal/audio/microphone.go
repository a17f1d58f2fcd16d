//go:build portaudio
// +build portaudio

package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gordonklaus/portaudio"
)

// Microphone captures the default input device.
type Microphone struct {
	sampleRate int
	logger     *slog.Logger
}

// NewMicrophone creates a microphone source capturing at sampleRate.
func NewMicrophone(sampleRate int, logger *slog.Logger) *Microphone {
	return &Microphone{sampleRate: sampleRate, logger: logger}
}

// Start opens the default input stream. Capture stops when ctx is cancelled.
func (m *Microphone) Start(ctx context.Context) (<-chan []byte, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	buffer := make([]int16, DefaultFramesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.sampleRate), len(buffer), buffer)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("starting stream: %w", err)
	}
	m.logger.Info("microphone started", "sample_rate", m.sampleRate)

	out := make(chan []byte)
	go func() {
		defer close(out)
		defer portaudio.Terminate()
		defer stream.Close()
		defer stream.Stop()

		for ctx.Err() == nil {
			if err := stream.Read(); err != nil {
				m.logger.Error("reading from microphone", "error", err)
				return
			}
			select {
			case out <- EncodeLinear16(buffer):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
