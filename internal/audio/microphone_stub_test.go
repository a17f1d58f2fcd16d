//go:build !portaudio
// +build !portaudio

package audio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMicrophoneUnavailableWithoutPortaudio(t *testing.T) {
	_, err := NewMicrophone(16000, nil).Start(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
}
