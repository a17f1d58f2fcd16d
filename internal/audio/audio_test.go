package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeLinear16(t *testing.T) {
	testCases := []struct {
		name    string
		samples []int16
		want    []byte
	}{
		{name: "Empty", samples: nil, want: []byte{}},
		{name: "Positive", samples: []int16{1, 0x1234}, want: []byte{0x01, 0x00, 0x34, 0x12}},
		{name: "Negative", samples: []int16{-1, -32768}, want: []byte{0xff, 0xff, 0x00, 0x80}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EncodeLinear16(tc.samples))
		})
	}
}

func TestMicrophoneImplementsSource(t *testing.T) {
	var src Source = NewMicrophone(16000, nil)
	assert.NotNil(t, src)
}
