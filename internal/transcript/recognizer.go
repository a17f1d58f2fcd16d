package transcript

import (
	"context"
	"errors"
)

var (
	// ErrUnsupportedEnvironment is returned by Start when the host has no
	// speech recognition capability.
	ErrUnsupportedEnvironment = errors.New("speech recognition is not supported in this environment")

	// ErrTransientStream classifies recognition errors worth one automatic
	// restart (network hiccups). Recognizers wrap it into the errors they emit.
	ErrTransientStream = errors.New("transient recognition stream error")

	// ErrSessionClosed is returned by operations on a closed Session.
	ErrSessionClosed = errors.New("transcript session is closed")
)

// Segment is one recognition result. Final segments will not be revised by
// the engine; interim segments may change until finalized.
type Segment struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"isFinal"`
}

// EventKind distinguishes what a recognition stream reported.
type EventKind int

const (
	// EventResult carries a batch of segments.
	EventResult EventKind = iota
	// EventError reports a stream failure. The stream may still close afterwards.
	EventError
)

// String returns the metric/log name of the kind.
func (k EventKind) String() string {
	switch k {
	case EventResult:
		return "result"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted by a recognition stream.
//
// For EventResult, Segments holds the engine's result list and ResultIndex
// the index of the first segment that is new since the previous event. Engines
// that only report new segments use ResultIndex 0.
type Event struct {
	Kind        EventKind
	ResultIndex int
	Segments    []Segment
	Err         error
}

// Stream is one open continuous recognition stream. Closing the Events
// channel signals the natural end of the stream.
type Stream interface {
	Events() <-chan Event

	// Stop asks the engine to stop. It is best effort: the Events channel
	// still closes once the engine has wound down.
	Stop() error
}

// Recognizer is the speech capability: it opens continuous, interim-returning
// streams for a fixed spoken language.
type Recognizer interface {
	Start(ctx context.Context, language string) (Stream, error)
}

// IsTransient reports whether a stream error should trigger an automatic restart.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientStream)
}
