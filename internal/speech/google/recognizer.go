// Package google provides a transcript.Recognizer backed by Google Cloud
// Speech-to-Text streaming recognition.
package google

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/danielolaszy/voice2issue/internal/audio"
	"github.com/danielolaszy/voice2issue/internal/transcript"
)

// DefaultSampleRate is used when the configured rate is not positive.
const DefaultSampleRate = 16000

type openFunc func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error)

// Recognizer streams audio from a Source to Google and reports results.
type Recognizer struct {
	open       openFunc
	source     audio.Source
	sampleRate int
	logger     *slog.Logger
	closer     io.Closer
}

// New creates a Recognizer using application default credentials
// (GOOGLE_APPLICATION_CREDENTIALS).
func New(ctx context.Context, source audio.Source, sampleRate int, logger *slog.Logger) (*Recognizer, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}
	r := newRecognizer(func(ctx context.Context) (speechpb.Speech_StreamingRecognizeClient, error) {
		return client.StreamingRecognize(ctx)
	}, source, sampleRate, logger)
	r.closer = client
	return r, nil
}

func newRecognizer(open openFunc, source audio.Source, sampleRate int, logger *slog.Logger) *Recognizer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Recognizer{open: open, source: source, sampleRate: sampleRate, logger: logger}
}

// Close releases the underlying client.
func (r *Recognizer) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Start opens a streaming recognition for language and begins sending audio.
func (r *Recognizer) Start(ctx context.Context, language string) (transcript.Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	client, err := r.open(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening recognition stream: %w", startError(err))
	}

	// Send streaming config as the first message
	if err := client.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(r.sampleRate),
					LanguageCode:               language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults: true,
			},
		},
	}); err != nil {
		cancel()
		return nil, fmt.Errorf("sending streaming config: %w", startError(err))
	}

	chunks, err := r.source.Start(streamCtx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("starting audio source: %w", err)
	}

	s := &stream{
		client: client,
		cancel: cancel,
		ctx:    streamCtx,
		events: make(chan transcript.Event),
		logger: r.logger,
	}
	go s.sendAudio(chunks)
	go s.receive()
	return s, nil
}

type stream struct {
	client speechpb.Speech_StreamingRecognizeClient
	ctx    context.Context
	cancel context.CancelFunc
	events chan transcript.Event
	logger *slog.Logger

	stopOnce sync.Once
}

func (s *stream) Events() <-chan transcript.Event { return s.events }

// Stop cancels the stream; Events closes once the receive loop returns.
func (s *stream) Stop() error {
	s.stopOnce.Do(s.cancel)
	return nil
}

func (s *stream) sendAudio(chunks <-chan []byte) {
	defer func() {
		if err := s.client.CloseSend(); err != nil {
			s.logger.Debug("closing send direction", "error", err)
		}
	}()

	for {
		select {
		case <-s.ctx.Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if err := s.client.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
					AudioContent: chunk,
				},
			}); err != nil {
				// Recv reports the cause.
				s.logger.Debug("sending audio failed", "error", err)
				return
			}
		}
	}
}

func (s *stream) receive() {
	defer close(s.events)
	defer s.stopOnce.Do(s.cancel)

	for {
		resp, err := s.client.Recv()
		if err == nil && resp.Error != nil && codes.Code(resp.Error.Code) != codes.OK {
			err = status.FromProto(resp.Error).Err()
		}
		if err != nil {
			if cause := classify(err); cause != nil {
				s.emit(transcript.Event{Kind: transcript.EventError, Err: cause})
			}
			return
		}

		if segments := Segments(resp.Results); len(segments) > 0 {
			s.emit(transcript.Event{Kind: transcript.EventResult, Segments: segments})
		}
	}
}

func (s *stream) emit(ev transcript.Event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

// Segments converts one streaming response into segments. Google reports
// only the results that changed, so the event's ResultIndex is always 0.
func Segments(results []*speechpb.StreamingRecognitionResult) []transcript.Segment {
	segments := make([]transcript.Segment, 0, len(results))
	for _, r := range results {
		if len(r.Alternatives) == 0 {
			continue
		}
		segments = append(segments, transcript.Segment{
			Transcript: r.Alternatives[0].Transcript,
			IsFinal:    r.IsFinal,
		})
	}
	return segments
}

// classify maps a streaming error. It returns nil for a natural end of the
// stream, an error wrapping transcript.ErrTransientStream for errors worth a
// restart, and the error itself otherwise.
func classify(err error) error {
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	switch status.Code(err) {
	case codes.Canceled, codes.OutOfRange:
		// OutOfRange: the stream hit its maximum duration.
		return nil
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal:
		return fmt.Errorf("%w: %v", transcript.ErrTransientStream, err)
	default:
		return err
	}
}

// startError is classify for errors that abort Start, where there is no
// stream to end naturally.
func startError(err error) error {
	if cause := classify(err); cause != nil {
		return cause
	}
	return err
}
