// Package transcript keeps a running transcript across a continuous,
// possibly interrupted speech recognition stream.
//
// A Session owns a single goroutine. Public methods, stream events and restart
// timers are all posted to its inbox and applied there in order, so the state
// below is never touched concurrently:
//
//	Idle ──Start──▶ Listening ──end / transient error──▶ AwaitingRestart
//	 ▲                 │                                      │
//	 └──Stop / error───┘◀──────────── restart fires ──────────┘
//
// Stop sets a manual-stop flag before any pending restart can fire, so a
// stopped session never reopens the stream on its own.
package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/danielolaszy/voice2issue/internal/logging"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateListening
	StateAwaitingRestart
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateAwaitingRestart:
		return "awaiting_restart"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	FinalText   string `json:"finalText"`
	InterimText string `json:"interimText"`
	State       State  `json:"-"`
	Active      bool   `json:"active"`
	Error       string `json:"error,omitempty"`
}

// Text is the exported transcript: confirmed plus provisional text, trimmed.
func (s Snapshot) Text() string {
	return strings.TrimSpace(s.FinalText + s.InterimText)
}

// Recorder receives session telemetry.
type Recorder interface {
	RecognitionEvent(kind string)
	Restart(reason string)
}

// Option configures a Session.
type Option func(*Session)

// WithLanguage sets the spoken language passed to the recognizer.
func WithLanguage(language string) Option {
	return func(s *Session) {
		s.language = language
	}
}

// WithRestartDelays sets how long the session waits before reopening the
// stream after a natural end and after a transient error.
func WithRestartDelays(afterEnd, afterError time.Duration) Option {
	return func(s *Session) {
		s.restartDelay = afterEnd
		s.errorRestartDelay = afterError
	}
}

// WithUpdateHandler registers the consumer of transcript updates. The handler
// runs on the session goroutine and must not call back into the Session.
func WithUpdateHandler(fn func(text string)) Option {
	return func(s *Session) {
		s.onUpdate = fn
	}
}

// WithRecorder registers a telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// Session manages one transcript over any number of recognition streams.
type Session struct {
	recognizer        Recognizer
	language          string
	restartDelay      time.Duration
	errorRestartDelay time.Duration
	onUpdate          func(string)
	recorder          Recorder
	logger            *slog.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	inbox     chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// Owned by the loop goroutine.
	state          State
	final          string
	interim        string
	lastErr        string
	manualStop     bool
	generation     int
	stream         Stream
	restartTimer   *time.Timer
	restartPending bool
}

// NewSession creates a Session and starts its goroutine. A nil recognizer
// means the host has no speech capability: Start then fails with
// ErrUnsupportedEnvironment. Call Close to release the session.
func NewSession(ctx context.Context, recognizer Recognizer, opts ...Option) *Session {
	ctx, cancel := context.WithCancel(ctx)
	s := &Session{
		recognizer:        recognizer,
		language:          "ja-JP",
		restartDelay:      100 * time.Millisecond,
		errorRestartDelay: time.Second,
		logger:            logging.FromContext(ctx).With("component", "transcript"),
		ctx:               ctx,
		cancel:            cancel,
		inbox:             make(chan func(), 64),
		quit:              make(chan struct{}),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.quit:
			s.shutdown()
			return
		case <-s.ctx.Done():
			s.shutdown()
			return
		}
	}
}

// call runs fn on the session goroutine and waits for it to finish.
func (s *Session) call(fn func()) error {
	finished := make(chan struct{})
	select {
	case s.inbox <- func() { fn(); close(finished) }:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// post queues fn without waiting. It reports false once the session is closed.
func (s *Session) post(fn func()) bool {
	select {
	case s.inbox <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Start opens a recognition stream. Starting a listening session is a no-op.
func (s *Session) Start() error {
	var err error
	if cerr := s.call(func() { err = s.start() }); cerr != nil {
		return cerr
	}
	return err
}

// Stop ends listening and suppresses any automatic restart. Failing to stop
// the underlying stream is only logged.
func (s *Session) Stop() error {
	return s.call(s.stop)
}

// Clear empties both buffers and notifies the consumer with an empty string.
// It does not stop an active session.
func (s *Session) Clear() error {
	return s.call(func() {
		s.final = ""
		s.interim = ""
		s.emit()
	})
}

// SetText replaces the confirmed buffer with a manual edit and drops the
// provisional buffer. Later recognition results append to the edited text.
func (s *Session) SetText(text string) error {
	return s.call(func() {
		s.final = text
		s.interim = ""
		s.emit()
	})
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() (Snapshot, error) {
	var snap Snapshot
	err := s.call(func() {
		snap = Snapshot{
			FinalText:   s.final,
			InterimText: s.interim,
			State:       s.state,
			Active:      s.state != StateIdle,
			Error:       s.lastErr,
		}
	})
	return snap, err
}

// Close stops the session goroutine and the current stream.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
	})
	<-s.done
}

func (s *Session) start() error {
	if s.recognizer == nil {
		s.lastErr = ErrUnsupportedEnvironment.Error()
		return ErrUnsupportedEnvironment
	}
	if s.state == StateListening {
		return nil
	}

	s.cancelRestart()
	s.manualStop = false
	return s.open()
}

func (s *Session) open() error {
	stream, err := s.recognizer.Start(s.ctx, s.language)
	if err != nil {
		s.state = StateIdle
		if errors.Is(err, ErrUnsupportedEnvironment) {
			s.lastErr = ErrUnsupportedEnvironment.Error()
			return err
		}
		s.lastErr = "failed to start speech recognition"
		s.logger.Error("failed to start recognition", "error", err)
		return fmt.Errorf("starting recognition: %w", err)
	}

	s.generation++
	s.stream = stream
	s.state = StateListening
	s.lastErr = ""

	s.logger.Debug("recognition stream opened", "generation", s.generation, "language", s.language)
	go s.forward(s.generation, stream)
	return nil
}

// forward moves events from one stream onto the inbox, tagged with the
// stream generation so late events from replaced streams are dropped.
func (s *Session) forward(generation int, stream Stream) {
	for ev := range stream.Events() {
		ev := ev
		if !s.post(func() { s.handleEvent(generation, ev) }) {
			return
		}
	}
	s.post(func() { s.handleEnd(generation) })
}

func (s *Session) handleEvent(generation int, ev Event) {
	if generation != s.generation {
		return
	}
	if s.recorder != nil {
		s.recorder.RecognitionEvent(ev.Kind.String())
	}

	switch ev.Kind {
	case EventResult:
		s.handleResult(ev)
	case EventError:
		s.handleError(ev.Err)
	}
}

func (s *Session) handleResult(ev Event) {
	if s.state != StateListening {
		return
	}

	start := ev.ResultIndex
	if start < 0 {
		start = 0
	}

	var finalPart, interimPart strings.Builder
	for i := start; i < len(ev.Segments); i++ {
		if ev.Segments[i].IsFinal {
			finalPart.WriteString(ev.Segments[i].Transcript)
		} else {
			interimPart.WriteString(ev.Segments[i].Transcript)
		}
	}

	if finalPart.Len() > 0 {
		s.final += finalPart.String()
	}
	s.interim = interimPart.String()
	s.emit()
}

func (s *Session) handleError(err error) {
	s.lastErr = fmt.Sprintf("speech recognition error: %v", err)
	s.logger.Warn("recognition stream error", "error", err, "transient", IsTransient(err))

	if s.state == StateAwaitingRestart {
		return
	}
	if IsTransient(err) && !s.manualStop && s.state == StateListening {
		s.scheduleRestart(s.errorRestartDelay, "error")
		return
	}

	s.state = StateIdle
	s.stopStream()
	if s.interim != "" {
		s.interim = ""
		s.emit()
	}
}

func (s *Session) handleEnd(generation int) {
	if generation != s.generation {
		return
	}
	s.stream = nil

	switch s.state {
	case StateListening:
		if !s.manualStop {
			s.logger.Debug("recognition stream ended, restarting")
			s.scheduleRestart(s.restartDelay, "end")
			return
		}
		s.state = StateIdle
		fallthrough
	case StateIdle:
		if s.interim != "" {
			s.interim = ""
			s.emit()
		}
	case StateAwaitingRestart:
		// A restart is already pending.
	}
}

func (s *Session) scheduleRestart(delay time.Duration, reason string) {
	if s.restartPending {
		return
	}
	s.state = StateAwaitingRestart
	s.restartPending = true

	generation := s.generation
	s.restartTimer = time.AfterFunc(delay, func() {
		s.post(func() { s.restart(generation, reason) })
	})
}

func (s *Session) restart(generation int, reason string) {
	if !s.restartPending || generation != s.generation {
		return
	}
	s.restartPending = false
	s.restartTimer = nil

	if s.manualStop || s.state != StateAwaitingRestart {
		return
	}

	s.stopStream()
	if s.recorder != nil {
		s.recorder.Restart(reason)
	}
	s.logger.Info("restarting speech recognition", "reason", reason)

	if err := s.open(); err != nil {
		if s.interim != "" {
			s.interim = ""
			s.emit()
		}
	}
}

func (s *Session) cancelRestart() {
	if s.restartTimer != nil {
		s.restartTimer.Stop()
		s.restartTimer = nil
	}
	s.restartPending = false
}

func (s *Session) stop() {
	s.manualStop = true
	s.cancelRestart()
	s.state = StateIdle
	s.interim = ""
	s.stopStream()
	s.emit()
}

func (s *Session) stopStream() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Stop(); err != nil {
		s.logger.Warn("failed to stop recognition stream", "error", err)
	}
	s.stream = nil
}

func (s *Session) shutdown() {
	s.cancelRestart()
	s.manualStop = true
	s.stopStream()
	s.state = StateIdle
	s.cancel()
}

func (s *Session) emit() {
	if s.onUpdate != nil {
		s.onUpdate(strings.TrimSpace(s.final + s.interim))
	}
}
