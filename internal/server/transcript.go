package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/transcript"
	"github.com/danielolaszy/voice2issue/internal/workflow"
)

const (
	writeTimeout     = 5 * time.Second
	streamBufferSize = 64
)

// Message types exchanged on the transcript websocket.
const (
	msgHello      = "hello"
	msgResult     = "result"
	msgError      = "error"
	msgEnd        = "end"
	msgCommand    = "command"
	msgControl    = "control"
	msgTranscript = "transcript"
	msgState      = "state"
	msgPublished  = "published"
	msgFailure    = "failure"
)

// clientMessage is anything the browser sends.
type clientMessage struct {
	Type string `json:"type"`

	// result, error and end echo the stream id of the control start.
	Stream uint64 `json:"stream"`

	// hello
	SpeechSupported bool `json:"speechSupported"`

	// result
	ResultIndex int                  `json:"resultIndex"`
	Results     []transcript.Segment `json:"results"`

	// error
	Error string `json:"error"`

	// command
	Action          string `json:"action"`
	Text            string `json:"text"`
	Repository      string `json:"repository"`
	GitHubToken     string `json:"githubToken"`
	AnthropicAPIKey string `json:"anthropicApiKey"`
	DemoMode        *bool  `json:"demoMode"`
}

type controlMessage struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Stream uint64 `json:"stream"`
	Lang   string `json:"lang,omitempty"`
}

type transcriptMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type stateMessage struct {
	Type   string `json:"type"`
	Text   string `json:"text"`
	State  string `json:"state"`
	Active bool   `json:"active"`
	Error  string `json:"error,omitempty"`
}

type publishedMessage struct {
	Type string    `json:"type"`
	Data issueData `json:"data"`
}

type failureMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// wsConn serializes writes: gorilla/websocket allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(v)
}

// remoteRecognizer drives the speech engine of the browser on the other end
// of the websocket. Start and Stop become control messages; result, error and
// end messages from the browser become stream events. Every start carries a
// fresh stream id and browser messages for any other id are dropped, so a late
// end from a replaced recognition cannot close its successor.
type remoteRecognizer struct {
	conn   *wsConn
	logger *slog.Logger

	mu        sync.Mutex
	supported bool
	lastID    uint64
	current   *remoteStream
}

type remoteStream struct {
	recognizer *remoteRecognizer
	id         uint64
	events     chan transcript.Event
}

func (s *remoteStream) Events() <-chan transcript.Event { return s.events }

func (s *remoteStream) Stop() error {
	return s.recognizer.conn.send(controlMessage{Type: msgControl, Action: "stop", Stream: s.id})
}

func (r *remoteRecognizer) setSupported(supported bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supported = supported
}

func (r *remoteRecognizer) Start(_ context.Context, language string) (transcript.Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.supported {
		return nil, transcript.ErrUnsupportedEnvironment
	}
	r.closeCurrentLocked()

	r.lastID++
	id := r.lastID
	if err := r.conn.send(controlMessage{Type: msgControl, Action: "start", Stream: id, Lang: language}); err != nil {
		return nil, fmt.Errorf("sending start control: %w", err)
	}
	r.current = &remoteStream{recognizer: r, id: id, events: make(chan transcript.Event, streamBufferSize)}
	return r.current, nil
}

// currentLocked returns the live stream if id names it.
func (r *remoteRecognizer) currentLocked(id uint64) *remoteStream {
	if r.current == nil || r.current.id != id {
		return nil
	}
	return r.current
}

func (r *remoteRecognizer) deliver(id uint64, ev transcript.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentLocked(id) == nil {
		r.logger.Debug("ignoring event for inactive stream", "stream", id, "kind", ev.Kind.String())
		return
	}
	select {
	case r.current.events <- ev:
	default:
		r.logger.Warn("dropping recognition event, stream buffer full", "kind", ev.Kind.String())
	}
}

func (r *remoteRecognizer) end(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.currentLocked(id) == nil {
		r.logger.Debug("ignoring end for inactive stream", "stream", id)
		return
	}
	r.closeCurrentLocked()
}

func (r *remoteRecognizer) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeCurrentLocked()
}

func (r *remoteRecognizer) closeCurrentLocked() {
	if r.current != nil {
		close(r.current.events)
		r.current = nil
	}
}

// browserError converts a Web Speech API error code. Only network errors are
// worth an automatic restart.
func browserError(code string) error {
	if code == "network" {
		return fmt.Errorf("%s: %w", code, transcript.ErrTransientStream)
	}
	return errors.New(code)
}

func (s *Server) handleTranscriptSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Error("websocket upgrade failed", "error", err)
		return
	}

	conn := &wsConn{conn: ws}
	sessionID := uuid.NewString()
	logger := logging.FromContext(r.Context()).With("session_id", sessionID)

	recognizer := &remoteRecognizer{conn: conn, logger: logger}

	opts := []transcript.Option{
		transcript.WithLanguage(s.cfg.Speech.Language),
		transcript.WithRestartDelays(s.cfg.Speech.RestartDelay, s.cfg.Speech.ErrorRestartDelay),
		transcript.WithUpdateHandler(func(text string) {
			if err := conn.send(transcriptMessage{Type: msgTranscript, Text: text}); err != nil {
				logger.Debug("failed to send transcript update", "error", err)
			}
		}),
	}
	if s.metrics != nil {
		opts = append(opts, transcript.WithRecorder(s.metrics))
		s.metrics.ActiveSessions.Inc()
		defer s.metrics.ActiveSessions.Dec()
	}

	ctx, cancel := context.WithCancel(logging.NewContext(context.Background(), logger))
	session := transcript.NewSession(ctx, recognizer, opts...)

	h := &socketHandler{
		server:     s,
		conn:       conn,
		recognizer: recognizer,
		session:    session,
		logger:     logger,
		ctx:        ctx,
	}

	logger.Info("transcript session connected")
	h.sendState()
	h.readLoop(ws)

	cancel()
	session.Close()
	recognizer.close()
	h.publishing.Wait()
	_ = ws.Close()
	logger.Info("transcript session disconnected")
}

// socketHandler serves one websocket connection.
type socketHandler struct {
	server     *Server
	conn       *wsConn
	recognizer *remoteRecognizer
	session    *transcript.Session
	logger     *slog.Logger
	ctx        context.Context

	inFlight   atomic.Bool
	publishing sync.WaitGroup
}

func (h *socketHandler) readLoop(ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.logger.Warn("ignoring malformed message", "error", err)
			continue
		}
		h.handle(msg)
	}
}

func (h *socketHandler) handle(msg clientMessage) {
	switch msg.Type {
	case msgHello:
		h.recognizer.setSupported(msg.SpeechSupported)
	case msgResult:
		h.recognizer.deliver(msg.Stream, transcript.Event{
			Kind:        transcript.EventResult,
			ResultIndex: msg.ResultIndex,
			Segments:    msg.Results,
		})
	case msgError:
		h.recognizer.deliver(msg.Stream, transcript.Event{Kind: transcript.EventError, Err: browserError(msg.Error)})
	case msgEnd:
		h.recognizer.end(msg.Stream)
	case msgCommand:
		h.command(msg)
		h.sendState()
	default:
		h.logger.Debug("ignoring unknown message type", "type", msg.Type)
	}
}

func (h *socketHandler) command(msg clientMessage) {
	var err error
	switch msg.Action {
	case "start":
		err = h.session.Start()
	case "stop":
		err = h.session.Stop()
	case "clear":
		err = h.session.Clear()
	case "setText":
		err = h.session.SetText(msg.Text)
	case "publish":
		h.publish(msg)
		return
	default:
		err = fmt.Errorf("unknown command %q", msg.Action)
	}

	if err != nil {
		h.logger.Warn("transcript command failed", "action", msg.Action, "error", err)
		h.fail(err)
	}
}

// publish runs the pipeline on the current transcript. Only one publication
// runs per connection.
func (h *socketHandler) publish(msg clientMessage) {
	if !h.inFlight.CompareAndSwap(false, true) {
		h.fail(errors.New("a publication is already in progress"))
		return
	}

	snap, err := h.session.Snapshot()
	if err != nil {
		h.inFlight.Store(false)
		h.fail(err)
		return
	}

	req := workflow.Request{
		VoiceInput:   snap.Text(),
		Repository:   msg.Repository,
		TrackerToken: msg.GitHubToken,
		ModelAPIKey:  msg.AnthropicAPIKey,
		DemoMode:     msg.DemoMode,
	}

	h.publishing.Add(1)
	go func() {
		defer h.publishing.Done()
		defer h.inFlight.Store(false)

		result, err := h.server.workflow.Run(h.ctx, req)
		if err != nil {
			h.logger.Error("publication from transcript failed", "error", err)
			h.fail(err)
			return
		}
		if err := h.conn.send(publishedMessage{Type: msgPublished, Data: newIssueData(result)}); err != nil {
			h.logger.Debug("failed to send publication result", "error", err)
		}
	}()
}

func (h *socketHandler) sendState() {
	snap, err := h.session.Snapshot()
	if err != nil {
		return
	}
	if err := h.conn.send(stateMessage{
		Type:   msgState,
		Text:   snap.Text(),
		State:  snap.State.String(),
		Active: snap.Active,
		Error:  snap.Error,
	}); err != nil {
		h.logger.Debug("failed to send state", "error", err)
	}
}

func (h *socketHandler) fail(err error) {
	if sendErr := h.conn.send(failureMessage{Type: msgFailure, Error: err.Error()}); sendErr != nil {
		h.logger.Debug("failed to send failure", "error", sendErr)
	}
}
