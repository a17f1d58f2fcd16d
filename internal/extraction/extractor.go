// Package extraction turns a free-text feature request into an IssueDraft
// using a language model, with a deterministic fallback for unusable output.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

var (
	// ErrEmptyInput is returned when there is no transcript to analyze.
	ErrEmptyInput = errors.New("voice input is empty")

	// ErrExtractionCallFailed wraps failures of the model call itself.
	ErrExtractionCallFailed = errors.New("extraction call failed")

	// ErrMalformedModelOutput describes output that could not be used. It is
	// recovered locally with the fallback draft and never returned.
	ErrMalformedModelOutput = errors.New("malformed model output")
)

// Source tells where a draft came from.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
	SourceDemo     Source = "demo"
)

const (
	defaultMaxTokens  = 1000
	fallbackTitleSize = 50
	labelEnhancement  = "enhancement"
	labelVoiceInput   = "voice-input"
)

// Completer is the language model collaborator.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithMaxTokens bounds the size of the model answer.
func WithMaxTokens(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithVoiceLabel controls whether fallback drafts carry the voice-input label.
func WithVoiceLabel(enabled bool) Option {
	return func(e *Extractor) {
		e.voiceLabel = enabled
	}
}

// Extractor produces issue drafts from transcripts.
type Extractor struct {
	completer  Completer
	maxTokens  int
	voiceLabel bool
}

// NewExtractor creates an Extractor backed by completer.
func NewExtractor(completer Completer, opts ...Option) *Extractor {
	e := &Extractor{
		completer:  completer,
		maxTokens:  defaultMaxTokens,
		voiceLabel: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract asks the model for a draft. Only a failing model call is reported as
// an error; unusable output yields the fallback draft.
func (e *Extractor) Extract(ctx context.Context, req models.ExtractionRequest) (models.IssueDraft, Source, error) {
	if strings.TrimSpace(req.VoiceInput) == "" {
		return models.IssueDraft{}, "", ErrEmptyInput
	}
	if e.completer == nil {
		return models.IssueDraft{}, "", fmt.Errorf("%w: no model client configured", ErrExtractionCallFailed)
	}

	logger := logging.FromContext(ctx)
	logger.Debug("requesting issue draft from model", "repository", req.Repository, "input_length", len(req.VoiceInput))

	text, err := e.completer.Complete(ctx, BuildPrompt(req.VoiceInput, req.Repository), e.maxTokens)
	if err != nil {
		logger.Error("model call failed", "error", err)
		return models.IssueDraft{}, "", fmt.Errorf("%w: %v", ErrExtractionCallFailed, err)
	}

	draft, err := ParseDraft(text)
	if err != nil {
		logger.Warn("using fallback issue draft", "reason", err)
		return e.Fallback(req.VoiceInput), SourceFallback, nil
	}

	logger.Info("issue draft extracted", "title", draft.Title, "priority", draft.Priority, "labels", draft.Labels)
	return draft, SourceModel, nil
}

// Fallback builds the deterministic draft for input.
func (e *Extractor) Fallback(input string) models.IssueDraft {
	return Fallback(input, e.voiceLabel)
}

// BuildPrompt renders the fixed instruction prompt.
func BuildPrompt(voiceInput, repository string) string {
	return fmt.Sprintf(`Analyze the following voice input and produce the information for a GitHub issue.

Voice input: %s
Repository: %s

Respond with ONLY a JSON object with exactly these keys and nothing else:
{
  "title": "short, specific title",
  "body": "detailed description and implementation requirements",
  "priority": "low|medium|high",
  "labels": ["list", "of", "fitting", "labels"]
}`, voiceInput, repository)
}

type draftPayload struct {
	Title    *string  `json:"title"`
	Body     *string  `json:"body"`
	Priority *string  `json:"priority"`
	Labels   []string `json:"labels"`
}

// ParseDraft reads a draft out of a model answer. The answer may wrap the JSON
// object in prose. Title, body and priority are required; labels default to
// an empty set.
func ParseDraft(text string) (models.IssueDraft, error) {
	raw, ok := FindJSONObject(text)
	if !ok {
		return models.IssueDraft{}, fmt.Errorf("%w: no JSON object found", ErrMalformedModelOutput)
	}

	var payload draftPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return models.IssueDraft{}, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}

	switch {
	case payload.Title == nil || strings.TrimSpace(*payload.Title) == "":
		return models.IssueDraft{}, fmt.Errorf("%w: missing title", ErrMalformedModelOutput)
	case payload.Body == nil:
		return models.IssueDraft{}, fmt.Errorf("%w: missing body", ErrMalformedModelOutput)
	case payload.Priority == nil:
		return models.IssueDraft{}, fmt.Errorf("%w: missing priority", ErrMalformedModelOutput)
	}

	priority, err := models.ParsePriority(*payload.Priority)
	if err != nil {
		return models.IssueDraft{}, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}

	return models.IssueDraft{
		Title:    *payload.Title,
		Body:     *payload.Body,
		Priority: priority,
		Labels:   models.AppendUnique([]string{}, payload.Labels...),
	}, nil
}

// Fallback builds a draft that embeds input verbatim. It never fails.
func Fallback(input string, voiceLabel bool) models.IssueDraft {
	labels := []string{labelEnhancement}
	if voiceLabel {
		labels = append(labels, labelVoiceInput)
	}

	return models.IssueDraft{
		Title:    truncateRunes(strings.TrimSpace(input), fallbackTitleSize) + "...",
		Body:     fallbackBody(input),
		Priority: models.PriorityMedium,
		Labels:   labels,
	}
}

func fallbackBody(input string) string {
	return "## Requirements\n\n" + input + "\n\n" +
		"## Implementation\n" +
		"Proceed with the implementation based on the voice input above.\n\n" +
		"## Priority\n" +
		string(models.PriorityMedium)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
