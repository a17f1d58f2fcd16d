// Package workflow runs the voice to issue pipeline: structured extraction
// followed by issue publication. Clients are built per invocation from the
// credentials of that invocation.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danielolaszy/voice2issue/internal/anthropic"
	"github.com/danielolaszy/voice2issue/internal/config"
	"github.com/danielolaszy/voice2issue/internal/extraction"
	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/internal/publication"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

// ErrMissingModelCredential is returned when a model call is needed but no
// API key is available.
var ErrMissingModelCredential = errors.New("model API key is missing")

// SampleInput replaces an empty transcript in demo mode.
const SampleInput = "Add a dark mode toggle to the settings page. The choice should be remembered between visits and the default should follow the operating system theme."

// Request is one publish or extract invocation. Empty fields fall back to
// the configuration.
type Request struct {
	VoiceInput   string
	Repository   string
	TrackerToken string
	ModelAPIKey  string
	DemoMode     *bool
}

// Result is the outcome of Run.
type Result struct {
	Publication models.PublicationResult
	Draft       models.IssueDraft
	Source      extraction.Source
}

// CompleterFactory builds a model client for one invocation.
type CompleterFactory func(apiKey string) extraction.Completer

// Recorder receives pipeline telemetry.
type Recorder interface {
	publication.Recorder
	Extraction(source string)
	ExtractionFailure()
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithCompleterFactory replaces the Anthropic client factory.
func WithCompleterFactory(f CompleterFactory) Option {
	return func(w *Workflow) {
		w.newCompleter = f
	}
}

// WithTrackerFactory replaces the tracker client factory.
func WithTrackerFactory(f TrackerFactory) Option {
	return func(w *Workflow) {
		w.newTracker = f
	}
}

// WithRecorder registers a telemetry sink.
func WithRecorder(r Recorder) Option {
	return func(w *Workflow) {
		w.recorder = r
	}
}

// Workflow ties extraction and publication together.
type Workflow struct {
	cfg          *config.Config
	newCompleter CompleterFactory
	newTracker   TrackerFactory
	recorder     Recorder
	publisher    *publication.Publisher
}

// New creates a Workflow for cfg.
func New(cfg *config.Config, opts ...Option) *Workflow {
	w := &Workflow{cfg: cfg}
	w.newCompleter = func(apiKey string) extraction.Completer {
		return anthropic.NewClientWithURL(apiKey, cfg.Anthropic.Model, cfg.Anthropic.BaseURL)
	}
	w.newTracker = func(token string) (TrackerClient, error) {
		return NewTracker(cfg, token)
	}
	for _, opt := range opts {
		opt(w)
	}

	var recorder publication.Recorder
	if w.recorder != nil {
		recorder = w.recorder
	}
	w.publisher = publication.NewPublisher(func(token string) (publication.Tracker, error) {
		return w.newTracker(token)
	}, publication.OptionsFromConfig(cfg.Issue), recorder)

	return w
}

// Settings merges the request over the configuration.
func (w *Workflow) Settings(req Request) models.Settings {
	settings := models.Settings{
		Repository:   firstNonEmpty(req.Repository, w.cfg.GitHub.Repository),
		TrackerToken: firstNonEmpty(req.TrackerToken, ConfiguredToken(w.cfg)),
		ModelAPIKey:  firstNonEmpty(req.ModelAPIKey, w.cfg.Anthropic.APIKey),
		DemoMode:     w.cfg.DemoMode,
	}
	if req.DemoMode != nil {
		settings.DemoMode = *req.DemoMode
	}
	return settings
}

// Extract produces a draft without publishing it.
func (w *Workflow) Extract(ctx context.Context, req Request) (models.IssueDraft, extraction.Source, error) {
	return w.extract(ctx, w.Settings(req), req.VoiceInput)
}

// Run extracts a draft from the transcript and publishes it. Repository and
// tracker credential are validated before the model is called.
func (w *Workflow) Run(ctx context.Context, req Request) (Result, error) {
	settings := w.Settings(req)
	logger := logging.FromContext(ctx).With("repository", settings.Repository, "demo", settings.DemoMode)

	if !publication.IsDemo(settings) {
		if err := publication.Validate(settings); err != nil {
			return Result{}, err
		}
	}

	draft, source, err := w.extract(ctx, settings, req.VoiceInput)
	if err != nil {
		return Result{}, err
	}

	published, err := w.publisher.Publish(ctx, settings, draft)
	if err != nil {
		logger.Error("publication failed", "error", err)
		return Result{Publication: published, Draft: draft, Source: source}, err
	}

	logger.Info("voice input published",
		"issue_number", published.IssueNumber,
		"source", source,
		"comment_added", published.CommentAdded)

	return Result{Publication: published, Draft: draft, Source: source}, nil
}

func (w *Workflow) extract(ctx context.Context, settings models.Settings, input string) (models.IssueDraft, extraction.Source, error) {
	if strings.TrimSpace(input) == "" {
		if !settings.DemoMode {
			return models.IssueDraft{}, "", extraction.ErrEmptyInput
		}
		input = SampleInput
	}

	opts := []extraction.Option{
		extraction.WithMaxTokens(w.cfg.Anthropic.MaxTokens),
		extraction.WithVoiceLabel(w.cfg.Issue.FallbackVoiceTag),
	}

	if publication.IsDemo(settings) {
		logging.FromContext(ctx).Info("demo mode: using fallback draft without model call")
		w.recordExtraction(extraction.SourceDemo)
		return extraction.NewExtractor(nil, opts...).Fallback(input), extraction.SourceDemo, nil
	}
	if settings.ModelAPIKey == "" {
		return models.IssueDraft{}, "", ErrMissingModelCredential
	}

	extractor := extraction.NewExtractor(w.newCompleter(settings.ModelAPIKey), opts...)
	draft, source, err := extractor.Extract(ctx, models.ExtractionRequest{
		VoiceInput: input,
		Repository: settings.Repository,
	})
	if err != nil {
		if errors.Is(err, extraction.ErrExtractionCallFailed) && w.recorder != nil {
			w.recorder.ExtractionFailure()
		}
		return models.IssueDraft{}, "", err
	}

	w.recordExtraction(source)
	return draft, source, nil
}

func (w *Workflow) recordExtraction(source extraction.Source) {
	if w.recorder != nil {
		w.recorder.Extraction(string(source))
	}
}

// TestConnection checks a tracker credential.
func (w *Workflow) TestConnection(ctx context.Context, token string) models.ConnectionStatus {
	token = firstNonEmpty(token, ConfiguredToken(w.cfg))
	if token == "" {
		return models.ConnectionStatus{Success: false, Error: publication.ErrMissingCredential.Error()}
	}

	tracker, err := w.newTracker(token)
	if err != nil {
		return models.ConnectionStatus{Success: false, Error: err.Error()}
	}
	return tracker.TestConnection(ctx)
}

// RepositoryInfo fetches summary information about a repository.
func (w *Workflow) RepositoryInfo(ctx context.Context, repository, token string) (models.RepositoryInfo, error) {
	settings := w.Settings(Request{Repository: repository, TrackerToken: token})
	if err := publication.Validate(settings); err != nil {
		return models.RepositoryInfo{}, err
	}
	owner, repo, _ := models.ParseRepository(settings.Repository)

	tracker, err := w.newTracker(settings.TrackerToken)
	if err != nil {
		return models.RepositoryInfo{}, fmt.Errorf("%w: %v", publication.ErrTrackerCallFailed, err)
	}
	info, err := tracker.GetRepository(ctx, owner, repo)
	if err != nil {
		return models.RepositoryInfo{}, fmt.Errorf("%w: %v", publication.ErrTrackerCallFailed, err)
	}
	return info, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
