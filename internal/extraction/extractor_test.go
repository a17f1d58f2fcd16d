package extraction

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/voice2issue/internal/logging"
	"github.com/danielolaszy/voice2issue/pkg/models"
)

type mockCompleter struct {
	CompleteFunc func(ctx context.Context, prompt string, maxTokens int) (string, error)
	calls        int
	prompt       string
	maxTokens    int
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	m.calls++
	m.prompt = prompt
	m.maxTokens = maxTokens
	return m.CompleteFunc(ctx, prompt, maxTokens)
}

func answer(text string) *mockCompleter {
	return &mockCompleter{
		CompleteFunc: func(context.Context, string, int) (string, error) { return text, nil },
	}
}

func TestExtractParsedDraft(t *testing.T) {
	completer := answer(`Sure! Here is the issue:
{"title": "Add login button", "body": "Place a {login} button in the header", "priority": "HIGH", "labels": ["ui", "enhancement", "ui"]}
Let me know if you need anything else.`)
	extractor := NewExtractor(completer, WithMaxTokens(256))

	draft, source, err := extractor.Extract(context.Background(), models.ExtractionRequest{
		VoiceInput: "add a login button to the header",
		Repository: "acme/web",
	})
	require.NoError(t, err)

	assert.Equal(t, SourceModel, source)
	assert.Equal(t, "Add login button", draft.Title)
	assert.Equal(t, "Place a {login} button in the header", draft.Body)
	assert.Equal(t, models.PriorityHigh, draft.Priority)
	assert.Equal(t, []string{"ui", "enhancement"}, draft.Labels)

	assert.Equal(t, 1, completer.calls)
	assert.Equal(t, 256, completer.maxTokens)
	assert.Contains(t, completer.prompt, "add a login button to the header")
	assert.Contains(t, completer.prompt, "acme/web")
}

func TestExtractMissingLabelsDefaultToEmpty(t *testing.T) {
	extractor := NewExtractor(answer(`{"title":"T","body":"B","priority":"low"}`))

	draft, source, err := extractor.Extract(context.Background(), models.ExtractionRequest{VoiceInput: "x"})
	require.NoError(t, err)

	assert.Equal(t, SourceModel, source)
	assert.NotNil(t, draft.Labels)
	assert.Empty(t, draft.Labels)
}

func TestExtractFallsBackOnUnusableOutput(t *testing.T) {
	input := "ログインボタンをヘッダーに追加してください。デザインは既存のボタンに合わせ、モバイルでも表示されるようにしてください。"

	tests := []struct {
		name   string
		answer string
	}{
		{name: "Prose only", answer: "I cannot help with that."},
		{name: "Broken JSON", answer: `{"title": "T", "body": }`},
		{name: "Missing title", answer: `{"body":"B","priority":"low","labels":[]}`},
		{name: "Blank title", answer: `{"title":"  ","body":"B","priority":"low"}`},
		{name: "Missing body", answer: `{"title":"T","priority":"low"}`},
		{name: "Missing priority", answer: `{"title":"T","body":"B","labels":["x"]}`},
		{name: "Unknown priority", answer: `{"title":"T","body":"B","priority":"urgent"}`},
		{name: "Labels of the wrong type", answer: `{"title":"T","body":"B","priority":"low","labels":"ui"}`},
		{name: "Unbalanced braces", answer: `{"title":"T","body":"B"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			extractor := NewExtractor(answer(tt.answer))

			draft, source, err := extractor.Extract(context.Background(), models.ExtractionRequest{VoiceInput: input})
			require.NoError(t, err)

			assert.Equal(t, SourceFallback, source)
			assert.Equal(t, Fallback(input, true), draft)
		})
	}
}

func TestExtractLogsWithContextLogger(t *testing.T) {
	tests := []struct {
		name    string
		answer  *mockCompleter
		message string
	}{
		{name: "Model draft", answer: answer(`{"title":"T","body":"B","priority":"low"}`), message: "issue draft extracted"},
		{name: "Fallback draft", answer: answer("no json here"), message: "using fallback issue draft"},
		{
			name: "Call failure",
			answer: &mockCompleter{CompleteFunc: func(context.Context, string, int) (string, error) {
				return "", errors.New("timeout")
			}},
			message: "model call failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})).With("request_id", "req-7")
			ctx := logging.NewContext(context.Background(), logger)

			_, _, _ = NewExtractor(tt.answer).Extract(ctx, models.ExtractionRequest{VoiceInput: "add search"})

			var line string
			for _, l := range strings.Split(buf.String(), "\n") {
				if strings.Contains(l, tt.message) {
					line = l
				}
			}
			require.NotEmpty(t, line, buf.String())
			assert.Contains(t, line, "request_id=req-7")
		})
	}
}

func TestExtractCallFailure(t *testing.T) {
	completer := &mockCompleter{
		CompleteFunc: func(context.Context, string, int) (string, error) {
			return "", errors.New("401 unauthorized")
		},
	}
	extractor := NewExtractor(completer)

	_, _, err := extractor.Extract(context.Background(), models.ExtractionRequest{VoiceInput: "hello"})
	assert.ErrorIs(t, err, ErrExtractionCallFailed)
	assert.Contains(t, err.Error(), "401 unauthorized")
}

func TestExtractWithoutCompleter(t *testing.T) {
	_, _, err := NewExtractor(nil).Extract(context.Background(), models.ExtractionRequest{VoiceInput: "hello"})
	assert.ErrorIs(t, err, ErrExtractionCallFailed)
}

func TestExtractEmptyInput(t *testing.T) {
	completer := answer(`{}`)

	_, _, err := NewExtractor(completer).Extract(context.Background(), models.ExtractionRequest{VoiceInput: "  \n"})
	assert.ErrorIs(t, err, ErrEmptyInput)
	assert.Zero(t, completer.calls)
}

func TestFallback(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		voiceLabel bool
		wantTitle  string
		wantLabels []string
	}{
		{
			name:       "Short input",
			input:      "Add dark mode",
			voiceLabel: true,
			wantTitle:  "Add dark mode...",
			wantLabels: []string{"enhancement", "voice-input"},
		},
		{
			name:       "Long input is cut at fifty characters",
			input:      strings.Repeat("a", 60),
			voiceLabel: false,
			wantTitle:  strings.Repeat("a", 50) + "...",
			wantLabels: []string{"enhancement"},
		},
		{
			name:       "Multibyte input is cut on rune boundaries",
			input:      strings.Repeat("音", 55),
			voiceLabel: true,
			wantTitle:  strings.Repeat("音", 50) + "...",
			wantLabels: []string{"enhancement", "voice-input"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			draft := Fallback(tt.input, tt.voiceLabel)

			assert.Equal(t, tt.wantTitle, draft.Title)
			assert.Equal(t, models.PriorityMedium, draft.Priority)
			assert.Equal(t, tt.wantLabels, draft.Labels)
			assert.Contains(t, draft.Body, tt.input)
			assert.Contains(t, draft.Body, "## Requirements")
		})
	}
}

func TestExtractorFallbackHonorsVoiceLabel(t *testing.T) {
	draft := NewExtractor(nil, WithVoiceLabel(false)).Fallback("hello")
	assert.Equal(t, []string{"enhancement"}, draft.Labels)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("add search", "acme/api")

	assert.Contains(t, prompt, "Voice input: add search")
	assert.Contains(t, prompt, "Repository: acme/api")
	for _, key := range []string{`"title"`, `"body"`, `"priority"`, `"labels"`} {
		assert.Contains(t, prompt, key)
	}
}
