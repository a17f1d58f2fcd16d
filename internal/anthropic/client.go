// Package anthropic sends single-turn prompts to the Anthropic Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/danielolaszy/voice2issue/internal/logging"
)

const (
	DefaultBaseURL = "https://api.anthropic.com/"
	DefaultModel   = "claude-3-5-sonnet-20241022"
	requestTimeout = 60 * time.Second
)

// ErrEmptyResponse is returned when the API answers without any text block.
var ErrEmptyResponse = errors.New("empty response from model")

// Client wraps the SDK messages service.
type Client struct {
	apiKey   string
	baseURL  string
	model    string
	messages sdk.MessageService
}

// NewClient creates a client for the public API endpoint.
func NewClient(apiKey, model string) *Client {
	return NewClientWithURL(apiKey, model, DefaultBaseURL)
}

// NewClientWithURL creates a client for a custom endpoint. Extra request
// options are applied after the defaults.
func NewClientWithURL(apiKey, model, baseURL string, opts ...option.RequestOption) *Client {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithRequestTimeout(requestTimeout),
	}, opts...)

	client := sdk.NewClient(opts...)
	return &Client{
		apiKey:   apiKey,
		baseURL:  baseURL,
		model:    model,
		messages: client.Messages,
	}
}

// Complete sends prompt as a single user message and returns the text of the
// first text block.
func (c *Client) Complete(ctx context.Context, prompt string, maxTokens int) (string, error) {
	logging.FromContext(ctx).Debug("sending completion request",
		"model", c.model,
		"max_tokens", maxTokens,
		"api_key", logging.MaskSensitive(c.apiKey))

	msg, err := c.messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(prompt))},
	})
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("model API error %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("sending request: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", ErrEmptyResponse
}
