// Package openaicompat talks to every backend that speaks the OpenAI chat and
// image APIs (OpenAI itself, xAI, DeepSeek, Perplexity) through go-openai with a
// per-backend base URL.
package openaicompat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"screenplay-analyzer/internal/providers"
)

// Options configures one OpenAI-compatible backend.
type Options struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	// JSONMode requests a json_object response format. Some backends reject it.
	JSONMode    bool
	Temperature float32
	HTTPClient  *http.Client
}

// Sender implements providers.Sender.
type Sender struct {
	client *openai.Client
	opts   Options
}

// New returns a Sender, or nil when the key is blank so the backend stays disabled.
func New(opts Options) providers.Sender {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil
	}
	return &Sender{client: newClient(opts), opts: opts}
}

func newClient(opts Options) *openai.Client {
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if opts.HTTPClient != nil {
		cfg.HTTPClient = opts.HTTPClient
	}
	return openai.NewClientWithConfig(cfg)
}

// Send runs one chat completion and returns the first choice's content.
func (s *Sender) Send(ctx context.Context, prompt providers.Prompt) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: prompt.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt.User})

	req := openai.ChatCompletionRequest{
		Model:       s.opts.Model,
		Messages:    messages,
		MaxTokens:   prompt.MaxTokens,
		Temperature: s.opts.Temperature,
	}
	if prompt.JSON && s.opts.JSONMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", wrapError(s.opts.Provider, err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: received empty response", s.opts.Provider)
	}
	return resp.Choices[0].Message.Content, nil
}

// ImageSender implements providers.ImageSender with the images endpoint.
type ImageSender struct {
	client *openai.Client
	opts   Options
}

// NewImage returns an ImageSender, or nil when the key is blank.
func NewImage(opts Options) providers.ImageSender {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil
	}
	return &ImageSender{client: newClient(opts), opts: opts}
}

// GenerateImage renders one portrait poster and returns its URL.
func (s *ImageSender) GenerateImage(ctx context.Context, prompt string) (string, error) {
	resp, err := s.client.CreateImage(ctx, openai.ImageRequest{
		Prompt:         prompt,
		Model:          s.opts.Model,
		N:              1,
		Size:           openai.CreateImageSize1024x1792,
		Quality:        openai.CreateImageQualityStandard,
		ResponseFormat: openai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return "", wrapError(s.opts.Provider, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].URL == "" {
		return "", fmt.Errorf("%s: image response missing url", s.opts.Provider)
	}
	return resp.Data[0].URL, nil
}

// wrapError maps go-openai's HTTP errors onto providers.StatusError so the
// retry policy can recognise overloads.
func wrapError(provider string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &providers.StatusError{Provider: provider, StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		body := ""
		if reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &providers.StatusError{Provider: provider, StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("%s: %w", provider, err)
}
