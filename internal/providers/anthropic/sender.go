// Package anthropic sends prompts to the Anthropic Messages API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"screenplay-analyzer/internal/providers"
)

const (
	// DefaultURL is the Messages endpoint.
	DefaultURL = "https://api.anthropic.com/v1/messages"
	apiVersion = "2023-06-01"
)

// Sender implements providers.Sender over HTTP.
type Sender struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
}

// New returns a Sender, or nil when apiKey is blank so the backend stays disabled.
func New(apiKey, model, url string, httpClient *http.Client) providers.Sender {
	if strings.TrimSpace(apiKey) == "" {
		return nil
	}
	if url == "" {
		url = DefaultURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Sender{apiKey: apiKey, model: model, url: url, httpClient: httpClient}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Send posts one Messages request and returns the concatenated text blocks.
func (s *Sender) Send(ctx context.Context, prompt providers.Prompt) (string, error) {
	maxTokens := prompt.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	payload, err := json.Marshal(messagesRequest{
		Model:     s.model,
		MaxTokens: maxTokens,
		System:    prompt.System,
		Messages:  []message{{Role: "user", Content: prompt.User}},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("anthropic request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &providers.StatusError{
			Provider:   providers.Craft,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	var parsed messagesResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("anthropic response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", &providers.StatusError{
			Provider:   providers.Craft,
			StatusCode: resp.StatusCode,
			Body:       parsed.Error.Type + ": " + parsed.Error.Message,
		}
	}
	var b strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", errors.New("anthropic response empty content")
	}
	return text, nil
}
