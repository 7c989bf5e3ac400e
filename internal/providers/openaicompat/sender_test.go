package openaicompat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenplay-analyzer/internal/providers"
)

func TestNewWithoutKeyIsDisabled(t *testing.T) {
	assert.Nil(t, New(Options{Provider: providers.Financial}))
	assert.Nil(t, NewImage(Options{Provider: providers.ImageGeneration}))
}

func TestSendUsesBaseURLAndJSONMode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "deepseek-chat", body["model"])
		format, _ := body["response_format"].(map[string]any)
		assert.Equal(t, "json_object", format["type"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"x","choices":[{"index":0,"message":{"role":"assistant","content":"{\"overall_financial_score\":6}"}}]}`))
	}))
	defer srv.Close()

	s := New(Options{Provider: providers.Financial, APIKey: "key", BaseURL: srv.URL, Model: "deepseek-chat", JSONMode: true})
	out, err := s.Send(context.Background(), providers.Prompt{System: "s", User: "u", JSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"overall_financial_score":6}`, out)
}

func TestSendMapsOverloadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(529)
		_, _ = w.Write([]byte(`{"error":{"message":"server overloaded","type":"overloaded"}}`))
	}))
	defer srv.Close()

	s := New(Options{Provider: providers.RealityCheck, APIKey: "key", BaseURL: srv.URL, Model: "grok"})
	_, err := s.Send(context.Background(), providers.Prompt{User: "u"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, providers.ErrOverloaded))
}

func TestGenerateImageReturnsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/images/generations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"url":"https://img.example/p.png"}]}`))
	}))
	defer srv.Close()

	s := NewImage(Options{Provider: providers.ImageGeneration, APIKey: "key", BaseURL: srv.URL, Model: "dall-e-3"})
	url, err := s.GenerateImage(context.Background(), "a poster")
	require.NoError(t, err)
	assert.Equal(t, "https://img.example/p.png", url)
}
