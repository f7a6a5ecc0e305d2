package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiProvider_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/gemini-2.0-flash:generateContent", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotNil(t, req.SystemInstruction)
		assert.Equal(t, "Merge the points.", req.SystemInstruction.Parts[0].Text)
		assert.Equal(t, 2000, req.GenerationConfig.MaxOutputTokens)
		assert.Equal(t, "user", req.Contents[0].Role)

		_, _ = w.Write([]byte(`{"candidates": [{"content": {"parts": [{"text": "{\"summary\": "}, {"text": "\"ok\"}"}]}}]}`))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	text, err := p.Generate(context.Background(), "points", Options{
		Task:        TaskMerge,
		System:      "Merge the points.",
		Temperature: 0.2,
		MaxTokens:   2000,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"summary": "ok"}`, text)
}

func TestGeminiProvider_Generate_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": {"code": 503, "message": "overloaded", "status": "UNAVAILABLE"}}`))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "prompt", Options{})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "UNAVAILABLE", apiErr.Type)
	assert.Equal(t, "overloaded", apiErr.Message)
	assert.True(t, IsRetriable(err))
}

func TestGeminiProvider_Generate_NoCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates": []}`))
	}))
	defer server.Close()

	p, err := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), "prompt", Options{})
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models/gemini-2.0-flash" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	p, err := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	assert.True(t, p.IsAvailable(context.Background()))

	p2, err := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: server.URL, Model: "missing"})
	require.NoError(t, err)
	assert.False(t, p2.IsAvailable(context.Background()))
}

func TestNewGeminiProvider_NoKey(t *testing.T) {
	_, err := NewGeminiProvider(Config{})
	assert.Error(t, err)
}
