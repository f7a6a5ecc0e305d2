package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/peerpanel/internal/model"
)

// ErrEmptyResponse is returned when a provider answers with no text
var ErrEmptyResponse = errors.New("empty response from provider")

// Call sites, used for logging, metering and the mock provider
const (
	TaskReviewer = "reviewer"
	TaskRelated  = "related"
	TaskMerge    = "merge"
	TaskRebuttal = "rebuttal"
	TaskVerify   = "verify"
)

// Options controls a single generation call
type Options struct {
	Task        string
	System      string
	Temperature float32
	MaxTokens   int
}

// PolicyOptions builds call options from a configured call-site policy
func PolicyOptions(task string, p model.CallPolicy) Options {
	return Options{Task: task, Temperature: p.Temperature, MaxTokens: p.MaxTokens}
}

// Generator turns a prompt into text
type Generator interface {
	Generate(ctx context.Context, prompt string, opts Options) (string, error)
}

// Provider is a concrete text-generation backend
type Provider interface {
	Generator

	// Name returns the provider name
	Name() string

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// GeneratorFunc adapts a function to the Generator interface
type GeneratorFunc func(ctx context.Context, prompt string, opts Options) (string, error)

// Generate calls f
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	return f(ctx, prompt, opts)
}

// Config holds LLM provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "gemini", "ollama", "mock"
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for hosted providers
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama, OpenAI-compatible gateways)
	BaseURL string

	// Timeout for API requests
	Timeout int // seconds

	// Proxy settings
	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider: "openai",
		Model:    "gpt-4o-mini",
		Timeout:  60,
	}
}

// ConfigFromModel converts model.LLMConfig to llm.Config
func ConfigFromModel(c model.LLMConfig) Config {
	return Config{
		Provider:   c.Provider,
		Model:      c.Model,
		APIKey:     c.APIKey,
		BaseURL:    c.BaseURL,
		Timeout:    int(c.Timeout / time.Second),
		HTTPProxy:  c.HTTPProxy,
		HTTPSProxy: c.HTTPSProxy,
		NoProxy:    c.NoProxy,
	}
}

func (c Config) timeout(fallback time.Duration) time.Duration {
	if c.Timeout <= 0 {
		return fallback
	}
	return time.Duration(c.Timeout) * time.Second
}

func maxTokensOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

// APIError is a non-2xx answer from a provider HTTP API
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s API error (%d): %s - %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}
