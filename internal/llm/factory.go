package llm

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/cache"
	"github.com/ppiankov/peerpanel/internal/worker"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "gemini", "google":
		return NewGeminiProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "mock":
		return NewMockProvider(), nil

	case "":
		return nil, fmt.Errorf("no LLM provider configured (set llm.provider)")

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, gemini, ollama, mock)", config.Provider)
	}
}

// Stack holds the shared decorators applied around every provider instance.
// The cache, limiter and meter are safe for concurrent use.
type Stack struct {
	Cache      cache.Cache
	CacheTTL   time.Duration
	Limiter    *worker.Limiter
	Meter      *Meter
	MaxRetries int
	Logger     *zap.Logger
}

// Wrap decorates p. Cache hits skip metering, retries and rate limiting.
func (s *Stack) Wrap(p Provider, model string) Generator {
	var g Generator = p
	if s == nil {
		return g
	}
	if s.Limiter != nil {
		g = NewLimitedGenerator(g, s.Limiter, p.Name())
	}
	if s.MaxRetries > 0 {
		g = NewRetryGenerator(g, s.MaxRetries, s.Logger)
	}
	if s.Meter != nil {
		g = s.Meter.Wrap(g)
	}
	if s.Cache != nil {
		g = NewCachedGenerator(g, s.Cache, p.Name(), model, s.CacheTTL)
	}
	return g
}

// Factory builds a fresh, decorated generator per call, so concurrent
// reviewer tasks never share a client
type Factory func() (Generator, error)

// NewFactory returns a Factory that creates a new provider from config on
// every call and wraps it with the stack
func NewFactory(config Config, stack *Stack) Factory {
	return func() (Generator, error) {
		p, err := NewProvider(config)
		if err != nil {
			return nil, err
		}
		return stack.Wrap(p, config.Model), nil
	}
}

// StaticFactory always returns g; used when the caller already owns a generator
func StaticFactory(g Generator) Factory {
	return func() (Generator, error) {
		return g, nil
	}
}
