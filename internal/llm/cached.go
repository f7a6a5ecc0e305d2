package llm

import (
	"context"
	"strconv"
	"time"

	"github.com/ppiankov/peerpanel/internal/cache"
)

// CachedGenerator serves repeated identical calls from a cache. Only
// successful responses are stored.
type CachedGenerator struct {
	next     Generator
	cache    cache.Cache
	provider string
	model    string
	ttl      time.Duration
}

// NewCachedGenerator wraps next with c. ttl 0 uses the cache default.
func NewCachedGenerator(next Generator, c cache.Cache, provider, model string, ttl time.Duration) *CachedGenerator {
	return &CachedGenerator{next: next, cache: c, provider: provider, model: model, ttl: ttl}
}

// Generate returns a cached response or calls through
func (g *CachedGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	key := g.key(prompt, opts)
	if data, ok := g.cache.Get(key); ok {
		return string(data), nil
	}

	text, err := g.next.Generate(ctx, prompt, opts)
	if err != nil {
		return "", err
	}

	// A failed write only costs a future cache miss
	_ = g.cache.Set(key, []byte(text), g.ttl)
	return text, nil
}

func (g *CachedGenerator) key(prompt string, opts Options) string {
	return cache.Key("llm",
		g.provider,
		g.model,
		strconv.FormatFloat(float64(opts.Temperature), 'f', -1, 32),
		strconv.Itoa(opts.MaxTokens),
		opts.System,
		prompt,
	)
}
