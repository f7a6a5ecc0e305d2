package llm

import (
	"context"
	"fmt"

	"github.com/ppiankov/peerpanel/internal/worker"
)

// LimitedGenerator waits on a shared per-key limiter before each call
type LimitedGenerator struct {
	next    Generator
	limiter *worker.Limiter
	key     string
}

// NewLimitedGenerator limits calls to next under key (normally the provider name)
func NewLimitedGenerator(next Generator, limiter *worker.Limiter, key string) *LimitedGenerator {
	return &LimitedGenerator{next: next, limiter: limiter, key: key}
}

// Generate waits for clearance, then calls the wrapped generator
func (g *LimitedGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	if err := g.limiter.Wait(ctx, g.key); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return g.next.Generate(ctx, prompt, opts)
}
