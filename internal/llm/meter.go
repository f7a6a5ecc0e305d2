package llm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkoukk/tiktoken-go"
)

var (
	tkm   *tiktoken.Tiktoken
	tkmMu sync.RWMutex
)

// WarmTokenizer loads the cl100k_base encoding. Until it succeeds, token
// counts fall back to a characters/4 estimate.
func WarmTokenizer() error {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}
	tkmMu.Lock()
	tkm = enc
	tkmMu.Unlock()
	return nil
}

// EstimateTokens counts tokens in text
func EstimateTokens(text string) int {
	tkmMu.RLock()
	enc := tkm
	tkmMu.RUnlock()
	if enc != nil {
		return len(enc.Encode(text, nil, nil))
	}
	return (len(text) + 3) / 4
}

// Usage is a snapshot of metered calls
type Usage struct {
	Calls        int64 `json:"calls"`
	Failures     int64 `json:"failures"`
	PromptTokens int64 `json:"prompt_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// Meter counts generator calls across every wrapped generator
type Meter struct {
	calls        atomic.Int64
	failures     atomic.Int64
	promptTokens atomic.Int64
	outputTokens atomic.Int64
}

// NewMeter creates an empty meter
func NewMeter() *Meter {
	return &Meter{}
}

// Wrap returns a generator that records into m
func (m *Meter) Wrap(next Generator) Generator {
	return GeneratorFunc(func(ctx context.Context, prompt string, opts Options) (string, error) {
		m.calls.Add(1)
		m.promptTokens.Add(int64(EstimateTokens(opts.System) + EstimateTokens(prompt)))

		text, err := next.Generate(ctx, prompt, opts)
		if err != nil {
			m.failures.Add(1)
			return "", err
		}
		m.outputTokens.Add(int64(EstimateTokens(text)))
		return text, nil
	})
}

// Usage returns the current counters
func (m *Meter) Usage() Usage {
	return Usage{
		Calls:        m.calls.Load(),
		Failures:     m.failures.Load(),
		PromptTokens: m.promptTokens.Load(),
		OutputTokens: m.outputTokens.Load(),
	}
}
