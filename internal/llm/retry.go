package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// retrySleepFunc is swapped out in tests
var retrySleepFunc = sleepCtx

// sleepCtx waits for d or until ctx is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RetryGenerator retries transient provider failures with exponential backoff
type RetryGenerator struct {
	next       Generator
	maxRetries int
	logger     *zap.Logger
}

// NewRetryGenerator retries next up to maxRetries times
func NewRetryGenerator(next Generator, maxRetries int, logger *zap.Logger) *RetryGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryGenerator{next: next, maxRetries: maxRetries, logger: logger}
}

// Generate calls the wrapped generator, retrying on rate limits, server
// errors and timeouts
func (g *RetryGenerator) Generate(ctx context.Context, prompt string, opts Options) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			g.logger.Warn("retrying generator call",
				zap.String("task", opts.Task),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr))
			if err := retrySleepFunc(ctx, backoff); err != nil {
				return "", err
			}
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		text, err := g.next.Generate(ctx, prompt, opts)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !IsRetriable(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("after %d retries: %w", g.maxRetries, lastErr)
}

// IsRetriable reports whether err is worth another attempt
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return retriableStatus(apiErr.StatusCode)
	}
	var oaErr *openai.APIError
	if errors.As(err, &oaErr) {
		return retriableStatus(oaErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retriableStatus(reqErr.HTTPStatusCode)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset")
}

func retriableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}
