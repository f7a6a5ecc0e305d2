package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"
)

// Processor handles one batch input, such as a paper file path
type Processor[T any] interface {
	Process(ctx context.Context, input string) (T, error)
}

// ProcessorFunc adapts a function to the Processor interface
type ProcessorFunc[T any] func(ctx context.Context, input string) (T, error)

// Process calls f
func (f ProcessorFunc[T]) Process(ctx context.Context, input string) (T, error) {
	return f(ctx, input)
}

// ItemJob represents one batch input
type ItemJob[T any] struct {
	Index     int
	Input     string
	Processor Processor[T]
	Limiter   *Limiter
}

// Execute executes the job. A panicking processor yields a failed result.
func (j *ItemJob[T]) Execute(ctx context.Context) (result Result) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			result = &ItemResult[T]{Index: j.Index, Input: j.Input, Error: fmt.Errorf("panic: %v", r), Duration: time.Since(start)}
		}
	}()

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, batchLimiterKey); err != nil {
			return &ItemResult[T]{Index: j.Index, Input: j.Input, Error: err}
		}
	}
	value, err := j.Processor.Process(ctx, j.Input)
	return &ItemResult[T]{
		Index:    j.Index,
		Input:    j.Input,
		Value:    value,
		Error:    err,
		Duration: time.Since(start),
	}
}

// ItemResult represents the result of one batch input
type ItemResult[T any] struct {
	Index    int
	Input    string
	Value    T
	Error    error
	Duration time.Duration
}

// GetError returns the error from the item result
func (r *ItemResult[T]) GetError() error {
	return r.Error
}

const batchLimiterKey = "batch"

// BatchProcessor processes many inputs with bounded concurrency and an
// optional minimum delay between item starts
type BatchProcessor[T any] struct {
	processor   Processor[T]
	concurrency int
	delay       time.Duration
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor[T any](processor Processor[T], concurrency int, delay time.Duration) *BatchProcessor[T] {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchProcessor[T]{
		processor:   processor,
		concurrency: concurrency,
		delay:       delay,
	}
}

// Process runs every input and returns results in input order. A failing
// input never stops the others.
func (b *BatchProcessor[T]) Process(ctx context.Context, inputs []string) []*ItemResult[T] {
	if len(inputs) == 0 {
		return []*ItemResult[T]{}
	}

	var limiter *Limiter
	if b.delay > 0 {
		limiter = NewLimiter(0, 1)
		limiter.SetRate(batchLimiterKey, 1/b.delay.Seconds(), 1)
	}

	jobs := make([]Job, len(inputs))
	for i, input := range inputs {
		jobs[i] = &ItemJob[T]{Index: i, Input: input, Processor: b.processor, Limiter: limiter}
	}

	pool := NewPoolWithContext(ctx, b.concurrency)
	results := pool.Run(jobs)

	out := make([]*ItemResult[T], 0, len(inputs))
	seen := make(map[int]bool, len(results))
	for _, r := range results {
		if res, ok := r.(*ItemResult[T]); ok {
			out = append(out, res)
			seen[res.Index] = true
		}
	}
	// Inputs never run (cancelled context) are reported as failed
	for idx, input := range inputs {
		if !seen[idx] {
			out = append(out, &ItemResult[T]{Index: idx, Input: input, Error: fmt.Errorf("not processed: %w", context.Cause(ctx))})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// ReadInputsFromFile reads inputs from a file (one per line). Blank lines
// and '#' comments are skipped; duplicates are dropped.
func ReadInputsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var inputs []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			inputs = append(inputs, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return inputs, nil
}
