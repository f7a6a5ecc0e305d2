package pipeline

import (
	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/cache"
	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
	"github.com/ppiankov/peerpanel/internal/related"
	"github.com/ppiankov/peerpanel/internal/worker"
)

// BuildOptions tune Build beyond what the config holds
type BuildOptions struct {
	// RelatedFile replaces Crossref lookups with a fixed list read from disk
	RelatedFile string
	Logger      *zap.Logger
}

// Build wires a pipeline from configuration: provider factory with cache,
// rate limiter, retries and metering, plus the related-work source.
func Build(cfg *model.Config, opts BuildOptions) (*Pipeline, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := llm.WarmTokenizer(); err != nil {
		logger.Debug("tokenizer unavailable, estimating tokens from length", zap.Error(err))
	}

	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.New(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
	}
	limiter := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
	meter := llm.NewMeter()

	stack := &llm.Stack{
		Cache:      c,
		CacheTTL:   cfg.Cache.DiskTTL,
		Limiter:    limiter,
		Meter:      meter,
		MaxRetries: cfg.LLM.MaxRetries,
		Logger:     logger,
	}

	deps := Deps{
		Factory: llm.NewFactory(llm.ConfigFromModel(cfg.LLM), stack),
		Meter:   meter,
		Logger:  logger,
	}

	switch {
	case cfg.Review.SkipRelated:
	case opts.RelatedFile != "":
		static, err := related.LoadRelatedFile(opts.RelatedFile)
		if err != nil {
			return nil, err
		}
		deps.Related = static
	default:
		client := related.NewClient(cfg.Related, c, limiter, logger)
		deps.Related = related.NewFinder(client, logger)
	}

	return New(cfg, deps)
}

// Usage returns the generator usage metered so far across all papers
func (p *Pipeline) Usage() llm.Usage {
	if p.meter == nil {
		return llm.Usage{}
	}
	return p.meter.Usage()
}
