package model

import (
	"fmt"
	"strings"
	"time"
)

// Config holds the full peerpanel configuration
type Config struct {
	LLM          LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Generation   GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Routing      RoutingConfig    `yaml:"routing" mapstructure:"routing"`
	Review       ReviewConfig     `yaml:"review" mapstructure:"review"`
	Merge        MergeConfig      `yaml:"merge" mapstructure:"merge"`
	Grounding    GroundingConfig  `yaml:"grounding" mapstructure:"grounding"`
	Rebuttal     RebuttalConfig   `yaml:"rebuttal" mapstructure:"rebuttal"`
	Verify       VerifyConfig     `yaml:"verify" mapstructure:"verify"`
	Rubric       Rubric           `yaml:"rubric" mapstructure:"rubric"`
	Related      RelatedConfig    `yaml:"related" mapstructure:"related"`
	Cache        CacheConfig      `yaml:"cache" mapstructure:"cache"`
	RateLimiting RateLimitConfig  `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Batch        BatchConfig      `yaml:"batch" mapstructure:"batch"`
	Output       OutputConfig     `yaml:"output" mapstructure:"output"`
	Store        StoreConfig      `yaml:"store" mapstructure:"store"`
	Logging      LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// LLMConfig configures the text-generation provider
type LLMConfig struct {
	Provider   string        `yaml:"provider" mapstructure:"provider"` // openai, anthropic, gemini, ollama, mock
	Model      string        `yaml:"model" mapstructure:"model"`
	APIKey     string        `yaml:"api_key,omitempty" mapstructure:"api_key"`
	BaseURL    string        `yaml:"base_url,omitempty" mapstructure:"base_url"`
	Timeout    time.Duration `yaml:"timeout" mapstructure:"timeout"`
	MaxRetries int           `yaml:"max_retries" mapstructure:"max_retries"`
	HTTPProxy  string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy    string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// CallPolicy is the sampling policy for one generator call site
type CallPolicy struct {
	Temperature float32 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GenerationConfig holds per-call-site policies
type GenerationConfig struct {
	Reviewer     CallPolicy `yaml:"reviewer" mapstructure:"reviewer"`
	Merge        CallPolicy `yaml:"merge" mapstructure:"merge"`
	Rebuttal     CallPolicy `yaml:"rebuttal" mapstructure:"rebuttal"`
	Consolidated CallPolicy `yaml:"consolidated" mapstructure:"consolidated"`
	Verify       CallPolicy `yaml:"verify" mapstructure:"verify"`
}

// Routing strategies
const (
	RoutingSection = "section"
	RoutingSpan    = "span"
	RoutingAll     = "all"
)

// MinRoutingChars is the smallest routing budget. It leaves room for the
// truncation marker that ends every cut text.
const MinRoutingChars = 64

// RoutingConfig configures the facet router
type RoutingConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
	MaxChars int    `yaml:"max_chars" mapstructure:"max_chars"`
	TopK     int    `yaml:"top_k" mapstructure:"top_k"`
}

// ReviewConfig configures the reviewer agent pool
type ReviewConfig struct {
	Workers           int     `yaml:"workers" mapstructure:"workers"`
	MaxPointsPerFacet int     `yaml:"max_points_per_facet" mapstructure:"max_points_per_facet"`
	Facets            []Facet `yaml:"facets" mapstructure:"facets"`
	SkipRelated       bool    `yaml:"skip_related" mapstructure:"skip_related"`
}

// Merge strategies
const (
	MergeSynthesis = "synthesis"
	MergeSimple    = "simple"
)

// MergeConfig configures the point merge engine
type MergeConfig struct {
	Strategy         string `yaml:"strategy" mapstructure:"strategy"`
	FallbackToSimple bool   `yaml:"fallback_to_simple" mapstructure:"fallback_to_simple"`
}

// GroundingConfig configures the grounding filter
type GroundingConfig struct {
	Required bool `yaml:"required" mapstructure:"required"`
}

// RebuttalConfig configures the rebuttal generator
type RebuttalConfig struct {
	Enabled  bool         `yaml:"enabled" mapstructure:"enabled"`
	Mode     RebuttalMode `yaml:"mode" mapstructure:"mode"`
	Parallel bool         `yaml:"parallel" mapstructure:"parallel"`
}

// Verify strategies
const (
	VerifyLLM     = "llm"
	VerifyKeyword = "keyword"
)

// VerifyConfig configures the rebuttal verifier
type VerifyConfig struct {
	Strategy string `yaml:"strategy" mapstructure:"strategy"`
}

// RelatedConfig configures the related-work lookup
type RelatedConfig struct {
	TopK          int           `yaml:"top_k" mapstructure:"top_k"`
	CrossrefURL   string        `yaml:"crossref_url" mapstructure:"crossref_url"`
	Mailto        string        `yaml:"mailto,omitempty" mapstructure:"mailto"`
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// CacheConfig configures response caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
}

// RateLimitConfig configures per-key rate limiting
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// BatchConfig configures multi-paper runs
type BatchConfig struct {
	Concurrency int           `yaml:"concurrency" mapstructure:"concurrency"`
	Delay       time.Duration `yaml:"delay" mapstructure:"delay"`
}

// OutputConfig configures rendered outputs
type OutputConfig struct {
	Dir      string `yaml:"dir" mapstructure:"dir"`
	Force    bool   `yaml:"force" mapstructure:"force"`
	Markdown bool   `yaml:"markdown" mapstructure:"markdown"`
	Verbose  bool   `yaml:"verbose" mapstructure:"verbose"`
}

// StoreConfig configures the SQLite run store
type StoreConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig configures structured logging
type LoggingConfig struct {
	Level string `yaml:"level" mapstructure:"level"`
	File  string `yaml:"file,omitempty" mapstructure:"file"`
	JSON  bool   `yaml:"json" mapstructure:"json"`
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:   "openai",
			Model:      "gpt-4o-mini",
			Timeout:    60 * time.Second,
			MaxRetries: 2,
		},
		Generation: GenerationConfig{
			Reviewer:     CallPolicy{Temperature: 0.4, MaxTokens: 1200},
			Merge:        CallPolicy{Temperature: 0.2, MaxTokens: 2000},
			Rebuttal:     CallPolicy{Temperature: 0.5, MaxTokens: 600},
			Consolidated: CallPolicy{Temperature: 0.5, MaxTokens: 2000},
			Verify:       CallPolicy{Temperature: 0.0, MaxTokens: 8},
		},
		Routing: RoutingConfig{
			Strategy: RoutingSection,
			MaxChars: 12000,
			TopK:     8,
		},
		Review: ReviewConfig{
			Workers:           4,
			MaxPointsPerFacet: 4,
			Facets:            AllFacets(),
		},
		Merge: MergeConfig{
			Strategy: MergeSynthesis,
		},
		Grounding: GroundingConfig{
			Required: true,
		},
		Rebuttal: RebuttalConfig{
			Enabled: true,
			Mode:    RebuttalPerPoint,
		},
		Verify: VerifyConfig{
			Strategy: VerifyLLM,
		},
		Rubric: DefaultRubric(),
		Related: RelatedConfig{
			TopK:          3,
			CrossrefURL:   "https://api.crossref.org",
			Timeout:       10 * time.Second,
			UserAgent:     "peerpanel/0.1 (+https://github.com/ppiankov/peerpanel)",
			RespectRobots: true,
			MaxBodyBytes:  2_000_000,
		},
		Cache: CacheConfig{
			Enabled:   true,
			MemoryTTL: 1 * time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
			Dir:       "",
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 2,
			BurstSize:         4,
		},
		Batch: BatchConfig{
			Concurrency: 1,
		},
		Output: OutputConfig{
			Dir:      "./peerpanel-runs",
			Markdown: true,
		},
		Store: StoreConfig{
			Path: "peerpanel.db",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks enumerated settings
func (c *Config) Validate() error {
	switch c.Routing.Strategy {
	case RoutingSection, RoutingSpan, RoutingAll:
	default:
		return fmt.Errorf("unknown routing strategy %q (supported: section, span, all)", c.Routing.Strategy)
	}
	switch c.Merge.Strategy {
	case MergeSynthesis, MergeSimple:
	default:
		return fmt.Errorf("unknown merge strategy %q (supported: synthesis, simple)", c.Merge.Strategy)
	}
	switch c.Verify.Strategy {
	case VerifyLLM, VerifyKeyword:
	default:
		return fmt.Errorf("unknown verify strategy %q (supported: llm, keyword)", c.Verify.Strategy)
	}
	switch c.Rebuttal.Mode {
	case RebuttalPerPoint, RebuttalConsolidated:
	default:
		return fmt.Errorf("unknown rebuttal mode %q (supported: per_point, consolidated)", c.Rebuttal.Mode)
	}
	for _, f := range c.Review.Facets {
		if !f.Valid() || f == FacetRelatedWork {
			return fmt.Errorf("unknown facet %q", f)
		}
	}
	if c.Routing.MaxChars < MinRoutingChars {
		return fmt.Errorf("routing.max_chars must be at least %d, got %d", MinRoutingChars, c.Routing.MaxChars)
	}
	return nil
}

// RunTag names the configuration for output directories. Defaults yield "default".
func (c *Config) RunTag() string {
	var parts []string
	if !c.Rebuttal.Enabled {
		parts = append(parts, "no_rebuttal")
	} else if c.Rebuttal.Mode == RebuttalConsolidated {
		parts = append(parts, "consolidated")
	}
	if c.Review.SkipRelated {
		parts = append(parts, "no_related")
	}
	if !c.Grounding.Required {
		parts = append(parts, "no_grounding")
	}
	if c.Routing.Strategy != RoutingSection {
		parts = append(parts, "routing_"+c.Routing.Strategy)
	}
	if c.Merge.Strategy != MergeSynthesis {
		parts = append(parts, "merge_"+c.Merge.Strategy)
	}
	if c.Verify.Strategy != VerifyLLM {
		parts = append(parts, "verify_"+c.Verify.Strategy)
	}
	if len(parts) == 0 {
		return "default"
	}
	return strings.Join(parts, "_")
}
