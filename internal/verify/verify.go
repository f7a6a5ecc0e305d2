package verify

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ppiankov/peerpanel/internal/keywords"
	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

// Verifier labels each rebuttal by how well it is supported. Output has the
// same length and order as the input.
type Verifier interface {
	Name() string
	Verify(ctx context.Context, rebuttals []string) []model.Verification
}

// New returns the verifier selected by strategy
func New(strategy string, gen llm.Generator, policy model.CallPolicy, logger *zap.Logger) (Verifier, error) {
	switch strategy {
	case model.VerifyKeyword:
		return NewKeywordVerifier(), nil
	case model.VerifyLLM, "":
		if gen == nil {
			return nil, fmt.Errorf("llm verifier needs a generator")
		}
		return NewLLMVerifier(gen, policy, logger), nil
	default:
		return nil, fmt.Errorf("unknown verify strategy %q", strategy)
	}
}

// KeywordVerifier applies the fixed evidence/softness keyword rules
type KeywordVerifier struct{}

// NewKeywordVerifier creates a keyword verifier
func NewKeywordVerifier() *KeywordVerifier {
	return &KeywordVerifier{}
}

// Name returns the verifier name
func (v *KeywordVerifier) Name() string {
	return model.VerifyKeyword
}

// Verify classifies each rebuttal
func (v *KeywordVerifier) Verify(ctx context.Context, rebuttals []string) []model.Verification {
	out := make([]model.Verification, len(rebuttals))
	for i, r := range rebuttals {
		out[i] = model.Verification{Status: keywords.Classify(r), Rebuttal: r}
	}
	return out
}

const verifySystem = `You check author rebuttals for evidential support.
Answer with exactly one word: OK if the rebuttal cites concrete evidence in the paper, WEAK if it is plausible but vague, UNVERIFIED otherwise.`

// LLMVerifier asks the generator to label each rebuttal. A failed call
// falls back to the keyword rule for that item only.
type LLMVerifier struct {
	gen    llm.Generator
	policy model.CallPolicy
	logger *zap.Logger
}

// NewLLMVerifier creates a generator-backed verifier
func NewLLMVerifier(gen llm.Generator, policy model.CallPolicy, logger *zap.Logger) *LLMVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMVerifier{gen: gen, policy: policy, logger: logger}
}

// Name returns the verifier name
func (v *LLMVerifier) Name() string {
	return model.VerifyLLM
}

// Verify labels rebuttals one call at a time
func (v *LLMVerifier) Verify(ctx context.Context, rebuttals []string) []model.Verification {
	opts := llm.PolicyOptions(llm.TaskVerify, v.policy)
	opts.System = verifySystem

	out := make([]model.Verification, len(rebuttals))
	for i, r := range rebuttals {
		answer, err := v.gen.Generate(ctx, "Rebuttal:\n"+r+"\n\nLabel:", opts)
		if err != nil {
			status := keywords.Classify(r)
			v.logger.Warn("verification call failed, using keyword rule",
				zap.Int("index", i),
				zap.String("status", string(status)),
				zap.Error(err))
			out[i] = model.Verification{Status: status, Rebuttal: r}
			continue
		}
		out[i] = model.Verification{Status: ParseStatus(answer), Rebuttal: r}
	}
	return out
}

// ParseStatus normalises a verifier answer by substring search on the
// uppercased text. OK wins over WEAK; anything else is UNVERIFIED.
func ParseStatus(answer string) model.Status {
	upper := strings.ToUpper(answer)
	switch {
	case strings.Contains(upper, string(model.StatusOK)):
		return model.StatusOK
	case strings.Contains(upper, string(model.StatusWeak)):
		return model.StatusWeak
	default:
		return model.StatusUnverified
	}
}
