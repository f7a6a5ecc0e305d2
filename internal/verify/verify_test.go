package verify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/peerpanel/internal/llm"
	"github.com/ppiankov/peerpanel/internal/model"
)

var rebuttals = []string{
	"MISUNDERSTANDING: power analysis is in Appendix B",
	"This is a clarification of our intent.",
	"We disagree.",
	"see table 2", // lowercase does not count as evidence
}

func TestKeywordVerifier(t *testing.T) {
	out := NewKeywordVerifier().Verify(context.Background(), rebuttals)

	require.Len(t, out, len(rebuttals))
	want := []model.Status{model.StatusOK, model.StatusWeak, model.StatusUnverified, model.StatusUnverified}
	for i, v := range out {
		assert.Equal(t, want[i], v.Status, rebuttals[i])
		assert.Equal(t, rebuttals[i], v.Rebuttal)
	}
}

func TestParseStatus(t *testing.T) {
	tests := map[string]model.Status{
		"OK":                      model.StatusOK,
		" ok.":                    model.StatusOK,
		"OKAY":                    model.StatusOK,
		"Label: WEAK":             model.StatusWeak,
		"Label: WEAKLY supported": model.StatusWeak,
		"WEAKNESS":                model.StatusWeak,
		"weak, but OK overall":    model.StatusOK,
		"UNVERIFIED":              model.StatusUnverified,
		"":                        model.StatusUnverified,
		"The rebuttal is weak.":   model.StatusWeak,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseStatus(in), "%q", in)
	}
}

func TestLLMVerifier_OrderAndFallback(t *testing.T) {
	answers := map[string]struct {
		text string
		err  error
	}{
		rebuttals[0]: {text: "WEAK"},
		rebuttals[1]: {err: errors.New("timeout")},
		rebuttals[2]: {text: "ok"},
		rebuttals[3]: {text: "UNVERIFIED"},
	}
	gen := llm.GeneratorFunc(func(ctx context.Context, prompt string, opts llm.Options) (string, error) {
		assert.Equal(t, llm.TaskVerify, opts.Task)
		assert.Equal(t, 8, opts.MaxTokens)
		for r, a := range answers {
			if prompt == "Rebuttal:\n"+r+"\n\nLabel:" {
				return a.text, a.err
			}
		}
		return "", errors.New("unexpected prompt")
	})

	v := NewLLMVerifier(gen, model.CallPolicy{MaxTokens: 8}, nil)
	out := v.Verify(context.Background(), rebuttals)

	require.Len(t, out, 4)
	for i := range out {
		assert.Equal(t, rebuttals[i], out[i].Rebuttal)
	}
	assert.Equal(t, model.StatusWeak, out[0].Status)
	// Fallback keyword rule for the failed call
	assert.Equal(t, model.StatusWeak, out[1].Status)
	assert.Equal(t, model.StatusOK, out[2].Status)
	assert.Equal(t, model.StatusUnverified, out[3].Status)
}

func TestVerify_Empty(t *testing.T) {
	assert.Empty(t, NewLLMVerifier(llm.NewMockProvider(), model.CallPolicy{}, nil).Verify(context.Background(), nil))
	assert.Empty(t, NewKeywordVerifier().Verify(context.Background(), nil))
}

func TestNew(t *testing.T) {
	v, err := New(model.VerifyKeyword, nil, model.CallPolicy{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "keyword", v.Name())

	v, err = New(model.VerifyLLM, llm.NewMockProvider(), model.CallPolicy{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "llm", v.Name())

	_, err = New(model.VerifyLLM, nil, model.CallPolicy{}, nil)
	assert.Error(t, err)

	_, err = New("vote", nil, model.CallPolicy{}, nil)
	assert.Error(t, err)
}
