package tokenizer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimator_CountTokens(t *testing.T) {
	e := NewEstimatorTokenizer("custom", 0)
	assert.Equal(t, 4096, e.MaxTokens())

	n, err := e.CountTokens("")
	assert.NoError(t, err)
	assert.Equal(t, 0, n)

	n, _ = e.CountTokens("a")
	assert.Equal(t, 1, n)

	n, _ = e.CountTokens("abcdefghijklmnop")
	assert.Equal(t, 4, n)

	n, _ = e.CountTokens("你好世界")
	assert.Equal(t, 2, n)
}

func TestForModel(t *testing.T) {
	assert.Equal(t, "tiktoken[o200k_base]", ForModel("gpt-4o-mini").Name())
	assert.Equal(t, "tiktoken[o200k_base]", ForModel("gpt-4o-2024-08-06").Name())
	assert.Equal(t, "tiktoken[cl100k_base]", ForModel("gpt-4-0613").Name())
	assert.Equal(t, "estimator", ForModel("llama3").Name())
}

type failingTokenizer struct{}

func (failingTokenizer) CountTokens(string) (int, error) { return 0, errors.New("offline") }
func (failingTokenizer) MaxTokens() int                  { return 0 }
func (failingTokenizer) Name() string                    { return "failing" }

func TestCount_FallsBackToEstimator(t *testing.T) {
	assert.Equal(t, 4, Count(failingTokenizer{}, "abcdefghijklmnop"))
	assert.Equal(t, 4, Count(nil, "abcdefghijklmnop"))
	assert.Equal(t, 1, Count(NewEstimatorTokenizer("", 0), "hey"))
}
