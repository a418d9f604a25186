package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dyike/FinSight/config"
)

func TestIsModelUnavailable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("googleapi: Error 404: models/gemini-x is not found for API version v1beta"), true},
		{errors.New("model Not Found"), true},
		{errors.New("context deadline exceeded"), false},
		{ErrMissingAPIKey, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, IsModelUnavailable(tc.err), "%v", tc.err)
	}
}

func TestFactoryRequiresKey(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	f := NewFactory(*cfg)
	assert.False(t, f.Available())

	_, err := f.ChatModel(context.Background(), "gemini-2.0-flash")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestFactoryUnsupportedProvider(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = "mystery"
	cfg.GoogleAPIKey = "k"
	f := NewFactory(*cfg)
	require.True(t, f.Available())

	_, err := f.ChatModel(context.Background(), "m")
	assert.ErrorContains(t, err, "unsupported llm provider")
}

func TestFactoryOpenAIModel(t *testing.T) {
	cfg := config.DefaultConfigWithRoot(t.TempDir())
	cfg.LLMProvider = "openai"
	cfg.OpenAIAPIKey = "sk-test"
	cfg.BackendURL = "http://127.0.0.1:1/v1"

	cm, err := NewFactory(*cfg).ChatModel(context.Background(), "gpt-4o-mini")
	require.NoError(t, err)
	assert.NotNil(t, cm)
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]*schema.Message{
		schema.SystemMessage("be terse"),
		schema.UserMessage("hello"),
		nil,
		schema.AssistantMessage("hi", nil),
		schema.UserMessage("analyse AAPL"),
	})
	assert.Equal(t, "be terse", system)
	require.Len(t, contents, 3)
	assert.Equal(t, "user", contents[0].Role)
	assert.Equal(t, "model", contents[1].Role)
	assert.Equal(t, "analyse AAPL", contents[2].Parts[0].Text)
}
