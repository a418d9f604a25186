package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"github.com/dyike/FinSight/config"
)

const (
	ProviderGemini   = "gemini"
	ProviderOpenAI   = "openai"
	ProviderDeepSeek = "deepseek"

	defaultMaxTokens = 2048
)

var ErrMissingAPIKey = errors.New("llm api key not configured")

// Factory builds chat models for the configured provider.
type Factory struct {
	provider    string
	apiKey      string
	baseURL     string
	temperature float32
	timeout     time.Duration

	mu     sync.Mutex
	gemini *genai.Client
}

func NewFactory(cfg config.Config) *Factory {
	return &Factory{
		provider:    strings.ToLower(cfg.LLMProvider),
		apiKey:      cfg.LLMAPIKey(),
		baseURL:     cfg.BackendURL,
		temperature: float32(cfg.LLMTemperature),
		timeout:     cfg.LLMTimeout,
	}
}

// Available reports whether a credential is present for the provider.
func (f *Factory) Available() bool {
	return f != nil && f.apiKey != ""
}

func (f *Factory) Provider() string { return f.provider }

func (f *Factory) ChatModel(ctx context.Context, modelID string) (model.BaseChatModel, error) {
	if !f.Available() {
		return nil, fmt.Errorf("%w for provider %s", ErrMissingAPIKey, f.provider)
	}

	switch f.provider {
	case ProviderOpenAI:
		maxTokens := defaultMaxTokens
		temperature := f.temperature
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     f.baseURL,
			APIKey:      f.apiKey,
			Model:       modelID,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
			Timeout:     f.timeout,
		})
	case ProviderDeepSeek:
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			BaseURL:     f.baseURL,
			APIKey:      f.apiKey,
			Model:       modelID,
			MaxTokens:   defaultMaxTokens,
			Temperature: f.temperature,
			Timeout:     f.timeout,
		})
	case ProviderGemini, "":
		client, err := f.geminiClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewGeminiChatModel(client, modelID, f.temperature), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", f.provider)
	}
}

func (f *Factory) geminiClient(ctx context.Context) (*genai.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gemini != nil {
		return f.gemini, nil
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  f.apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	f.gemini = client
	return client, nil
}
