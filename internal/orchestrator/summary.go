package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/internal/synthesis"
)

const (
	FallbackSummary    = "Analysis completed. Check individual agent results for details."
	summaryTemperature = 0.3
)

// Summarizer asks the configured models, in order, for a short narrative of
// an analysis. The first model that answers wins.
type Summarizer struct {
	provider synthesis.ChatModelProvider
	models   []string
	timeout  time.Duration
	logger   zerolog.Logger
}

func NewSummarizer(provider synthesis.ChatModelProvider, models []string, timeout time.Duration, logger zerolog.Logger) *Summarizer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Summarizer{provider: provider, models: models, timeout: timeout, logger: logger}
}

func (s *Summarizer) Available() bool {
	return s != nil && s.provider != nil && len(s.models) > 0
}

// Summarize never fails; when no model answers it returns FallbackSummary.
func (s *Summarizer) Summarize(ctx context.Context, a *Analysis) string {
	price := "None"
	if a.Overall.CurrentPrice != nil {
		price = fmt.Sprintf("%.2f", *a.Overall.CurrentPrice)
	}
	messages, err := synthesis.FormatPrompt(ctx, "summary", map[string]any{
		"ticker":         a.Symbol,
		"price":          price,
		"sentiment":      a.Overall.Sentiment,
		"risk_level":     string(a.Overall.RiskLevel),
		"recommendation": a.Recommendation,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("symbol", a.Symbol).Msg("LLM summary failed")
		return FallbackSummary
	}

	for _, modelID := range s.models {
		text, err := s.generate(ctx, modelID, messages)
		if err == nil {
			return text
		}
		s.logger.Warn().Err(err).Str("symbol", a.Symbol).Str("model", modelID).Msg("summary model failed, trying next")
	}
	s.logger.Error().Str("symbol", a.Symbol).Msg("LLM summary failed")
	return FallbackSummary
}

func (s *Summarizer) generate(ctx context.Context, modelID string, messages []*schema.Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cm, err := s.provider.ChatModel(ctx, modelID)
	if err != nil {
		return "", err
	}
	msg, err := cm.Generate(ctx, messages, model.WithTemperature(summaryTemperature))
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty summary from %s", modelID)
	}
	return strings.TrimSpace(msg.Content), nil
}
