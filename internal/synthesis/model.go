package synthesis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/dyike/FinSight/internal/llm"
	"github.com/dyike/FinSight/models"
)

// ChatModelProvider resolves a model identifier to a chat model.
type ChatModelProvider interface {
	ChatModel(ctx context.Context, modelID string) (model.BaseChatModel, error)
}

// RetryPolicy is an ordered list of model identifiers; the first success
// wins and there is at most one attempt per identifier.
type RetryPolicy struct {
	Models         []string
	AttemptTimeout time.Duration
}

func (p RetryPolicy) MaxAttempts() int { return len(p.Models) }

// modelReport is the JSON contract the model must satisfy. A reply with
// fewer than three or more than five key drivers is malformed.
type modelReport struct {
	Recommendation string   `json:"recommendation" validate:"required,oneof=BUY SELL HOLD"`
	RiskLevel      string   `json:"risk_level"`
	Reasoning      string   `json:"reasoning" validate:"required"`
	KeyDrivers     []string `json:"key_drivers" validate:"required,min=3,max=5,dive,required"`
}

// ModelStrategy asks a language model for the report.
type ModelStrategy struct {
	provider ChatModelProvider
	policy   RetryPolicy
	logger   zerolog.Logger
	validate *validator.Validate
}

func NewModelStrategy(provider ChatModelProvider, policy RetryPolicy, logger zerolog.Logger) *ModelStrategy {
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = 30 * time.Second
	}
	return &ModelStrategy{
		provider: provider,
		policy:   policy,
		logger:   logger,
		validate: validator.New(),
	}
}

func (m *ModelStrategy) Name() string { return "model" }

func (m *ModelStrategy) Synthesize(ctx context.Context, s models.State) (Report, error) {
	if m.provider == nil || len(m.policy.Models) == 0 {
		return Report{}, fmt.Errorf("%w: no models configured", ErrModelUnavailable)
	}

	messages, err := StrategistMessages(ctx, s)
	if err != nil {
		return Report{}, fmt.Errorf("build prompt: %w", err)
	}

	content, modelID, err := m.generate(ctx, s.Identifier, messages)
	if err != nil {
		return Report{}, err
	}

	parsed, err := m.parse(content)
	if err != nil {
		return Report{}, fmt.Errorf("%w from %s: %v", ErrMalformedResponse, modelID, err)
	}

	rec, _ := models.ParseRecommendation(parsed.Recommendation)
	// The risk level always comes from the risk stage; the model's own
	// assessment is only logged.
	level := s.RiskLevel
	if parsed.RiskLevel != "" && !strings.EqualFold(parsed.RiskLevel, string(level)) {
		m.logger.Debug().
			Str("symbol", s.Identifier).
			Str("model_risk_level", parsed.RiskLevel).
			Str("risk_level", string(level)).
			Msg("model risk level differs from risk stage")
	}

	m.logger.Info().Str("symbol", s.Identifier).Str("model", modelID).Msg("structured report generated")
	return Report{
		Recommendation: rec,
		RiskLevel:      level,
		Reasoning:      parsed.Reasoning,
		KeyDrivers:     parsed.KeyDrivers,
		FinalReport:    FormatReport(rec, level, parsed.Reasoning, parsed.KeyDrivers),
		UsedModelPath:  true,
	}, nil
}

// generate walks the retry policy. Any attempt failure moves on to the next
// model identifier.
func (m *ModelStrategy) generate(ctx context.Context, symbol string, messages []*schema.Message) (string, string, error) {
	var lastErr error
	for attempt, modelID := range m.policy.Models {
		content, err := m.attempt(ctx, modelID, messages)
		if err == nil {
			return content, modelID, nil
		}
		lastErr = err

		evt := m.logger.Warn().Err(err).Str("symbol", symbol).Str("model", modelID).Int("attempt", attempt+1)
		if llm.IsModelUnavailable(err) {
			evt.Msg("model not available, trying next")
		} else {
			evt.Msg("model call failed, trying next")
		}
	}
	return "", "", fmt.Errorf("%w after %d attempts: %v", ErrModelUnavailable, m.policy.MaxAttempts(), lastErr)
}

func (m *ModelStrategy) attempt(ctx context.Context, modelID string, messages []*schema.Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, m.policy.AttemptTimeout)
	defer cancel()

	cm, err := m.provider.ChatModel(attemptCtx, modelID)
	if err != nil {
		return "", fmt.Errorf("create model %s: %w", modelID, err)
	}
	msg, err := cm.Generate(attemptCtx, messages)
	if err != nil {
		return "", err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return "", fmt.Errorf("empty response from %s", modelID)
	}
	return msg.Content, nil
}

func (m *ModelStrategy) parse(content string) (modelReport, error) {
	var out modelReport
	dec := json.NewDecoder(strings.NewReader(StripCodeFences(content)))
	if err := dec.Decode(&out); err != nil {
		return modelReport{}, err
	}
	if dec.More() {
		return modelReport{}, fmt.Errorf("trailing data after JSON object")
	}
	out.Recommendation = strings.ToUpper(strings.TrimSpace(out.Recommendation))
	if err := m.validate.Struct(out); err != nil {
		return modelReport{}, err
	}
	return out, nil
}

// StripCodeFences removes a surrounding ```json ... ``` block if present.
func StripCodeFences(content string) string {
	s := strings.TrimSpace(content)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
