package synthesis

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/dyike/FinSight/models"
)

//go:embed prompts
var promptFiles embed.FS

// LoadPrompt loads a prompt from the embedded markdown files
func LoadPrompt(name string) (string, error) {
	content, err := promptFiles.ReadFile(fmt.Sprintf("prompts/%s.md", name))
	if err != nil {
		return "", fmt.Errorf("failed to load prompt %s: %w", name, err)
	}
	return string(content), nil
}

// FormatPrompt renders the named template with vars into chat messages.
func FormatPrompt(ctx context.Context, name string, vars map[string]any) ([]*schema.Message, error) {
	tpl, err := LoadPrompt(name)
	if err != nil {
		return nil, err
	}
	return prompt.FromMessages(schema.FString, schema.UserMessage(tpl)).Format(ctx, vars)
}

// StrategistMessages embeds the three metric mappings into the strategist prompt.
func StrategistMessages(ctx context.Context, s models.State) ([]*schema.Message, error) {
	r := models.ResultFromState("", s, s.EndDate)
	vars := map[string]any{
		"ticker":       s.Identifier,
		"fundamentals": compactJSON(r.FundamentalMetrics),
		"technicals":   compactJSON(r.TechnicalIndicators),
		"risk":         compactJSON(r.RiskMetrics),
	}
	return FormatPrompt(ctx, "strategist", vars)
}

func compactJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
