package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// GeminiChatModel adapts the genai client to eino's chat model interface.
type GeminiChatModel struct {
	client      *genai.Client
	model       string
	temperature float32
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)

func NewGeminiChatModel(client *genai.Client, modelID string, temperature float32) *GeminiChatModel {
	return &GeminiChatModel{client: client, model: modelID, temperature: temperature}
}

func (g *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if g.client == nil {
		return nil, errors.New("gemini client is nil")
	}
	common := model.GetCommonOptions(&model.Options{}, opts...)

	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	}
	if common.Temperature != nil {
		cfg.Temperature = genai.Ptr(*common.Temperature)
	}
	modelID := g.model
	if common.Model != nil && *common.Model != "" {
		modelID = *common.Model
	}

	system, contents := toGeminiContents(input)
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{genai.NewPartFromText(system)}}
	}
	if len(contents) == 0 {
		return nil, errors.New("gemini request has no user content")
	}

	resp, err := g.client.Models.GenerateContent(ctx, modelID, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini %s: %w", modelID, err)
	}
	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("gemini %s: empty response", modelID)
	}
	return schema.AssistantMessage(text, nil), nil
}

// Stream emits the full response as a single chunk.
func (g *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := g.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func toGeminiContents(input []*schema.Message) (string, []*genai.Content) {
	var system []string
	var contents []*genai.Content
	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			system = append(system, msg.Content)
		case schema.Assistant:
			contents = append(contents, &genai.Content{
				Role:  "model",
				Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{genai.NewPartFromText(msg.Content)},
			})
		}
	}
	return strings.Join(system, "\n\n"), contents
}
