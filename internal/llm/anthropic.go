package llm

import (
	"context"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/princehaifan/prdgenie/internal/models"
)

const (
	DefaultAnthropicModel = "claude-3-5-sonnet-latest"
	// A full 18-section PRD does not fit in the SDK examples' 1024 tokens.
	anthropicMaxTokens = 8192
)

// AnthropicModel implements Model using Anthropic's Messages API.
type AnthropicModel struct {
	client *anthropic.Client
	name   string
}

func NewAnthropicModel(apiKey, name string) (*AnthropicModel, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if name == "" {
		name = DefaultAnthropicModel
	}
	cl := anthropic.NewClient(anthropicopt.WithAPIKey(apiKey))
	return &AnthropicModel{client: &cl, name: name}, nil
}

func (a *AnthropicModel) Generate(ctx context.Context, req *models.GenerationRequest) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.name),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: req.SystemInstruction}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropicBlocks(req.Parts)...),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var b strings.Builder
	for _, cb := range msg.Content {
		if tb, ok := cb.AsAny().(anthropic.TextBlock); ok {
			b.WriteString(tb.Text)
		}
	}
	return b.String(), nil
}

func anthropicBlocks(parts []models.Part) []anthropic.ContentBlockParamUnion {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(parts))
	for _, p := range parts {
		if p.IsText() {
			blocks = append(blocks, anthropic.NewTextBlock(p.Text))
			continue
		}
		blocks = append(blocks, anthropic.NewImageBlockBase64(p.InlineImage.MIMEType, p.InlineImage.Data))
	}
	return blocks
}

func (a *AnthropicModel) Close() error { return nil }

var _ Model = (*AnthropicModel)(nil)
