package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/princehaifan/prdgenie/internal/models"
	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIModel is the chat model used when none is configured.
const DefaultOpenAIModel = "gpt-4o-mini"

type OpenAIModel struct {
	client *openai.Client
	name   string
}

func NewOpenAIModel(apiKey, name string) (*OpenAIModel, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if name == "" {
		name = DefaultOpenAIModel
	}
	return &OpenAIModel{client: openai.NewClient(apiKey), name: name}, nil
}

func (o *OpenAIModel) Generate(ctx context.Context, req *models.GenerationRequest) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    o.name,
		Messages: openAIMessages(req),
	})
	if err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return resp.Choices[0].Message.Content, nil
}

func openAIMessages(req *models.GenerationRequest) []openai.ChatCompletionMessage {
	contentParts := make([]openai.ChatMessagePart, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.IsText() {
			contentParts = append(contentParts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
			continue
		}
		contentParts = append(contentParts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    fmt.Sprintf("data:%s;base64,%s", p.InlineImage.MIMEType, p.InlineImage.Data),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	return []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleSystem, Content: req.SystemInstruction},
		{Role: openai.ChatMessageRoleUser, MultiContent: contentParts},
	}
}

func (o *OpenAIModel) Close() error { return nil }

var _ Model = (*OpenAIModel)(nil)
