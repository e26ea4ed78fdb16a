package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	genai "github.com/google/generative-ai-go/genai"
	"github.com/princehaifan/prdgenie/internal/models"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the Gemini API model used when none is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

// GeminiModel calls the Gemini API with an API key.
type GeminiModel struct {
	client *genai.Client
	name   string
}

// NewGeminiModel creates a Gemini API client authenticated by apiKey.
func NewGeminiModel(ctx context.Context, apiKey, name string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, ErrMissingCredential
	}
	if name == "" {
		name = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini init: %w", err)
	}
	return &GeminiModel{client: client, name: name}, nil
}

func (g *GeminiModel) Generate(ctx context.Context, req *models.GenerationRequest) (string, error) {
	model := g.client.GenerativeModel(g.name)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.SystemInstruction)},
	}

	parts, err := geminiParts(req.Parts)
	if err != nil {
		return "", err
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	return b.String(), nil
}

func geminiParts(in []models.Part) ([]genai.Part, error) {
	parts := make([]genai.Part, 0, len(in))
	for i, p := range in {
		if p.IsText() {
			parts = append(parts, genai.Text(p.Text))
			continue
		}
		// The SDK takes raw bytes and re-encodes them on the wire.
		data, err := base64.StdEncoding.DecodeString(p.InlineImage.Data)
		if err != nil {
			return nil, fmt.Errorf("part %d: invalid base64 image payload: %w", i, err)
		}
		parts = append(parts, genai.Blob{MIMEType: p.InlineImage.MIMEType, Data: data})
	}
	return parts, nil
}

func (g *GeminiModel) Close() error {
	return g.client.Close()
}

var _ Model = (*GeminiModel)(nil)
