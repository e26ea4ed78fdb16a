package gcp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"github.com/princehaifan/prdgenie/internal/models"
)

// DefaultVertexModel is used when no model name is configured.
const DefaultVertexModel = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model answers without any candidate.
var ErrEmptyResponse = errors.New("model returned an empty response")

// VertexClient generates documents through Gemini on Vertex AI.
type VertexClient struct {
	modelName  string
	baseClient *genai.Client
}

// NewVertexClient creates a new Vertex AI client for the given project and region.
func NewVertexClient(ctx context.Context, projectID, region, modelName string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if modelName == "" {
		modelName = DefaultVertexModel
	}

	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &VertexClient{
		modelName:  modelName,
		baseClient: baseClient,
	}, nil
}

// Generate sends the request with its system instruction configured on the
// model, separate from the content parts.
func (c *VertexClient) Generate(ctx context.Context, req *models.GenerationRequest) (string, error) {
	model := c.baseClient.GenerativeModel(c.modelName)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(req.SystemInstruction)},
	}

	parts := make([]genai.Part, 0, len(req.Parts))
	for i, p := range req.Parts {
		if p.IsText() {
			parts = append(parts, genai.Text(p.Text))
			continue
		}
		data, err := base64.StdEncoding.DecodeString(p.InlineImage.Data)
		if err != nil {
			return "", fmt.Errorf("part %d: invalid base64 image payload: %w", i, err)
		}
		parts = append(parts, genai.Blob{MIMEType: p.InlineImage.MIMEType, Data: data})
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("failed to generate content from gemini: %w", err)
	}
	return extractText(resp)
}

// extractText concatenates the text parts of the first candidate, unmodified.
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
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

func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}
