package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/princehaifan/prdgenie/internal/gcp"
)

// Supported provider names.
const (
	ProviderGemini    = "gemini"
	ProviderVertex    = "vertex"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Providers lists every provider accepted by NewModel.
var Providers = []string{ProviderGemini, ProviderVertex, ProviderOpenAI, ProviderAnthropic}

// Config selects and authenticates a provider.
type Config struct {
	Provider string
	Model    string
	// APIKey authenticates gemini, openai and anthropic.
	APIKey string
	// ProjectID and Region address Vertex AI, which uses application default credentials.
	ProjectID string
	Region    string
}

// Credential returns the value that must be present for the provider to work.
func (c Config) Credential() string {
	if NormalizeProvider(c.Provider) == ProviderVertex {
		return c.ProjectID
	}
	return c.APIKey
}

// NewModel builds the configured provider adapter. It returns
// ErrMissingCredential, wrapped, when the provider's credential is empty.
func NewModel(ctx context.Context, cfg Config) (Model, error) {
	provider := NormalizeProvider(cfg.Provider)
	if cfg.Credential() == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrMissingCredential)
	}
	switch provider {
	case ProviderGemini:
		return NewGeminiModel(ctx, cfg.APIKey, cfg.Model)
	case ProviderVertex:
		return gcp.NewVertexClient(ctx, cfg.ProjectID, cfg.Region, cfg.Model)
	case ProviderOpenAI:
		return NewOpenAIModel(cfg.APIKey, cfg.Model)
	case ProviderAnthropic:
		return NewAnthropicModel(cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// NormalizeProvider lower-cases a provider name and resolves aliases.
func NormalizeProvider(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	switch p {
	case "", "google":
		return ProviderGemini
	case "claude":
		return ProviderAnthropic
	}
	return p
}
