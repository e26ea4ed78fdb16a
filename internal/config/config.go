// Package config loads the page host configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"github.com/princehaifan/prdgenie/internal/gcp"
	"github.com/princehaifan/prdgenie/internal/llm"
)

// Config is the page host configuration.
type Config struct {
	Provider string
	Model    string
	// CredentialEnv names the variable the provider's credential came from,
	// or should come from when it is missing.
	CredentialEnv string
	APIKey        string
	ProjectID     string
	Region        string

	Port         string
	ExportDir    string
	ExportBucket string
	ExportPrefix string
	LogLevel     slog.Level
}

// credentialEnvs lists, per provider, the variables checked for its credential in order.
var credentialEnvs = map[string][]string{
	llm.ProviderGemini:    {"GEMINI_API_KEY", "API_KEY", "GOOGLE_API_KEY"},
	llm.ProviderVertex:    {"PROJECT_ID"},
	llm.ProviderOpenAI:    {"OPENAI_API_KEY"},
	llm.ProviderAnthropic: {"ANTHROPIC_API_KEY"},
}

// LoadDotEnv loads .env files into the environment. Missing files are ignored.
func LoadDotEnv(filenames ...string) error {
	if err := godotenv.Load(filenames...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// Load reads the configuration from the environment and validates it. A
// missing credential is not an error; generation reports it when attempted.
func Load() (Config, error) {
	provider := llm.NormalizeProvider(gcp.GetEnv("PRDGENIE_PROVIDER", llm.ProviderGemini))
	cfg := Config{
		Provider:     provider,
		Model:        gcp.GetEnv("PRDGENIE_MODEL", ""),
		Region:       gcp.GetEnv("VERTEX_AI_REGION", "us-central1"),
		Port:         gcp.GetEnv("PORT", "8080"),
		ExportDir:    gcp.GetEnv("EXPORT_DIR", ""),
		ExportBucket: gcp.GetEnv("EXPORT_BUCKET", ""),
		ExportPrefix: gcp.GetEnv("EXPORT_PREFIX", "exports"),
		LogLevel:     ParseLevel(gcp.GetEnv("LOG_LEVEL", "info")),
	}

	envs := credentialEnvs[provider]
	if len(envs) > 0 {
		cfg.CredentialEnv = envs[0]
	}
	for _, env := range envs {
		if v := gcp.GetEnv(env, ""); v != "" {
			cfg.CredentialEnv = env
			if provider == llm.ProviderVertex {
				cfg.ProjectID = v
			} else {
				cfg.APIKey = v
			}
			break
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks the provider and port.
func (c Config) Validate() error {
	providers := make([]interface{}, len(llm.Providers))
	for i, p := range llm.Providers {
		providers[i] = p
	}
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider,
			validation.Required,
			validation.In(providers...).Error("must be one of "+strings.Join(llm.Providers, ", ")),
		),
		validation.Field(&c.Port, validation.Required, validation.By(validPort)),
	)
}

func validPort(value interface{}) error {
	s, _ := value.(string)
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 || n > 65535 {
		return errors.New("must be a port number")
	}
	return nil
}

// LLM returns the model configuration.
func (c Config) LLM() llm.Config {
	return llm.Config{
		Provider:  c.Provider,
		Model:     c.Model,
		APIKey:    c.APIKey,
		ProjectID: c.ProjectID,
		Region:    c.Region,
	}
}

// HasCredential reports whether the provider's credential is set.
func (c Config) HasCredential() bool {
	return c.LLM().Credential() != ""
}

// ParseLevel maps LOG_LEVEL values to slog levels, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
