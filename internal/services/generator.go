package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/princehaifan/prdgenie/internal/encoder"
	"github.com/princehaifan/prdgenie/internal/llm"
	"github.com/princehaifan/prdgenie/internal/metrics"
	"github.com/princehaifan/prdgenie/internal/models"
	"github.com/princehaifan/prdgenie/internal/prompts"
	"golang.org/x/sync/errgroup"
)

const maxConcurrentEncodes = 10

// GeneratorConfig holds configuration for the generation client.
type GeneratorConfig struct {
	Provider string
	// CredentialEnv names the variable the user must set when the model is missing.
	CredentialEnv string
}

// Generator turns an idea into a PRD through the injected model.
type Generator struct {
	model  llm.Model
	config GeneratorConfig
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil model is allowed: every Generate
// call then fails with a configuration error before any network call.
func NewGenerator(model llm.Model, config GeneratorConfig) *Generator {
	if config.CredentialEnv == "" {
		config.CredentialEnv = "GEMINI_API_KEY"
	}
	return &Generator{
		model:  model,
		config: config,
		logger: slog.With("component", "generator", "provider", config.Provider),
	}
}

// ValidateIdea rejects submissions with blank text and no attachments.
func ValidateIdea(idea models.IdeaInput) error {
	err := validation.Validate(strings.TrimSpace(idea.Text),
		validation.When(len(idea.Attachments) == 0, validation.Required.Error(ValidationMessage)),
	)
	if err != nil {
		return validationError(err)
	}
	return nil
}

// BuildRequest assembles the generation request: the idea text part first,
// then one inline part per image attachment in attachment order. Images are
// encoded concurrently; any failure aborts the whole request.
func (g *Generator) BuildRequest(ctx context.Context, idea models.IdeaInput) (*models.GenerationRequest, error) {
	var images []models.Attachment
	for _, a := range idea.Attachments {
		if a.Kind == models.KindImage {
			images = append(images, a)
		}
	}

	imageParts := make([]models.Part, len(images))
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(maxConcurrentEncodes)
	for i, a := range images {
		eg.Go(func() error {
			data, err := encoder.Base64(gctx, a)
			if err != nil {
				return err
			}
			metrics.AttachmentsEncoded.Inc()
			imageParts[i] = models.Part{InlineImage: &models.InlineImage{MIMEType: a.MIMEType, Data: data}}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, attachmentError(err)
	}

	parts := make([]models.Part, 0, len(imageParts)+1)
	parts = append(parts, models.Part{Text: prompts.IdeaText(idea.Text)})
	parts = append(parts, imageParts...)

	return &models.GenerationRequest{
		SystemInstruction: prompts.PRDSystemInstruction(),
		Parts:             parts,
	}, nil
}

// Generate returns the model's raw Markdown for the idea, or a *GenerationError.
// No retry is attempted and no timeout is imposed beyond ctx.
func (g *Generator) Generate(ctx context.Context, idea models.IdeaInput) (string, error) {
	logCtx := g.logger.With("requestId", uuid.NewString(), "attachments", len(idea.Attachments))

	if err := ValidateIdea(idea); err != nil {
		logCtx.Warn("Rejected empty submission.")
		return "", err
	}
	if g.model == nil {
		err := configurationError(g.config.CredentialEnv, llm.ErrMissingCredential)
		logCtx.Error("Model is not configured.", "error", err)
		return "", err
	}

	start := time.Now()
	req, err := g.BuildRequest(ctx, idea)
	if err != nil {
		logCtx.Error("Failed to encode attachments.", "error", err)
		g.record("attachment_error", start)
		return "", err
	}

	logCtx.Info("Calling model.", "parts", len(req.Parts))
	text, err := g.model.Generate(ctx, req)
	if err != nil {
		gerr := classifyModelError(err)
		logCtx.Error("Model call failed.", "kind", gerr.Kind, "error", err)
		g.record(string(gerr.Kind)+"_error", start)
		return "", gerr
	}
	if text == "" {
		logCtx.Warn("Model returned empty text.")
	}

	g.record("success", start)
	logCtx.Info("Generation complete.", "chars", len(text), "elapsed", time.Since(start).String())
	return text, nil
}

func (g *Generator) record(outcome string, start time.Time) {
	metrics.RecordGeneration(g.config.Provider, outcome, time.Since(start).Seconds())
}

// Close releases the underlying model client.
func (g *Generator) Close() error {
	if g.model == nil {
		return nil
	}
	if err := g.model.Close(); err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	return nil
}
