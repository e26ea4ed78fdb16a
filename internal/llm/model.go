// Package llm adapts generative model SDKs to a single request shape.
package llm

import (
	"context"
	"errors"

	"github.com/princehaifan/prdgenie/internal/gcp"
	"github.com/princehaifan/prdgenie/internal/models"
)

// Model generates a document for a provider-neutral request. Implementations
// must pass SystemInstruction through the provider's system channel rather
// than prepending it to the user content.
type Model interface {
	Generate(ctx context.Context, req *models.GenerationRequest) (string, error)
	Close() error
}

// ErrMissingCredential is returned when the selected provider has no credential configured.
var ErrMissingCredential = errors.New("missing model credential")

// ErrEmptyResponse is returned when a provider answers without any candidate.
// Both Gemini backends return the same value.
var ErrEmptyResponse = gcp.ErrEmptyResponse
