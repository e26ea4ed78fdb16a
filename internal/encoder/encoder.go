// Package encoder turns attachment payloads into base64 text for model requests.
package encoder

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/princehaifan/prdgenie/internal/models"
)

// Trace holds hooks fired as attachments are encoded.
type Trace struct {
	// Encoded is called once an attachment has been fully read and encoded.
	Encoded func(a models.Attachment)
}

type traceKey struct{}

// WithTrace returns a context carrying the trace hooks.
func WithTrace(ctx context.Context, trace *Trace) context.Context {
	return context.WithValue(ctx, traceKey{}, trace)
}

func traceFrom(ctx context.Context) *Trace {
	trace, _ := ctx.Value(traceKey{}).(*Trace)
	return trace
}

// Base64 reads the attachment payload and returns it as standard base64,
// without any data URL prefix.
func Base64(ctx context.Context, a models.Attachment) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	r, err := a.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open attachment %q: %w", a.Name, err)
	}
	defer r.Close()

	var out strings.Builder
	if a.Size > 0 {
		out.Grow(base64.StdEncoding.EncodedLen(int(a.Size)))
	}
	enc := base64.NewEncoder(base64.StdEncoding, &out)
	if _, err := io.Copy(enc, r); err != nil {
		return "", fmt.Errorf("failed to read attachment %q: %w", a.Name, err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode attachment %q: %w", a.Name, err)
	}

	if trace := traceFrom(ctx); trace != nil && trace.Encoded != nil {
		trace.Encoded(a)
	}
	return out.String(), nil
}
