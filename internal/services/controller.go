package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/princehaifan/prdgenie/internal/encoder"
	"github.com/princehaifan/prdgenie/internal/models"
)

var (
	// ErrGenerationInFlight rejects a submission while another one is loading.
	ErrGenerationInFlight = errors.New("a PRD is already being generated")
	// ErrNotInForm rejects submissions and new files outside the form view.
	ErrNotInForm = errors.New("submissions and files are only accepted from the form")
	// ErrNotInResult rejects edits when no document is displayed.
	ErrNotInResult = errors.New("no generated document to edit")
)

// GenerateFailedPrefix starts every generation error shown on the form.
const GenerateFailedPrefix = "Failed to generate PRD: "

// IdeaGenerator is the part of the Generator the controller depends on.
type IdeaGenerator interface {
	Generate(ctx context.Context, idea models.IdeaInput) (string, error)
}

type pendingEntry struct {
	attachment models.Attachment
	progress   int
}

// Controller drives the form -> loading -> result view state.
type Controller struct {
	gen      IdeaGenerator
	interval time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	state         models.ViewState
	errMsg        string
	validationMsg string
	content       string
	pending       []*pendingEntry
	rotator       *Rotator
}

// ControllerOption customizes a Controller.
type ControllerOption func(*Controller)

// WithRotateInterval overrides how often the loading message changes.
func WithRotateInterval(d time.Duration) ControllerOption {
	return func(c *Controller) { c.interval = d }
}

// NewController creates a controller in the form state.
func NewController(gen IdeaGenerator, opts ...ControllerOption) *Controller {
	c := &Controller{
		gen:      gen,
		interval: DefaultRotateInterval,
		logger:   slog.With("component", "controller"),
		state:    models.ViewForm,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddAttachments adds files to the pending set, skipping any whose identity
// is already pending. It returns how many were added. Files are only
// accepted on the form; otherwise ErrNotInForm is returned.
func (c *Controller) AddAttachments(atts ...models.Attachment) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != models.ViewForm {
		return 0, ErrNotInForm
	}
	c.validationMsg = ""
	seen := make(map[string]bool, len(c.pending))
	for _, p := range c.pending {
		seen[p.attachment.ID()] = true
	}
	added := 0
	for _, a := range atts {
		id := a.ID()
		if seen[id] {
			continue
		}
		seen[id] = true
		entry := &pendingEntry{attachment: a}
		// Only images are encoded; anything else is ready as soon as it is accepted.
		if a.Kind != models.KindImage {
			entry.progress = 100
		}
		c.pending = append(c.pending, entry)
		added++
	}
	return added, nil
}

// RemoveAttachment drops a pending attachment by identity.
func (c *Controller) RemoveAttachment(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p.attachment.ID() == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// Pending returns the pending attachments in insertion order.
func (c *Controller) Pending() []models.PendingAttachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingLocked()
}

func (c *Controller) pendingLocked() []models.PendingAttachment {
	out := make([]models.PendingAttachment, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, models.PendingAttachment{
			ID:       p.attachment.ID(),
			Name:     p.attachment.Name,
			MIMEType: p.attachment.MIMEType,
			Kind:     p.attachment.Kind.String(),
			Size:     p.attachment.Size,
			Progress: p.progress,
		})
	}
	return out
}

// Submit validates the idea and, from the form state only, runs one
// generation to completion. Generation failures are not returned; they move
// the view back to the form with the error displayed. The returned error is
// non-nil only when the submission was not accepted.
func (c *Controller) Submit(ctx context.Context, text string) error {
	c.mu.Lock()
	switch c.state {
	case models.ViewLoading:
		c.mu.Unlock()
		return ErrGenerationInFlight
	case models.ViewResult:
		c.mu.Unlock()
		return ErrNotInForm
	}

	atts := make([]models.Attachment, 0, len(c.pending))
	for _, p := range c.pending {
		atts = append(atts, p.attachment)
	}
	idea := models.IdeaInput{Text: text, Attachments: atts}
	if err := ValidateIdea(idea); err != nil {
		c.validationMsg = ValidationMessage
		c.mu.Unlock()
		return err
	}

	c.state = models.ViewLoading
	c.errMsg = ""
	c.validationMsg = ""
	rotator := StartRotator(LoadingMessages, c.interval)
	c.rotator = rotator
	c.mu.Unlock()

	c.logger.Info("Generation started.", "attachments", len(atts))
	ctx = encoder.WithTrace(ctx, &encoder.Trace{Encoded: c.markEncoded})
	content, err := c.gen.Generate(ctx, idea)

	rotator.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rotator = nil
	if err != nil {
		c.state = models.ViewForm
		c.content = ""
		c.errMsg = GenerateFailedPrefix + err.Error()
		c.logger.Error("Generation failed.", "error", err)
		return nil
	}
	c.state = models.ViewResult
	c.content = content
	c.pending = nil
	c.logger.Info("Generation succeeded.", "chars", len(content))
	return nil
}

func (c *Controller) markEncoded(a models.Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := a.ID()
	for _, p := range c.pending {
		if p.attachment.ID() == id {
			p.progress = 100
		}
	}
}

// Edit replaces the displayed document with user-edited content.
func (c *Controller) Edit(content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.ViewResult {
		return ErrNotInResult
	}
	c.content = content
	return nil
}

// Content returns the current document and whether one is displayed.
func (c *Controller) Content() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.content, c.state == models.ViewResult
}

// Reset returns to an empty form with no error.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == models.ViewLoading {
		return
	}
	c.state = models.ViewForm
	c.errMsg = ""
	c.validationMsg = ""
	c.content = ""
	c.pending = nil
}

// View returns a snapshot of the current state.
func (c *Controller) View() models.View {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := models.View{State: c.state}
	switch c.state {
	case models.ViewForm:
		v.Error = c.validationMsg
		if v.Error == "" {
			v.Error = c.errMsg
		}
		v.Attachments = c.pendingLocked()
	case models.ViewLoading:
		if c.rotator != nil {
			v.LoadingMessage = c.rotator.Current()
		}
		v.Attachments = c.pendingLocked()
	case models.ViewResult:
		v.Content = c.content
	}
	return v
}

// Close stops the loading rotator if one is running.
func (c *Controller) Close() {
	c.mu.Lock()
	rotator := c.rotator
	c.rotator = nil
	c.mu.Unlock()
	if rotator != nil {
		rotator.Stop()
	}
}
