package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/princehaifan/prdgenie/internal/encoder"
	"github.com/princehaifan/prdgenie/internal/models"
)

// blockingGenerator holds Generate open until release is closed.
type blockingGenerator struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	reply   string
	err     error
}

func newBlockingGenerator(reply string, err error) *blockingGenerator {
	return &blockingGenerator{started: make(chan struct{}), release: make(chan struct{}), reply: reply, err: err}
}

func (b *blockingGenerator) Generate(ctx context.Context, idea models.IdeaInput) (string, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.reply, b.err
}

func TestControllerSuccessfulGeneration(t *testing.T) {
	ctrl := NewController(NewGenerator(&fakeModel{reply: "# Doc"}, GeneratorConfig{}))
	defer ctrl.Close()

	if err := ctrl.Submit(context.Background(), "A recipe app"); err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	v := ctrl.View()
	if v.State != models.ViewResult || v.Content != "# Doc" {
		t.Fatalf("unexpected view %#v", v)
	}
}

func TestControllerValidationDoesNotTransition(t *testing.T) {
	model := &fakeModel{}
	ctrl := NewController(NewGenerator(model, GeneratorConfig{}))
	defer ctrl.Close()

	err := ctrl.Submit(context.Background(), "  ")
	if !IsKind(err, KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	v := ctrl.View()
	if v.State != models.ViewForm || v.Error != ValidationMessage {
		t.Fatalf("unexpected view %#v", v)
	}
	if model.calls() != 0 {
		t.Fatalf("no generation request should be issued")
	}
}

func TestControllerScenarioNetworkFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("network down")}
	ctrl := NewController(NewGenerator(model, GeneratorConfig{}))
	defer ctrl.Close()

	if err := ctrl.Submit(context.Background(), "idea"); err != nil {
		t.Fatalf("generation failures must not escape Submit: %v", err)
	}
	v := ctrl.View()
	if v.State != models.ViewForm {
		t.Fatalf("expected form view, got %s", v.State)
	}
	if !strings.HasPrefix(v.Error, "Failed to generate PRD") || !strings.Contains(v.Error, "network down") {
		t.Fatalf("unexpected error message %q", v.Error)
	}
	if content, ok := ctrl.Content(); ok || content != "" {
		t.Fatalf("no document should be stored, got %q", content)
	}
}

func TestControllerSingleFlight(t *testing.T) {
	gen := newBlockingGenerator("doc", nil)
	ctrl := NewController(gen)
	defer ctrl.Close()

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background(), "first") }()
	<-gen.started

	if v := ctrl.View(); v.State != models.ViewLoading {
		t.Fatalf("expected loading view, got %s", v.State)
	}
	if err := ctrl.Submit(context.Background(), "second"); !errors.Is(err, ErrGenerationInFlight) {
		t.Fatalf("expected ErrGenerationInFlight, got %v", err)
	}

	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("first Submit returned error: %v", err)
	}
	if err := ctrl.Submit(context.Background(), "third"); !errors.Is(err, ErrNotInForm) {
		t.Fatalf("expected ErrNotInForm from result view, got %v", err)
	}
}

func TestControllerScenarioEditThenReset(t *testing.T) {
	ctrl := NewController(NewGenerator(&fakeModel{reply: "A"}, GeneratorConfig{}))
	defer ctrl.Close()

	if err := ctrl.Edit("early"); !errors.Is(err, ErrNotInResult) {
		t.Fatalf("expected ErrNotInResult before generation, got %v", err)
	}
	if err := ctrl.Submit(context.Background(), "idea"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := ctrl.Edit("B"); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if content, _ := ctrl.Content(); content != "B" {
		t.Fatalf("content = %q, want B", content)
	}

	ctrl.Reset()
	v := ctrl.View()
	if v.State != models.ViewForm || v.Error != "" || v.Content != "" {
		t.Fatalf("unexpected view after reset %#v", v)
	}
}

func TestControllerDeduplicatesAttachments(t *testing.T) {
	ctrl := NewController(NewGenerator(&fakeModel{}, GeneratorConfig{}))
	defer ctrl.Close()

	a := image("sketch.png", "abc")
	if n, err := ctrl.AddAttachments(a); err != nil || n != 1 {
		t.Fatalf("expected 1 added, got %d (%v)", n, err)
	}
	dup := models.BytesAttachment("sketch.png", "image/png", a.LastModified, []byte("xyz"))
	if n, _ := ctrl.AddAttachments(dup, dup); n != 0 {
		t.Fatalf("duplicate identity must not be added, got %d", n)
	}
	if got := len(ctrl.Pending()); got != 1 {
		t.Fatalf("pending count = %d, want 1", got)
	}

	if !ctrl.RemoveAttachment(a.ID()) || len(ctrl.Pending()) != 0 {
		t.Fatalf("RemoveAttachment did not drop the attachment")
	}
}

func TestControllerAttachmentOnlySubmission(t *testing.T) {
	model := &fakeModel{reply: "doc"}
	ctrl := NewController(NewGenerator(model, GeneratorConfig{}))
	defer ctrl.Close()

	ctrl.AddAttachments(image("image1.png", "px"))
	if err := ctrl.Submit(context.Background(), ""); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if model.calls() != 1 || len(model.requests[0].Parts) != 2 {
		t.Fatalf("expected one request with an image part")
	}
	if len(ctrl.Pending()) != 0 {
		t.Fatalf("pending attachments should be cleared once a document is shown")
	}
}

func TestControllerRejectsAttachmentsOutsideForm(t *testing.T) {
	gen := newBlockingGenerator("doc", nil)
	ctrl := NewController(gen)
	defer ctrl.Close()

	ctrl.AddAttachments(image("first.png", "a"))
	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background(), "idea") }()
	<-gen.started

	if n, err := ctrl.AddAttachments(image("late.png", "b")); !errors.Is(err, ErrNotInForm) || n != 0 {
		t.Fatalf("add while loading: got %d, %v; want ErrNotInForm", n, err)
	}
	close(gen.release)
	if err := <-done; err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if n, err := ctrl.AddAttachments(image("after.png", "c")); !errors.Is(err, ErrNotInForm) || n != 0 {
		t.Fatalf("add on result: got %d, %v; want ErrNotInForm", n, err)
	}
	if got := len(ctrl.Pending()); got != 0 {
		t.Fatalf("pending count = %d, want 0", got)
	}

	ctrl.Reset()
	if n, err := ctrl.AddAttachments(image("next.png", "d")); err != nil || n != 1 {
		t.Fatalf("add after reset: got %d, %v", n, err)
	}
}

type tracingGenerator struct {
	seen []models.PendingAttachment
	ctrl *Controller
	att  models.Attachment
}

func (g *tracingGenerator) Generate(ctx context.Context, idea models.IdeaInput) (string, error) {
	if _, err := encoder.Base64(ctx, g.att); err != nil {
		return "", err
	}
	g.seen = g.ctrl.Pending()
	return "", errors.New("stop")
}

func TestControllerProgressFollowsEncoding(t *testing.T) {
	img := image("sketch.png", "abc")
	video := models.BytesAttachment("demo.mp4", "video/mp4", time.UnixMilli(5), []byte("v"))
	gen := &tracingGenerator{att: img}
	ctrl := NewController(gen)
	gen.ctrl = ctrl
	defer ctrl.Close()

	ctrl.AddAttachments(img, video)
	for _, p := range ctrl.Pending() {
		want := 0
		if p.Kind != "image" {
			want = 100
		}
		if p.Progress != want {
			t.Fatalf("%s progress = %d before encoding, want %d", p.Name, p.Progress, want)
		}
	}

	if err := ctrl.Submit(context.Background(), "idea"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	for _, p := range gen.seen {
		if p.Progress != 100 {
			t.Fatalf("%s progress = %d after encoding, want 100", p.Name, p.Progress)
		}
	}
	if len(ctrl.View().Attachments) != 2 {
		t.Fatalf("attachments should stay pending after a failed generation")
	}
}

func TestControllerLoadingMessageRotates(t *testing.T) {
	gen := newBlockingGenerator("doc", nil)
	ctrl := NewController(gen, WithRotateInterval(5*time.Millisecond))
	defer ctrl.Close()

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background(), "idea") }()
	<-gen.started

	first := ctrl.View().LoadingMessage
	if first != LoadingMessages[0] {
		t.Fatalf("first loading message = %q", first)
	}
	deadline := time.Now().Add(2 * time.Second)
	for ctrl.View().LoadingMessage == first {
		if time.Now().After(deadline) {
			t.Fatalf("loading message never rotated")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(gen.release)
	<-done
	if msg := ctrl.View().LoadingMessage; msg != "" {
		t.Fatalf("loading message should clear after loading, got %q", msg)
	}
}
