package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/princehaifan/prdgenie/internal/export"
	"github.com/princehaifan/prdgenie/internal/models"
	"github.com/princehaifan/prdgenie/internal/raster"
	"github.com/princehaifan/prdgenie/internal/services"
	"golang.org/x/net/html"
)

const sampleDoc = "# Recipe Finder\n\nSuggests recipes.\n\n| a | b |\n|---|---|\n| 1 | 2 |\n"

type stubGenerator struct {
	text    string
	err     error
	release chan struct{}
	ideas   []models.IdeaInput
}

func (g *stubGenerator) Generate(ctx context.Context, idea models.IdeaInput) (string, error) {
	g.ideas = append(g.ideas, idea)
	if g.release != nil {
		select {
		case <-g.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return g.text, g.err
}

type solidRasterizer struct{ err error }

func (s solidRasterizer) Rasterize(context.Context, *html.Node, raster.Options) (image.Image, error) {
	if s.err != nil {
		return nil, s.err
	}
	return image.NewRGBA(image.Rect(0, 0, 40, 30)), nil
}

type failingConverter struct{}

func (failingConverter) Convert(context.Context, string) ([]byte, error) {
	return nil, errors.New("conversion failed")
}

func newTestHost(t *testing.T, gen services.IdeaGenerator) *host {
	t.Helper()
	h := newHost(gen, solidRasterizer{}, nil, nil)
	t.Cleanup(h.controller.Close)
	return h
}

func call(h *host, handler func(*host, http.ResponseWriter, *http.Request), req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	handler(h, rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(method, target, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.View {
	t.Helper()
	var v models.View
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode view: %v", err)
	}
	return v
}

func generated(t *testing.T, h *host) {
	t.Helper()
	rec := call(h, (*host).handleGenerate, jsonRequest(http.MethodPost, "/generate", models.GenerateRequest{Text: "recipes"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("generate status = %d: %s", rec.Code, rec.Body.String())
	}
}

func uploadRequest(t *testing.T, files map[string]string, modified int64) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		header := make(map[string][]string)
		header["Content-Disposition"] = []string{`form-data; name="files"; filename="` + name + `"`}
		header["Content-Type"] = []string{"image/png"}
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("CreatePart: %v", err)
		}
		part.Write([]byte(content))
		mw.WriteField("lastModified", strconv.FormatInt(modified, 10))
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/attachments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestStateStartsOnForm(t *testing.T) {
	h := newTestHost(t, &stubGenerator{})
	rec := call(h, (*host).handleState, httptest.NewRequest(http.MethodGet, "/state", nil))
	if v := decodeView(t, rec); v.State != models.ViewForm || v.Error != "" {
		t.Fatalf("unexpected initial view %#v", v)
	}
}

func TestAttachmentsAddAndRemove(t *testing.T) {
	h := newTestHost(t, &stubGenerator{})

	rec := call(h, (*host).handleAttachments, uploadRequest(t, map[string]string{"sketch.png": "png-bytes"}, 1700000000000))
	var res models.AttachmentsResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Added != 1 || len(res.Pending) != 1 || res.Pending[0].Kind != "image" {
		t.Fatalf("unexpected upload response %#v", res)
	}
	if !strings.HasPrefix(res.Pending[0].ID, "sketch.png-1700000000000-") {
		t.Fatalf("lastModified not applied: %q", res.Pending[0].ID)
	}

	rec = call(h, (*host).handleAttachments, uploadRequest(t, map[string]string{"sketch.png": "png-bytes"}, 1700000000000))
	res = models.AttachmentsResponse{}
	json.NewDecoder(rec.Body).Decode(&res)
	if res.Added != 0 || len(res.Pending) != 1 {
		t.Fatalf("duplicate upload should be skipped: %#v", res)
	}

	id := res.Pending[0].ID
	rec = call(h, (*host).handleAttachments, httptest.NewRequest(http.MethodDelete, "/attachments?id="+id, nil))
	if rec.Code != http.StatusOK || len(h.controller.Pending()) != 0 {
		t.Fatalf("remove failed: %d %s", rec.Code, rec.Body.String())
	}
	rec = call(h, (*host).handleAttachments, httptest.NewRequest(http.MethodDelete, "/attachments?id="+id, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("removing an unknown id: status = %d", rec.Code)
	}
}

func TestGenerateRejectsEmptyIdea(t *testing.T) {
	gen := &stubGenerator{text: sampleDoc}
	h := newTestHost(t, gen)
	rec := call(h, (*host).handleGenerate, jsonRequest(http.MethodPost, "/generate", models.GenerateRequest{Text: "   "}))
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), services.ValidationMessage) {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(gen.ideas) != 0 {
		t.Fatalf("generator must not be called for an empty idea")
	}
}

func TestGenerateShowsResult(t *testing.T) {
	h := newTestHost(t, &stubGenerator{text: sampleDoc})
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("text=recipes"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := call(h, (*host).handleGenerate, req)
	v := decodeView(t, rec)
	if v.State != models.ViewResult || v.Content != sampleDoc {
		t.Fatalf("unexpected view %#v", v)
	}

	rec = call(h, (*host).handleGenerate, jsonRequest(http.MethodPost, "/generate", models.GenerateRequest{Text: "again"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("submitting from the result view: status = %d", rec.Code)
	}
}

func TestGenerateFailureReturnsToForm(t *testing.T) {
	h := newTestHost(t, &stubGenerator{err: errors.New("quota exceeded")})
	rec := call(h, (*host).handleGenerate, jsonRequest(http.MethodPost, "/generate", models.GenerateRequest{Text: "recipes"}))
	v := decodeView(t, rec)
	if v.State != models.ViewForm || v.Error != services.GenerateFailedPrefix+"quota exceeded" {
		t.Fatalf("unexpected view %#v", v)
	}
}

func TestGenerateIsSingleFlight(t *testing.T) {
	gen := &stubGenerator{text: sampleDoc, release: make(chan struct{})}
	h := newTestHost(t, gen)

	done := make(chan *httptest.ResponseRecorder)
	go func() {
		done <- call(h, (*host).handleGenerate, jsonRequest(http.MethodPost, "/generate", models.GenerateRequest{Text: "first"}))
	}()
	deadline := time.Now().Add(5 * time.Second)
	for h.controller.View().State != models.ViewLoading {
		if time.Now().After(deadline) {
			t.Fatalf("generation never started")
		}
		time.Sleep(time.Millisecond)
	}

	rec := call(h, (*host).handleGenerate, jsonRequest(http.MethodPost, "/generate", models.GenerateRequest{Text: "second"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("concurrent submission: status = %d", rec.Code)
	}
	close(gen.release)
	if first := <-done; first.Code != http.StatusOK {
		t.Fatalf("first submission: status = %d", first.Code)
	}
	if len(gen.ideas) != 1 {
		t.Fatalf("generator called %d times", len(gen.ideas))
	}
}

func TestGenerateSurvivesClosedRequest(t *testing.T) {
	gen := &stubGenerator{text: sampleDoc, release: make(chan struct{})}
	h := newTestHost(t, gen)

	ctx, cancel := context.WithCancel(context.Background())
	req := jsonRequest(http.MethodPost, "/generate", models.GenerateRequest{Text: "recipes"}).WithContext(ctx)
	done := make(chan *httptest.ResponseRecorder)
	go func() { done <- call(h, (*host).handleGenerate, req) }()
	deadline := time.Now().Add(5 * time.Second)
	for h.controller.View().State != models.ViewLoading {
		if time.Now().After(deadline) {
			t.Fatalf("generation never started")
		}
		time.Sleep(time.Millisecond)
	}

	// The page reloads while loading, dropping the original request.
	cancel()
	close(gen.release)
	<-done

	v := h.controller.View()
	if v.State != models.ViewResult || v.Content != sampleDoc {
		t.Fatalf("generation did not complete after the request closed: %#v", v)
	}
}

func TestAttachmentsRejectedOutsideForm(t *testing.T) {
	h := newTestHost(t, &stubGenerator{text: sampleDoc})
	generated(t, h)
	rec := call(h, (*host).handleAttachments, uploadRequest(t, map[string]string{"late.png": "png"}, 1))
	if rec.Code != http.StatusConflict {
		t.Fatalf("upload on result view: status = %d", rec.Code)
	}
}

func TestEditAndReset(t *testing.T) {
	h := newTestHost(t, &stubGenerator{text: sampleDoc})

	rec := call(h, (*host).handleEdit, jsonRequest(http.MethodPost, "/edit", models.EditRequest{Content: "x"}))
	if rec.Code != http.StatusConflict {
		t.Fatalf("edit without a document: status = %d", rec.Code)
	}

	generated(t, h)
	rec = call(h, (*host).handleEdit, jsonRequest(http.MethodPost, "/edit", models.EditRequest{Content: "# Edited"}))
	if v := decodeView(t, rec); v.Content != "# Edited" {
		t.Fatalf("edit not applied: %#v", v)
	}

	rec = call(h, (*host).handleReset, httptest.NewRequest(http.MethodPost, "/reset", nil))
	if v := decodeView(t, rec); v.State != models.ViewForm || v.Content != "" {
		t.Fatalf("reset did not clear the view: %#v", v)
	}
}

func TestExportRequiresDocument(t *testing.T) {
	h := newTestHost(t, &stubGenerator{})
	rec := call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format=markdown", nil))
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format=odt", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown format: status = %d", rec.Code)
	}
}

func TestExportMarkdownDownload(t *testing.T) {
	h := newTestHost(t, &stubGenerator{text: sampleDoc})
	generated(t, h)
	rec := call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format=markdown", nil))
	if rec.Body.String() != sampleDoc {
		t.Fatalf("markdown download = %q", rec.Body.String())
	}
	if rec.Header().Get("Content-Type") != export.MarkdownMIME {
		t.Fatalf("Content-Type = %q", rec.Header().Get("Content-Type"))
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "prd.md") {
		t.Fatalf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestExportDocxDownload(t *testing.T) {
	h := newTestHost(t, &stubGenerator{text: sampleDoc})
	generated(t, h)
	rec := call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format=docx&header=Draft&footer=v1", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != export.DocxMIME {
		t.Fatalf("status = %d type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("DOCX download is not a zip package")
	}
}

func TestExportPDFDownload(t *testing.T) {
	h := newTestHost(t, &stubGenerator{text: sampleDoc})
	generated(t, h)
	rec := call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format=pdf&filename=idea.pdf", nil))
	if rec.Code != http.StatusOK || !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
		t.Fatalf("status = %d, body prefix %q", rec.Code, rec.Body.Bytes()[:min(8, rec.Body.Len())])
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "idea.pdf") {
		t.Fatalf("Content-Disposition = %q", rec.Header().Get("Content-Disposition"))
	}
}

func TestExportFailureReturnsAlert(t *testing.T) {
	cases := []struct {
		format string
		host   func(gen services.IdeaGenerator) *host
		alert  string
	}{
		{"docx", func(gen services.IdeaGenerator) *host { return newHost(gen, solidRasterizer{}, failingConverter{}, nil) }, export.DocxFailedAlert},
		{"pdf", func(gen services.IdeaGenerator) *host {
			return newHost(gen, solidRasterizer{err: errors.New("no canvas")}, nil, nil)
		}, export.PDFFailedAlert},
	}
	for _, tc := range cases {
		t.Run(tc.format, func(t *testing.T) {
			h := tc.host(&stubGenerator{text: sampleDoc})
			defer h.controller.Close()
			generated(t, h)
			rec := call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format="+tc.format, nil))
			var res models.ExportFailureResponse
			if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if rec.Code != http.StatusInternalServerError || res.Alert != tc.alert {
				t.Fatalf("status = %d response = %#v", rec.Code, res)
			}
			if content, _ := h.controller.Content(); content != sampleDoc {
				t.Fatalf("failed export must not alter the document")
			}
		})
	}
}

func TestExportIsArchived(t *testing.T) {
	dir := t.TempDir()
	h := newHost(&stubGenerator{text: sampleDoc}, solidRasterizer{}, nil, export.DirSink{Dir: dir})
	defer h.controller.Close()
	generated(t, h)
	call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format=markdown", nil))
	h.archiver.Wait()
	data, err := os.ReadFile(filepath.Join(dir, "prd.md"))
	if err != nil {
		t.Fatalf("archived export missing: %v", err)
	}
	if string(data) != sampleDoc {
		t.Fatalf("archived content = %q", data)
	}
}

func TestExportSucceedsWhenArchiveFails(t *testing.T) {
	archive := export.SinkFunc(func(context.Context, string, string, []byte) error {
		return errors.New("bucket unavailable")
	})
	h := newHost(&stubGenerator{text: sampleDoc}, solidRasterizer{}, nil, archive)
	defer h.controller.Close()
	generated(t, h)

	for _, tc := range []struct {
		format, prefix string
	}{
		{"markdown", "# Recipe Finder"},
		{"docx", "PK"},
		{"pdf", "%PDF"},
	} {
		t.Run(tc.format, func(t *testing.T) {
			rec := call(h, (*host).handleExport, httptest.NewRequest(http.MethodGet, "/export?format="+tc.format, nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if !bytes.HasPrefix(rec.Body.Bytes(), []byte(tc.prefix)) {
				t.Fatalf("download missing, body prefix %q", rec.Body.Bytes()[:min(8, rec.Body.Len())])
			}
		})
	}
	h.archiver.Wait()
}

func TestPageRendersEachView(t *testing.T) {
	h := newTestHost(t, &stubGenerator{text: sampleDoc})
	rec := call(h, (*host).handlePage, httptest.NewRequest(http.MethodGet, "/page", nil))
	if !strings.Contains(rec.Body.String(), "Describe Your App Idea") {
		t.Fatalf("form view missing:\n%s", rec.Body.String())
	}

	generated(t, h)
	rec = call(h, (*host).handlePage, httptest.NewRequest(http.MethodGet, "/page", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `id="prd-view"`) || !strings.Contains(body, "<h1>Recipe Finder</h1>") || !strings.Contains(body, "<table>") {
		t.Fatalf("result view missing rendered document:\n%s", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHost(t, &stubGenerator{})
	rec := call(h, (*host).handleGenerate, httptest.NewRequest(http.MethodGet, "/generate", nil))
	if rec.Code != http.StatusMethodNotAllowed || rec.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("status = %d allow = %q", rec.Code, rec.Header().Get("Allow"))
	}
}
