package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/princehaifan/prdgenie/internal/export"
	"github.com/princehaifan/prdgenie/internal/models"
	"github.com/princehaifan/prdgenie/internal/render"
	"github.com/princehaifan/prdgenie/internal/services"
)

const (
	// maxUploadBytes bounds one attachments request.
	maxUploadBytes = 64 << 20
	// maxMemoryBytes is the multipart parsing threshold before spilling to disk.
	maxMemoryBytes = 10 << 20
	maxJSONBytes   = 4 << 20
)

// handlePage serves the single page for the current view.
func (h *host) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	data := pageData{View: h.controller.View(), Accept: "image/*,video/*"}
	if data.View.State == models.ViewResult {
		rendered, err := h.renderer.HTML(data.View.Content)
		if err != nil {
			h.logger.Error("Failed to render document.", "error", err)
			http.Error(w, "Internal Server Error: failed to render document", http.StatusInternalServerError)
			return
		}
		// Sanitized by the renderer.
		data.Document = template.HTML(rendered)
		data.ArticleID = render.ArticleID
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		h.logger.Error("Failed to write page.", "error", err)
	}
}

// handleState returns the current view snapshot.
func (h *host) handleState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, h.controller.View())
}

// handleAttachments adds uploaded files to the form (POST, multipart field
// "files") or removes one by id (DELETE ?id=).
func (h *host) handleAttachments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		atts, err := readAttachments(w, r)
		if err != nil {
			h.logger.Warn("Rejected attachment upload.", "error", err)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		added, err := h.controller.AddAttachments(atts...)
		if err != nil {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Info("Attachments added.", "received", len(atts), "added", added)
		writeJSON(w, http.StatusOK, models.AttachmentsResponse{Added: added, Pending: h.controller.Pending()})
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if !h.controller.RemoveAttachment(id) {
			writeError(w, http.StatusNotFound, "no pending attachment with id "+strconv.Quote(id))
			return
		}
		writeJSON(w, http.StatusOK, models.AttachmentsResponse{Pending: h.controller.Pending()})
	default:
		methodNotAllowed(w, http.MethodPost, http.MethodDelete)
	}
}

// readAttachments reads every file of a multipart upload into memory. The
// optional "lastModified" values, in milliseconds, pair with the files by position.
func readAttachments(w http.ResponseWriter, r *http.Request) ([]models.Attachment, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxMemoryBytes); err != nil {
		return nil, fmt.Errorf("could not parse upload: %w", err)
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	stamps := r.MultipartForm.Value["lastModified"]
	atts := make([]models.Attachment, 0, len(files))
	for i, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("could not open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("could not read %s: %w", fh.Filename, err)
		}
		modified := time.Time{}
		if i < len(stamps) {
			if ms, err := strconv.ParseInt(stamps[i], 10, 64); err == nil {
				modified = time.UnixMilli(ms)
			}
		}
		atts = append(atts, models.BytesAttachment(fh.Filename, contentType(fh.Header.Get("Content-Type")), modified, data))
	}
	return atts, nil
}

func contentType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return "application/octet-stream"
	}
	return mt
}

// handleGenerate submits the idea text with the pending attachments and
// returns the resulting view once generation settles.
func (h *host) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.GenerateRequest
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON")
			return
		}
	} else {
		req.Text = r.FormValue("text")
	}

	// Generation outlives the request so a reload during loading keeps it running.
	err := h.controller.Submit(context.WithoutCancel(r.Context()), req.Text)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.controller.View())
	case errors.Is(err, services.ErrGenerationInFlight), errors.Is(err, services.ErrNotInForm):
		writeError(w, http.StatusConflict, err.Error())
	case services.IsKind(err, services.KindValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("Submission failed.", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// handleEdit replaces the displayed document.
func (h *host) handleEdit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req models.EditRequest
	if isJSON(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "could not parse JSON")
			return
		}
	} else {
		req.Content = r.FormValue("content")
	}
	if err := h.controller.Edit(req.Content); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, h.controller.View())
}

// handleReset returns to an empty form.
func (h *host) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.controller.Reset()
	writeJSON(w, http.StatusOK, h.controller.View())
}

// handleExport downloads the displayed document. Query parameters: format
// (markdown, docx or pdf), optional filename, header and footer.
func (h *host) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
		return
	}
	format := strings.ToLower(r.FormValue("format"))
	ext, ok := extensions[format]
	if !ok {
		writeError(w, http.StatusBadRequest, "format must be one of markdown, docx, pdf")
		return
	}
	filename := r.FormValue("filename")
	if filename == "" {
		filename = "prd" + ext
	}
	opts := models.ExportOptions{Header: r.FormValue("header"), Footer: r.FormValue("footer")}

	content, ok := h.controller.Content()
	if !ok {
		writeError(w, http.StatusConflict, services.ErrNotInResult.Error())
		return
	}

	var alert string
	alerter := export.AlertFunc(func(_ context.Context, message string) { alert = message })
	exporter, err := h.exporter(export.ResponseSink{W: w}, alerter)
	if err != nil {
		h.logger.Error("Failed to create exporter.", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger := h.logger.With("format", format, "filename", filename)
	ctx := r.Context()
	if format == "markdown" {
		if err := exporter.ExportMarkdown(ctx, content, filename); err != nil {
			logger.Error("Markdown export failed.", "error", err)
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	// Each export works on its own render of the current content.
	doc, err := h.renderer.Render(content)
	if err != nil {
		logger.Error("Failed to render document for export.", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	switch format {
	case "docx":
		inner, err := render.InnerHTML(doc.Article)
		if err != nil {
			logger.Error("Failed to serialize document for export.", "error", err)
			writeJSON(w, http.StatusInternalServerError, models.ExportFailureResponse{Status: "error", Alert: export.DocxFailedAlert})
			return
		}
		exporter.ExportDocx(ctx, inner, filename, opts)
	case "pdf":
		exporter.ExportPDF(ctx, doc.Article, filename, opts)
	}
	if alert != "" {
		writeJSON(w, http.StatusInternalServerError, models.ExportFailureResponse{Status: "error", Alert: alert})
	}
}

var extensions = map[string]string{
	"markdown": ".md",
	"docx":     ".docx",
	"pdf":      ".pdf",
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response.", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Status: "error", Error: message})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
