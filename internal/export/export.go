// Package export saves the displayed PRD as Markdown, DOCX or PDF.
//
// Markdown export is raw content. DOCX and PDF exports accept an optional
// header and footer, and report failures through an Alerter rather than to
// the caller.
package export

import (
	"context"
	"fmt"
	"html"
	"log/slog"

	"github.com/princehaifan/prdgenie/internal/docx"
	"github.com/princehaifan/prdgenie/internal/metrics"
	"github.com/princehaifan/prdgenie/internal/models"
	"github.com/princehaifan/prdgenie/internal/raster"
)

const (
	MarkdownMIME = "text/markdown;charset=utf-8"
	DocxMIME     = docx.MIMEType
	PDFMIME      = "application/pdf"

	DocxFailedAlert = "Failed to export as DOCX."
	PDFFailedAlert  = "Failed to export as PDF."

	// decorationStyle is applied to the DOCX header and footer paragraphs.
	decorationStyle = "font-size: 10px; color: #555;"
)

// Alerter shows a blocking message to the user.
type Alerter interface {
	Alert(ctx context.Context, message string)
}

// AlertFunc adapts a function to an Alerter.
type AlertFunc func(ctx context.Context, message string)

func (f AlertFunc) Alert(ctx context.Context, message string) { f(ctx, message) }

// DocumentConverter converts an HTML fragment into a word-processor document.
type DocumentConverter interface {
	Convert(ctx context.Context, html string) ([]byte, error)
}

// Exporter runs the export operations against a sink.
type Exporter struct {
	sink       Sink
	alerter    Alerter
	converter  DocumentConverter
	rasterizer raster.Rasterizer
	width      int
	logger     *slog.Logger
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithConverter replaces the DOCX converter.
func WithConverter(c DocumentConverter) Option {
	return func(e *Exporter) { e.converter = c }
}

// WithRasterizer replaces the PDF rasterizer.
func WithRasterizer(r raster.Rasterizer) Option {
	return func(e *Exporter) { e.rasterizer = r }
}

// WithWidth sets the natural width, in CSS pixels, used for elements that
// do not declare one.
func WithWidth(px int) Option {
	return func(e *Exporter) { e.width = px }
}

// NewExporter creates an exporter saving to sink. Without WithRasterizer it
// loads the built-in font rasterizer.
func NewExporter(sink Sink, alerter Alerter, opts ...Option) (*Exporter, error) {
	if sink == nil {
		return nil, ErrNoSink
	}
	if alerter == nil {
		alerter = AlertFunc(func(context.Context, string) {})
	}
	e := &Exporter{
		sink:      sink,
		alerter:   alerter,
		converter: docx.NewConverter(),
		width:     raster.DefaultWidth,
		logger:    slog.With("component", "exporter"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rasterizer == nil {
		painter, err := raster.New()
		if err != nil {
			return nil, fmt.Errorf("failed to load rasterizer: %w", err)
		}
		e.rasterizer = painter
	}
	return e, nil
}

// ExportMarkdown saves content verbatim. Sink errors are returned.
func (e *Exporter) ExportMarkdown(ctx context.Context, content, filename string) error {
	if err := e.sink.Save(ctx, filename, MarkdownMIME, []byte(content)); err != nil {
		metrics.RecordExport("markdown", "failure")
		return err
	}
	metrics.RecordExport("markdown", "success")
	e.logger.Info("Exported Markdown.", "filename", filename, "bytes", len(content))
	return nil
}

// DecorateHTML wraps renderedHTML with the header and footer paragraphs.
// Header and footer text is escaped.
func DecorateHTML(renderedHTML string, opts models.ExportOptions) string {
	out := renderedHTML
	if opts.Header != "" {
		out = `<p style="` + decorationStyle + `">` + html.EscapeString(opts.Header) + `</p><br/>` + out
	}
	if opts.Footer != "" {
		out = out + `<br/><p style="` + decorationStyle + `">` + html.EscapeString(opts.Footer) + `</p>`
	}
	return out
}

// ExportDocx converts the decorated HTML and saves it. Any failure is logged
// and reported with a single alert.
func (e *Exporter) ExportDocx(ctx context.Context, renderedHTML, filename string, opts models.ExportOptions) {
	logger := e.logger.With("format", "docx", "filename", filename)

	data, err := e.converter.Convert(ctx, DecorateHTML(renderedHTML, opts))
	if err == nil {
		err = e.sink.Save(ctx, filename, DocxMIME, data)
	}
	if err != nil {
		logger.Error("Error exporting to DOCX.", "error", err)
		metrics.RecordExport("docx", "failure")
		e.alerter.Alert(ctx, DocxFailedAlert)
		return
	}
	metrics.RecordExport("docx", "success")
	logger.Info("Exported DOCX.", "bytes", len(data))
}
