package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/princehaifan/prdgenie/internal/metrics"
	"github.com/princehaifan/prdgenie/internal/models"
	"github.com/princehaifan/prdgenie/internal/raster"
	"github.com/princehaifan/prdgenie/internal/render"
	"golang.org/x/net/html"
)

const (
	headerStyle = "margin-bottom: 20px; padding-bottom: 10px; border-bottom: 1px solid #6b7280; font-size: 12px; color: #6b7280;"
	footerStyle = "margin-top: 20px; padding-top: 10px; border-top: 1px solid #6b7280; font-size: 12px; text-align: center; color: #6b7280;"
)

var pdfBackground = color.RGBA{0x1f, 0x29, 0x37, 0xff}

var errNoElement = errors.New("element not found")

// pdfcpu looks for a user config dir on first use; exports never need one.
var disableConfigDir sync.Once

// ExportPDF rasterizes a detached copy of element inside a temporary
// off-screen container attached to the element's document body, and saves a
// single-page PDF sized to the image. The container is removed on every path.
// Failures are logged and reported with a single alert.
func (e *Exporter) ExportPDF(ctx context.Context, element *html.Node, filename string, opts models.ExportOptions) {
	logger := e.logger.With("format", "pdf", "filename", filename)
	if element == nil {
		logger.Error("Export failed.", "error", errNoElement)
		return
	}

	container := e.container(element, opts)
	if body := render.BodyOf(element); body != nil {
		body.AppendChild(container)
		defer body.RemoveChild(container)
	}

	data, err := e.renderPDF(ctx, container)
	if err == nil {
		err = e.sink.Save(ctx, filename, PDFMIME, data)
	}
	if err != nil {
		logger.Error("Error generating PDF.", "error", err)
		metrics.RecordExport("pdf", "failure")
		e.alerter.Alert(ctx, PDFFailedAlert)
		return
	}
	metrics.RecordExport("pdf", "success")
	logger.Info("Exported PDF.", "bytes", len(data))
}

// container builds the styled off-screen wrapper around a clone of element.
func (e *Exporter) container(element *html.Node, opts models.ExportOptions) *html.Node {
	width := e.width
	if w, ok := render.StyleOf(element).PX("width"); ok && w > 0 {
		width = int(w)
	}
	style := "position: absolute; left: -9999px; top: -9999px; width: " + strconv.Itoa(width) + "px; " +
		"background-color: #1f2937; padding: 32px; color: #d1d5db;"
	c := render.Element("div", "style", style)

	if opts.Header != "" {
		header := render.Element("div", "style", headerStyle)
		header.AppendChild(render.Text(opts.Header))
		c.AppendChild(header)
	}
	c.AppendChild(render.Clone(element))
	if opts.Footer != "" {
		footer := render.Element("div", "style", footerStyle)
		footer.AppendChild(render.Text(opts.Footer))
		c.AppendChild(footer)
	}
	return c
}

func (e *Exporter) renderPDF(ctx context.Context, container *html.Node) ([]byte, error) {
	img, err := e.rasterizer.Rasterize(ctx, container, raster.Options{
		Scale:      raster.DefaultScale,
		Background: pdfBackground,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to rasterize: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode page image: %w", err)
	}
	return imagePDF(buf.Bytes())
}

// imagePDF builds a one-page PDF whose page is exactly the image size.
func imagePDF(pngData []byte) ([]byte, error) {
	disableConfigDir.Do(api.DisableConfigDir)

	imp, err := api.Import("pos:full", types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("invalid import description: %w", err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	var raw bytes.Buffer
	if err := api.ImportImages(nil, &raw, []io.Reader{bytes.NewReader(pngData)}, imp, conf); err != nil {
		return nil, fmt.Errorf("failed to build PDF: %w", err)
	}
	var out bytes.Buffer
	if err := api.Optimize(bytes.NewReader(raw.Bytes()), &out, conf); err != nil {
		return nil, fmt.Errorf("failed to optimize PDF: %w", err)
	}
	return out.Bytes(), nil
}
