package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/princehaifan/prdgenie/internal/config"
	"github.com/princehaifan/prdgenie/internal/export"
	"github.com/princehaifan/prdgenie/internal/gcp"
	"github.com/princehaifan/prdgenie/internal/llm"
	"github.com/princehaifan/prdgenie/internal/raster"
	"github.com/princehaifan/prdgenie/internal/render"
	"github.com/princehaifan/prdgenie/internal/services"
)

// host holds the single in-memory session behind the page.
type host struct {
	controller *services.Controller
	renderer   *render.Renderer
	rasterizer raster.Rasterizer
	converter  export.DocumentConverter
	// archiver copies every download to the archive sinks. Nil disables archival.
	archiver *export.Archiver
	logger   *slog.Logger
}

func newHost(gen services.IdeaGenerator, rasterizer raster.Rasterizer, converter export.DocumentConverter, archive export.Sink) *host {
	h := &host{
		controller: services.NewController(gen),
		renderer:   render.NewRenderer(),
		rasterizer: rasterizer,
		converter:  converter,
		logger:     slog.With("component", "host"),
	}
	if archive != nil {
		h.archiver = export.NewArchiver(archive)
	}
	return h
}

// newHostFromEnv wires the host from configuration. A missing credential only
// logs a warning; generation then fails with a configuration error.
func newHostFromEnv(ctx context.Context) (*host, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	var model llm.Model
	if cfg.HasCredential() {
		model, err = llm.NewModel(ctx, cfg.LLM())
		if err != nil {
			return nil, fmt.Errorf("failed to create %s model: %w", cfg.Provider, err)
		}
	} else {
		slog.Warn("Model credential is not set; generation will fail until it is.", "provider", cfg.Provider, "env", cfg.CredentialEnv)
	}
	gen := services.NewGenerator(model, services.GeneratorConfig{Provider: cfg.Provider, CredentialEnv: cfg.CredentialEnv})

	painter, err := raster.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load rasterizer: %w", err)
	}

	archive, err := archiveSinks(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return newHost(gen, painter, nil, archive), nil
}

// archiveSinks builds the optional export archive from EXPORT_DIR and EXPORT_BUCKET.
func archiveSinks(ctx context.Context, cfg config.Config) (export.Sink, error) {
	var sinks export.Tee
	if cfg.ExportDir != "" {
		sinks = append(sinks, export.DirSink{Dir: cfg.ExportDir})
	}
	if cfg.ExportBucket != "" {
		// The client lives as long as the process.
		_, bucket, err := gcp.NewBucket(ctx, cfg.ExportBucket)
		if err != nil {
			return nil, fmt.Errorf("failed to open export bucket: %w", err)
		}
		sinks = append(sinks, export.NewBucketSink(bucket, cfg.ExportPrefix))
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	slog.Info("Export archival enabled.", "dir", cfg.ExportDir, "bucket", cfg.ExportBucket)
	return sinks, nil
}

// exporter binds an Exporter to one download response.
func (h *host) exporter(download export.Sink, alerter export.Alerter) (*export.Exporter, error) {
	sink := download
	if h.archiver != nil {
		sink = h.archiver.Wrap(download)
	}
	opts := []export.Option{export.WithRasterizer(h.rasterizer)}
	if h.converter != nil {
		opts = append(opts, export.WithConverter(h.converter))
	}
	return export.NewExporter(sink, alerter, opts...)
}
