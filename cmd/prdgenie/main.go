package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/princehaifan/prdgenie/internal/config"
	"github.com/princehaifan/prdgenie/internal/gcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	hostInstance *host
	once         sync.Once
	initErr      error
)

func init() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Warn("Ignoring unreadable .env file.", "error", err)
	}
	level := config.ParseLevel(gcp.GetEnv("LOG_LEVEL", "info"))
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	// Each function is served at /<name> when FUNCTION_TARGET is unset.
	functions.HTTP("page", withHost((*host).handlePage))
	functions.HTTP("state", withHost((*host).handleState))
	functions.HTTP("attachments", withHost((*host).handleAttachments))
	functions.HTTP("generate", withHost((*host).handleGenerate))
	functions.HTTP("edit", withHost((*host).handleEdit))
	functions.HTTP("reset", withHost((*host).handleReset))
	functions.HTTP("export", withHost((*host).handleExport))
	functions.HTTP("metrics", promhttp.Handler().ServeHTTP)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration.", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting PRDGenie.", "port", cfg.Port, "provider", cfg.Provider, "page", "http://localhost:"+cfg.Port+"/page")
	if err := funcframework.Start(cfg.Port); err != nil {
		slog.Error("Page host stopped.", "error", err)
		os.Exit(1)
	}
}

// withHost initializes the shared host once and passes it to h.
func withHost(h func(*host, http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() {
			hostInstance, initErr = newHostFromEnv(context.Background())
		})
		if initErr != nil {
			slog.Error("CRITICAL: page host initialization failed.", "error", initErr)
			http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
			return
		}
		h(hostInstance, w, r)
	}
}
