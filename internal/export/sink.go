package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"github.com/princehaifan/prdgenie/internal/gcp"
)

// Sink receives a finished export, the equivalent of a browser download.
type Sink interface {
	Save(ctx context.Context, filename, mimeType string, data []byte) error
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(ctx context.Context, filename, mimeType string, data []byte) error

func (f SinkFunc) Save(ctx context.Context, filename, mimeType string, data []byte) error {
	return f(ctx, filename, mimeType, data)
}

// DirSink writes exports into a local downloads directory.
type DirSink struct {
	Dir string
}

// Save writes the file through a temporary file and a rename so readers
// never observe a partial export.
func (s DirSink) Save(_ context.Context, filename, _ string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir %s: %w", s.Dir, err)
	}
	tmp, err := os.CreateTemp(s.Dir, ".export-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", s.Dir, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", filename, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", filename, err)
	}
	dest := filepath.Join(s.Dir, filepath.Base(filename))
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("failed to move export into place at %s: %w", dest, err)
	}
	return nil
}

// ResponseSink streams the export back as an HTTP attachment download.
type ResponseSink struct {
	W http.ResponseWriter
}

func (s ResponseSink) Save(_ context.Context, filename, mimeType string, data []byte) error {
	h := s.W.Header()
	h.Set("Content-Type", mimeType)
	h.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": path.Base(filename)}))
	h.Set("Content-Length", strconv.Itoa(len(data)))
	s.W.WriteHeader(http.StatusOK)
	if _, err := s.W.Write(data); err != nil {
		return fmt.Errorf("failed to write download response: %w", err)
	}
	return nil
}

// Tee saves to every sink in order and returns the first error.
type Tee []Sink

func (t Tee) Save(ctx context.Context, filename, mimeType string, data []byte) error {
	for _, s := range t {
		if err := s.Save(ctx, filename, mimeType, data); err != nil {
			return err
		}
	}
	return nil
}

// Archiver keeps a best-effort copy of every download. The download is saved
// first; the archive copy is written in the background and its failures are
// only logged.
type Archiver struct {
	sink   Sink
	wg     sync.WaitGroup
	logger *slog.Logger
}

// NewArchiver creates an Archiver writing copies to sink.
func NewArchiver(sink Sink) *Archiver {
	return &Archiver{sink: sink, logger: slog.With("component", "archiver")}
}

// Wrap returns a Sink that saves to download and then archives the same bytes.
// Only download errors are returned.
func (a *Archiver) Wrap(download Sink) Sink {
	return SinkFunc(func(ctx context.Context, filename, mimeType string, data []byte) error {
		if err := download.Save(ctx, filename, mimeType, data); err != nil {
			return err
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			if err := a.sink.Save(context.WithoutCancel(ctx), filename, mimeType, data); err != nil {
				a.logger.Warn("Failed to archive export.", "filename", filename, "error", err)
			}
		}()
		return nil
	})
}

// Wait blocks until every started archive write has finished.
func (a *Archiver) Wait() {
	a.wg.Wait()
}

const (
	uploadAttempts = 4
	uploadTimeout  = 50 * time.Second
)

// BucketSink archives exports in a GCS bucket under prefix/<sha256>/<filename>.
// Identical exports map to the same object and are written once.
type BucketSink struct {
	Prefix  string
	backoff time.Duration
	write   func(ctx context.Context, object, contentType string, data []byte) error
}

// NewBucketSink creates a sink writing to bucket.
func NewBucketSink(bucket *storage.BucketHandle, prefix string) *BucketSink {
	return &BucketSink{
		Prefix:  prefix,
		backoff: time.Second,
		write: func(ctx context.Context, object, contentType string, data []byte) error {
			return gcp.SaveToGCSAtomically(ctx, bucket, object, contentType, data)
		},
	}
}

// ObjectName returns the object key used for the given export.
func (s *BucketSink) ObjectName(filename string, data []byte) string {
	return path.Join(s.Prefix, contentHash(data), path.Base(filename))
}

func (s *BucketSink) Save(ctx context.Context, filename, mimeType string, data []byte) error {
	object := s.ObjectName(filename, data)
	backoff := s.backoff
	var lastErr error

	for i := 0; i < uploadAttempts; i++ {
		err := func() error {
			writeCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
			defer cancel()
			return s.write(writeCtx, object, mimeType, data)
		}()
		if err == nil {
			return nil
		}

		lastErr = err
		slog.Warn(
			"Upload failed, will retry.",
			"gcsObject", object,
			"attempt", i+1,
			"maxRetries", uploadAttempts,
			"backoff", backoff.String(),
			"error", err,
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			slog.Error("Context cancelled during backoff. Aborting retries.", "gcsObject", object, "error", ctx.Err())
			return ctx.Err()
		}
	}
	slog.Error("Upload failed after all retries.", "gcsObject", object, "error", lastErr)
	return fmt.Errorf("upload for %s failed after all retries: %w", object, lastErr)
}

func contentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ErrNoSink is returned when an Exporter has nowhere to save.
var ErrNoSink = errors.New("no export sink configured")
