package models

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// AttachmentKind classifies an attachment once, at ingestion time.
type AttachmentKind int

const (
	KindOther AttachmentKind = iota
	KindImage
	KindVideo
)

func (k AttachmentKind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindVideo:
		return "video"
	default:
		return "other"
	}
}

// KindOf maps a MIME type onto an AttachmentKind.
func KindOf(mimeType string) AttachmentKind {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case strings.HasPrefix(mt, "image/"):
		return KindImage
	case strings.HasPrefix(mt, "video/"):
		return KindVideo
	default:
		return KindOther
	}
}

// Opener returns a fresh reader over an attachment's bytes.
type Opener func() (io.ReadCloser, error)

// Attachment is a user-supplied file submitted alongside the idea text.
type Attachment struct {
	Name         string
	MIMEType     string
	Size         int64
	LastModified time.Time
	Kind         AttachmentKind

	open Opener
}

// NewAttachment builds an attachment and fixes its Kind from the MIME type.
func NewAttachment(name, mimeType string, size int64, lastModified time.Time, open Opener) Attachment {
	return Attachment{
		Name:         name,
		MIMEType:     mimeType,
		Size:         size,
		LastModified: lastModified,
		Kind:         KindOf(mimeType),
		open:         open,
	}
}

// BytesAttachment wraps an in-memory payload.
func BytesAttachment(name, mimeType string, lastModified time.Time, data []byte) Attachment {
	return NewAttachment(name, mimeType, int64(len(data)), lastModified, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FileAttachment reads its payload lazily from a local path.
func FileAttachment(path, mimeType string) (Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("failed to stat attachment %s: %w", path, err)
	}
	return NewAttachment(info.Name(), mimeType, info.Size(), info.ModTime(), func() (io.ReadCloser, error) {
		return os.Open(path)
	}), nil
}

// ID is the de-duplication identity: name, last-modified millis and size.
func (a Attachment) ID() string {
	return fmt.Sprintf("%s-%d-%d", a.Name, a.LastModified.UnixMilli(), a.Size)
}

// Open returns a reader over the attachment payload.
func (a Attachment) Open() (io.ReadCloser, error) {
	if a.open == nil {
		return nil, fmt.Errorf("attachment %q has no payload", a.Name)
	}
	return a.open()
}
