package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindAttachment    ErrorKind = "attachment"
	KindTransport     ErrorKind = "transport"
	KindModel         ErrorKind = "model"
)

// GenerationError is the classified failure returned by the Generator.
// Message is suitable for display; Err keeps the underlying cause.
type GenerationError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *GenerationError) Error() string { return e.Message }

func (e *GenerationError) Unwrap() error { return e.Err }

// IsKind reports whether err is a GenerationError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var gerr *GenerationError
	return errors.As(err, &gerr) && gerr.Kind == kind
}

// ValidationMessage is shown when a submission has neither text nor files.
const ValidationMessage = "Please provide an idea in text or upload a file."

func validationError(err error) *GenerationError {
	return &GenerationError{Kind: KindValidation, Message: ValidationMessage, Err: err}
}

func configurationError(envVar string, err error) *GenerationError {
	return &GenerationError{
		Kind:    KindConfiguration,
		Message: fmt.Sprintf("Missing API key. Please set %s in your environment variables.", envVar),
		Err:     err,
	}
}

func attachmentError(err error) *GenerationError {
	return &GenerationError{Kind: KindAttachment, Message: err.Error(), Err: err}
}

// classifyModelError sorts a failed model call into transport or model errors.
func classifyModelError(err error) *GenerationError {
	kind := KindModel
	if isTransport(err) {
		kind = KindTransport
	}
	return &GenerationError{
		Kind:    kind,
		Message: fmt.Sprintf("Failed to communicate with the AI model: %v", err),
		Err:     err,
	}
}

func isTransport(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
			return true
		}
	}
	return false
}
