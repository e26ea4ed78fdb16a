package models

// IdeaInput is what the user submitted from the form.
type IdeaInput struct {
	Text        string
	Attachments []Attachment
}

// InlineImage is an image part carried in the request as base64 text.
type InlineImage struct {
	MIMEType string
	Data     string
}

// Part is one content part of a generation request. Exactly one of Text or
// InlineImage is meaningful; InlineImage is nil for text parts.
type Part struct {
	Text        string
	InlineImage *InlineImage
}

// IsText reports whether the part is a text part.
func (p Part) IsText() bool { return p.InlineImage == nil }

// GenerationRequest is the provider-neutral request handed to a model adapter.
// SystemInstruction travels separately from Parts.
type GenerationRequest struct {
	SystemInstruction string
	Parts             []Part
}

// ExportOptions decorate an export. Empty strings mean absent.
type ExportOptions struct {
	Header string `json:"header,omitempty"`
	Footer string `json:"footer,omitempty"`
}
