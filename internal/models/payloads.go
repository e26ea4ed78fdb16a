package models

// These structs define the JSON payloads exchanged between the browser page
// and the page host functions.

// GenerateRequest is the JSON form of a submission. Multipart submissions
// carry the same fields as form values.
type GenerateRequest struct {
	Text string `json:"text"`
}

// EditRequest replaces the result document with user-edited Markdown.
type EditRequest struct {
	Content string `json:"content"`
}

// AttachmentsResponse is returned after files are added to or removed from the form.
type AttachmentsResponse struct {
	Added   int                 `json:"added"`
	Pending []PendingAttachment `json:"pending"`
}

// ExportFailureResponse carries the single alert raised by a failed export.
type ExportFailureResponse struct {
	Status string `json:"status"`
	Alert  string `json:"alert"`
}

// ErrorResponse is the body of any rejected request.
type ErrorResponse struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}
