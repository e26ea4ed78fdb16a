package models

// ViewState names the page the user is looking at.
type ViewState string

const (
	ViewForm    ViewState = "form"
	ViewLoading ViewState = "loading"
	ViewResult  ViewState = "result"
)

// PendingAttachment is an attachment waiting in the form with its encode progress.
type PendingAttachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MIMEType string `json:"mimeType"`
	Kind     string `json:"kind"`
	Size     int64  `json:"size"`
	Progress int    `json:"progress"`
}

// View is a snapshot of the controller state.
type View struct {
	State          ViewState           `json:"view"`
	Error          string              `json:"error,omitempty"`
	Content        string              `json:"prdContent,omitempty"`
	LoadingMessage string              `json:"loadingMessage,omitempty"`
	Attachments    []PendingAttachment `json:"attachments,omitempty"`
}
