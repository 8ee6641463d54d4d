package image

import "context"

// Reference is one inline reference image sent along with the prompt.
type Reference struct {
	MIMEType string
	Data     []byte
}

// GenerateRequest is the provider-neutral description of one render call.
type GenerateRequest struct {
	Prompt      string
	References  []Reference
	AspectRatio string
	Resolution  string
	Model       string
	RequestID   string
}

// Result is the produced image.
type Result struct {
	Data     []byte
	MIMEType string
}

// Generator renders one image from a prompt plus reference images. The call
// may block for the full duration of the provider-side work; the caller bounds
// it with a context deadline.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Result, error)
}
