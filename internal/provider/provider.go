// Package provider defines the interface implemented by the vision model
// backends and the request/response types they share.
package provider

import "context"

// Request is an analysis request for one page image.
type Request struct {
	// Image is the raw encoded page image (png/jpeg/webp).
	Image []byte
	// MIMEType is the sniffed content type of Image.
	MIMEType string
	// Prompt is the user-turn instruction describing the task and the
	// required JSON shape.
	Prompt string
	// System is the optional system instruction.
	System string
	// MaxOutputTokens caps the reply length. 0 means provider default.
	MaxOutputTokens int
	// Temperature controls sampling. Analysis wants determinism, so
	// callers usually pass a small value.
	Temperature float32
}

// Usage holds token accounting for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add accumulates usage across requests.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Response is the raw reply of a vision model.
type Response struct {
	// Text is the unparsed reply blob. Parsing and repair happen in
	// llmjson, not here.
	Text string
	// Model is the concrete model that answered, when reported.
	Model string
	Usage Usage
}

// Client is implemented by each vision model backend.
type Client interface {
	// Name returns the provider identifier (gemini, openai, custom).
	Name() string
	// Analyze sends one page image with its instruction prompt and
	// returns the raw reply. Errors are apperrors-classified.
	Analyze(ctx context.Context, req Request) (*Response, error)
	// Close releases underlying connections.
	Close() error
}
