// Package gemini implements the Gemini vision backend.
package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/okibee/mangalens/internal/apperrors"
	"github.com/okibee/mangalens/internal/httpclient"
	"github.com/okibee/mangalens/internal/provider"
)

// Client handles communication with the Gemini API.
type Client struct {
	client    *genai.Client
	modelName string
}

var _ provider.Client = (*Client)(nil)

// NewClient creates a new Gemini client.
func NewClient(ctx context.Context, apiKey string, modelName string) (*Client, error) {
	// Note: We avoid using option.WithHTTPClient because it interferes with the genai library's
	// internal header injection for API keys, causing 403 errors.
	// Instead, we enforce timeouts via context in the Analyze method.
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}

	return &Client{
		client:    client,
		modelName: modelName,
	}, nil
}

// Name implements provider.Client.
func (c *Client) Name() string {
	return "gemini"
}

// Close closes the underlying genai client.
func (c *Client) Close() error {
	return c.client.Close()
}

// Analyze sends a page image with its instruction prompt to Gemini and
// returns the raw reply text. JSON parsing happens downstream.
func (c *Client) Analyze(ctx context.Context, req provider.Request) (*provider.Response, error) {
	// Enforce default timeout to prevent indefinite hangs, since we are not
	// using a custom HTTP client with timeout.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, httpclient.DefaultTimeout)
		defer cancel()
	}

	if len(req.Image) == 0 {
		return nil, apperrors.New(apperrors.KindBadRequest, "no image data in request", nil)
	}

	// A fresh GenerativeModel per request keeps Analyze safe for
	// concurrent use; the batch worker pool shares one Client.
	model := c.client.GenerativeModel(c.modelName)
	model.ResponseMIMEType = "application/json"
	if req.System != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	if req.MaxOutputTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxOutputTokens))
	}
	model.SetTemperature(req.Temperature)

	parts := []genai.Part{
		genai.ImageData(imageFormat(req.MIMEType), req.Image),
		genai.Text(req.Prompt),
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyGeminiError(err)
	}

	text, err := extractResponseText(resp)
	if err != nil {
		return nil, apperrors.Validation(err)
	}

	out := &provider.Response{
		Text:  text,
		Model: c.modelName,
	}
	if resp.UsageMetadata != nil {
		out.Usage = provider.Usage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}

// imageFormat converts a MIME type to the bare format genai.ImageData expects.
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(mimeType, "image/")
	if format == "" {
		return "png"
	}
	return format
}

func extractResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", fmt.Errorf("no response received from Gemini")
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
			continue
		}
		var combined strings.Builder
		for _, part := range candidate.Content.Parts {
			text, ok := part.(genai.Text)
			if !ok {
				continue
			}
			combined.WriteString(string(text))
		}
		if combined.Len() > 0 {
			return combined.String(), nil
		}
	}
	return "", fmt.Errorf("no text parts found in Gemini response")
}
