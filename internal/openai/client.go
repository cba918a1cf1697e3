// Package openai implements the OpenAI-compatible vision backend. The same
// client serves the custom provider: any Chat Completions compatible
// endpoint works by overriding the base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/okibee/mangalens/internal/apperrors"
	"github.com/okibee/mangalens/internal/httpclient"
	"github.com/okibee/mangalens/internal/provider"
)

// requestData is the Chat Completions request body.
type requestData struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type message struct {
	Role string `json:"role"`
	// Content is a plain string for system messages and a part list for
	// the user message carrying the image.
	Content any `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// responseData is the simplified Chat Completions response body.
type responseData struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
	Usage   usage    `json:"usage"`
}

type choice struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorEnvelope struct {
	Error errorDetails `json:"error"`
}

type errorDetails struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"`
}

func (e errorDetails) codeString() string {
	if e.Code == nil {
		return ""
	}
	return fmt.Sprint(e.Code)
}

// Client handles communication with an OpenAI-compatible API.
type Client struct {
	name    string
	apiKey  string
	model   string
	baseURL string
}

var _ provider.Client = (*Client)(nil)

// NewClient creates a client for the official OpenAI endpoint.
func NewClient(apiKey, model string) *Client {
	return &Client{
		name:    "openai",
		apiKey:  apiKey,
		model:   model,
		baseURL: "https://api.openai.com/v1",
	}
}

// NewCustomClient creates a client for a user-supplied OpenAI-compatible
// endpoint. baseURL is the prefix before /chat/completions.
func NewCustomClient(apiKey, model, baseURL string) *Client {
	return &Client{
		name:    "custom",
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Name implements provider.Client.
func (c *Client) Name() string {
	return c.name
}

// Close implements provider.Client. The shared HTTP client owns the
// connections, so there is nothing to release here.
func (c *Client) Close() error {
	return nil
}

// Analyze sends a page image with its instruction prompt and returns the
// raw reply text. JSON parsing happens downstream.
func (c *Client) Analyze(ctx context.Context, req provider.Request) (*provider.Response, error) {
	if len(req.Image) == 0 {
		return nil, apperrors.New(apperrors.KindBadRequest, "no image data in request", nil)
	}

	body := requestData{
		Model:       c.model,
		MaxTokens:   req.MaxOutputTokens,
		Temperature: req.Temperature,
		// json_object mode is widely supported by compatible endpoints;
		// the parser copes when a server ignores it.
		ResponseFormat: &responseFormat{Type: "json_object"},
	}
	if req.System != "" {
		body.Messages = append(body.Messages, message{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, message{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: req.Prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: dataURI(req.MIMEType, req.Image)}},
		},
	})

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	client := httpclient.GetDefaultClient()
	respBody, resp, err := httpclient.DoAndRead(client, httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.New(
			apperrors.KindTransient,
			providerLabel(c.name)+" request failed due to a temporary network/runtime error.",
			fmt.Errorf("request failed: %w", err),
		)
	}

	if resp.StatusCode != http.StatusOK {
		details := parseErrorDetails(respBody)
		return nil, c.classifyError(resp.StatusCode, resp.Status, details)
	}

	var result responseData
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, apperrors.New(
			apperrors.KindValidation,
			providerLabel(c.name)+" response format was invalid.",
			fmt.Errorf("failed to decode response: %w", err),
		)
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return nil, apperrors.New(
			apperrors.KindValidation,
			providerLabel(c.name)+" returned an empty completion.",
			fmt.Errorf("no choices in response id=%s", result.ID),
		)
	}

	slog.Debug("chat completion received",
		"provider", c.name,
		"status", resp.Status,
		"usage_total", result.Usage.TotalTokens,
		"finish_reason", result.Choices[0].FinishReason,
	)

	model := result.Model
	if model == "" {
		model = c.model
	}
	return &provider.Response{
		Text:  result.Choices[0].Message.Content,
		Model: model,
		Usage: provider.Usage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		},
	}, nil
}

func dataURI(mimeType string, data []byte) string {
	if mimeType == "" {
		mimeType = "image/png"
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func providerLabel(name string) string {
	if name == "custom" {
		return "Custom endpoint"
	}
	return "OpenAI"
}

func parseErrorDetails(body []byte) errorDetails {
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return errorDetails{}
	}
	return envelope.Error
}

func (c *Client) classifyError(statusCode int, status string, details errorDetails) error {
	label := providerLabel(c.name)
	cause := fmt.Errorf("%s status=%s type=%s code=%s message=%s",
		c.name, status, details.Type, details.codeString(), details.Message)

	switch statusCode {
	case http.StatusTooManyRequests:
		return apperrors.New(
			apperrors.KindRateLimit,
			label+" rate limit exceeded (429): please try again later.",
			cause,
		)
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.New(
			apperrors.KindAuth,
			fmt.Sprintf("%s authentication/authorization failed (%d): please verify your API key and permissions.", label, statusCode),
			cause,
		)
	case http.StatusNotFound:
		if isModelNotFound(details) {
			return apperrors.New(
				apperrors.KindBadRequest,
				"The model does not exist or you do not have access to it.",
				cause,
			)
		}
		return apperrors.New(
			apperrors.KindBadRequest,
			label+" resource not found (404).",
			cause,
		)
	default:
		if statusCode >= 500 {
			return apperrors.New(
				apperrors.KindTransient,
				fmt.Sprintf("%s server error (%d): please try again later.", label, statusCode),
				cause,
			)
		}
		return apperrors.New(
			apperrors.KindBadRequest,
			fmt.Sprintf("%s API error (%d): %s", label, statusCode, status),
			cause,
		)
	}
}

func isModelNotFound(details errorDetails) bool {
	needle := strings.ToLower(details.codeString() + " " + details.Type + " " + details.Message)
	if strings.Contains(needle, "model_not_found") {
		return true
	}
	return strings.Contains(needle, "does not exist or you do not have access to it")
}
