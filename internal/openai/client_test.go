package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okibee/mangalens/internal/apperrors"
	"github.com/okibee/mangalens/internal/provider"
)

var testRequest = provider.Request{
	Image:    []byte{0xFF, 0xD8, 0xFF, 0xE0},
	MIMEType: "image/jpeg",
	Prompt:   "Analyze this page.",
	System:   "You are a manga reading assistant.",
}

func TestClient_Analyze(t *testing.T) {
	var captured requestData
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprint(w, `{
			"id": "chatcmpl-1",
			"model": "test-model-0613",
			"choices": [{"message": {"content": "{\"original_text\":\"猫\"}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 800, "completion_tokens": 50, "total_tokens": 850}
		}`)
	}))
	defer server.Close()

	client := NewCustomClient("test-key", "test-model", server.URL)
	resp, err := client.Analyze(context.Background(), testRequest)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if resp.Text != `{"original_text":"猫"}` {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.Model != "test-model-0613" {
		t.Errorf("Model = %q", resp.Model)
	}
	if resp.Usage.TotalTokens != 850 {
		t.Errorf("TotalTokens = %d", resp.Usage.TotalTokens)
	}

	if len(captured.Messages) != 2 {
		t.Fatalf("got %d messages, want system + user", len(captured.Messages))
	}
	raw, _ := json.Marshal(captured.Messages[1].Content)
	if !strings.Contains(string(raw), "data:image/jpeg;base64,") {
		t.Errorf("user message missing image data URI: %s", raw)
	}
}

func TestClient_Analyze_Errors(t *testing.T) {
	tests := []struct {
		name           string
		status         int
		responseBody   string
		expectedKind   apperrors.Kind
		expectedErrMsg string
		sensitiveMark  string
	}{
		{
			name:           "429 Too Many Requests",
			status:         http.StatusTooManyRequests,
			responseBody:   `{"error": {"message": "Rate limit reached: SECRET_PAGE_TEXT", "type": "rate_limit_error", "code": "rate_limit_exceeded"}}`,
			expectedKind:   apperrors.KindRateLimit,
			expectedErrMsg: "rate limit exceeded (429)",
			sensitiveMark:  "SECRET_PAGE_TEXT",
		},
		{
			name:           "401 Unauthorized",
			status:         http.StatusUnauthorized,
			responseBody:   `{"error": {"message": "Invalid API Key: SECRET_PAGE_TEXT", "type": "auth_error"}}`,
			expectedKind:   apperrors.KindAuth,
			expectedErrMsg: "authentication/authorization failed (401)",
			sensitiveMark:  "SECRET_PAGE_TEXT",
		},
		{
			name:           "403 Forbidden",
			status:         http.StatusForbidden,
			responseBody:   "restricted SECRET_PAGE_TEXT",
			expectedKind:   apperrors.KindAuth,
			expectedErrMsg: "authentication/authorization failed (403)",
			sensitiveMark:  "SECRET_PAGE_TEXT",
		},
		{
			name:           "404 model not found",
			status:         http.StatusNotFound,
			responseBody:   `{"error": {"message": "The model does not exist or you do not have access to it.", "code": "model_not_found"}}`,
			expectedKind:   apperrors.KindBadRequest,
			expectedErrMsg: "The model does not exist",
		},
		{
			name:           "500 Internal Server Error",
			status:         http.StatusInternalServerError,
			responseBody:   "server down SECRET_PAGE_TEXT",
			expectedKind:   apperrors.KindTransient,
			expectedErrMsg: "server error (500)",
			sensitiveMark:  "SECRET_PAGE_TEXT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.responseBody)
			}))
			defer server.Close()

			client := NewCustomClient("test-key", "test-model", server.URL)
			_, err := client.Analyze(context.Background(), testRequest)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if kind, ok := apperrors.KindOf(err); !ok || kind != tt.expectedKind {
				t.Errorf("KindOf = (%q, %v), want %q", kind, ok, tt.expectedKind)
			}
			if !strings.Contains(err.Error(), tt.expectedErrMsg) {
				t.Errorf("expected error message to contain %q, got %q", tt.expectedErrMsg, err.Error())
			}
			if tt.sensitiveMark != "" && strings.Contains(err.Error(), tt.sensitiveMark) {
				t.Errorf("expected error message to redact sensitive content, got %q", err.Error())
			}
		})
	}
}

func TestClient_Analyze_EmptyCompletion(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "chatcmpl-2", "choices": []}`)
	}))
	defer server.Close()

	client := NewCustomClient("test-key", "test-model", server.URL)
	_, err := client.Analyze(context.Background(), testRequest)
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
	if kind, _ := apperrors.KindOf(err); kind != apperrors.KindValidation {
		t.Errorf("kind = %q, want validation", kind)
	}
}

func TestClient_Analyze_RejectsEmptyImage(t *testing.T) {
	client := NewClient("test-key", "test-model")
	_, err := client.Analyze(context.Background(), provider.Request{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for missing image")
	}
	if kind, _ := apperrors.KindOf(err); kind != apperrors.KindBadRequest {
		t.Errorf("kind = %q, want bad_request", kind)
	}
}
