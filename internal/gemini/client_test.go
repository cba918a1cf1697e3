package gemini

import (
	"context"
	"sync"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"github.com/okibee/mangalens/internal/provider"
)

func TestImageFormat(t *testing.T) {
	cases := []struct {
		mime string
		want string
	}{
		{"image/png", "png"},
		{"image/jpeg", "jpeg"},
		{"image/webp", "webp"},
		{"", "png"},
		{"png", "png"},
	}
	for _, tc := range cases {
		if got := imageFormat(tc.mime); got != tc.want {
			t.Errorf("imageFormat(%q) = %q, want %q", tc.mime, got, tc.want)
		}
	}
}

func TestExtractResponseText(t *testing.T) {
	t.Run("NilResponse", func(t *testing.T) {
		_, err := extractResponseText(nil)
		if err == nil || err.Error() != "no response received from Gemini" {
			t.Fatalf("expected nil response error, got: %v", err)
		}
	})

	t.Run("EmptyCandidates", func(t *testing.T) {
		_, err := extractResponseText(&genai.GenerateContentResponse{})
		if err == nil || err.Error() != "no candidates returned from Gemini" {
			t.Fatalf("expected empty candidates error, got: %v", err)
		}
	})

	t.Run("NoParts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: nil}},
			},
		}
		_, err := extractResponseText(resp)
		if err == nil || err.Error() != "no text parts found in Gemini response" {
			t.Fatalf("expected no text parts error, got: %v", err)
		}
	})

	t.Run("NonTextParts", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{
					genai.Blob{MIMEType: "application/octet-stream", Data: []byte{0x01}},
				}}},
			},
		}
		_, err := extractResponseText(resp)
		if err == nil || err.Error() != "no text parts found in Gemini response" {
			t.Fatalf("expected no text parts error, got: %v", err)
		}
	})

	t.Run("MultiPartText", func(t *testing.T) {
		resp := &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{
				{Content: &genai.Content{Parts: []genai.Part{
					genai.Text(`{"original_text":`),
					genai.Text(`"猫"}`),
				}}},
			},
		}
		text, err := extractResponseText(resp)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if text != `{"original_text":"猫"}` {
			t.Fatalf("expected concatenated text, got: %q", text)
		}
	})
}

func TestAnalyze_ConcurrentCalls(t *testing.T) {
	c, err := NewClient(context.Background(), "test-key", "gemini-3-flash-preview")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer c.Close()

	// Canceled context makes every call fail fast without reaching the
	// network; the point is that parallel calls do not trip the race
	// detector on shared request configuration.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Analyze(ctx, provider.Request{
				Image:           []byte{0x89, 'P', 'N', 'G'},
				MIMEType:        "image/png",
				Prompt:          "analyze this page",
				System:          "you analyze manga pages",
				MaxOutputTokens: 4096,
				Temperature:     0.2,
			})
			if err == nil {
				t.Error("expected error from canceled context")
			}
		}()
	}
	wg.Wait()
}
