package analyzer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/apperrors"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/imaging"
	"github.com/okibee/mangalens/internal/language"
	"github.com/okibee/mangalens/internal/provider"
)

const validReply = `{"original_text":"猫が好き","translation":"I like cats","vocabulary":[{"word":"猫","reading":"ねこ","meaning":"cat","part_of_speech":"noun","difficulty":1}]}`

func testOptions() Options {
	src, _ := language.GetSource("ja")
	tgt, _ := language.GetTarget("en")
	return Options{
		Features:          config.Features{Vocabulary: true, Grammar: true, Translation: true, Fallback: true},
		Source:            src,
		Target:            tgt,
		RequestTimeout:    30 * time.Second,
		MaxAttempts:       1,
		TimeoutEscalation: 1.5,
		Concurrency:       2,
	}
}

func testPage() *imaging.Page {
	return &imaging.Page{Path: "page1.png", Data: []byte{0x89, 0x50}, MIMEType: "image/png"}
}

func okResponse(model string) *provider.Response {
	return &provider.Response{
		Text:  validReply,
		Model: model,
		Usage: provider.Usage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150},
	}
}

func TestAnalyzePage_Primary(t *testing.T) {
	primary := &provider.MockClient{NameValue: "gemini", Response: okResponse("gemini-3-flash-preview")}
	backup := &provider.MockClient{NameValue: "openai"}

	a, err := New([]provider.Client{primary, backup}, testOptions())
	if err != nil {
		t.Fatal(err)
	}

	result, err := a.AnalyzePage(context.Background(), testPage(), nil)
	if err != nil {
		t.Fatalf("AnalyzePage() error = %v", err)
	}
	if result.OriginalText != "猫が好き" {
		t.Errorf("OriginalText = %q", result.OriginalText)
	}
	if result.Provenance.Provider != "gemini" || result.Provenance.Model != "gemini-3-flash-preview" {
		t.Errorf("Provenance = %+v", result.Provenance)
	}
	if result.Provenance.Source != analysis.SourceModel {
		t.Errorf("Source = %q, want %q", result.Provenance.Source, analysis.SourceModel)
	}
	if backup.Calls != 0 {
		t.Errorf("backup called %d times, want 0", backup.Calls)
	}
	if got := a.Usage(); got.TotalTokens != 150 {
		t.Errorf("Usage().TotalTokens = %d, want 150", got.TotalTokens)
	}

	if !strings.Contains(primary.LastRequest.System, "vocabulary") {
		t.Errorf("system prompt missing vocabulary schema: %q", primary.LastRequest.System)
	}
}

func TestAnalyzePage_FallsBackToNextProvider(t *testing.T) {
	primary := &provider.MockClient{
		NameValue: "gemini",
		Error:     apperrors.Auth(errors.New("401 invalid key")),
	}
	backup := &provider.MockClient{NameValue: "openai", Response: okResponse("gpt-5.2-mini")}

	a, _ := New([]provider.Client{primary, backup}, testOptions())
	result, err := a.AnalyzePage(context.Background(), testPage(), nil)
	if err != nil {
		t.Fatalf("AnalyzePage() error = %v", err)
	}
	if result.Provenance.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", result.Provenance.Provider)
	}
	if primary.Calls != 1 {
		t.Errorf("primary called %d times, want 1 (auth errors should not retry)", primary.Calls)
	}
}

func TestAnalyzePage_RetriesTransient(t *testing.T) {
	calls := 0
	primary := &provider.MockClient{
		NameValue: "gemini",
		AnalyzeFunc: func(ctx context.Context, req provider.Request) (*provider.Response, error) {
			calls++
			if calls == 1 {
				return nil, apperrors.Transient(errors.New("503"))
			}
			return okResponse("gemini-3-flash-preview"), nil
		},
	}

	opts := testOptions()
	opts.MaxAttempts = 2
	a, _ := New([]provider.Client{primary}, opts)

	start := time.Now()
	result, err := a.AnalyzePage(context.Background(), testPage(), nil)
	if err != nil {
		t.Fatalf("AnalyzePage() error = %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
	if elapsed := time.Since(start); elapsed < time.Second {
		t.Errorf("no backoff observed before retry: %s", elapsed)
	}
	if result.Provenance.Source != analysis.SourceModel {
		t.Errorf("Source = %q", result.Provenance.Source)
	}
}

func TestAnalyzePage_UnparseableFallsBackToRawText(t *testing.T) {
	primary := &provider.MockClient{
		NameValue: "gemini",
		Response:  &provider.Response{Text: "I cannot analyze this image, sorry.", Model: "gemini-3-flash-preview"},
	}

	a, _ := New([]provider.Client{primary}, testOptions())
	result, err := a.AnalyzePage(context.Background(), testPage(), nil)
	if err != nil {
		t.Fatalf("AnalyzePage() error = %v, want fallback result", err)
	}
	if result.Provenance.Source != analysis.SourceFallback {
		t.Errorf("Source = %q, want %q", result.Provenance.Source, analysis.SourceFallback)
	}
	if !strings.Contains(result.OriginalText, "cannot analyze") {
		t.Errorf("fallback lost the raw reply: %q", result.OriginalText)
	}
	if result.Provenance.Provider != "gemini" {
		t.Errorf("Provider = %q", result.Provenance.Provider)
	}
}

func TestAnalyzePage_AllProvidersFail(t *testing.T) {
	primary := &provider.MockClient{NameValue: "gemini", Error: apperrors.Auth(errors.New("401"))}
	backup := &provider.MockClient{NameValue: "openai", Error: apperrors.BadRequest(errors.New("400"))}

	a, _ := New([]provider.Client{primary, backup}, testOptions())
	result, err := a.AnalyzePage(context.Background(), testPage(), nil)
	if err == nil {
		t.Fatalf("AnalyzePage() = %+v, want error", result)
	}
	if kind, _ := apperrors.KindOf(err); kind != apperrors.KindBadRequest {
		t.Errorf("kind = %q, want last provider's error", kind)
	}
}

func TestAnalyzePage_Progress(t *testing.T) {
	primary := &provider.MockClient{NameValue: "gemini", Response: okResponse("m")}
	a, _ := New([]provider.Client{primary}, testOptions())

	var states []State
	_, err := a.AnalyzePage(context.Background(), testPage(), func(p Progress) {
		states = append(states, p.State)
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []State{StateStarted, StateCompleted}
	if len(states) != len(want) || states[0] != want[0] || states[1] != want[1] {
		t.Errorf("states = %v, want %v", states, want)
	}
}

func TestAnalyzeReading(t *testing.T) {
	reply := `{"words":[{"x":0.1,"y":0.2,"width":0.05,"height":0.1,"text":"猫","reading":"ねこ","meaning":"cat"}],"sentences":[]}`
	primary := &provider.MockClient{NameValue: "gemini", Response: &provider.Response{Text: reply, Model: "m"}}

	a, _ := New([]provider.Client{primary}, testOptions())
	result, err := a.AnalyzeReading(context.Background(), testPage(), nil)
	if err != nil {
		t.Fatalf("AnalyzeReading() error = %v", err)
	}
	if len(result.Words) != 1 || result.Words[0].Text != "猫" {
		t.Errorf("Words = %+v", result.Words)
	}
	if result.Provenance.Provider != "gemini" {
		t.Errorf("Provider = %q", result.Provenance.Provider)
	}
}

func TestAnalyzeReading_NoRawTextFallback(t *testing.T) {
	primary := &provider.MockClient{NameValue: "gemini", Response: &provider.Response{Text: "no json here", Model: "m"}}

	a, _ := New([]provider.Client{primary}, testOptions())
	if _, err := a.AnalyzeReading(context.Background(), testPage(), nil); err == nil {
		t.Fatal("AnalyzeReading() succeeded on unparseable reply, want error")
	}
}

func TestAnalyzePage_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	primary := &provider.MockClient{
		NameValue: "gemini",
		AnalyzeFunc: func(ctx context.Context, req provider.Request) (*provider.Response, error) {
			return nil, ctx.Err()
		},
	}
	a, _ := New([]provider.Client{primary}, testOptions())
	if _, err := a.AnalyzePage(ctx, testPage(), nil); err == nil {
		t.Fatal("AnalyzePage() succeeded on canceled context")
	}
	if primary.Calls > 1 {
		t.Errorf("canceled context retried: %d calls", primary.Calls)
	}
}

func TestAnalyzePage_FallbackStartedEventHasNoError(t *testing.T) {
	primary := &provider.MockClient{
		NameValue: "gemini",
		Error:     apperrors.Auth(errors.New("401 invalid key")),
	}
	backup := &provider.MockClient{NameValue: "openai", Response: okResponse("gpt-5.2-mini")}

	a, _ := New([]provider.Client{primary, backup}, testOptions())
	var events []Progress
	_, err := a.AnalyzePage(context.Background(), testPage(), func(p Progress) {
		events = append(events, p)
	})
	if err != nil {
		t.Fatalf("AnalyzePage() error = %v", err)
	}

	for _, e := range events {
		if e.State == StateStarted && e.Error != nil {
			t.Errorf("started event for %s carries error %v", e.Provider, e.Error)
		}
	}
}
