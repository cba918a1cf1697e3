package metadata

import (
	"math"
	"testing"
)

func TestGeminiPricing_Default(t *testing.T) {
	m, ok := GeminiPricing("unknown-model")
	if ok {
		t.Fatalf("expected default pricing for unknown model")
	}
	if m.InputPerMillion != DefaultGeminiInputPerMillion || m.OutputPerMillion != DefaultGeminiOutputPerMillion {
		t.Fatalf("unexpected default gemini pricing: %+v", m)
	}
}

func TestOpenAIPricing_Default(t *testing.T) {
	m, ok := OpenAIPricing("unknown-model")
	if ok {
		t.Fatalf("expected default pricing for unknown model")
	}
	if m.InputPerMillion != DefaultOpenAIInputPerMillion || m.OutputPerMillion != DefaultOpenAIOutputPerMillion {
		t.Fatalf("unexpected default openai pricing: %+v", m)
	}
}

func TestPricing_CatalogHit(t *testing.T) {
	m, ok := GeminiPricing(DefaultGeminiModel)
	if !ok {
		t.Fatalf("expected catalog hit for %s", DefaultGeminiModel)
	}
	if m.Provider != "gemini" {
		t.Errorf("provider = %q", m.Provider)
	}
}

func TestEstimateCost(t *testing.T) {
	m := Model{InputPerMillion: 2.0, OutputPerMillion: 10.0}
	got := EstimateCost(m, 1_000_000, 500_000)
	if math.Abs(got-7.0) > 1e-9 {
		t.Fatalf("EstimateCost = %v, want 7.0", got)
	}
}
