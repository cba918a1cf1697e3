// Package metadata is the catalog of known vision models and their pricing.
// Custom endpoints carry no pricing; costs are only estimated for the two
// hosted providers.
package metadata

type Model struct {
	ID               string
	Label            string
	Provider         string
	InputPerMillion  float64
	OutputPerMillion float64
}

var GeminiModels = []Model{
	{
		ID:               "gemini-3-flash-preview",
		Label:            "Gemini 3 Flash (preview)",
		Provider:         "gemini",
		InputPerMillion:  0.50,
		OutputPerMillion: 3.00,
	},
	{
		ID:               "gemini-3-pro-preview",
		Label:            "Gemini 3 Pro (preview)",
		Provider:         "gemini",
		InputPerMillion:  2.00,
		OutputPerMillion: 12.00,
	},
}

var OpenAIModels = []Model{
	{
		ID:               "gpt-5.2",
		Label:            "GPT-5.2",
		Provider:         "openai",
		InputPerMillion:  1.75,
		OutputPerMillion: 14.00,
	},
	{
		ID:               "gpt-5.2-mini",
		Label:            "GPT-5.2 mini",
		Provider:         "openai",
		InputPerMillion:  0.45,
		OutputPerMillion: 3.60,
	},
}

const (
	DefaultGeminiModel = "gemini-3-flash-preview"
	DefaultOpenAIModel = "gpt-5.2-mini"

	DefaultOpenAIInputPerMillion  = 2.50
	DefaultOpenAIOutputPerMillion = 10.00
	DefaultGeminiInputPerMillion  = 2.00
	DefaultGeminiOutputPerMillion = 12.00
)

func modelIDs(models []Model) []string {
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return ids
}

func GeminiModelIDs() []string {
	return modelIDs(GeminiModels)
}

func OpenAIModelIDs() []string {
	return modelIDs(OpenAIModels)
}

// GeminiPricing returns catalog pricing for modelID, or a default estimate
// (second return false) for unknown models.
func GeminiPricing(modelID string) (Model, bool) {
	for _, m := range GeminiModels {
		if m.ID == modelID {
			return m, true
		}
	}
	return Model{
		ID:               "default",
		Label:            "Default Gemini",
		Provider:         "gemini",
		InputPerMillion:  DefaultGeminiInputPerMillion,
		OutputPerMillion: DefaultGeminiOutputPerMillion,
	}, false
}

// OpenAIPricing returns catalog pricing for modelID, or a default estimate
// (second return false) for unknown models.
func OpenAIPricing(modelID string) (Model, bool) {
	for _, m := range OpenAIModels {
		if m.ID == modelID {
			return m, true
		}
	}
	return Model{
		ID:               "default",
		Label:            "Default OpenAI",
		Provider:         "openai",
		InputPerMillion:  DefaultOpenAIInputPerMillion,
		OutputPerMillion: DefaultOpenAIOutputPerMillion,
	}, false
}

// EstimateCost returns the dollar cost of a token count for a model.
func EstimateCost(m Model, promptTokens, completionTokens int) float64 {
	return float64(promptTokens)/1e6*m.InputPerMillion +
		float64(completionTokens)/1e6*m.OutputPerMillion
}
