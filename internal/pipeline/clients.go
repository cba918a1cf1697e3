package pipeline

import (
	"context"
	"fmt"

	"github.com/okibee/mangalens/internal/analyzer"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/gemini"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/openai"
	"github.com/okibee/mangalens/internal/provider"
)

// buildClients creates one provider client per entry of the config's
// fallback order. The returned closer releases all of them.
func buildClients(ctx context.Context, cfg config.Config) ([]provider.Client, func(), error) {
	var clients []provider.Client
	closeAll := func() {
		for _, c := range clients {
			if err := c.Close(); err != nil {
				logger.Warn("Failed to close provider client", "provider", c.Name(), "error", err)
			}
		}
	}

	for _, p := range cfg.FallbackOrder() {
		settings := cfg.Settings(p)
		var client provider.Client
		var err error
		switch p {
		case config.ProviderGemini:
			client, err = gemini.NewClient(ctx, settings.APIKey, settings.Model)
		case config.ProviderOpenAI:
			client = openai.NewClient(settings.APIKey, settings.Model)
		case config.ProviderCustom:
			client = openai.NewCustomClient(settings.APIKey, settings.Model, settings.BaseURL)
		default:
			err = fmt.Errorf("unknown provider %q", p)
		}
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("failed to create %s client: %w", p, err)
		}
		clients = append(clients, client)
	}
	if len(clients) == 0 {
		return nil, nil, fmt.Errorf("no providers configured")
	}
	return clients, closeAll, nil
}

// newAnalyzer builds the orchestrator from the config and glossary.
func newAnalyzer(cfg config.Config, clients []provider.Client, names map[string]string) (*analyzer.Analyzer, error) {
	src, _ := cfg.SourceLanguage()
	tgt, _ := cfg.TargetLanguage()
	return analyzer.New(clients, analyzer.Options{
		Features:          cfg.Features,
		Source:            src,
		Target:            tgt,
		RequestTimeout:    cfg.RequestTimeout,
		MaxAttempts:       cfg.MaxAttempts,
		TimeoutEscalation: cfg.TimeoutEscalation,
		Concurrency:       cfg.Concurrency,
		MaxOutputTokens:   cfg.MaxOutputTokens,
		Temperature:       cfg.Temperature,
		Names:             names,
	})
}
