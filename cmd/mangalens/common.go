package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okibee/mangalens/internal/analyzer"
	"github.com/okibee/mangalens/internal/auth"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/language"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/metadata"
	"github.com/okibee/mangalens/internal/provider"
	"golang.org/x/term"
)

var (
	isTerminal   = term.IsTerminal
	getKey       = auth.GetKey
	getEnvKey    = auth.GetEnvKey
	getStatus    = auth.GetStatus
	promptForKey = auth.PromptForAPIKey
)

func serviceLabel(service string) string {
	switch service {
	case auth.ServiceOpenAI:
		return "OpenAI"
	case auth.ServiceCustom:
		return "Custom endpoint"
	default:
		return "Gemini"
	}
}

// resolveAPIKey handles the logic for finding an API key: keychain first,
// then (when allowed) environment, then a terminal prompt.
func resolveAPIKey(service string, allowEnv, envOnly bool) (string, string, error) {
	if envOnly {
		if key, ok := getEnvKey(service); ok {
			return key, "Environment Variable", nil
		}
		return "", "", fmt.Errorf("env-only set but %s is not set", auth.EnvVarName(service))
	}

	if key, source := getKey(service, false); key != "" {
		return key, source, nil
	}

	if allowEnv {
		if key, ok := getEnvKey(service); ok {
			return key, "Environment Variable", nil
		}
	}

	if isTerminal(int(os.Stdin.Fd())) {
		key, err := promptForKey(fmt.Sprintf("%s API Key (press Enter to skip): ", serviceLabel(service)))
		if err != nil {
			return "", "", fmt.Errorf("error reading API key: %w", err)
		}
		if strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), "Terminal Prompt", nil
		}
	}

	if !isTerminal(int(os.Stdin.Fd())) {
		return "", "", fmt.Errorf("no API key available (non-interactive shell); set keychain or use --allow-env")
	}
	if allowEnv {
		return "", "", fmt.Errorf("API key is required; not found in keychain or environment")
	}
	return "", "", fmt.Errorf("API key is required; not found in keychain (environment disabled by default; use --allow-env)")
}

// fillAPIKeys resolves credentials for every provider the config would
// use. Only the primary may prompt; fallback providers are filled from the
// keychain or environment and silently skipped when nothing is found.
func fillAPIKeys(cfg *config.Config, allowEnv, envOnly bool) error {
	apply := func(p config.Provider, key string) {
		switch p {
		case config.ProviderGemini:
			cfg.Gemini.APIKey = key
		case config.ProviderOpenAI:
			cfg.OpenAI.APIKey = key
		case config.ProviderCustom:
			cfg.Custom.APIKey = key
		}
	}

	for i, p := range cfg.FallbackOrder() {
		if cfg.Settings(p).APIKey != "" {
			continue
		}
		if i == 0 {
			key, source, err := resolveAPIKey(string(p), allowEnv, envOnly)
			if err != nil {
				return err
			}
			logger.Info("Using API Key", "service", p, "source", source)
			apply(p, key)
			continue
		}
		if key, source := getKey(string(p), allowEnv || envOnly); key != "" {
			logger.Info("Using fallback API Key", "service", p, "source", source)
			apply(p, key)
		}
	}
	return nil
}

func resolveSourceCode(input string) (string, error) {
	needle := strings.TrimSpace(input)
	if lang, ok := language.GetSource(needle); ok {
		return lang.Code, nil
	}
	for _, entry := range language.SupportedSources() {
		if strings.EqualFold(entry.Name, needle) {
			return entry.Code, nil
		}
	}
	return "", fmt.Errorf("unsupported source language: %s", input)
}

func resolveTargetCode(input string) (string, error) {
	needle := strings.TrimSpace(input)
	if lang, ok := language.GetTarget(needle); ok {
		return lang.Code, nil
	}
	for _, entry := range language.SupportedTargets() {
		if strings.EqualFold(entry.Name, needle) {
			return entry.Code, nil
		}
	}
	return "", fmt.Errorf("unsupported target language: %s", input)
}

// logProgress adapts analyzer progress events to log lines.
func logProgress(p analyzer.Progress) {
	switch p.State {
	case analyzer.StateCompleted:
		logger.Info("Page completed", "page", p.PageIndex+1, "total", p.TotalPages, "provider", p.Provider)
	case analyzer.StateRetrying:
		logger.Warn("Page retry", "page", p.PageIndex+1, "provider", p.Provider, "attempt", p.Attempt, "error", p.Error)
	case analyzer.StateFailed:
		logger.Error("Page failed", "page", p.PageIndex+1, "error", p.Error)
	}
}

func printUsageStats(usage provider.Usage, duration time.Duration, providerName, model string) {
	fmt.Println("\n--- Execution Stats ---")
	fmt.Printf("Time: %s\n", duration)
	fmt.Printf("Provider: %s\n", providerName)
	fmt.Printf("Model: %s\n", model)
	if usage.TotalTokens > 0 {
		fmt.Printf("Tokens: In=%d, Out=%d, Total=%d\n",
			usage.PromptTokens, usage.CompletionTokens, usage.TotalTokens)

		// Custom endpoints carry no pricing so no estimate is printed.
		var pricing metadata.Model
		var known bool
		switch providerName {
		case "gemini":
			pricing, known = metadata.GeminiPricing(model)
		case "openai":
			pricing, known = metadata.OpenAIPricing(model)
		default:
			return
		}
		cost := metadata.EstimateCost(pricing, usage.PromptTokens, usage.CompletionTokens)
		if known {
			fmt.Printf("Estimated Cost: $%.5f\n", cost)
		} else {
			fmt.Printf("Estimated Cost: $%.5f (default pricing for unknown model)\n", cost)
		}
	}
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Warn("Cancellation requested")
		cancel()
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}
