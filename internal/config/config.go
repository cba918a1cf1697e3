// Package config holds the immutable analysis configuration: which provider
// is primary, per-provider credentials and models, feature toggles, and
// retry/timeout behavior. Values are loaded from YAML and overridden by
// CLI flags; once a run starts the Config is treated as read-only.
package config

import (
	"fmt"
	"time"

	"github.com/okibee/mangalens/internal/language"
)

// Provider identifies a vision backend.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	ProviderOpenAI Provider = "openai"
	ProviderCustom Provider = "custom"
)

// providerOrder is the fixed fallback priority after the primary.
var providerOrder = []Provider{ProviderGemini, ProviderOpenAI, ProviderCustom}

// ProviderSettings carries the credentials and model for one backend.
type ProviderSettings struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
	// BaseURL is only honored for the custom provider.
	BaseURL string `yaml:"base_url"`
}

// Configured reports whether this backend has enough settings to be used.
func (p ProviderSettings) Configured() bool {
	return p.APIKey != "" && p.Model != ""
}

// Features are the analysis content toggles.
type Features struct {
	Vocabulary  bool `yaml:"vocabulary"`
	Grammar     bool `yaml:"grammar"`
	Translation bool `yaml:"translation"`
	// Fallback enables trying other configured providers when the
	// primary fails.
	Fallback bool `yaml:"fallback"`
}

// Config is the full analysis configuration.
type Config struct {
	Primary Provider `yaml:"primary"`

	Gemini ProviderSettings `yaml:"gemini"`
	OpenAI ProviderSettings `yaml:"openai"`
	Custom ProviderSettings `yaml:"custom"`

	Features Features `yaml:"features"`

	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`

	// RequestTimeout bounds a single provider request. Successive retry
	// attempts multiply it by TimeoutEscalation.
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxAttempts       int           `yaml:"max_attempts"`
	TimeoutEscalation float64       `yaml:"timeout_escalation"`

	MaxOutputTokens int     `yaml:"max_output_tokens"`
	Temperature     float32 `yaml:"temperature"`

	// Concurrency is the batch worker count.
	Concurrency int `yaml:"concurrency"`

	// ReadingOrder is "rtl" (manga default) or "ltr".
	ReadingOrder string `yaml:"reading_order"`

	// NamesPath points to an optional character name glossary file.
	NamesPath string `yaml:"names"`
}

const (
	MinAttempts    = 1
	MaxAttemptsCap = 10

	MinConcurrency = 1
	MaxConcurrency = 8

	MinEscalation = 1.0
	MaxEscalation = 4.0

	// MaxOutputTokensCap stays well inside int32 range; the Gemini API
	// takes the limit as an int32.
	MinOutputTokens    = 64
	MaxOutputTokensCap = 32768

	MinRequestTimeout = 5 * time.Second
	MaxRequestTimeout = 10 * time.Minute
)

// Default returns the configuration used when no file and no flags are given.
func Default() Config {
	return Config{
		Primary: ProviderGemini,
		Features: Features{
			Vocabulary:  true,
			Grammar:     true,
			Translation: true,
			Fallback:    true,
		},
		SourceLang:        "ja",
		TargetLang:        "en",
		RequestTimeout:    90 * time.Second,
		MaxAttempts:       3,
		TimeoutEscalation: 1.5,
		MaxOutputTokens:   4096,
		Temperature:       0.2,
		Concurrency:       2,
		ReadingOrder:      "rtl",
	}
}

// Settings returns the ProviderSettings for p.
func (c Config) Settings(p Provider) ProviderSettings {
	switch p {
	case ProviderOpenAI:
		return c.OpenAI
	case ProviderCustom:
		return c.Custom
	default:
		return c.Gemini
	}
}

// SourceLanguage resolves the configured source language.
func (c Config) SourceLanguage() (language.Language, bool) {
	return language.GetSource(c.SourceLang)
}

// TargetLanguage resolves the configured target language.
func (c Config) TargetLanguage() (language.Language, bool) {
	return language.GetTarget(c.TargetLang)
}

// FallbackOrder returns the providers to try: the primary first, then the
// remaining configured providers in fixed priority order. With the fallback
// toggle off only the primary is returned.
func (c Config) FallbackOrder() []Provider {
	order := []Provider{c.Primary}
	if !c.Features.Fallback {
		return order
	}
	for _, p := range providerOrder {
		if p == c.Primary {
			continue
		}
		if c.Settings(p).Configured() {
			order = append(order, p)
		}
	}
	return order
}

// Normalize applies safe bounds to config values and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	clampInt := func(name string, v *int, min, max int) {
		if *v < min {
			notes = append(notes, fmt.Sprintf("%s raised from %d to %d", name, *v, min))
			*v = min
		} else if *v > max {
			notes = append(notes, fmt.Sprintf("%s clamped from %d to %d (max %d)", name, *v, max, max))
			*v = max
		}
	}
	clampInt("max-attempts", &c.MaxAttempts, MinAttempts, MaxAttemptsCap)
	clampInt("concurrency", &c.Concurrency, MinConcurrency, MaxConcurrency)
	clampInt("max-output-tokens", &c.MaxOutputTokens, MinOutputTokens, MaxOutputTokensCap)

	if c.TimeoutEscalation < MinEscalation {
		notes = append(notes, fmt.Sprintf("timeout-escalation raised from %g to %g", c.TimeoutEscalation, MinEscalation))
		c.TimeoutEscalation = MinEscalation
	} else if c.TimeoutEscalation > MaxEscalation {
		notes = append(notes, fmt.Sprintf("timeout-escalation clamped from %g to %g", c.TimeoutEscalation, MaxEscalation))
		c.TimeoutEscalation = MaxEscalation
	}

	if c.RequestTimeout < MinRequestTimeout {
		notes = append(notes, fmt.Sprintf("request-timeout raised from %s to %s", c.RequestTimeout, MinRequestTimeout))
		c.RequestTimeout = MinRequestTimeout
	} else if c.RequestTimeout > MaxRequestTimeout {
		notes = append(notes, fmt.Sprintf("request-timeout clamped from %s to %s", c.RequestTimeout, MaxRequestTimeout))
		c.RequestTimeout = MaxRequestTimeout
	}

	if c.ReadingOrder != "rtl" && c.ReadingOrder != "ltr" {
		notes = append(notes, fmt.Sprintf("reading-order %q replaced with rtl", c.ReadingOrder))
		c.ReadingOrder = "rtl"
	}
	return c, notes
}

// Validate checks that the configuration can actually run an analysis.
func (c Config) Validate() error {
	switch c.Primary {
	case ProviderGemini, ProviderOpenAI, ProviderCustom:
	default:
		return fmt.Errorf("unknown provider %q (want gemini, openai or custom)", c.Primary)
	}

	primary := c.Settings(c.Primary)
	if primary.APIKey == "" {
		return fmt.Errorf("API key is required for provider %s", c.Primary)
	}
	if primary.Model == "" {
		return fmt.Errorf("model is required for provider %s", c.Primary)
	}
	if c.Primary == ProviderCustom && c.Custom.BaseURL == "" {
		return fmt.Errorf("base URL is required for the custom provider")
	}

	if _, ok := language.GetSource(c.SourceLang); !ok {
		return fmt.Errorf("unsupported source language %q", c.SourceLang)
	}
	if _, ok := language.GetTarget(c.TargetLang); !ok {
		return fmt.Errorf("unsupported target language %q", c.TargetLang)
	}
	return nil
}
