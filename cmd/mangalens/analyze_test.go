package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/pipeline"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeStatusError(t *testing.T) {
	cases := []struct {
		name    string
		result  pipeline.Result
		wantErr string
	}{
		{
			name:    "success",
			result:  pipeline.Result{Status: pipeline.StatusSuccess},
			wantErr: "",
		},
		{
			name:    "skipped",
			result:  pipeline.Result{Status: pipeline.StatusSkipped},
			wantErr: "",
		},
		{
			name:    "partial_with_log",
			result:  pipeline.Result{Status: pipeline.StatusPartialSuccess, SessionLogPath: "/tmp/session.json"},
			wantErr: "analysis finished with status: Partial Success (session log: /tmp/session.json)",
		},
		{
			name:    "failure_without_log",
			result:  pipeline.Result{Status: pipeline.StatusFailure},
			wantErr: "analysis finished with status: Failure",
		},
		{
			name:    "unknown_status",
			result:  pipeline.Result{},
			wantErr: `analysis finished with unknown status: ""`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := analyzeStatusError(tc.result)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("expected nil error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error %q, got nil", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error = %q, want contains %q", err.Error(), tc.wantErr)
			}
		})
	}
}

func TestDeriveOutputPath(t *testing.T) {
	cases := []struct {
		input  string
		format string
		want   string
	}{
		{input: "/manga/chapter01", format: pipeline.FormatJSON, want: "/manga/chapter01_analysis.json"},
		{input: "/manga/chapter01", format: pipeline.FormatText, want: "/manga/chapter01_analysis.txt"},
		{input: "/manga/chapter01/page01.png", format: pipeline.FormatJSON, want: "/manga/chapter01/page01_analysis.json"},
	}
	for _, tc := range cases {
		if got := deriveOutputPath(tc.input, tc.format); got != filepath.FromSlash(tc.want) {
			t.Errorf("deriveOutputPath(%q, %q) = %q, want %q", tc.input, tc.format, got, tc.want)
		}
	}
}

func TestBuildConfig_FlagOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	opts := analyzeOptions{}
	cmd := newAnalyzeCmd()
	// Re-bind so we can inspect the options struct the flags write into.
	cmd.ResetFlags()
	addAnalyzeFlags(cmd, &opts)
	if err := cmd.ParseFlags([]string{
		"--provider", "openai",
		"--model", "gpt-5.2",
		"--source", "Korean",
		"--target", "de",
		"--concurrency", "5",
		"--timeout", "45s",
		"--no-fallback",
		"--no-grammar",
	}); err != nil {
		t.Fatal(err)
	}

	cfg, err := buildConfig(cmd, &opts)
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Primary != config.ProviderOpenAI {
		t.Errorf("primary = %q", cfg.Primary)
	}
	if cfg.OpenAI.Model != "gpt-5.2" {
		t.Errorf("openai model = %q", cfg.OpenAI.Model)
	}
	if cfg.SourceLang != "ko" || cfg.TargetLang != "de" {
		t.Errorf("langs = %s -> %s, want ko -> de", cfg.SourceLang, cfg.TargetLang)
	}
	if cfg.Concurrency != 5 {
		t.Errorf("concurrency = %d", cfg.Concurrency)
	}
	if cfg.RequestTimeout != 45*time.Second {
		t.Errorf("timeout = %s", cfg.RequestTimeout)
	}
	if cfg.Features.Fallback || cfg.Features.Grammar {
		t.Errorf("feature toggles not applied: %+v", cfg.Features)
	}
	if !cfg.Features.Vocabulary || !cfg.Features.Translation {
		t.Errorf("untouched features changed: %+v", cfg.Features)
	}
	// Hosted models get catalog defaults when the file names none.
	if cfg.Gemini.Model == "" {
		t.Error("gemini model default not applied")
	}
}

func TestBuildConfig_FileWithFlagOverride(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	writeFile(t, configPath, `
primary: openai
openai:
  api_key: file-key
  model: gpt-5.2-mini
target_lang: fr
concurrency: 3
`)

	opts := analyzeOptions{configPath: configPath}
	cmd := newAnalyzeCmd()
	cmd.ResetFlags()
	addAnalyzeFlags(cmd, &opts)
	if err := cmd.ParseFlags([]string{"--config", configPath, "--target", "es"}); err != nil {
		t.Fatal(err)
	}

	cfg, err := buildConfig(cmd, &opts)
	if err != nil {
		t.Fatalf("buildConfig failed: %v", err)
	}
	if cfg.Primary != config.ProviderOpenAI || cfg.OpenAI.APIKey != "file-key" {
		t.Errorf("file values lost: primary=%q key=%q", cfg.Primary, cfg.OpenAI.APIKey)
	}
	if cfg.TargetLang != "es" {
		t.Errorf("flag should override file: target = %q", cfg.TargetLang)
	}
	if cfg.Concurrency != 3 {
		t.Errorf("file concurrency lost: %d", cfg.Concurrency)
	}
}

func TestRootInvocation_RunsAnalyze(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, restoreKeys := withKeyStubs(t, false, "", "", "dummy-env-key")
	defer restoreKeys()

	prev := runAnalyzePipeline
	defer func() { runAnalyzePipeline = prev }()

	var got pipeline.Options
	runAnalyzePipeline = func(_ context.Context, opts pipeline.Options) (pipeline.Result, error) {
		got = opts
		return pipeline.Result{Status: pipeline.StatusSuccess}, nil
	}

	inputDir := t.TempDir()
	if _, err := executeCommand(t, inputDir, "--env-only"); err != nil {
		t.Fatalf("root invocation failed: %v", err)
	}
	if got.InputPath != inputDir {
		t.Errorf("input path = %q, want %q", got.InputPath, inputDir)
	}
	wantOut := filepath.Join(filepath.Dir(inputDir), filepath.Base(inputDir)+"_analysis.json")
	if got.OutputPath != wantOut {
		t.Errorf("output path = %q, want %q", got.OutputPath, wantOut)
	}
	if got.Config.Primary != config.ProviderGemini {
		t.Errorf("primary = %q, want default gemini", got.Config.Primary)
	}
	if got.Config.Gemini.APIKey != "dummy-env-key" {
		t.Errorf("api key not filled from env: %q", got.Config.Gemini.APIKey)
	}
}

func TestSubcommandInvocation_ForwardsOutputArg(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	_, restoreKeys := withKeyStubs(t, false, "", "", "dummy-env-key")
	defer restoreKeys()

	prev := runAnalyzePipeline
	defer func() { runAnalyzePipeline = prev }()

	var got pipeline.Options
	runAnalyzePipeline = func(_ context.Context, opts pipeline.Options) (pipeline.Result, error) {
		got = opts
		return pipeline.Result{Status: pipeline.StatusSuccess}, nil
	}

	inputDir := t.TempDir()
	out := filepath.Join(inputDir, "..", "report.txt")
	if _, err := executeCommand(t, "analyze", inputDir, out, "--format", "text", "--env-only"); err != nil {
		t.Fatalf("analyze invocation failed: %v", err)
	}
	if got.OutputPath != out {
		t.Errorf("output path = %q, want %q", got.OutputPath, out)
	}
	if got.Format != pipeline.FormatText {
		t.Errorf("format = %q", got.Format)
	}
}
