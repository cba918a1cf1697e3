package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okibee/mangalens/internal/cleanup"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/files"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/metadata"
	"github.com/okibee/mangalens/internal/names"
	"github.com/okibee/mangalens/internal/pipeline"
	"github.com/okibee/mangalens/internal/prompt"
	"github.com/spf13/cobra"
)

var runAnalyzePipeline = pipeline.RunAnalyze

type analyzeOptions struct {
	configPath    string
	provider      string
	modelName     string
	baseURL       string
	sourceLang    string
	targetLang    string
	format        string
	namesPath     string
	concurrency   int
	maxAttempts   int
	timeout       time.Duration
	noFallback    bool
	noVocabulary  bool
	noGrammar     bool
	noTranslation bool
	yes           bool
	logFilePath   string
	allowEnv      bool
	envOnly       bool
	debug         bool
}

func newAnalyzeCmd() *cobra.Command {
	opts := analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze <chapter-dir|page-image> [output]",
		Short: "Analyze manga pages with a vision model",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				_ = cmd.Usage()
				return fmt.Errorf("a chapter directory or page image is required")
			}
			return runAnalyze(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addAnalyzeFlags(cmd, &opts)
	return cmd
}

func addAnalyzeFlags(cmd *cobra.Command, opts *analyzeOptions) {
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Primary provider (gemini, openai or custom)")
	cmd.Flags().StringVar(&opts.modelName, "model", "", "Model name for the primary provider")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Base URL for the custom provider")
	cmd.Flags().StringVar(&opts.sourceLang, "source", "", "Source language code or name (default: ja)")
	cmd.Flags().StringVar(&opts.targetLang, "target", "", "Target language code or name (default: en)")
	cmd.Flags().StringVar(&opts.format, "format", pipeline.FormatJSON, "Output format (json or text)")
	cmd.Flags().StringVar(&opts.namesPath, "names", "", "Path to character name glossary JSON file")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 0, "Number of pages analyzed in parallel (1-8)")
	cmd.Flags().IntVar(&opts.maxAttempts, "max-attempts", 0, "Attempts per provider before falling back (1-10)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-request timeout (escalates on retry)")
	cmd.Flags().BoolVar(&opts.noFallback, "no-fallback", false, "Disable falling back to other configured providers")
	cmd.Flags().BoolVar(&opts.noVocabulary, "no-vocab", false, "Skip vocabulary extraction")
	cmd.Flags().BoolVar(&opts.noGrammar, "no-grammar", false, "Skip grammar pattern extraction")
	cmd.Flags().BoolVar(&opts.noTranslation, "no-translation", false, "Skip translation")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite output file without asking")
	cmd.Flags().StringVar(&opts.logFilePath, "log-file", "", "Path to save machine-readable JSONL logs")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API keys from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
}

// buildConfig merges the YAML config (explicit flag or the per-user default
// location) with flag overrides. Only flags the user actually set override
// the file.
func buildConfig(cmd *cobra.Command, opts *analyzeOptions) (config.Config, error) {
	var cfg config.Config
	switch {
	case opts.configPath != "":
		var err error
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
	default:
		cfg = config.Default()
		if dir, err := os.UserConfigDir(); err == nil {
			path := filepath.Join(dir, "mangalens", "config.yaml")
			if _, statErr := os.Stat(path); statErr == nil {
				cfg, err = config.Load(path)
				if err != nil {
					return config.Config{}, err
				}
				logger.Info("Loaded config", "path", path)
			}
		}
	}

	changed := cmd.Flags().Changed
	if changed("provider") {
		cfg.Primary = config.Provider(strings.ToLower(opts.provider))
	}
	if changed("base-url") {
		cfg.Custom.BaseURL = opts.baseURL
	}
	if changed("model") {
		switch cfg.Primary {
		case config.ProviderOpenAI:
			cfg.OpenAI.Model = opts.modelName
		case config.ProviderCustom:
			cfg.Custom.Model = opts.modelName
		default:
			cfg.Gemini.Model = opts.modelName
		}
	}
	if changed("source") {
		code, err := resolveSourceCode(opts.sourceLang)
		if err != nil {
			return config.Config{}, err
		}
		cfg.SourceLang = code
	}
	if changed("target") {
		code, err := resolveTargetCode(opts.targetLang)
		if err != nil {
			return config.Config{}, err
		}
		cfg.TargetLang = code
	}
	if changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if changed("max-attempts") {
		cfg.MaxAttempts = opts.maxAttempts
	}
	if changed("timeout") {
		cfg.RequestTimeout = opts.timeout
	}
	if opts.noFallback {
		cfg.Features.Fallback = false
	}
	if opts.noVocabulary {
		cfg.Features.Vocabulary = false
	}
	if opts.noGrammar {
		cfg.Features.Grammar = false
	}
	if opts.noTranslation {
		cfg.Features.Translation = false
	}
	if changed("names") {
		cfg.NamesPath = opts.namesPath
	}

	// Hosted providers have catalog defaults; only custom endpoints must
	// name their model explicitly.
	if cfg.Gemini.Model == "" {
		cfg.Gemini.Model = metadata.DefaultGeminiModel
	}
	if cfg.OpenAI.Model == "" {
		cfg.OpenAI.Model = metadata.DefaultOpenAIModel
	}
	return cfg, nil
}

func initRunLogger(debug bool, logFilePath string) error {
	logLevel := logger.LevelInfo
	if debug {
		logLevel = logger.LevelDebug
	}
	var logFileW io.Writer
	if logFilePath != "" {
		if err := files.RejectSymlinkPath(logFilePath); err != nil {
			return err
		}
		f, err := os.OpenFile(logFilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register(f.Close)
		logFileW = f
	}
	logger.Init(logLevel, logFileW)
	return nil
}

// deriveOutputPath picks a default report path next to the input.
func deriveOutputPath(inputPath, format string) string {
	base := strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	ext := ".json"
	if format == pipeline.FormatText {
		ext = ".txt"
	}
	return filepath.Join(filepath.Dir(inputPath), base+"_analysis"+ext)
}

func runAnalyze(cmd *cobra.Command, args []string, opts *analyzeOptions) error {
	if len(args) > 2 {
		fmt.Fprintf(os.Stderr, "Warning: expected at most 2 arguments but got %d. Did you forget quotes around file paths?\n", len(args))
		fmt.Fprintf(os.Stderr, "  Using input: %s\n", args[0])
		fmt.Fprintf(os.Stderr, "  Using output: %s\n", args[1])
	}
	if err := initRunLogger(opts.debug, opts.logFilePath); err != nil {
		return err
	}

	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return err
	}
	if err := fillAPIKeys(&cfg, opts.allowEnv, opts.envOnly); err != nil {
		return err
	}

	outputPath := deriveOutputPath(args[0], opts.format)
	if len(args) > 1 {
		outputPath = args[1]
	}

	var namesMapping map[string]string
	if cfg.NamesPath != "" {
		namesMapping, err = names.LoadMappingFile(cfg.NamesPath, cfg.SourceLang, cfg.TargetLang)
		if err != nil {
			return err
		}
	}

	startTime := time.Now()
	ctx, stop := signalContext()
	defer stop()

	result, err := runAnalyzePipeline(ctx, pipeline.Options{
		Config:       cfg,
		InputPath:    args[0],
		OutputPath:   outputPath,
		Format:       opts.format,
		Overwrite:    opts.yes,
		NamesMapping: namesMapping,
		NamesPath:    cfg.NamesPath,
		OnProgress:   logProgress,
		OnConfirmOverwrite: func(path string) bool {
			confirmed, err := prompt.DefaultConfirmer().ConfirmOverwrite(path, opts.yes)
			if err != nil {
				logger.Error("Overwrite confirmation failed", "error", err)
				return false
			}
			return confirmed
		},
	})

	printUsageStats(result.Usage, time.Since(startTime), string(cfg.Primary), cfg.Settings(cfg.Primary).Model)

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Analysis canceled", "error", err)
			return nil
		}
		return err
	}
	return analyzeStatusError(result)
}

func analyzeStatusError(result pipeline.Result) error {
	switch result.Status {
	case pipeline.StatusSuccess, pipeline.StatusSkipped:
		return nil
	case pipeline.StatusPartialSuccess, pipeline.StatusFailure:
		if result.SessionLogPath != "" {
			return fmt.Errorf("analysis finished with status: %s (session log: %s)", result.Status, result.SessionLogPath)
		}
		return fmt.Errorf("analysis finished with status: %s", result.Status)
	default:
		return fmt.Errorf("analysis finished with unknown status: %q", result.Status)
	}
}
