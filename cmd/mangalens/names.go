package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/files"
	"github.com/okibee/mangalens/internal/gemini"
	"github.com/okibee/mangalens/internal/imaging"
	"github.com/okibee/mangalens/internal/language"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/names"
	"github.com/okibee/mangalens/internal/openai"
	"github.com/okibee/mangalens/internal/prompt"
	"github.com/okibee/mangalens/internal/provider"
	"github.com/spf13/cobra"
)

type namesOptions struct {
	configPath  string
	provider    string
	modelName   string
	baseURL     string
	sourceLang  string
	targetLang  string
	maxTokens   int
	samplePages int
	allowEnv    bool
	envOnly     bool
	yes         bool
	debug       bool
}

func newNamesCmd() *cobra.Command {
	opts := namesOptions{}
	cmd := &cobra.Command{
		Use:   "names <chapter-dir|page-image> <output.json>",
		Short: "Extract a character name glossary from sample pages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				_ = cmd.Usage()
				return fmt.Errorf("a chapter directory and an output path are required")
			}
			return runNames(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Provider to use (gemini, openai or custom)")
	cmd.Flags().StringVar(&opts.modelName, "model", "", "Model name")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "Base URL for the custom provider")
	cmd.Flags().StringVar(&opts.sourceLang, "source", "ja", "Source language code or name")
	cmd.Flags().StringVar(&opts.targetLang, "target", "en", "Target language code or name")
	cmd.Flags().IntVar(&opts.maxTokens, "max-tokens", 4096, "Max output tokens per page")
	cmd.Flags().IntVar(&opts.samplePages, "pages", 5, "Number of pages sampled from a chapter directory")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API keys from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Overwrite output file without asking")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	return cmd
}

func runNames(cmd *cobra.Command, args []string, opts *namesOptions) error {
	startTime := time.Now()
	inputPath, outputPath := args[0], args[1]

	if err := initRunLogger(opts.debug, ""); err != nil {
		return err
	}

	allowOverwrite := opts.yes
	if !allowOverwrite {
		if _, err := os.Stat(outputPath); err == nil {
			confirmed, err := prompt.DefaultConfirmer().ConfirmOverwrite(outputPath, allowOverwrite)
			if err != nil {
				return err
			}
			if !confirmed {
				fmt.Println("Aborted.")
				return nil
			}
			allowOverwrite = true
		}
	}
	if !allowOverwrite {
		safePath, changed, err := files.SafePath(outputPath)
		if err != nil {
			return fmt.Errorf("failed to resolve output path: %w", err)
		}
		if changed {
			logger.Warn("Output path adjusted to avoid overwrite", "original", outputPath, "effective", safePath)
			outputPath = safePath
		}
	}
	if err := files.RejectSymlinkPath(outputPath); err != nil {
		return err
	}

	sourceCode, err := resolveSourceCode(opts.sourceLang)
	if err != nil {
		return err
	}
	targetCode, err := resolveTargetCode(opts.targetLang)
	if err != nil {
		return err
	}
	src, _ := language.GetSource(sourceCode)
	tgt, _ := language.GetTarget(targetCode)

	cfg, err := namesConfig(opts)
	if err != nil {
		return err
	}
	client, err := namesClient(cmd, cfg, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close provider client", "error", err)
		}
	}()

	pages, err := samplePages(inputPath, opts.samplePages)
	if err != nil {
		return err
	}
	logger.Info("Extracting character names", "pages", len(pages), "provider", client.Name())

	ctx, stop := signalContext()
	defer stop()
	extractor := names.NewExtractor(client)
	mappings, usage, err := extractor.Extract(ctx, pages, opts.maxTokens, src, tgt)
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Name extraction canceled", "error", err)
			return nil
		}
		return err
	}

	data, err := names.EncodeMappings(mappings, sourceCode, targetCode)
	if err != nil {
		return err
	}
	if err := files.AtomicWrite(outputPath, data, 0600); err != nil {
		return err
	}
	logger.Info("Success", "count", len(mappings), "path", outputPath)

	printUsageStats(usage, time.Since(startTime), string(cfg.Primary), cfg.Settings(cfg.Primary).Model)
	return nil
}

// namesConfig derives a single-provider config from the names flags.
func namesConfig(opts *namesOptions) (config.Config, error) {
	var cfg config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return config.Config{}, err
		}
	} else {
		cfg = config.Default()
	}
	if opts.provider != "" {
		cfg.Primary = config.Provider(strings.ToLower(opts.provider))
	}
	if opts.baseURL != "" {
		cfg.Custom.BaseURL = opts.baseURL
	}
	if opts.modelName != "" {
		switch cfg.Primary {
		case config.ProviderOpenAI:
			cfg.OpenAI.Model = opts.modelName
		case config.ProviderCustom:
			cfg.Custom.Model = opts.modelName
		default:
			cfg.Gemini.Model = opts.modelName
		}
	}
	cfg.Features.Fallback = false
	return cfg, nil
}

func namesClient(cmd *cobra.Command, cfg config.Config, opts *namesOptions) (provider.Client, error) {
	if err := fillAPIKeys(&cfg, opts.allowEnv, opts.envOnly); err != nil {
		return nil, err
	}
	settings := cfg.Settings(cfg.Primary)
	switch cfg.Primary {
	case config.ProviderGemini:
		return gemini.NewClient(cmd.Context(), settings.APIKey, settings.Model)
	case config.ProviderOpenAI:
		return openai.NewClient(settings.APIKey, settings.Model), nil
	case config.ProviderCustom:
		if settings.BaseURL == "" {
			return nil, fmt.Errorf("custom provider requires --base-url")
		}
		return openai.NewCustomClient(settings.APIKey, settings.Model, settings.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Primary)
	}
}

// samplePages loads up to limit pages from a chapter directory, or the
// single page the path names.
func samplePages(inputPath string, limit int) ([]*imaging.Page, error) {
	info, err := os.Stat(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat input path: %w", err)
	}
	if !info.IsDir() {
		page, err := imaging.Load(inputPath)
		if err != nil {
			return nil, err
		}
		return []*imaging.Page{page}, nil
	}

	entries, err := os.ReadDir(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read chapter directory: %w", err)
	}
	var fileNames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".png", ".jpg", ".jpeg", ".webp":
			fileNames = append(fileNames, e.Name())
		}
	}
	if len(fileNames) == 0 {
		return nil, fmt.Errorf("no page images found in %s", inputPath)
	}
	sort.Strings(fileNames)
	if limit > 0 && len(fileNames) > limit {
		fileNames = fileNames[:limit]
	}

	pages := make([]*imaging.Page, 0, len(fileNames))
	for _, name := range fileNames {
		page, err := imaging.Load(filepath.Join(inputPath, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load page %s: %w", name, err)
		}
		pages = append(pages, page)
	}
	return pages, nil
}
