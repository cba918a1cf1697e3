package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/pipeline"
	"github.com/spf13/cobra"
)

var (
	runRepairPipeline    = pipeline.RunRepair
	printRepairStatsFunc = printUsageStats
)

type repairOptions struct {
	configPath  string
	format      string
	forceRepair bool
	allowEnv    bool
	envOnly     bool
	debug       bool
}

func newRepairCmd() *cobra.Command {
	opts := repairOptions{}
	cmd := &cobra.Command{
		Use:   "repair <session_log.json>",
		Short: "Resume a failed analysis using a session log",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				_ = cmd.Usage()
				return fmt.Errorf("session_log.json is required")
			}
			return runRepair(cmd, args, &opts)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	cmd.Flags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.Flags().StringVar(&opts.format, "format", pipeline.FormatJSON, "Output format (json or text)")
	cmd.Flags().BoolVar(&opts.forceRepair, "force-repair", false, "Ignore an unusable existing report and re-analyze all pages")
	cmd.Flags().BoolVar(&opts.allowEnv, "allow-env", false, "Allow reading API keys from environment variables")
	cmd.Flags().BoolVar(&opts.envOnly, "env-only", false, "Use only environment variables for API keys")
	cmd.Flags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	return cmd
}

func runRepair(cmd *cobra.Command, args []string, opts *repairOptions) error {
	startTime := time.Now()
	logPath := args[0]

	if err := initRunLogger(opts.debug, ""); err != nil {
		return err
	}

	var cfg config.Config
	var err error
	if opts.configPath != "" {
		cfg, err = config.Load(opts.configPath)
		if err != nil {
			return err
		}
	} else {
		cfg = config.Default()
	}
	// The session log pins the provider; keys for all configured providers
	// are resolved so the pinned one is covered.
	for _, service := range []config.Provider{config.ProviderGemini, config.ProviderOpenAI, config.ProviderCustom} {
		if cfg.Settings(service).APIKey != "" {
			continue
		}
		if key, source := getKey(string(service), opts.allowEnv || opts.envOnly); key != "" {
			logger.Info("Using API Key", "service", service, "source", source)
			switch service {
			case config.ProviderGemini:
				cfg.Gemini.APIKey = key
			case config.ProviderOpenAI:
				cfg.OpenAI.APIKey = key
			case config.ProviderCustom:
				cfg.Custom.APIKey = key
			}
		}
	}

	ctx, stop := signalContext()
	defer stop()
	result, err := runRepairPipeline(ctx, pipeline.Options{
		Config:      cfg,
		LogPath:     logPath,
		Format:      opts.format,
		ForceRepair: opts.forceRepair,
		OnProgress:  logProgress,
	})

	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Repair canceled", "error", err)
			return nil
		}
		if shouldPrintRepairStats(result) {
			printRepairStatsFunc(result.Usage, time.Since(startTime), result.Provider, result.Model)
		}
		return err
	}
	printRepairStatsFunc(result.Usage, time.Since(startTime), result.Provider, result.Model)

	return nil
}

func shouldPrintRepairStats(result pipeline.RepairOutcome) bool {
	if strings.TrimSpace(result.Model) != "" {
		return true
	}
	return result.Usage.TotalTokens > 0 ||
		result.Usage.PromptTokens > 0 ||
		result.Usage.CompletionTokens > 0
}
