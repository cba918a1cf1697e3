package main

import (
	"fmt"
	"time"

	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/pipeline"
	"github.com/spf13/cobra"
)

var runReadingPipeline = pipeline.RunReading

func newReadingCmd() *cobra.Command {
	opts := analyzeOptions{}
	var order string
	cmd := &cobra.Command{
		Use:   "reading <page-image> [output.json]",
		Short: "Locate words and sentences on a page with panel order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				_ = cmd.Usage()
				return fmt.Errorf("a page image is required")
			}
			return runReading(cmd, args, &opts, order)
		},
		SilenceUsage: true,
	}

	cmd.SetUsageTemplate(subcommandUsageTemplate)
	addAnalyzeFlags(cmd, &opts)
	cmd.Flags().StringVar(&order, "order", "", "Panel reading order (rtl or ltr)")
	return cmd
}

func runReading(cmd *cobra.Command, args []string, opts *analyzeOptions, order string) error {
	if err := initRunLogger(opts.debug, opts.logFilePath); err != nil {
		return err
	}

	cfg, err := buildConfig(cmd, opts)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("order") {
		cfg.ReadingOrder = order
	}
	if err := fillAPIKeys(&cfg, opts.allowEnv, opts.envOnly); err != nil {
		return err
	}

	outputPath := ""
	if len(args) > 1 {
		outputPath = args[1]
	}

	startTime := time.Now()
	ctx, stop := signalContext()
	defer stop()

	outcome, err := runReadingPipeline(ctx, pipeline.Options{
		Config:     cfg,
		InputPath:  args[0],
		OutputPath: outputPath,
		OnProgress: logProgress,
	})
	if err != nil {
		if ctx.Err() != nil {
			logger.Warn("Reading analysis canceled", "error", err)
			return nil
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Words: %d, Sentences: %d, Panels: %d\n",
		len(outcome.Analysis.Words), len(outcome.Analysis.Sentences), len(outcome.Panels))
	for _, p := range outcome.Panels {
		fmt.Fprintf(out, "  Panel %d: x=%.2f y=%.2f w=%.2f h=%.2f\n", p.Order, p.X, p.Y, p.Width, p.Height)
	}
	if outcome.OutputPath != "" {
		fmt.Fprintf(out, "Saved: %s\n", outcome.OutputPath)
	}

	printUsageStats(outcome.Usage, time.Since(startTime), string(cfg.Primary), cfg.Settings(cfg.Primary).Model)
	return nil
}
