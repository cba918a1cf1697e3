package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/files"
	"github.com/okibee/mangalens/internal/imaging"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/panels"
	"github.com/okibee/mangalens/internal/provider"
)

// ReadingOutcome is the result of a reading analysis run.
type ReadingOutcome struct {
	Analysis   *analysis.ReadingAnalysis `json:"analysis"`
	Panels     []analysis.Panel          `json:"panels,omitempty"`
	Usage      provider.Usage            `json:"-"`
	OutputPath string                    `json:"-"`
}

// RunReading analyzes a single page for positioned reading aids and derives
// panel reading order from the sentence markers. The result is written as
// JSON when an output path is given.
func RunReading(ctx context.Context, opts Options) (*ReadingOutcome, error) {
	cfg, notes := opts.Config.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	page, err := imaging.Load(opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load page: %w", err)
	}

	clients, closeClients, err := buildClients(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer closeClients()

	a, err := newAnalyzer(cfg, clients, opts.NamesMapping)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	logger.Info("Starting reading analysis", "provider", cfg.Primary, "path", opts.InputPath)
	reading, err := a.AnalyzeReading(ctx, page, opts.OnProgress)
	if err != nil {
		return nil, err
	}

	outcome := &ReadingOutcome{
		Analysis: reading,
		Panels:   panels.FromMarkers(reading.Sentences, cfg.ReadingOrder),
		Usage:    a.Usage(),
	}
	logger.Info("Reading analysis finished",
		"words", len(reading.Words), "sentences", len(reading.Sentences), "panels", len(outcome.Panels))

	if opts.OutputPath != "" {
		if err := files.RejectSymlinkPath(opts.OutputPath); err != nil {
			return nil, err
		}
		data, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return nil, err
		}
		if err := files.AtomicWrite(opts.OutputPath, append(data, '\n'), 0644); err != nil {
			return nil, fmt.Errorf("failed to save reading analysis: %w", err)
		}
		outcome.OutputPath = opts.OutputPath
		logger.Info("Saved reading analysis", "path", opts.OutputPath)
	}
	return outcome, nil
}
