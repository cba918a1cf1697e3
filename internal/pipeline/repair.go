package pipeline

import (
	"context"
	"fmt"
	"os"

	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/files"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/names"
	"github.com/okibee/mangalens/internal/session"
)

// RunRepair re-analyzes the failed pages recorded in a session log. The
// provider and model come from the log so the repair matches the original
// run; credentials come from the current config.
func RunRepair(ctx context.Context, opts Options) (RepairOutcome, error) {
	if opts.LogPath == "" {
		return RepairOutcome{}, fmt.Errorf("session log path is required for repair")
	}

	l, origHash, err := session.LoadWithHash(opts.LogPath)
	if err != nil {
		return RepairOutcome{}, fmt.Errorf("failed to load session log: %w", err)
	}
	if err := l.Validate(); err != nil {
		return RepairOutcome{}, fmt.Errorf("invalid session log: %w", err)
	}

	inputDir := session.ResolvePath(opts.LogPath, l.InputDir)
	if _, err := os.Stat(inputDir); err != nil {
		return RepairOutcome{}, fmt.Errorf("invalid session log: chapter directory not found: %s", l.InputDir)
	}
	outputPath := session.ResolvePath(opts.LogPath, l.OutputPath)
	if err := files.RejectSymlinkPath(outputPath); err != nil {
		return RepairOutcome{}, err
	}
	if err := files.RejectSymlinkPath(opts.LogPath); err != nil {
		return RepairOutcome{}, err
	}

	// Text-format runs keep a JSON copy of the report next to the output;
	// merge from it, since the text rendering cannot be parsed back.
	reportPath := outputPath
	if l.ReportDataPath != "" {
		reportPath = session.ResolvePath(opts.LogPath, l.ReportDataPath)
		if err := files.RejectSymlinkPath(reportPath); err != nil {
			return RepairOutcome{}, err
		}
	}

	// Pin the original run's provider and model; keys and limits come from
	// the current config.
	cfg := opts.Config
	cfg.Primary = config.Provider(l.Provider)
	switch cfg.Primary {
	case config.ProviderGemini:
		cfg.Gemini.Model = l.Model
	case config.ProviderOpenAI:
		cfg.OpenAI.Model = l.Model
	case config.ProviderCustom:
		cfg.Custom.Model = l.Model
	}
	cfg.SourceLang = l.SourceLang
	cfg.TargetLang = l.TargetLang
	cfg.Concurrency = l.Concurrency
	cfg, notes := cfg.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return RepairOutcome{}, fmt.Errorf("invalid configuration: %w", err)
	}

	namesMapping := opts.NamesMapping
	if namesMapping == nil && l.NamesPath != "" {
		namesPath := session.ResolvePath(opts.LogPath, l.NamesPath)
		namesMapping, err = names.LoadMappingFile(namesPath, l.SourceLang, l.TargetLang)
		if err != nil {
			return RepairOutcome{}, fmt.Errorf("failed to load names glossary: %w", err)
		}
		logger.Info("Loaded character name glossary", "count", len(namesMapping), "path", namesPath)
	}

	clients, closeClients, err := buildClients(ctx, cfg)
	if err != nil {
		return RepairOutcome{}, err
	}
	defer closeClients()

	a, err := newAnalyzer(cfg, clients, namesMapping)
	if err != nil {
		return RepairOutcome{}, fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	logger.Info("Starting repair", "provider", l.Provider, "model", l.Model, "failed_pages", len(l.FailedPages))
	report, newFailed, err := session.Repair(ctx, a, l, inputDir, reportPath, opts.ForceRepair, opts.OnProgress)
	if err != nil {
		return RepairOutcome{}, fmt.Errorf("repair failed: %w", err)
	}

	outcome := RepairOutcome{Provider: l.Provider, Model: l.Model, Usage: a.Usage()}

	if len(newFailed) == 0 {
		logger.Info("Repair finished", "status", "Success")

		rendered, err := Render(report, opts.Format)
		if err != nil {
			return outcome, err
		}
		if err := files.AtomicWrite(outputPath, rendered, 0644); err != nil {
			return outcome, fmt.Errorf("failed to save report: %w", err)
		}
		logger.Info("Saved report", "path", outputPath)

		// Remove the session log only if nobody touched it meanwhile.
		if currentHash, err := session.HashFile(opts.LogPath); err != nil {
			logger.Warn("Failed to read session log for verification", "path", opts.LogPath, "error", err)
		} else if currentHash != origHash {
			logger.Warn("Session log content changed; skipping delete", "path", opts.LogPath)
		} else if err := os.Remove(opts.LogPath); err != nil {
			logger.Warn("Failed to remove session log after success", "path", opts.LogPath, "error", err)
		}
		if l.ReportDataPath != "" {
			if err := os.Remove(reportPath); err != nil && !os.IsNotExist(err) {
				logger.Warn("Failed to remove report data file after success", "path", reportPath, "error", err)
			}
		}
		return outcome, nil
	}

	status := session.CalculateStatus(len(newFailed), l.TotalPages)
	logger.Info("Repair finished", "status", status)

	// Persist the partial progress before updating the log.
	rendered, renderErr := Render(report, opts.Format)
	if renderErr == nil {
		if err := files.AtomicWrite(outputPath, rendered, 0644); err != nil {
			logger.Error("Failed to save partial report", "error", err)
		}
	}
	if l.ReportDataPath != "" {
		if data, err := Render(report, FormatJSON); err == nil {
			if err := files.AtomicWrite(reportPath, data, 0644); err != nil {
				logger.Error("Failed to save report data", "error", err)
			}
		}
	}

	l.FailedPages = newFailed
	l.Status = status
	l.StatusReason = ""
	if ctx.Err() != nil {
		l.StatusReason = "canceled"
	}
	if err := session.Save(opts.LogPath, l); err != nil {
		logger.Error("Failed to update session log", "error", err)
	} else {
		logger.Warn("Partial repair - session log updated", "path", opts.LogPath)
	}
	return outcome, fmt.Errorf("repair finished with %d failed pages", len(newFailed))
}
