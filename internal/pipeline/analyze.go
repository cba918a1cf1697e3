package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/files"
	"github.com/okibee/mangalens/internal/imaging"
	"github.com/okibee/mangalens/internal/logger"
	"github.com/okibee/mangalens/internal/session"
)

// pageExtensions are the image types accepted in a chapter directory.
var pageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
}

// RunAnalyze executes the full chapter analysis pipeline: load pages,
// analyze them with provider fallback, render the report, and leave a
// session log behind when pages failed.
func RunAnalyze(ctx context.Context, opts Options) (Result, error) {
	cfg, notes := opts.Config.Normalize()
	for _, note := range notes {
		logger.Warn("Config normalized", "detail", note)
	}
	if err := cfg.Validate(); err != nil {
		return Result{}, fmt.Errorf("invalid configuration: %w", err)
	}

	absIn, err := filepath.Abs(opts.InputPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve input path: %w", err)
	}
	absOut, err := filepath.Abs(opts.OutputPath)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resolve output path: %w", err)
	}
	if absIn == absOut {
		return Result{}, fmt.Errorf("input and output paths are the same (%s)", absIn)
	}
	if err := files.RejectSymlinkPath(opts.OutputPath); err != nil {
		return Result{}, err
	}

	shouldOverwrite := opts.Overwrite
	outputExists := false
	if _, err := os.Stat(opts.OutputPath); err == nil {
		outputExists = true
		if opts.OnConfirmOverwrite != nil {
			shouldOverwrite = opts.OnConfirmOverwrite(opts.OutputPath)
		}
		if !shouldOverwrite {
			logger.Info("Output file exists. Aborted by user.", "path", opts.OutputPath)
			return Result{Status: StatusSkipped}, nil
		}
		logger.Info("Overwriting output file", "path", opts.OutputPath)
	}

	inputDir, pageNames, err := collectPages(absIn)
	if err != nil {
		return Result{}, err
	}
	pages := make([]*imaging.Page, len(pageNames))
	for i, name := range pageNames {
		page, err := imaging.Load(filepath.Join(inputDir, name))
		if err != nil {
			return Result{}, fmt.Errorf("failed to load page %s: %w", name, err)
		}
		pages[i] = page
	}
	logger.Info("Loaded chapter pages", "count", len(pages), "path", opts.InputPath)

	clients, closeClients, err := buildClients(ctx, cfg)
	if err != nil {
		return Result{}, err
	}
	defer closeClients()

	a, err := newAnalyzer(cfg, clients, opts.NamesMapping)
	if err != nil {
		return Result{}, fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	if len(opts.NamesMapping) > 0 {
		logger.Info("Loaded character name glossary", "count", len(opts.NamesMapping))
	}

	primary := cfg.Settings(cfg.Primary)
	logger.Info("Starting analysis", "provider", cfg.Primary, "model", primary.Model)
	results, failed, err := a.AnalyzeBatch(ctx, pages, nil, opts.OnProgress)
	if err != nil {
		return Result{Usage: a.Usage()}, fmt.Errorf("fatal analysis error: %w", err)
	}

	status := statusFromSession(session.CalculateStatus(len(failed), len(pages)))
	result := Result{
		Status:      status,
		Usage:       a.Usage(),
		FailedPages: len(failed),
		TotalPages:  len(pages),
	}
	logger.Info("Analysis finished", "status", status)
	canceled := ctx.Err() != nil

	report := buildReport(cfg, pageNames, results)

	effectiveOutputPath := opts.OutputPath
	if status == StatusSuccess || status == StatusPartialSuccess {
		if !(outputExists && shouldOverwrite) {
			safePath, changed, err := files.SafePath(opts.OutputPath)
			if err != nil {
				return result, fmt.Errorf("failed to resolve output path: %w", err)
			}
			if changed {
				logger.Warn("Output path adjusted to avoid overwrite", "original", opts.OutputPath, "effective", safePath)
				effectiveOutputPath = safePath
			}
		}

		rendered, err := Render(report, opts.Format)
		if err != nil {
			return result, err
		}
		if err := files.AtomicWrite(effectiveOutputPath, rendered, 0644); err != nil {
			return result, fmt.Errorf("failed to save report: %w", err)
		}
		result.OutputPath = effectiveOutputPath
		logger.Info("Saved report", "path", effectiveOutputPath)
	}

	if status == StatusPartialSuccess || status == StatusFailure {
		var logReport *analysis.ChapterReport
		if status == StatusPartialSuccess {
			logReport = report
		}
		logPath, err := writeSessionLog(cfg, opts, inputDir, pageNames, effectiveOutputPath, logReport, failed, canceled)
		if err != nil {
			logger.Error("Failed to save session log", "error", err)
		} else {
			if status == StatusPartialSuccess {
				logger.Warn("Partial success - session log saved", "path", logPath)
			} else {
				logger.Error("Analysis failed - session log saved", "path", logPath)
			}
			result.SessionLogPath = logPath
		}
	}

	return result, nil
}

// collectPages returns the directory holding the pages and the page file
// names in analysis order. A single image file yields a one-page chapter.
func collectPages(absIn string) (string, []string, error) {
	info, err := os.Stat(absIn)
	if err != nil {
		return "", nil, fmt.Errorf("failed to stat input path: %w", err)
	}
	if !info.IsDir() {
		return filepath.Dir(absIn), []string{filepath.Base(absIn)}, nil
	}

	entries, err := os.ReadDir(absIn)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read chapter directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if pageExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", nil, fmt.Errorf("no page images found in %s", absIn)
	}
	sort.Strings(names)
	return absIn, names, nil
}

func buildReport(cfg config.Config, pageNames []string, results []*analysis.TextAnalysis) *analysis.ChapterReport {
	report := &analysis.ChapterReport{
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		Pages:      make([]analysis.PageResult, len(pageNames)),
	}
	for i, name := range pageNames {
		report.Pages[i] = analysis.PageResult{
			File:     name,
			Failed:   results[i] == nil,
			Analysis: results[i],
		}
	}
	return report
}

func writeSessionLog(cfg config.Config, opts Options, inputDir string, pageNames []string, outputPath string, report *analysis.ChapterReport, failed []int, canceled bool) (string, error) {
	checksum, err := session.HashPages(inputDir, pageNames)
	if err != nil {
		return "", fmt.Errorf("failed to compute pages checksum: %w", err)
	}
	logPath := session.GeneratePath(outputPath)

	relativeInputDir, err := session.ToRelativeInputDir(logPath, inputDir)
	if err != nil {
		return "", fmt.Errorf("failed to convert input dir to relative: %w", err)
	}
	relativeOutputPath, err := session.ToRelativeOutputPath(logPath, outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to convert output path to relative: %w", err)
	}
	relativeNamesPath := ""
	if opts.NamesPath != "" {
		relativeNamesPath, err = session.ToRelativeInputDir(logPath, opts.NamesPath)
		if err != nil {
			return "", fmt.Errorf("failed to convert names path to relative: %w", err)
		}
	}

	// A text report cannot be parsed back for a later merge, so keep a JSON
	// copy of it next to the output for repair to read.
	relativeDataPath := ""
	if report != nil && opts.Format == FormatText {
		dataPath := session.GenerateDataPath(outputPath)
		data, err := Render(report, FormatJSON)
		if err != nil {
			return "", err
		}
		if err := files.AtomicWrite(dataPath, data, 0644); err != nil {
			return "", fmt.Errorf("failed to save report data: %w", err)
		}
		relativeDataPath, err = session.ToRelativeOutputPath(logPath, dataPath)
		if err != nil {
			return "", fmt.Errorf("failed to convert report data path to relative: %w", err)
		}
	}

	l := &session.Log{
		LogVersion:     session.CurrentLogVersion,
		InputDir:       relativeInputDir,
		OutputPath:     relativeOutputPath,
		Pages:          pageNames,
		PagesChecksum:  checksum,
		Provider:       string(cfg.Primary),
		Model:          cfg.Settings(cfg.Primary).Model,
		NamesPath:      relativeNamesPath,
		ReportDataPath: relativeDataPath,
		Concurrency:    cfg.Concurrency,
		SourceLang:     cfg.SourceLang,
		TargetLang:     cfg.TargetLang,
		FailedPages:    failed,
		TotalPages:     len(pageNames),
		Status:         session.CalculateStatus(len(failed), len(pageNames)),
	}
	if canceled {
		l.StatusReason = "canceled"
	}
	if err := session.Save(logPath, l); err != nil {
		return "", err
	}
	return logPath, nil
}
