package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/analyzer"
	"github.com/okibee/mangalens/internal/imaging"
)

// Repair re-analyzes the failed pages of a previous session and merges the
// new results into the existing chapter report. inputDir and reportPath must
// already be resolved against the log file location; reportPath is the JSON
// report to merge from, which for text-format runs is the data copy recorded
// in the log. With force set, an unusable existing report is discarded and
// every page is re-analyzed.
func Repair(ctx context.Context, a *analyzer.Analyzer, l *Log, inputDir, reportPath string, force bool, onProgress func(analyzer.Progress)) (*analysis.ChapterReport, []int, error) {
	// The chapter must be byte-identical to the original run: page indices
	// in the log are meaningless otherwise.
	checksum, err := HashPages(inputDir, l.Pages)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash chapter pages: %w", err)
	}
	if checksum != l.PagesChecksum {
		return nil, nil, fmt.Errorf("chapter pages changed since the original run (checksum mismatch)")
	}

	pages := make([]*imaging.Page, len(l.Pages))
	for i, name := range l.Pages {
		page, err := imaging.Load(filepath.Join(inputDir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load page %s: %w", name, err)
		}
		pages[i] = page
	}

	// Reuse the existing report so earlier successes survive the repair.
	report := &analysis.ChapterReport{
		SourceLang: l.SourceLang,
		TargetLang: l.TargetLang,
		Pages:      make([]analysis.PageResult, len(pages)),
	}
	for i, name := range l.Pages {
		report.Pages[i] = analysis.PageResult{File: name, Failed: true}
	}

	outputReason := ""
	existing, err := loadReport(reportPath)
	if err != nil {
		outputReason = fmt.Sprintf("output parse failed: %v", err)
	} else if len(existing.Pages) != len(pages) {
		outputReason = fmt.Sprintf("page count mismatch: expected %d, got %d", len(pages), len(existing.Pages))
	} else {
		copy(report.Pages, existing.Pages)
	}

	targetPages := l.FailedPages
	if outputReason != "" {
		if !force {
			return nil, nil, fmt.Errorf("existing report could not be reused (%s). Use --force-repair to discard it and re-analyze every page", outputReason)
		}
		targetPages = nil // all pages
	}

	results, newFailed, err := a.AnalyzeBatch(ctx, pages, targetPages, onProgress)
	if err != nil {
		return nil, nil, err
	}

	failedMap := make(map[int]bool, len(newFailed))
	for _, idx := range newFailed {
		failedMap[idx] = true
	}
	indices := targetPages
	if indices == nil {
		indices = make([]int, len(pages))
		for i := range pages {
			indices[i] = i
		}
	}
	for _, idx := range indices {
		if failedMap[idx] {
			continue
		}
		report.Pages[idx] = analysis.PageResult{File: l.Pages[idx], Analysis: results[idx]}
	}

	return report, newFailed, nil
}

func loadReport(path string) (*analysis.ChapterReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report analysis.ChapterReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
