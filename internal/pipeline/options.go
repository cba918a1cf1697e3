// Package pipeline wires configuration, provider clients, the analyzer,
// and output rendering into the complete runs the CLI exposes: chapter
// analysis, reading analysis, and session repair.
package pipeline

import (
	"github.com/okibee/mangalens/internal/analyzer"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/provider"
)

// Output formats for rendered reports.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// Options holds everything required for running an analysis or repair.
type Options struct {
	Config config.Config

	// InputPath is a single page image or a chapter directory for
	// RunAnalyze, and a single page image for RunReading.
	InputPath  string
	OutputPath string
	// LogPath is the session log for RunRepair.
	LogPath string
	// Format selects the report rendering, FormatJSON or FormatText.
	Format string

	Overwrite   bool // overwrite existing output without asking
	ForceRepair bool // discard an unusable existing report during repair

	// NamesMapping is the character glossary (source name -> rendering).
	NamesMapping map[string]string
	NamesPath    string

	// OnProgress is called with per-page progress updates.
	OnProgress func(analyzer.Progress)

	// OnConfirmOverwrite is called when the output file exists. It should
	// return true if the file should be overwritten.
	OnConfirmOverwrite func(path string) bool
}

// Status is the terminal state of an analysis run.
type Status string

const (
	StatusSuccess        Status = "Success"
	StatusPartialSuccess Status = "Partial Success"
	StatusFailure        Status = "Failure"
	StatusSkipped        Status = "Skipped"
)

func statusFromSession(status string) Status {
	switch status {
	case string(StatusSuccess):
		return StatusSuccess
	case string(StatusPartialSuccess):
		return StatusPartialSuccess
	default:
		return StatusFailure
	}
}

// Result contains structured outputs from RunAnalyze.
type Result struct {
	Status         Status
	OutputPath     string
	SessionLogPath string
	Usage          provider.Usage
	FailedPages    int
	TotalPages     int
}

// RepairOutcome contains the result of a repair operation.
type RepairOutcome struct {
	Provider string
	Model    string
	Usage    provider.Usage
}
