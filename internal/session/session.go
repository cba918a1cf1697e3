// Package session persists the state of a chapter analysis run so pages
// that failed can be re-analyzed later without redoing the whole chapter.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/files"
	"github.com/okibee/mangalens/internal/language"
)

// Log stores the state of a chapter analysis session for later repair.
// Paths are relative to the log file so a chapter directory can be moved
// as a whole.
type Log struct {
	LogVersion int    `json:"log_version"`
	InputDir   string `json:"input_dir"`
	OutputPath string `json:"output_path"`
	// Pages lists the page files in analysis order, relative to InputDir.
	Pages []string `json:"pages"`
	// PagesChecksum guards against the chapter changing between the
	// original run and the repair.
	PagesChecksum string `json:"pages_checksum"`
	Provider      string `json:"provider"`
	Model         string `json:"model"`
	NamesPath     string `json:"names_path,omitempty"`
	Concurrency   int    `json:"concurrency"`
	SourceLang    string `json:"source_lang"`
	TargetLang    string `json:"target_lang"`
	// ReportDataPath points at a JSON copy of the report kept next to a
	// text rendering, so repair can still merge earlier successes.
	ReportDataPath string `json:"report_data_path,omitempty"`
	FailedPages    []int  `json:"failed_pages"`
	TotalPages     int    `json:"total_pages"`
	Status         string `json:"status"` // "Success", "Partial Success", "Failure"
	StatusReason   string `json:"status_reason,omitempty"`
}

const CurrentLogVersion = 1

// Validate checks if the session log is consistent and safe to resume.
func (l *Log) Validate() error {
	if l.LogVersion == 0 {
		l.LogVersion = CurrentLogVersion
	}
	if l.LogVersion != CurrentLogVersion {
		return fmt.Errorf("unsupported log_version: %d", l.LogVersion)
	}
	if l.InputDir == "" {
		return fmt.Errorf("input_dir is empty")
	}
	if filepath.IsAbs(l.InputDir) {
		return fmt.Errorf("input_dir must be relative, not absolute: %s", l.InputDir)
	}
	if l.OutputPath == "" {
		return fmt.Errorf("output_path is empty")
	}
	// Reject absolute paths and traversal; everything resolves against the
	// log file location.
	if filepath.IsAbs(l.OutputPath) {
		return fmt.Errorf("output_path must be relative, not absolute: %s", l.OutputPath)
	}
	if strings.HasPrefix(filepath.Clean(l.OutputPath), "..") {
		return fmt.Errorf("output_path cannot traverse parent directories: %s", l.OutputPath)
	}
	if l.NamesPath != "" && filepath.IsAbs(l.NamesPath) {
		return fmt.Errorf("names_path must be relative, not absolute: %s", l.NamesPath)
	}
	if l.ReportDataPath != "" {
		if filepath.IsAbs(l.ReportDataPath) {
			return fmt.Errorf("report_data_path must be relative, not absolute: %s", l.ReportDataPath)
		}
		if strings.HasPrefix(filepath.Clean(l.ReportDataPath), "..") {
			return fmt.Errorf("report_data_path cannot traverse parent directories: %s", l.ReportDataPath)
		}
	}
	if len(l.Pages) == 0 {
		return fmt.Errorf("pages list is empty")
	}
	if len(l.Pages) != l.TotalPages {
		return fmt.Errorf("pages list length %d does not match total_pages %d", len(l.Pages), l.TotalPages)
	}
	for _, p := range l.Pages {
		if filepath.IsAbs(p) || strings.HasPrefix(filepath.Clean(p), "..") {
			return fmt.Errorf("page path must stay inside input_dir: %s", p)
		}
	}
	if l.PagesChecksum == "" {
		return fmt.Errorf("pages_checksum is empty")
	}
	if !strings.HasPrefix(l.PagesChecksum, "sha256:") {
		return fmt.Errorf("invalid pages_checksum: %s", l.PagesChecksum)
	}
	if l.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency: %d", l.Concurrency)
	}
	if l.TotalPages <= 0 {
		return fmt.Errorf("invalid total_pages: %d", l.TotalPages)
	}
	if len(l.FailedPages) == 0 {
		return fmt.Errorf("failed_pages list is empty")
	}
	for _, idx := range l.FailedPages {
		if idx < 0 || idx >= l.TotalPages {
			return fmt.Errorf("failed page index out of range: %d", idx)
		}
	}
	if _, ok := language.GetSource(l.SourceLang); !ok {
		return fmt.Errorf("unsupported source language: %s", l.SourceLang)
	}
	if _, ok := language.GetTarget(l.TargetLang); !ok {
		return fmt.Errorf("unsupported target language: %s", l.TargetLang)
	}
	switch config.Provider(l.Provider) {
	case config.ProviderGemini, config.ProviderOpenAI, config.ProviderCustom:
	default:
		return fmt.Errorf("unknown provider: %s", l.Provider)
	}
	if l.Model == "" {
		return fmt.Errorf("model name is empty")
	}
	if l.Status == "" {
		return fmt.Errorf("session status is empty")
	}
	if l.StatusReason != "" && l.StatusReason != "canceled" {
		return fmt.Errorf("invalid status_reason: %s", l.StatusReason)
	}
	return nil
}

// Save writes the session log to a JSON file atomically.
func Save(path string, l *Log) error {
	if l.LogVersion == 0 {
		l.LogVersion = CurrentLogVersion
	}
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return err
	}
	return files.AtomicWriteExclusive(path, data, 0600)
}

// GeneratePath creates a unique filename for the session log next to the
// chapter output:
// 1. [basename]_session.json
// 2. [basename]_session_0.json ~ _9.json
// 3. [basename]_session_[UUIDv7].json (with collision check)
func GeneratePath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))

	primary := filepath.Join(dir, fmt.Sprintf("%s_session.json", base))
	if _, err := os.Stat(primary); os.IsNotExist(err) {
		return primary
	}

	for i := 0; i <= 9; i++ {
		candidate := filepath.Join(dir, fmt.Sprintf("%s_session_%d.json", base, i))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}

	for i := 0; i < 100; i++ {
		u, err := uuid.NewV7()
		var suffix string
		if err != nil {
			suffix = uuid.NewString()[:8]
		} else {
			suffix = u.String()
		}
		candidate := filepath.Join(dir, fmt.Sprintf("%s_session_%s.json", base, suffix))
		if _, err := os.Stat(candidate); os.IsNotExist(err) {
			return candidate
		}
	}

	return filepath.Join(dir, fmt.Sprintf("%s_session_final_%d.json", base, os.Getpid()))
}

// GenerateDataPath returns the location of the JSON report copy kept next
// to a text-format output. The copy belongs to the session, so an existing
// file at that path is simply replaced.
func GenerateDataPath(outputPath string) string {
	dir := filepath.Dir(outputPath)
	base := strings.TrimSuffix(filepath.Base(outputPath), filepath.Ext(outputPath))
	return filepath.Join(dir, fmt.Sprintf("%s_data.json", base))
}

// Load reads a session log from a JSON file.
func Load(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, err
	}
	if l.LogVersion == 0 {
		l.LogVersion = CurrentLogVersion
	}
	return &l, nil
}

// LoadWithHash reads a session log and returns a hash of its raw bytes so
// the caller can detect concurrent edits before deleting it.
func LoadWithHash(path string) (*Log, [32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, [32]byte{}, err
	}
	var l Log
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, [32]byte{}, err
	}
	if l.LogVersion == 0 {
		l.LogVersion = CurrentLogVersion
	}
	return &l, sha256.Sum256(data), nil
}

// HashFile returns a SHA-256 hash of the given file contents.
func HashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return [32]byte{}, err
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum, nil
}

// HashPages returns a sha256-prefixed checksum over the page file list and
// contents, detecting renamed, reordered, or edited pages.
func HashPages(inputDir string, pages []string) (string, error) {
	h := sha256.New()
	for _, p := range pages {
		io.WriteString(h, p)
		h.Write([]byte{0})
		f, err := os.Open(filepath.Join(inputDir, p))
		if err != nil {
			return "", err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", err
		}
		h.Write([]byte{0})
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}

// CalculateStatus determines the session status from failed and total pages.
func CalculateStatus(failedCount, totalCount int) string {
	if failedCount == 0 {
		return "Success"
	}
	if failedCount < totalCount {
		return "Partial Success"
	}
	return "Failure"
}

// ResolvePath resolves a relative path stored in the log against the log
// file location.
func ResolvePath(logPath, rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(filepath.Dir(logPath), rel)
}

// ToRelativeOutputPath converts an absolute output path to relative based
// on the log location. The output must stay within the log directory.
func ToRelativeOutputPath(logPath, outputPath string) (string, error) {
	rel, err := toRelativePath(logPath, outputPath)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("output path is not within log directory")
	}
	return rel, nil
}

// ToRelativeInputDir converts an absolute chapter directory to relative
// based on the log location.
func ToRelativeInputDir(logPath, inputDir string) (string, error) {
	return toRelativePath(logPath, inputDir)
}

func toRelativePath(logPath, targetPath string) (string, error) {
	absLogDir, err := filepath.Abs(filepath.Dir(logPath))
	if err != nil {
		return "", err
	}
	absTarget, err := filepath.Abs(targetPath)
	if err != nil {
		return "", err
	}
	return filepath.Rel(absLogDir, absTarget)
}
