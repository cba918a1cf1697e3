package llmjson

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/apperrors"
)

// ParseTextAnalysis parses a raw model reply into a TextAnalysis, applying
// recovery layers in order. The Provenance.Source of the result records how
// much recovery was needed. A validation error is returned only when every
// layer fails; callers needing a non-nil result should then use
// FallbackTextAnalysis.
func ParseTextAnalysis(raw string) (*analysis.TextAnalysis, error) {
	// Layer 1: strict parse of the whole reply.
	if a, ok := unmarshalTextAnalysis(raw); ok {
		a.Provenance.Source = analysis.SourceModel
		return finishText(a)
	}

	// Layer 2: extraction (fences, preamble, balanced scan).
	extracted, extractErr := Extract(raw)
	if extractErr == nil {
		if a, ok := unmarshalTextAnalysis(extracted); ok {
			a.Provenance.Source = analysis.SourceModel
			return finishText(a)
		}

		// Layer 3: truncation repair on the extracted candidate.
		if a, ok := unmarshalTextAnalysis(Repair(extracted)); ok {
			a.Provenance.Source = analysis.SourceRepaired
			return finishText(a)
		}
	}

	// Layer 4: regex partial extraction from the original reply.
	if a, ok := extractPartialText(raw); ok {
		a.Provenance.Source = analysis.SourcePartial
		return finishText(a)
	}

	return nil, apperrors.New(apperrors.KindValidation,
		"could not parse analysis response", fmt.Errorf("all recovery layers failed: %w", firstError(extractErr)))
}

// ParseReadingAnalysis parses a raw model reply into a ReadingAnalysis with
// the same layering as ParseTextAnalysis minus regex extraction (markers
// without coordinates are useless).
func ParseReadingAnalysis(raw string) (*analysis.ReadingAnalysis, error) {
	if r, ok := unmarshalReadingAnalysis(raw); ok {
		r.Provenance.Source = analysis.SourceModel
		return finishReading(r)
	}

	extracted, extractErr := Extract(raw)
	if extractErr == nil {
		if r, ok := unmarshalReadingAnalysis(extracted); ok {
			r.Provenance.Source = analysis.SourceModel
			return finishReading(r)
		}
		if r, ok := unmarshalReadingAnalysis(Repair(extracted)); ok {
			r.Provenance.Source = analysis.SourceRepaired
			return finishReading(r)
		}
	}

	return nil, apperrors.New(apperrors.KindValidation,
		"could not parse reading analysis response", fmt.Errorf("all recovery layers failed: %w", firstError(extractErr)))
}

func firstError(err error) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("response is not valid JSON")
}

func unmarshalTextAnalysis(s string) (*analysis.TextAnalysis, bool) {
	var a analysis.TextAnalysis
	if err := json.Unmarshal([]byte(s), &a); err == nil && !emptyText(&a) {
		return &a, true
	}
	// Bare-array form: some models reply with just the vocabulary list.
	var vocab []analysis.VocabularyItem
	if err := json.Unmarshal([]byte(s), &vocab); err == nil && len(vocab) > 0 {
		return &analysis.TextAnalysis{Vocabulary: vocab}, true
	}
	return nil, false
}

func emptyText(a *analysis.TextAnalysis) bool {
	return a.OriginalText == "" && a.Translation == "" &&
		len(a.Vocabulary) == 0 && len(a.Grammar) == 0 && len(a.Sentences) == 0
}

func unmarshalReadingAnalysis(s string) (*analysis.ReadingAnalysis, bool) {
	var r analysis.ReadingAnalysis
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, false
	}
	if len(r.Words) == 0 && len(r.Sentences) == 0 {
		return nil, false
	}
	return &r, true
}

func finishText(a *analysis.TextAnalysis) (*analysis.TextAnalysis, error) {
	if err := a.Normalize(); err != nil {
		return nil, err
	}
	return a, nil
}

func finishReading(r *analysis.ReadingAnalysis) (*analysis.ReadingAnalysis, error) {
	if err := r.Normalize(); err != nil {
		return nil, err
	}
	return r, nil
}

// Partial field extraction. These patterns assume double-quoted JSON string
// values without embedded escaped quotes; anything stranger already failed
// structural repair and this is a last salvage attempt.
var (
	originalTextRe = regexp.MustCompile(`"original_text"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	translationRe  = regexp.MustCompile(`"translation"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	vocabItemRe    = regexp.MustCompile(`\{\s*"word"\s*:\s*"((?:[^"\\]|\\.)*)"\s*,\s*"reading"\s*:\s*"((?:[^"\\]|\\.)*)"\s*,\s*"meaning"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

func extractPartialText(raw string) (*analysis.TextAnalysis, bool) {
	a := &analysis.TextAnalysis{}
	if m := originalTextRe.FindStringSubmatch(raw); m != nil {
		a.OriginalText = unescapeJSONString(m[1])
	}
	if m := translationRe.FindStringSubmatch(raw); m != nil {
		a.Translation = unescapeJSONString(m[1])
	}
	for _, m := range vocabItemRe.FindAllStringSubmatch(raw, -1) {
		a.Vocabulary = append(a.Vocabulary, analysis.VocabularyItem{
			Word:    unescapeJSONString(m[1]),
			Reading: unescapeJSONString(m[2]),
			Meaning: unescapeJSONString(m[3]),
		})
	}
	if emptyText(a) {
		return nil, false
	}
	return a, true
}

func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}

// FallbackTextAnalysis builds the clearly labeled object returned when every
// recovery layer failed. The raw reply is preserved as original text so the
// user sees what the model actually said; parseErr goes into Notes.
func FallbackTextAnalysis(raw string, parseErr error) *analysis.TextAnalysis {
	notes := "response could not be parsed"
	if parseErr != nil {
		notes = "response could not be parsed: " + apperrors.PublicMessage(parseErr)
	}
	return &analysis.TextAnalysis{
		OriginalText: truncateForDisplay(raw, 2000),
		Provenance: analysis.Provenance{
			Source: analysis.SourceFallback,
			Notes:  notes,
		},
	}
}

func truncateForDisplay(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Cut at a rune boundary.
	cut := max
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut] + "…"
}
