// Package analysis defines the structured result types produced by page
// analysis and the validation rules applied before results are rendered.
package analysis

// Source values recorded in the Provenance of a result.
const (
	SourceModel    = "model"
	SourceRepaired = "repaired"
	SourcePartial  = "partial"
	SourceFallback = "fallback"
)

// Provenance records where an analysis came from.
type Provenance struct {
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
	// Source is one of SourceModel, SourceRepaired, SourcePartial or
	// SourceFallback depending on how much recovery was needed to parse
	// the reply.
	Source string `json:"source,omitempty"`
	// Notes carries a human-readable explanation when Source is not
	// SourceModel (e.g. the parse error that forced a fallback).
	Notes string `json:"notes,omitempty"`
}

// VocabularyItem is a single word the model extracted from the page.
type VocabularyItem struct {
	Word         string `json:"word"`
	Reading      string `json:"reading,omitempty"`
	Meaning      string `json:"meaning"`
	PartOfSpeech string `json:"part_of_speech,omitempty"`
	// Difficulty is a 1 (beginner) to 5 (advanced) estimate. 0 means
	// the model did not rate the word.
	Difficulty int `json:"difficulty,omitempty"`
}

// GrammarPattern is a grammar point the model identified.
type GrammarPattern struct {
	Pattern     string `json:"pattern"`
	Explanation string `json:"explanation"`
	Example     string `json:"example,omitempty"`
}

// Sentence is one sentence of the page text with its translation.
type Sentence struct {
	Text        string `json:"text"`
	Translation string `json:"translation,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// TextAnalysis is the structured result of analyzing one page.
type TextAnalysis struct {
	OriginalText string           `json:"original_text"`
	Translation  string           `json:"translation,omitempty"`
	Vocabulary   []VocabularyItem `json:"vocabulary,omitempty"`
	Grammar      []GrammarPattern `json:"grammar_patterns,omitempty"`
	Sentences    []Sentence       `json:"sentences,omitempty"`

	Provenance Provenance `json:"provenance,omitempty"`
}

// Rect is a rectangle in normalized page coordinates. X and Y locate the
// top-left corner; all four fields are in [0,1] relative to page size.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Area returns the normalized area of the rectangle.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Marker is a clickable region in interactive reading mode.
type Marker struct {
	Rect
	Text    string `json:"text"`
	Reading string `json:"reading,omitempty"`
	Meaning string `json:"meaning,omitempty"`
}

// ReadingAnalysis is the structured result for interactive reading mode:
// word and sentence markers positioned on the page.
type ReadingAnalysis struct {
	Words     []Marker `json:"words,omitempty"`
	Sentences []Marker `json:"sentences,omitempty"`

	Provenance Provenance `json:"provenance,omitempty"`
}

// Panel is a rectangular sub-region of a page in reading order.
type Panel struct {
	Rect
	// Order is the 1-based position in reading order.
	Order int `json:"order"`
}

// PageResult pairs one page file with its analysis inside a chapter report.
// Failed pages keep their place in the report so a later repair run can fill
// them in.
type PageResult struct {
	File     string        `json:"file"`
	Failed   bool          `json:"failed,omitempty"`
	Analysis *TextAnalysis `json:"analysis,omitempty"`
}

// ChapterReport is the result of analyzing a whole chapter directory.
type ChapterReport struct {
	SourceLang string       `json:"source_lang"`
	TargetLang string       `json:"target_lang"`
	Pages      []PageResult `json:"pages"`
}
