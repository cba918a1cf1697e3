package analysis

import (
	"strings"

	"github.com/rivo/uniseg"

	"github.com/okibee/mangalens/internal/apperrors"
)

const (
	// MaxWordGraphemes caps a single vocabulary word. Vision models
	// occasionally return an entire speech bubble as one "word".
	MaxWordGraphemes = 48
	// MaxReadingGraphemes caps a reading annotation.
	MaxReadingGraphemes = 96
)

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampRect clamps a rectangle into normalized [0,1] page coordinates,
// shrinking width/height so the rectangle stays inside the page.
func ClampRect(r Rect) Rect {
	r.X = clamp01(r.X)
	r.Y = clamp01(r.Y)
	r.Width = clamp01(r.Width)
	r.Height = clamp01(r.Height)
	if r.X+r.Width > 1 {
		r.Width = 1 - r.X
	}
	if r.Y+r.Height > 1 {
		r.Height = 1 - r.Y
	}
	return r
}

// Normalize cleans a TextAnalysis in place: trims whitespace, drops
// vocabulary items without a word or with absurd lengths, dedupes
// vocabulary by word+reading, and drops empty grammar patterns.
// It returns a validation error when no usable original text remains.
func (a *TextAnalysis) Normalize() error {
	a.OriginalText = strings.TrimSpace(a.OriginalText)
	a.Translation = strings.TrimSpace(a.Translation)

	seen := make(map[string]bool, len(a.Vocabulary))
	kept := a.Vocabulary[:0]
	for _, v := range a.Vocabulary {
		v.Word = strings.TrimSpace(v.Word)
		v.Reading = strings.TrimSpace(v.Reading)
		v.Meaning = strings.TrimSpace(v.Meaning)
		if v.Word == "" {
			continue
		}
		if uniseg.GraphemeClusterCount(v.Word) > MaxWordGraphemes {
			continue
		}
		if uniseg.GraphemeClusterCount(v.Reading) > MaxReadingGraphemes {
			v.Reading = ""
		}
		if v.Difficulty < 0 {
			v.Difficulty = 0
		}
		if v.Difficulty > 5 {
			v.Difficulty = 5
		}
		key := v.Word + "\x00" + v.Reading
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, v)
	}
	a.Vocabulary = kept

	grammar := a.Grammar[:0]
	for _, g := range a.Grammar {
		g.Pattern = strings.TrimSpace(g.Pattern)
		if g.Pattern == "" {
			continue
		}
		grammar = append(grammar, g)
	}
	a.Grammar = grammar

	sentences := a.Sentences[:0]
	for _, s := range a.Sentences {
		s.Text = strings.TrimSpace(s.Text)
		if s.Text == "" {
			continue
		}
		sentences = append(sentences, s)
	}
	a.Sentences = sentences

	if a.OriginalText == "" && len(a.Vocabulary) == 0 && len(a.Sentences) == 0 {
		return apperrors.New(apperrors.KindValidation, "analysis contains no text", nil)
	}
	return nil
}

// Normalize cleans a ReadingAnalysis in place: clamps marker coordinates
// into the page, drops zero-area or textless markers. It returns a
// validation error when no markers remain.
func (r *ReadingAnalysis) Normalize() error {
	r.Words = normalizeMarkers(r.Words)
	r.Sentences = normalizeMarkers(r.Sentences)
	if len(r.Words) == 0 && len(r.Sentences) == 0 {
		return apperrors.New(apperrors.KindValidation, "reading analysis contains no markers", nil)
	}
	return nil
}

func normalizeMarkers(in []Marker) []Marker {
	out := in[:0]
	for _, m := range in {
		m.Text = strings.TrimSpace(m.Text)
		if m.Text == "" {
			continue
		}
		m.Rect = ClampRect(m.Rect)
		if m.Area() <= 0 {
			continue
		}
		out = append(out, m)
	}
	return out
}
