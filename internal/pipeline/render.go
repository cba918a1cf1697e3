package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okibee/mangalens/internal/analysis"
	"github.com/okibee/mangalens/internal/language"
	"github.com/rivo/uniseg"
)

// Render serializes a chapter report in the requested format.
func Render(report *analysis.ChapterReport, format string) ([]byte, error) {
	switch format {
	case "", FormatJSON:
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatText:
		return renderText(report), nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want json or text)", format)
	}
}

// renderText produces a plain-text study report. CJK text is padded by
// display width so vocabulary columns line up in a terminal.
func renderText(report *analysis.ChapterReport) []byte {
	var b strings.Builder

	title := fmt.Sprintf("Analysis report (%s -> %s)", langName(report.SourceLang, true), langName(report.TargetLang, false))
	b.WriteString(title + "\n")
	b.WriteString(strings.Repeat("=", uniseg.StringWidth(title)) + "\n")

	for i, page := range report.Pages {
		heading := fmt.Sprintf("\nPage %d: %s", i+1, page.File)
		b.WriteString(heading + "\n")
		b.WriteString(strings.Repeat("-", uniseg.StringWidth(heading)-1) + "\n")

		if page.Failed || page.Analysis == nil {
			b.WriteString("  [analysis failed]\n")
			continue
		}
		a := page.Analysis

		switch a.Provenance.Source {
		case analysis.SourceFallback:
			b.WriteString("  [model reply could not be parsed; raw text below]\n")
		case analysis.SourceRepaired, analysis.SourcePartial:
			b.WriteString("  [recovered from a truncated model reply; may be incomplete]\n")
		}

		writeBlock(&b, "Original", a.OriginalText)
		writeBlock(&b, "Translation", a.Translation)

		if len(a.Vocabulary) > 0 {
			b.WriteString("\nVocabulary:\n")
			writeVocabulary(&b, a.Vocabulary)
		}
		if len(a.Grammar) > 0 {
			b.WriteString("\nGrammar:\n")
			for _, g := range a.Grammar {
				b.WriteString("  - " + g.Pattern + ": " + g.Explanation + "\n")
				if g.Example != "" {
					b.WriteString("      e.g. " + g.Example + "\n")
				}
			}
		}
		if len(a.Sentences) > 0 {
			b.WriteString("\nSentences:\n")
			for _, s := range a.Sentences {
				b.WriteString("  " + s.Text + "\n")
				if s.Translation != "" {
					b.WriteString("    " + s.Translation + "\n")
				}
				if s.Notes != "" {
					b.WriteString("    (" + s.Notes + ")\n")
				}
			}
		}
	}
	return []byte(b.String())
}

func langName(code string, source bool) string {
	if source {
		if lang, ok := language.GetSource(code); ok {
			return lang.Name
		}
	} else if lang, ok := language.GetTarget(code); ok {
		return lang.Name
	}
	return code
}

func writeBlock(b *strings.Builder, label, text string) {
	if text == "" {
		return
	}
	b.WriteString("\n" + label + ":\n")
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}
}

// writeVocabulary lines up word, reading, and part of speech columns using
// terminal display width rather than rune count.
func writeVocabulary(b *strings.Builder, items []analysis.VocabularyItem) {
	wordW, readingW, posW := 0, 0, 0
	for _, v := range items {
		wordW = max(wordW, uniseg.StringWidth(v.Word))
		readingW = max(readingW, uniseg.StringWidth(v.Reading))
		posW = max(posW, uniseg.StringWidth(v.PartOfSpeech))
	}
	for _, v := range items {
		b.WriteString("  " + padDisplay(v.Word, wordW))
		b.WriteString("  " + padDisplay(v.Reading, readingW))
		b.WriteString("  " + padDisplay(v.PartOfSpeech, posW))
		if v.Difficulty > 0 {
			b.WriteString(fmt.Sprintf("  %d/5", v.Difficulty))
		} else {
			b.WriteString("     ")
		}
		b.WriteString("  " + v.Meaning + "\n")
	}
}

func padDisplay(s string, width int) string {
	pad := width - uniseg.StringWidth(s)
	if pad <= 0 {
		return s
	}
	return s + strings.Repeat(" ", pad)
}
