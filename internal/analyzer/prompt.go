package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/language"
)

// BuildSystemPrompt generates the system instruction for page text analysis.
// Schema fields are included only for the enabled features so the model does
// not waste output tokens on content the user turned off.
func BuildSystemPrompt(src, tgt language.Language, features config.Features, names map[string]string) string {
	var fields []string
	fields = append(fields, "  - 'original_text': All "+src.Name+" text on the page, transcribed in natural reading order.")
	if features.Translation {
		fields = append(fields, "  - 'translation': A fluent "+tgt.Name+" translation of the page text.")
	}
	if features.Vocabulary {
		fields = append(fields, "  - 'vocabulary': An array of objects with 'word', 'reading' ("+src.ReadingScript+"), 'meaning' (in "+tgt.Name+"), 'part_of_speech', and 'difficulty' (1 = beginner to 5 = advanced).")
	}
	if features.Grammar {
		fields = append(fields, "  - 'grammar_patterns': An array of objects with 'pattern', 'explanation' (in "+tgt.Name+"), and 'example' taken from the page.")
	}
	fields = append(fields, "  - 'sentences': An array of objects with 'text' ("+src.Name+" sentence), 'translation', and 'notes' for anything idiomatic.")

	prompt := fmt.Sprintf(`You are an expert %s teacher analyzing a manga page for a %s-speaking learner.
Read ALL text in the image: speech bubbles, narration boxes, and sound effects.

1. Output Structure:
- The output MUST be a single JSON object with these fields:
%s
- Respond ONLY with the JSON object.

2. Rules:
- Transcribe text exactly as printed; do not normalize kana or simplify characters.
- Keep explanations concise and aimed at a language learner.
- Sound effects belong in 'original_text' but not in 'sentences'.`,
		src.Name, tgt.Name, strings.Join(fields, "\n"))

	if len(names) > 0 {
		keys := make([]string, 0, len(names))
		for k := range names {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteString("\n\nCRITICAL: The following character names MUST be rendered as specified:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s -> %s\n", k, names[k])
		}
		prompt += b.String()
	}
	return prompt
}

// BuildReadingSystemPrompt generates the system instruction for reading
// assistance: positioned word and sentence markers with readings.
func BuildReadingSystemPrompt(src, tgt language.Language) string {
	return fmt.Sprintf(`You are analyzing a manga page to place reading aids for a %s learner.
Locate every piece of %s text in the image and report its position.

1. Output Structure:
- The output MUST be a single JSON object with these fields:
  - 'words': An array of objects with 'x', 'y', 'width', 'height', 'text', 'reading' (%s), and 'meaning' (in %s).
  - 'sentences': An array of objects with 'x', 'y', 'width', 'height', 'text', and 'meaning' (a %s translation).
- All coordinates are fractions of the image size between 0.0 and 1.0, with the origin at the top-left corner.
- Respond ONLY with the JSON object.

2. Rules:
- A word marker covers a single word or compound; a sentence marker covers a whole bubble or box.
- Skip decorative sound effects that have no lexical content.`,
		src.Name, src.Name, src.ReadingScript, tgt.Name, tgt.Name)
}

// TextUserPrompt is the per-request instruction sent with the page image.
func TextUserPrompt(src language.Language) string {
	return "Analyze the " + src.Name + " text on this manga page and respond with the JSON object described in your instructions."
}

// ReadingUserPrompt is the per-request instruction for reading analysis.
func ReadingUserPrompt(src language.Language) string {
	return "Locate the " + src.Name + " text on this manga page and respond with the JSON object described in your instructions."
}
