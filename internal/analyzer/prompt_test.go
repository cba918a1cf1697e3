package analyzer

import (
	"strings"
	"testing"

	"github.com/okibee/mangalens/internal/config"
	"github.com/okibee/mangalens/internal/language"
)

func TestBuildSystemPrompt_FeatureToggles(t *testing.T) {
	src, _ := language.GetSource("ja")
	tgt, _ := language.GetTarget("en")

	full := BuildSystemPrompt(src, tgt, config.Features{Vocabulary: true, Grammar: true, Translation: true}, nil)
	for _, want := range []string{"'original_text'", "'translation'", "'vocabulary'", "'grammar_patterns'", "'sentences'", "Japanese", "English", "hiragana"} {
		if !strings.Contains(full, want) {
			t.Errorf("full prompt missing %s", want)
		}
	}

	bare := BuildSystemPrompt(src, tgt, config.Features{}, nil)
	for _, absent := range []string{"'translation'", "'vocabulary'", "'grammar_patterns'"} {
		if strings.Contains(bare, absent) {
			t.Errorf("prompt with all features off still mentions %s", absent)
		}
	}
	if !strings.Contains(bare, "'original_text'") {
		t.Error("original_text must always be requested")
	}
}

func TestBuildSystemPrompt_NamesInjection(t *testing.T) {
	src, _ := language.GetSource("ja")
	tgt, _ := language.GetTarget("en")

	names := map[string]string{"竜馬": "Ryoma", "お登勢": "Otose"}
	prompt := BuildSystemPrompt(src, tgt, config.Features{Translation: true}, names)
	if !strings.Contains(prompt, "竜馬 -> Ryoma") || !strings.Contains(prompt, "お登勢 -> Otose") {
		t.Errorf("names mapping not injected:\n%s", prompt)
	}

	// Stable ordering so reruns produce identical prompts.
	again := BuildSystemPrompt(src, tgt, config.Features{Translation: true}, names)
	if prompt != again {
		t.Error("prompt not deterministic across calls")
	}
}

func TestBuildReadingSystemPrompt(t *testing.T) {
	src, _ := language.GetSource("ko")
	tgt, _ := language.GetTarget("de")

	prompt := BuildReadingSystemPrompt(src, tgt)
	for _, want := range []string{"'words'", "'sentences'", "Korean", "German", "revised_romanization", "0.0 and 1.0"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("reading prompt missing %s", want)
		}
	}
}
