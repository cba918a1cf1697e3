// Package names manages the character name glossary: stable renderings of
// character names that get injected into analysis prompts so a name is not
// transliterated three different ways across a chapter.
package names

import (
	"encoding/json"
	"fmt"

	"github.com/okibee/mangalens/internal/language"
)

// CharacterMapping pairs a character name in the source language with its
// chosen rendering in the target language.
type CharacterMapping struct {
	Source string
	Target string
}

func normalizeCode(code string) (string, error) {
	if lang, ok := language.GetSource(code); ok {
		return lang.Code, nil
	}
	if lang, ok := language.GetTarget(code); ok {
		return lang.Code, nil
	}
	return "", fmt.Errorf("unsupported language: %s", code)
}

func schemaKeys(sourceCode, targetCode string) (string, string, error) {
	src, err := normalizeCode(sourceCode)
	if err != nil {
		return "", "", err
	}
	tgt, err := normalizeCode(targetCode)
	if err != nil {
		return "", "", err
	}
	return src, tgt, nil
}

// EncodeMappings serializes mappings as a JSON array keyed by language codes,
// e.g. [{"ja": "竜馬", "en": "Ryoma"}].
func EncodeMappings(mappings []CharacterMapping, sourceCode, targetCode string) ([]byte, error) {
	sourceKey, targetKey, err := schemaKeys(sourceCode, targetCode)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, map[string]string{
			sourceKey: m.Source,
			targetKey: m.Target,
		})
	}
	return json.MarshalIndent(out, "", "  ")
}

// DecodeMappings parses a glossary file produced by EncodeMappings.
func DecodeMappings(data []byte, sourceCode, targetCode string) ([]CharacterMapping, error) {
	sourceKey, targetKey, err := schemaKeys(sourceCode, targetCode)
	if err != nil {
		return nil, err
	}
	var raw []map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	mappings := make([]CharacterMapping, 0, len(raw))
	for _, entry := range raw {
		srcVal, ok := entry[sourceKey]
		if !ok {
			return nil, fmt.Errorf("missing source field %q", sourceKey)
		}
		tgtVal, ok := entry[targetKey]
		if !ok {
			return nil, fmt.Errorf("missing target field %q", targetKey)
		}
		mappings = append(mappings, CharacterMapping{
			Source: srcVal,
			Target: tgtVal,
		})
	}
	return mappings, nil
}
