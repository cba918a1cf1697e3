package names

import (
	"fmt"
	"os"
)

// LoadMappingFile reads a glossary file and returns the source-to-target
// name dictionary used for prompt injection.
func LoadMappingFile(path, sourceCode, targetCode string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read names glossary %s: %w", path, err)
	}
	mappings, err := DecodeMappings(data, sourceCode, targetCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse names glossary %s: %w", path, err)
	}
	nameDict := make(map[string]string, len(mappings))
	for _, m := range mappings {
		nameDict[m.Source] = m.Target
	}
	return nameDict, nil
}
