package names

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/okibee/mangalens/internal/imaging"
	"github.com/okibee/mangalens/internal/language"
	"github.com/okibee/mangalens/internal/llmjson"
	"github.com/okibee/mangalens/internal/provider"
)

// Extractor builds a glossary draft by asking a vision model to pick
// character names off sample pages. The draft is meant to be reviewed and
// edited before use.
type Extractor struct {
	client provider.Client
}

func NewExtractor(client provider.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract scans the given pages for character names and returns one mapping
// per distinct name. Later pages do not override earlier ones.
func (e *Extractor) Extract(ctx context.Context, pages []*imaging.Page, maxTokens int, src, tgt language.Language) ([]CharacterMapping, provider.Usage, error) {
	if len(pages) == 0 {
		return nil, provider.Usage{}, fmt.Errorf("at least one page is required")
	}
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	system := fmt.Sprintf(`You are building a character name glossary from %s manga pages.
List every character name that appears in the text of the image. For each name provide its standard %s rendering.
- The output MUST be a JSON object: {"characters": [{"%s": "...", "%s": "..."}]}.
- Return ONLY the name itself, no honorifics, brackets, or explanations.
- Skip names you are not confident about.
- Respond ONLY with the JSON object.`,
		src.Name, tgt.Name, src.Code, tgt.Code)

	var usage provider.Usage
	var mappings []CharacterMapping
	seen := map[string]bool{}

	for _, page := range pages {
		resp, err := e.client.Analyze(ctx, provider.Request{
			Image:           page.Data,
			MIMEType:        page.MIMEType,
			Prompt:          "Extract the character names from this page.",
			System:          system,
			MaxOutputTokens: maxTokens,
		})
		if resp != nil {
			usage.Add(resp.Usage)
		}
		if err != nil {
			return nil, usage, err
		}

		pageMappings, err := parseExtraction(resp.Text, src.Code, tgt.Code)
		if err != nil {
			return nil, usage, fmt.Errorf("page %s: %w", page.Path, err)
		}
		for _, m := range pageMappings {
			if m.Source == "" || m.Target == "" || seen[m.Source] {
				continue
			}
			seen[m.Source] = true
			mappings = append(mappings, m)
		}
	}
	return mappings, usage, nil
}

func parseExtraction(raw, sourceKey, targetKey string) ([]CharacterMapping, error) {
	doc, err := llmjson.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("no JSON in extraction reply: %w", err)
	}
	var parsed struct {
		Characters []map[string]string `json:"characters"`
	}
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse character mapping: %w", err)
	}
	mappings := make([]CharacterMapping, 0, len(parsed.Characters))
	for _, entry := range parsed.Characters {
		mappings = append(mappings, CharacterMapping{
			Source: cleanName(entry[sourceKey]),
			Target: cleanName(entry[targetKey]),
		})
	}
	return mappings, nil
}

var (
	urlRegex     = regexp.MustCompile(`https?://[^\s\]\)]+`)
	bracketRegex = regexp.MustCompile(`\[.*?\]|\(.*?\)|<.*?>`)
)

// cleanName strips URLs and bracketed annotations the model sometimes
// attaches to names.
func cleanName(name string) string {
	name = urlRegex.ReplaceAllString(name, "")
	name = bracketRegex.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}
