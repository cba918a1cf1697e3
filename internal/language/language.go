package language

import (
	"sort"
)

// Language represents a supported language with its configuration.
type Language struct {
	Code string
	Name string
	// ReadingScript names the phonetic annotation script used for word
	// readings in analysis output. Empty for languages where readings
	// are not annotated.
	ReadingScript string
}

// Sources is a map of supported source languages (the language of the page
// being analyzed) code -> Language.
var Sources = map[string]Language{
	"ja":      {Code: "ja", Name: "Japanese", ReadingScript: "hiragana"},
	"ko":      {Code: "ko", Name: "Korean", ReadingScript: "revised_romanization"},
	"zh":      {Code: "zh-Hans", Name: "Chinese (Simplified)", ReadingScript: "pinyin"}, // Default to Simplified
	"zh-Hans": {Code: "zh-Hans", Name: "Chinese (Simplified)", ReadingScript: "pinyin"},
	"zh-Hant": {Code: "zh-Hant", Name: "Chinese (Traditional)", ReadingScript: "pinyin"},
}

// Targets is a map of supported target languages (the learner's language)
// code -> Language.
var Targets = map[string]Language{
	"ar": {Code: "ar", Name: "Arabic"},
	"de": {Code: "de", Name: "German"},
	"en": {Code: "en", Name: "English"},
	"es": {Code: "es", Name: "Spanish"},
	"fr": {Code: "fr", Name: "French"},
	"hi": {Code: "hi", Name: "Hindi"},
	"id": {Code: "id", Name: "Indonesian"},
	"it": {Code: "it", Name: "Italian"},
	"ms": {Code: "ms", Name: "Malay"},
	"nl": {Code: "nl", Name: "Dutch"},
	"pl": {Code: "pl", Name: "Polish"},
	"pt": {Code: "pt", Name: "Portuguese"},
	"ru": {Code: "ru", Name: "Russian"},
	"th": {Code: "th", Name: "Thai"},
	"tr": {Code: "tr", Name: "Turkish"},
	"uk": {Code: "uk", Name: "Ukrainian"},
	"vi": {Code: "vi", Name: "Vietnamese"},
}

// GetSource returns the source language for code, or false if unsupported.
func GetSource(code string) (Language, bool) {
	lang, ok := Sources[code]
	return lang, ok
}

// GetTarget returns the target language for code, or false if unsupported.
func GetTarget(code string) (Language, bool) {
	lang, ok := Targets[code]
	return lang, ok
}

// Entry represents a map entry for listing.
type Entry struct {
	ID string // The map key (CLI flag)
	Language
}

func sortedEntries(m map[string]Language) []Entry {
	entries := make([]Entry, 0, len(m))
	for k, v := range m {
		entries = append(entries, Entry{ID: k, Language: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Name != entries[j].Name {
			return entries[i].Name < entries[j].Name
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

// SupportedSources returns the source languages sorted by Name and then ID.
func SupportedSources() []Entry {
	return sortedEntries(Sources)
}

// SupportedTargets returns the target languages sorted by Name and then ID.
func SupportedTargets() []Entry {
	return sortedEntries(Targets)
}
