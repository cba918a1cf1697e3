package names

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEncodeDecodeMappings_NormalizesZh(t *testing.T) {
	in := []CharacterMapping{{Source: "爱丽丝", Target: "Alice"}}
	data, err := EncodeMappings(in, "zh", "en")
	if err != nil {
		t.Fatalf("EncodeMappings failed: %v", err)
	}
	if !strings.Contains(string(data), `"zh-Hans"`) {
		t.Fatalf("expected zh-Hans key in output, got: %s", string(data))
	}
	out, err := DecodeMappings(data, "zh", "en")
	if err != nil {
		t.Fatalf("DecodeMappings failed: %v", err)
	}
	if len(out) != 1 || out[0].Source != "爱丽丝" || out[0].Target != "Alice" {
		t.Fatalf("unexpected decoded mappings: %+v", out)
	}
}

func TestDecodeMappings_MissingKey(t *testing.T) {
	data := []byte(`[{"ja":"竜馬"}]`)
	_, err := DecodeMappings(data, "ja", "en")
	if err == nil {
		t.Fatalf("expected error for missing target key")
	}
}

func TestEncodeMappings_UnsupportedLanguage(t *testing.T) {
	if _, err := EncodeMappings(nil, "tlh", "en"); err == nil {
		t.Fatal("expected error for unsupported language")
	}
}

func TestLoadMappingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "names.json")
	doc := `[{"ja":"竜馬","en":"Ryoma"},{"ja":"お登勢","en":"Otose"}]`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	dict, err := LoadMappingFile(path, "ja", "en")
	if err != nil {
		t.Fatalf("LoadMappingFile failed: %v", err)
	}
	if len(dict) != 2 || dict["竜馬"] != "Ryoma" || dict["お登勢"] != "Otose" {
		t.Fatalf("unexpected dictionary: %v", dict)
	}

	if _, err := LoadMappingFile(filepath.Join(dir, "missing.json"), "ja", "en"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
