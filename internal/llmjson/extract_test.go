package llmjson

import (
	"encoding/json"
	"testing"
)

func TestExtract(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "clean object untouched",
			in:   `{"original_text":"猫"}`,
			want: `{"original_text":"猫"}`,
		},
		{
			name: "json fence",
			in:   "```json\n{\"original_text\":\"猫\"}\n```",
			want: `{"original_text":"猫"}`,
		},
		{
			name: "generic fence",
			in:   "```\n{\"a\":1}\n```",
			want: `{"a":1}`,
		},
		{
			name: "preamble and suffix prose",
			in:   "Here is the analysis you asked for:\n{\"a\":1}\nLet me know if you need more.",
			want: `{"a":1}`,
		},
		{
			name: "bare array",
			in:   "Sure!\n[{\"word\":\"猫\"}]",
			want: `[{"word":"猫"}]`,
		},
		{
			name: "braces inside strings ignored",
			in:   `{"text":"a } in a string"} trailing`,
			want: `{"text":"a } in a string"}`,
		},
		{
			name: "escaped quote inside string",
			in:   `{"text":"she said \"hi\""} end`,
			want: `{"text":"she said \"hi\""}`,
		},
		{
			name: "truncated object returned as-is for repair",
			in:   `{"original_text":"猫","vocabulary":[{"word"`,
			want: `{"original_text":"猫","vocabulary":[{"word"`,
		},
		{
			name: "truncated with trailing prose trimmed",
			in:   "{\"a\":[1,2]\nI ran out of tokens",
			want: `{"a":[1,2]`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Extract(tc.in)
			if err != nil {
				t.Fatalf("Extract() error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Extract() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestExtract_NoJSON(t *testing.T) {
	for _, in := range []string{"", "   ", "I cannot analyze this image."} {
		if _, err := Extract(in); err == nil {
			t.Errorf("Extract(%q) expected error", in)
		}
	}
}

func TestScanBalanced(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{`{}`, 2},
		{`{"a":[1,{"b":2}]}`, 17},
		{`{"a":1} extra`, 7},
		{`{"a":1`, -1},
		{`{"a":"}"}`, 9},
		{`{]`, -1},
	}
	for _, tc := range cases {
		if got := scanBalanced(tc.in); got != tc.want {
			t.Errorf("scanBalanced(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestExtract_ResultIsParseable(t *testing.T) {
	in := "The page contains a greeting.\n```json\n" +
		`{"original_text": "おはよう", "translation": "Good morning", "vocabulary": []}` +
		"\n```\nHope that helps!"
	got, err := Extract(in)
	if err != nil {
		t.Fatalf("Extract() error: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("extracted text is not valid JSON: %v\n%s", err, got)
	}
	if m["original_text"] != "おはよう" {
		t.Errorf("original_text = %v", m["original_text"])
	}
}
