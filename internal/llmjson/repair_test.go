package llmjson

import (
	"encoding/json"
	"testing"
)

func TestRepair(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "already valid",
			in:   `{"a":1}`,
			want: `{"a":1}`,
		},
		{
			name: "unbalanced object",
			in:   `{"a":1`,
			want: `{"a":1}`,
		},
		{
			name: "nested unbalanced",
			in:   `{"a":[1,2`,
			want: `{"a":[1,2]}`,
		},
		{
			name: "dangling string value",
			in:   `{"translation":"The cat sat on the`,
			want: `{"translation":"The cat sat on the"}`,
		},
		{
			name: "dangling key dropped",
			in:   `{"original_text":"猫","transl`,
			want: `{"original_text":"猫"}`,
		},
		{
			name: "key without value dropped",
			in:   `{"a":"b","c":`,
			want: `{"a":"b"}`,
		},
		{
			name: "trailing comma stripped",
			in:   `{"a":[1,2,],}`,
			want: `{"a":[1,2]}`,
		},
		{
			name: "trailing comma at cut",
			in:   `{"vocabulary":[{"word":"猫"},`,
			want: `{"vocabulary":[{"word":"猫"}]}`,
		},
		{
			name: "partial literal dropped",
			in:   `{"a":1,"b":tru`,
			want: `{"a":1}`,
		},
		{
			name: "complete literal kept",
			in:   `{"a":true`,
			want: `{"a":true}`,
		},
		{
			name: "complete number kept",
			in:   `{"x":0.42`,
			want: `{"x":0.42}`,
		},
		{
			name: "truncated escape",
			in:   `{"a":"line\`,
			want: `{"a":"line"}`,
		},
		{
			name: "array element string kept",
			in:   `["ab","cd`,
			want: `["ab","cd"]`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Repair(tc.in)
			if got != tc.want {
				t.Errorf("Repair(%q) = %q, want %q", tc.in, got, tc.want)
			}
			if !json.Valid([]byte(got)) {
				t.Errorf("Repair(%q) produced invalid JSON: %q", tc.in, got)
			}
		})
	}
}

func TestRepair_TruncatedRealWorldReply(t *testing.T) {
	// A reply cut mid-vocabulary-item at a token limit.
	in := `{
  "original_text": "今日はいい天気ですね",
  "translation": "Nice weather today, isn't it?",
  "vocabulary": [
    {"word": "今日", "reading": "きょう", "meaning": "today"},
    {"word": "天気", "reading": "てん`

	got := Repair(in)
	var m struct {
		OriginalText string `json:"original_text"`
		Vocabulary   []struct {
			Word string `json:"word"`
		} `json:"vocabulary"`
	}
	if err := json.Unmarshal([]byte(got), &m); err != nil {
		t.Fatalf("repaired JSON does not parse: %v\n%s", err, got)
	}
	if m.OriginalText != "今日はいい天気ですね" {
		t.Errorf("original_text = %q", m.OriginalText)
	}
	if len(m.Vocabulary) < 1 || m.Vocabulary[0].Word != "今日" {
		t.Errorf("vocabulary = %+v, want at least the first complete item", m.Vocabulary)
	}
}
