package json

import (
	"strings"
	"testing"
)

type scriptPlan struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func TestExtractShapes(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"pure", `{"name": "a.py", "content": "print(1)"}`},
		{"prefix", `Here you go: {"name": "a.py", "content": "print(1)"}`},
		{"suffix", `{"name": "a.py", "content": "print(1)"} That's it.`},
		{"fenced", "```json\n{\"name\": \"a.py\", \"content\": \"print(1)\"}\n```"},
		{"fenced in prose", "Sure.\n```\n{\"name\": \"a.py\", \"content\": \"print(1)\"}\n```\nDone."},
		{"braces in strings", `note {not json} then {"name": "a.py", "content": "print(1)"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONFromResponse[scriptPlan](tt.response)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Name != "a.py" || got.Content != "print(1)" {
				t.Errorf("unexpected result: %+v", got)
			}
		})
	}
}

func TestExtractKeepsFencesInsideStrings(t *testing.T) {
	response := "{\"name\": \"README.md\", \"content\": \"```python\\nprint(1)\\n```\"}"
	got, err := ExtractJSONFromResponse[scriptPlan](response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Content != "```python\nprint(1)\n```" {
		t.Errorf("content mangled: %q", got.Content)
	}
}

func TestExtractBraceInsideString(t *testing.T) {
	response := `Result: {"name": "f.py", "content": "print('}')"} trailing`
	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != `{"name": "f.py", "content": "print('}')"}` {
		t.Errorf("unexpected extraction: %s", got)
	}
}

func TestNoJSON(t *testing.T) {
	_, err := ExtractJSONFromResponse[scriptPlan]("This is just plain text without any JSON.")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to extract valid JSON") {
		t.Errorf("expected 'failed to extract valid JSON' in error, got: %v", err)
	}
}

func TestInvalidJSON(t *testing.T) {
	if _, err := ExtractJSON(`{"name": "test", value: }`); err == nil {
		t.Fatal("expected error, got nil")
	}
}

func TestExtractErrorPreviewTruncatesByRune(t *testing.T) {
	_, err := ExtractJSON(strings.Repeat("ü", 120))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), strings.Repeat("ü", 100)+"...") || strings.Contains(err.Error(), strings.Repeat("ü", 101)) {
		t.Errorf("expected a 100-rune preview, got %q", err.Error())
	}
}
