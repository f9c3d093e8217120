package utils

import "testing"

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		limit  int
		expect string
	}{
		{name: "non-positive limit", input: "hello world", limit: 0, expect: ""},
		{name: "short value unchanged", input: "hello", limit: 10, expect: "hello"},
		{name: "cut value reports dropped runes", input: "hello world", limit: 5, expect: "hello... (+6 chars)"},
		{name: "multi-line response flattened", input: "{\n  \"final_score\": 91\n}\n", limit: 40, expect: `{ "final_score": 91 }`},
		{name: "runes not bytes", input: "Привет мир", limit: 6, expect: "Привет... (+4 chars)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TruncateForLog(tt.input, tt.limit); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}
