package llm

import "testing"

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"the quick brown fox jumps over the lazy dog", 11},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.text); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.text, got, tc.want)
		}
	}
}

func TestValidateMessages(t *testing.T) {
	if err := ValidateMessages(nil); err == nil {
		t.Error("nil messages should be rejected")
	}
	if err := ValidateMessages([]Message{{Role: "robot", Content: "x"}}); err == nil {
		t.Error("unknown role should be rejected")
	}
	if err := ValidateMessages([]Message{{Role: RoleUser, Content: "x"}}); err != nil {
		t.Errorf("valid message rejected: %v", err)
	}
}

func TestSplitSystem(t *testing.T) {
	system, rest := SplitSystem([]Message{
		{Role: RoleSystem, Content: "A"},
		{Role: RoleUser, Content: "U"},
		{Role: RoleSystem, Content: "B"},
	})
	if system != "A\n\nB" {
		t.Errorf("system = %q", system)
	}
	if len(rest) != 1 || rest[0].Content != "U" {
		t.Errorf("rest = %+v", rest)
	}
}
