package generator

import (
	"strings"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt(CommandRequest{Prompt: "list files", Shell: ShellFish, Safety: SafetyStrict})
	for _, want := range []string{"list files", "fish", "JSON", `"cmd"`, "privileged"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q:\n%s", want, p)
		}
	}
	// defaults applied
	if p := BuildPrompt(CommandRequest{Prompt: "x"}); !strings.Contains(p, "Target shell: bash") {
		t.Fatalf("expected bash default:\n%s", p)
	}
}

func TestParseCommand(t *testing.T) {
	cases := []struct {
		raw      string
		want     string
		warnings int
		fail     bool
	}{
		{`{"cmd": "ls -la"}`, "ls -la", 0, false},
		{"  {\"cmd\": \"  du -sh .  \"}\n", "du -sh .", 0, false},
		{`Here's the command: {"cmd": "find . -name '*.txt'"} - that should work!`, "find . -name '*.txt'", 1, false},
		{"cmd: \"ps aux\"", "ps aux", 1, false},
		{"This is not JSON at all", "", 0, true},
		{`{"cmd": ""}`, "", 0, true},
		{"", "", 0, true},
	}
	for _, c := range cases {
		got, warns, err := ParseCommand(c.raw)
		if c.fail {
			if err == nil || !IsGenerationFailed(err) {
				t.Fatalf("%q: expected GenerationFailed, got %v", c.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: %v", c.raw, err)
		}
		if got != c.want || len(warns) != c.warnings {
			t.Fatalf("%q -> %q (%d warnings), want %q (%d)", c.raw, got, len(warns), c.want, c.warnings)
		}
	}
}

func TestParseCommandTruncatesLongResponse(t *testing.T) {
	_, _, err := ParseCommand(strings.Repeat("x", 500))
	if err == nil || !strings.Contains(err.Error(), "truncated") {
		t.Fatalf("expected truncated detail, got %v", err)
	}
}
