package generator

import (
	"strings"
	"testing"
)

func TestRequestValidate(t *testing.T) {
	cases := []struct {
		req CommandRequest
		ok  bool
	}{
		{NewRequest("list files", ShellBash), true},
		{CommandRequest{Prompt: "list files"}, true},
		{NewRequest("", ShellBash), false},
		{NewRequest(" \t\n", ShellBash), false},
		{NewRequest(strings.Repeat("a", MaxPromptBytes+1), ShellBash), false},
		{CommandRequest{Prompt: "x", Shell: "tcsh"}, false},
		{CommandRequest{Prompt: "x", Safety: "yolo"}, false},
	}
	for i, c := range cases {
		err := c.req.Validate()
		if (err == nil) != c.ok {
			t.Fatalf("case %d: err=%v ok=%v", i, err, c.ok)
		}
		if err != nil && !IsInvalidRequest(err) {
			t.Fatalf("case %d: expected InvalidRequest, got %v", i, err)
		}
	}
}

func TestNormalizeDefaults(t *testing.T) {
	r := CommandRequest{Prompt: "x"}.Normalize()
	if r.Shell != ShellBash || r.Safety != SafetyModerate {
		t.Fatalf("unexpected defaults: %+v", r)
	}
}

func TestParseShellAndSafety(t *testing.T) {
	if s, err := ParseShell("PWSH"); err != nil || s != ShellPowerShell {
		t.Fatalf("pwsh -> %q %v", s, err)
	}
	if s, err := ParseShell(""); err != nil || s != ShellBash {
		t.Fatalf("empty -> %q %v", s, err)
	}
	if _, err := ParseShell("csh"); !IsInvalidRequest(err) {
		t.Fatalf("csh should be invalid: %v", err)
	}
	if s, err := ParseSafety("Strict"); err != nil || s != SafetyStrict {
		t.Fatalf("strict -> %q %v", s, err)
	}
	if _, err := ParseSafety("none"); !IsInvalidRequest(err) {
		t.Fatalf("none should be invalid: %v", err)
	}
}
