package generator

import (
	"encoding/json"
	"fmt"
	"strings"
)

// BuildPrompt renders the instruction prompt sent to a model for req.
func BuildPrompt(req CommandRequest) string {
	req = req.Normalize()
	var b strings.Builder
	b.WriteString("You are a helpful assistant that converts natural language to shell commands.\n\n")
	b.WriteString("Respond with ONLY valid JSON in this exact format:\n")
	b.WriteString(`{"cmd": "your_shell_command_here"}`)
	b.WriteString("\n\nRules:\n")
	b.WriteString("1. Generate ONLY the shell command, no explanation\n")
	fmt.Fprintf(&b, "2. Target shell: %s\n", req.Shell)
	b.WriteString("3. Quote file paths with spaces using double quotes\n")
	switch req.Safety {
	case SafetyStrict:
		b.WriteString("4. NEVER generate destructive or privileged commands (rm -rf, mkfs, dd, sudo, chmod -R)\n")
		b.WriteString("5. Prefer read-only commands\n")
	case SafetyModerate:
		b.WriteString("4. NEVER generate destructive commands (rm -rf /, mkfs, dd, etc.)\n")
		b.WriteString("5. Keep commands simple and safe\n")
	default:
		b.WriteString("4. Keep commands simple\n")
	}
	b.WriteString("6. If the request is unclear, generate \"echo 'Please clarify your request'\"\n\n")
	fmt.Fprintf(&b, "Request: %s\n", strings.TrimSpace(req.Prompt))
	return b.String()
}

type cmdPayload struct {
	Cmd string `json:"cmd"`
}

// ParseCommand extracts the command from a raw model response. Responses that
// are not strict JSON are accepted with a warning.
func ParseCommand(raw string) (string, []string, error) {
	text := strings.TrimSpace(raw)
	if cmd, ok := decodeCmd(text); ok {
		return cmd, nil, nil
	}
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if cmd, ok := decodeCmd(text[start : end+1]); ok {
			return cmd, []string{"model response contained text around the JSON payload"}, nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "cmd") {
			continue
		}
		_, val, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		cmd := strings.Trim(strings.TrimSpace(val), `"'`)
		if cmd != "" && !strings.ContainsAny(cmd, "{}") {
			return cmd, []string{"model response was not JSON; command extracted from text"}, nil
		}
	}
	return "", nil, ErrGenerationFailed("unparseable model response: "+truncate(text, 200), nil)
}

func decodeCmd(s string) (string, bool) {
	var p cmdPayload
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return "", false
	}
	cmd := strings.TrimSpace(p.Cmd)
	return cmd, cmd != ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
