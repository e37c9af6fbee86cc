package remote

import (
	"errors"
	"strings"
	"testing"
)

func TestReadCompletion(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"text", `{"choices":[{"text":"{\"cmd\":\"ls\"}"}]}`, `{"cmd":"ls"}`},
		{"chat", `{"choices":[{"message":{"content":"hi"}}]}`, "hi"},
		{"native", `{"content":"native"}`, "native"},
		{"sse", "data: {\"choices\":[{\"text\":\"a\"}]}\n\ndata: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\ndata: [DONE]\n", "ab"},
		{"sse without done", ": keepalive\ndata: {\"content\":\"x\"}\n", "x"},
	}
	for _, c := range cases {
		got, err := readCompletion(strings.NewReader(c.body))
		if err != nil || got != c.want {
			t.Fatalf("%s: got %q err=%v, want %q", c.name, got, err, c.want)
		}
	}
	for _, bad := range []string{"<html>bad gateway</html>", "data: not-json\n"} {
		if _, err := readCompletion(strings.NewReader(bad)); !errors.Is(err, errUnknownBody) {
			t.Fatalf("%q: expected errUnknownBody, got %v", bad, err)
		}
	}
}

func TestConfigDefaults(t *testing.T) {
	c := DefaultConfig()
	if c.MaxRetries != 2 || c.AttemptTimeout.Seconds() != 3 || c.OverallTimeout.Seconds() != 6 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.ProbeTimeout.Milliseconds() != 1500 || c.retries() != 2 {
		t.Fatalf("unexpected probe/retries: %+v", c)
	}
	if (Config{MaxRetries: -3}).withDefaults().retries() != 0 {
		t.Fatalf("negative retries should disable retrying")
	}
}
