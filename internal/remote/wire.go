package remote

import (
	"bufio"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// completionRequest is the payload for an OpenAI-compatible /v1/completions.
type completionRequest struct {
	Model       string   `json:"model,omitempty"`
	Prompt      string   `json:"prompt"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float32  `json:"temperature"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

// completionChoice covers the text, chat and streaming delta shapes.
type completionChoice struct {
	Text  string `json:"text"`
	Delta struct {
		Content string `json:"content"`
	} `json:"delta"`
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	FinishReason string `json:"finish_reason"`
}

type completionResponse struct {
	Choices []completionChoice `json:"choices"`
	// llama.cpp native /completion shape
	Content string `json:"content"`
}

func (r completionResponse) text() string {
	if len(r.Choices) == 0 {
		return r.Content
	}
	c := r.Choices[0]
	switch {
	case c.Text != "":
		return c.Text
	case c.Message.Content != "":
		return c.Message.Content
	default:
		return c.Delta.Content
	}
}

const maxResponseBytes = 1 << 20

var errUnknownBody = errors.New("unrecognized completion response")

// readCompletion accepts either a single JSON body or a Server-Sent Events
// stream of "data:" lines terminated by [DONE] or EOF.
func readCompletion(body io.Reader) (string, error) {
	r := bufio.NewReader(io.LimitReader(body, maxResponseBytes))
	var (
		sb      strings.Builder
		sse     bool
		plain   strings.Builder
		matched bool
	)
	for {
		line, err := r.ReadString('\n')
		if len(line) > 0 {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
				// heartbeat
			case strings.HasPrefix(strings.ToLower(trimmed), "data:"):
				sse = true
				data := strings.TrimSpace(trimmed[len("data:"):])
				if data == "[DONE]" {
					return sb.String(), nil
				}
				var msg completionResponse
				if json.Unmarshal([]byte(data), &msg) == nil {
					sb.WriteString(msg.text())
					matched = true
				}
			case sse:
				// event:/id:/retry: fields and comments
			default:
				plain.WriteString(line)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return "", err
			}
			break
		}
	}
	if sse {
		if !matched {
			return "", errUnknownBody
		}
		return sb.String(), nil
	}
	var msg completionResponse
	if err := json.Unmarshal([]byte(plain.String()), &msg); err != nil {
		return "", errUnknownBody
	}
	return msg.text(), nil
}
