package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"cmdgen/internal/embedded"
)

// cannedResource answers every prompt with the same model output.
type cannedResource struct {
	out string
}

func (r cannedResource) Infer(ctx context.Context, prompt string, p embedded.InferParams) (string, error) {
	return r.out, nil
}

func (cannedResource) Close() error { return nil }

// countingLoader returns a cannedResource after delay and counts loads.
func countingLoader(out string, delay time.Duration, loads *atomic.Int32) embedded.Loader {
	return func(ctx context.Context, spec embedded.LoadSpec) (embedded.Resource, error) {
		loads.Add(1)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return cannedResource{out: out}, nil
	}
}

func writeGGUF(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tiny-q4.gguf")
	if err := os.WriteFile(p, append([]byte("GGUF"), make([]byte, 60)...), 0o644); err != nil {
		t.Fatalf("write model: %v", err)
	}
	return p
}

func unreachableEndpoint(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()
	return "http://" + addr
}

// fakeCompletionServer mimics an OpenAI-compatible llama server.
func fakeCompletionServer(t *testing.T, cmd string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"fake"}]}`))
	})
	mux.HandleFunc("/v1/completions", func(w http.ResponseWriter, r *http.Request) {
		text, _ := json.Marshal(map[string]string{"cmd": cmd})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"text": string(text), "finish_reason": "stop"}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func httpPostJSON(t *testing.T, url string, body []byte) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}
