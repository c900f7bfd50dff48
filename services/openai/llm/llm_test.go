package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"avatarvoice/core"

	"github.com/bytedance/sonic"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func newCompletionServer(t *testing.T, status int, body string, got *chatRequest) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk-test" {
			t.Errorf("missing bearer token")
		}
		raw, _ := io.ReadAll(r.Body)
		if got != nil {
			if err := sonic.Unmarshal(raw, got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGenerate(t *testing.T) {
	var req chatRequest
	srv := newCompletionServer(t, http.StatusOK,
		`{"choices":[{"index":0,"message":{"role":"assistant","content":" Chào bạn! "},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`, &req)

	s := NewOpenAILLMService(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "llama-3.3-70b"}, core.NewLogger(nil))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	text, err := s.Generate(context.Background(), "hello", 0.7)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if text != "Chào bạn!" {
		t.Fatalf("text = %q", text)
	}
	if req.Model != "llama-3.3-70b" || req.Temperature != 0.7 {
		t.Fatalf("request = %+v", req)
	}
	if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "hello" {
		t.Fatalf("messages = %+v", req.Messages)
	}
}

func TestGenerateErrors(t *testing.T) {
	srv := newCompletionServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil)
	s := NewOpenAILLMService(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1"}, core.NewLogger(nil))
	if err := s.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if _, err := s.Generate(context.Background(), "hello", 0.7); err == nil {
		t.Fatal("server error should surface")
	}

	empty := newCompletionServer(t, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"  "}}]}`, nil)
	s = NewOpenAILLMService(Config{APIKey: "sk-test", BaseURL: empty.URL + "/v1"}, core.NewLogger(nil))
	_ = s.Init(context.Background())
	if _, err := s.Generate(context.Background(), "hello", 0.7); err == nil {
		t.Fatal("blank content should be an error")
	}
}

func TestInitRequiresAPIKey(t *testing.T) {
	if err := NewOpenAILLMService(Config{}, nil).Init(context.Background()); err == nil {
		t.Fatal("Init without key should fail")
	}
}
