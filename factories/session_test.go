package factories

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"avatarvoice/core"
	"avatarvoice/handlers/conversation"
	geminillm "avatarvoice/services/gemini/llm"
	openaillm "avatarvoice/services/openai/llm"
)

func TestBuildLLMService(t *testing.T) {
	cases := []struct {
		name   string
		config LLMFactoryConfig
		want   string
	}{
		{"gemini", LLMFactoryConfig{GeminiConfig: &geminillm.Config{}}, "gemini/" + geminillm.DefaultModel},
		{"openai", LLMFactoryConfig{OpenAIConfig: &openaillm.Config{}}, "openai/gpt-4o-mini"},
		{"groq", LLMFactoryConfig{GroqConfig: &openaillm.Config{}}, "groq/llama-3.3-70b-versatile"},
		{"custom model", LLMFactoryConfig{DeepSeekConfig: &openaillm.Config{Model: "deepseek-reasoner"}}, "deepseek/deepseek-reasoner"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc, name, err := BuildLLMService(tc.config, core.NewLogger(nil))
			if err != nil {
				t.Fatalf("BuildLLMService: %v", err)
			}
			if svc == nil || name != tc.want {
				t.Fatalf("name = %q, want %q", name, tc.want)
			}
		})
	}

	if _, _, err := BuildLLMService(LLMFactoryConfig{}, nil); err == nil {
		t.Fatal("empty config should fail")
	}
}

func TestBuildProviderServicesRequireOneProvider(t *testing.T) {
	if _, err := BuildTTSService(TTSFactoryConfig{}, nil); err == nil {
		t.Fatal("empty TTS config should fail")
	}
	if _, err := BuildSTTService(STTFactoryConfig{}, nil); err == nil {
		t.Fatal("empty STT config should fail")
	}
}

func testSettings() SettingsConfig {
	cfg := DefaultSettingsConfig()
	cfg.InjectAPIKeys(APIKeys{Gemini: "gem-test", ElevenLabs: "xi-test"})
	return cfg
}

func TestSessionFactoryInit(t *testing.T) {
	f, err := NewSessionFactory(DefaultSettingsConfig(), core.NewLogger(nil))
	if err != nil {
		t.Fatalf("NewSessionFactory: %v", err)
	}
	if err := f.Init(context.Background()); err == nil {
		t.Fatal("Init without API keys should fail")
	}

	f, err = NewSessionFactory(testSettings(), core.NewLogger(nil))
	if err != nil {
		t.Fatalf("NewSessionFactory: %v", err)
	}
	if err := f.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer f.Cleanup()

	if f.ChatHandler() == nil || f.TTS() == nil || f.STT() == nil {
		t.Fatal("factory should expose its services")
	}

	session := f.NewSession(SessionIO{Username: "Minh"}, nil)
	session.Start(context.Background())
	session.Close()
	select {
	case <-session.Done():
	case <-time.After(time.Second):
		t.Fatal("session did not stop")
	}
}

func TestPipelineRunWritesSessionLog(t *testing.T) {
	dir := t.TempDir()
	f, err := NewSessionFactory(testSettings(), core.NewLogger(nil))
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPipeline(f, PipelineConfig{LogDir: dir}, core.NewLogger(nil))

	attached := false
	err = p.Run(ctx, SessionMeta{ID: "sess-42", Username: "Hoa"}, SessionIO{}, func(o *conversation.Orchestrator) {
		attached = o != nil
		cancel()
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !attached {
		t.Fatal("attach was not called")
	}

	file, err := os.Open(filepath.Join(dir, "sess-42.jsonl"))
	if err != nil {
		t.Fatalf("session log missing: %v", err)
	}
	defer file.Close()
	scanner := bufio.NewScanner(file)
	if !scanner.Scan() || !strings.Contains(scanner.Text(), `"session_id":"sess-42"`) {
		t.Fatalf("metadata line = %q", scanner.Text())
	}
	if _, err := os.Stat(filepath.Join(dir, "sess-42.active")); !os.IsNotExist(err) {
		t.Fatal("active marker should be removed after the session")
	}
}

func TestPipelineRunTimeout(t *testing.T) {
	f, err := NewSessionFactory(testSettings(), core.NewLogger(nil))
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(f, PipelineConfig{Timeout: 20 * time.Millisecond}, core.NewLogger(nil))
	if err := p.Run(context.Background(), SessionMeta{ID: "sess-t"}, SessionIO{}, nil); err != context.DeadlineExceeded {
		t.Fatalf("err = %v", err)
	}
}
