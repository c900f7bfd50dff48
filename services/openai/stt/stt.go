package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"avatarvoice/core"

	"github.com/sashabaranov/go-openai"
)

type Config struct {
	APIKey   string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
	Language string `json:"language,omitempty" yaml:"language,omitempty"`
}

// OpenAISTT transcribes a finished recording with the audio/transcriptions
// endpoint (Whisper or any compatible server).
type OpenAISTT struct {
	config Config
	logger *core.Logger

	client        *openai.Client
	isInitialized bool
	mu            sync.RWMutex
}

func NewOpenAISTT(config Config, logger *core.Logger) *OpenAISTT {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Model == "" {
		config.Model = openai.Whisper1
	}
	if config.Language == "" {
		config.Language = "vi"
	}
	return &OpenAISTT{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "openai_stt"}),
	}
}

func (s *OpenAISTT) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isInitialized {
		return nil
	}
	if s.config.APIKey == "" {
		return errors.New("OpenAI API key is required")
	}
	clientConfig := openai.DefaultConfig(s.config.APIKey)
	if s.config.BaseURL != "" {
		clientConfig.BaseURL = s.config.BaseURL
	}
	s.client = openai.NewClientWithConfig(clientConfig)
	s.isInitialized = true
	return nil
}

func (s *OpenAISTT) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

func (s *OpenAISTT) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return "", errors.New("OpenAI STT not initialized")
	}
	if len(audio) == 0 {
		return "", core.ErrEmptyRecording
	}

	resp, err := client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    s.config.Model,
		FilePath: "recording" + extensionFor(mimeType),
		Reader:   bytes.NewReader(audio),
		Language: s.config.Language,
		Format:   openai.AudioResponseFormatJSON,
	})
	if err != nil {
		return "", fmt.Errorf("create transcription: %w", err)
	}
	return strings.TrimSpace(resp.Text), nil
}

// extensionFor maps a recording MIME type to the file name extension the
// transcription endpoint uses to sniff the container.
func extensionFor(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	switch strings.TrimSpace(base) {
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/ogg":
		return ".ogg"
	default:
		return ".webm"
	}
}
