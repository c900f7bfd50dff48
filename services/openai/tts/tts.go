package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"avatarvoice/core"

	"github.com/sashabaranov/go-openai"
)

// openAIPCMSampleRate is the fixed rate of the "pcm" response format.
const openAIPCMSampleRate = 24000

type Config struct {
	APIKey  string  `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string  `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	Model   string  `json:"model,omitempty" yaml:"model,omitempty"`
	Voice   string  `json:"voice,omitempty" yaml:"voice,omitempty"`
	Format  string  `json:"format,omitempty" yaml:"format,omitempty"` // mp3, wav or pcm
	Speed   float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// OpenAITTS synthesizes one clip per request with the audio/speech endpoint.
type OpenAITTS struct {
	config Config
	logger *core.Logger

	client        *openai.Client
	isInitialized bool
	mu            sync.RWMutex
}

func NewOpenAITTS(config Config, logger *core.Logger) *OpenAITTS {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Model == "" {
		config.Model = string(openai.TTSModel1)
	}
	if config.Voice == "" {
		config.Voice = string(openai.VoiceAlloy)
	}
	if config.Format == "" {
		config.Format = string(openai.SpeechResponseFormatMp3)
	}
	return &OpenAITTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "openai_tts"}),
	}
}

func (s *OpenAITTS) Init(ctx context.Context) error {
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

func (s *OpenAITTS) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

func (s *OpenAITTS) Synthesize(ctx context.Context, text string) (core.AudioPayload, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return core.AudioPayload{}, errors.New("OpenAI TTS not initialized")
	}

	resp, err := client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(s.config.Model),
		Input:          text,
		Voice:          openai.SpeechVoice(s.config.Voice),
		ResponseFormat: openai.SpeechResponseFormat(s.config.Format),
		Speed:          s.config.Speed,
	})
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("create speech: %w", err)
	}
	defer resp.Close()

	data, err := io.ReadAll(resp)
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("read speech: %w", err)
	}
	if len(data) == 0 {
		return core.AudioPayload{}, core.ErrSynthesisFailed
	}
	return s.payload(data), nil
}

func (s *OpenAITTS) payload(data []byte) core.AudioPayload {
	switch openai.SpeechResponseFormat(s.config.Format) {
	case openai.SpeechResponseFormatPcm:
		return core.AudioPayload{Data: data, Format: core.PCM, ContentType: "audio/pcm", SampleRate: openAIPCMSampleRate, Channels: 1}
	case openai.SpeechResponseFormatWav:
		return core.AudioPayload{Data: data, Format: core.PCM, ContentType: "audio/wav"}
	default:
		return core.AudioPayload{Data: data, Format: core.MP3, ContentType: "audio/mpeg"}
	}
}
