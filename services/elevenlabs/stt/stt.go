package elevenlabs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"avatarvoice/core"

	"github.com/bytedance/sonic"
)

type ElevenLabsSTTConfig struct {
	APIKey       string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL      string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	ModelID      string `json:"model_id,omitempty" yaml:"model_id,omitempty"`
	LanguageCode string `json:"language_code,omitempty" yaml:"language_code,omitempty"`
	// TimeoutSec bounds one upload and transcription round trip.
	TimeoutSec int `json:"timeout_sec,omitempty" yaml:"timeout_sec,omitempty"`
}

type sttResponse struct {
	Text         string  `json:"text"`
	LanguageCode string  `json:"language_code"`
	Probability  float64 `json:"language_probability"`
}

type sttError struct {
	Detail struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"detail"`
}

// ElevenLabsSTT uploads a finished recording to the speech-to-text endpoint.
type ElevenLabsSTT struct {
	config ElevenLabsSTTConfig
	logger *core.Logger

	client        *http.Client
	isInitialized bool
	mu            sync.RWMutex
}

func NewElevenLabsSTT(config ElevenLabsSTTConfig, logger *core.Logger) *ElevenLabsSTT {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.elevenlabs.io"
	}
	if config.ModelID == "" {
		config.ModelID = "scribe_v1"
	}
	if config.LanguageCode == "" {
		config.LanguageCode = "vi"
	}
	if config.TimeoutSec == 0 {
		config.TimeoutSec = 60
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &ElevenLabsSTT{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "elevenlabs_stt"}),
	}
}

func (s *ElevenLabsSTT) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isInitialized {
		return nil
	}
	if s.config.APIKey == "" {
		return errors.New("ElevenLabs API key is required")
	}
	s.client = &http.Client{Timeout: time.Duration(s.config.TimeoutSec) * time.Second}
	s.isInitialized = true
	return nil
}

func (s *ElevenLabsSTT) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.CloseIdleConnections()
	}
	s.client = nil
	s.isInitialized = false
	return nil
}

func (s *ElevenLabsSTT) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return "", errors.New("service not initialized")
	}
	if len(audio) == 0 {
		return "", core.ErrEmptyRecording
	}

	body, contentType, err := s.buildForm(audio, mimeType)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(s.config.BaseURL, "/")+"/v1/speech-to-text", body)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("xi-api-key", s.config.APIKey)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("speech-to-text request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr sttError
		if sonic.Unmarshal(raw, &apiErr) == nil && apiErr.Detail.Message != "" {
			return "", fmt.Errorf("ElevenLabs STT error (%d): %s", resp.StatusCode, apiErr.Detail.Message)
		}
		return "", fmt.Errorf("ElevenLabs STT error (%d)", resp.StatusCode)
	}

	var out sttResponse
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	s.logger.Debug("transcribed recording", "bytes", len(audio), "language", out.LanguageCode)
	return strings.TrimSpace(out.Text), nil
}

func (s *ElevenLabsSTT) buildForm(audio []byte, mimeType string) (*bytes.Buffer, string, error) {
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+recordingName(mimeType)+`"`)
	header.Set("Content-Type", mimeType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create file part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, "", fmt.Errorf("failed to write audio: %w", err)
	}
	if err := w.WriteField("model_id", s.config.ModelID); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("language_code", s.config.LanguageCode); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &body, w.FormDataContentType(), nil
}

func recordingName(mimeType string) string {
	if strings.HasPrefix(mimeType, "audio/wav") || strings.HasPrefix(mimeType, "audio/x-wav") {
		return "recording.wav"
	}
	return "recording.webm"
}
