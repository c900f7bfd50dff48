package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"avatarvoice/core"

	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

type Config struct {
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	Model  string `json:"model,omitempty" yaml:"model,omitempty"`
	// BaseURL overrides the Gemini API endpoint (proxies, tests).
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// generateContent is swapped out in tests.
var generateContent = func(client *genai.Client, ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return client.Models.GenerateContent(ctx, model, contents, config)
}

// GeminiLLMService answers single-prompt completions with a Gemini model.
type GeminiLLMService struct {
	config Config
	logger *core.Logger

	client        *genai.Client
	isInitialized bool
	mu            sync.RWMutex
}

func NewGeminiLLMService(config Config, logger *core.Logger) *GeminiLLMService {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.Model == "" {
		config.Model = DefaultModel
	}
	return &GeminiLLMService{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "gemini_llm", "model": config.Model}),
	}
}

func (s *GeminiLLMService) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isInitialized {
		return nil
	}
	if s.config.APIKey == "" {
		return errors.New("Gemini API key is required")
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  s.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if s.config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: s.config.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return fmt.Errorf("failed to create Gemini client: %w", err)
	}
	s.client = client
	s.isInitialized = true
	return nil
}

func (s *GeminiLLMService) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.client = nil
	s.isInitialized = false
	return nil
}

func (s *GeminiLLMService) Generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	s.mu.RLock()
	client := s.client
	s.mu.RUnlock()
	if client == nil {
		return "", errors.New("Gemini service not initialized")
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := generateContent(client, ctx, s.config.Model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("generation error: %w", err)
	}

	text := strings.TrimSpace(responseText(resp))
	if text == "" {
		return "", errors.New("no response from Gemini")
	}
	return text, nil
}

// responseText returns the first text part of the first candidate that has one.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.Text != "" {
				return part.Text
			}
		}
	}
	return ""
}
