package factories

import (
	"errors"
	"fmt"
	"time"

	"avatarvoice/core"
	"avatarvoice/handlers/chat"
	geminillm "avatarvoice/services/gemini/llm"
	openaillm "avatarvoice/services/openai/llm"
)

// ChatService is a chat backend the factories can build and initialise.
type ChatService interface {
	chat.ChatService
	core.IService
}

// LLMFactoryConfig holds provider-specific configs for chat service construction.
// Set exactly one provider config; the rest should be left nil.
// All providers except Gemini use the OpenAI-compatible protocol and are
// implemented via the same OpenAI service with a custom base URL.
type LLMFactoryConfig struct {
	GeminiConfig     *geminillm.Config `json:"gemini,omitempty" yaml:"gemini,omitempty"`
	OpenAIConfig     *openaillm.Config `json:"openai,omitempty" yaml:"openai,omitempty"`
	TogetherConfig   *openaillm.Config `json:"together,omitempty" yaml:"together,omitempty"`
	GroqConfig       *openaillm.Config `json:"groq,omitempty" yaml:"groq,omitempty"`
	DeepSeekConfig   *openaillm.Config `json:"deepseek,omitempty" yaml:"deepseek,omitempty"`
	OpenRouterConfig *openaillm.Config `json:"openrouter,omitempty" yaml:"openrouter,omitempty"`
	FireworksConfig  *openaillm.Config `json:"fireworks,omitempty" yaml:"fireworks,omitempty"`
	CerebrasConfig   *openaillm.Config `json:"cerebras,omitempty" yaml:"cerebras,omitempty"`
	XAIConfig        *openaillm.Config `json:"xai,omitempty" yaml:"xai,omitempty"`
	MistralConfig    *openaillm.Config `json:"mistral,omitempty" yaml:"mistral,omitempty"`
	PerplexityConfig *openaillm.Config `json:"perplexity,omitempty" yaml:"perplexity,omitempty"`
}

// Default base URLs for OpenAI-compatible providers.
const (
	togetherBaseURL   = "https://api.together.xyz/v1"
	groqBaseURL       = "https://api.groq.com/openai/v1"
	deepseekBaseURL   = "https://api.deepseek.com/v1"
	openrouterBaseURL = "https://openrouter.ai/api/v1"
	fireworksBaseURL  = "https://api.fireworks.ai/inference/v1"
	cerebrasBaseURL   = "https://api.cerebras.ai/v1"
	xaiBaseURL        = "https://api.x.ai/v1"
	mistralBaseURL    = "https://api.mistral.ai/v1"
	perplexityBaseURL = "https://api.perplexity.ai"
)

// isSet reports whether any provider is configured.
func (c LLMFactoryConfig) isSet() bool {
	return c.GeminiConfig != nil || c.OpenAIConfig != nil || c.TogetherConfig != nil ||
		c.GroqConfig != nil || c.DeepSeekConfig != nil || c.OpenRouterConfig != nil ||
		c.FireworksConfig != nil || c.CerebrasConfig != nil || c.XAIConfig != nil ||
		c.MistralConfig != nil || c.PerplexityConfig != nil
}

// BuildLLMService constructs a ChatService from the given factory config and
// returns it with a display name used in logs. Exactly one provider config
// must be non-nil.
func BuildLLMService(config LLMFactoryConfig, logger *core.Logger) (ChatService, string, error) {
	if config.GeminiConfig != nil {
		cfg := *config.GeminiConfig
		if cfg.Model == "" {
			cfg.Model = geminillm.DefaultModel
		}
		return geminillm.NewGeminiLLMService(cfg, logger), "gemini/" + cfg.Model, nil
	}
	if config.OpenAIConfig != nil {
		return buildOpenAICompatible("openai", *config.OpenAIConfig, "", "gpt-4o-mini", logger)
	}
	if config.TogetherConfig != nil {
		return buildOpenAICompatible("together", *config.TogetherConfig, togetherBaseURL, "meta-llama/Llama-3.3-70B-Instruct-Turbo", logger)
	}
	if config.GroqConfig != nil {
		return buildOpenAICompatible("groq", *config.GroqConfig, groqBaseURL, "llama-3.3-70b-versatile", logger)
	}
	if config.DeepSeekConfig != nil {
		return buildOpenAICompatible("deepseek", *config.DeepSeekConfig, deepseekBaseURL, "deepseek-chat", logger)
	}
	if config.OpenRouterConfig != nil {
		return buildOpenAICompatible("openrouter", *config.OpenRouterConfig, openrouterBaseURL, "openai/gpt-4o", logger)
	}
	if config.FireworksConfig != nil {
		return buildOpenAICompatible("fireworks", *config.FireworksConfig, fireworksBaseURL, "accounts/fireworks/models/llama-v3p3-70b-instruct", logger)
	}
	if config.CerebrasConfig != nil {
		return buildOpenAICompatible("cerebras", *config.CerebrasConfig, cerebrasBaseURL, "llama-3.3-70b", logger)
	}
	if config.XAIConfig != nil {
		return buildOpenAICompatible("xai", *config.XAIConfig, xaiBaseURL, "grok-3", logger)
	}
	if config.MistralConfig != nil {
		return buildOpenAICompatible("mistral", *config.MistralConfig, mistralBaseURL, "mistral-large-latest", logger)
	}
	if config.PerplexityConfig != nil {
		return buildOpenAICompatible("perplexity", *config.PerplexityConfig, perplexityBaseURL, "sonar-pro", logger)
	}
	return nil, "", errors.New("LLMFactoryConfig: no provider config specified")
}

// buildOpenAICompatible creates an OpenAI-compatible chat service, applying default
// base URL and model if not explicitly set in the config.
func buildOpenAICompatible(provider string, cfg openaillm.Config, defaultBaseURL, defaultModel string, logger *core.Logger) (ChatService, string, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openaillm.NewOpenAILLMService(cfg, logger), provider + "/" + cfg.Model, nil
}

// ChatStageConfig is one completion attempt: a provider and its temperature.
type ChatStageConfig struct {
	LLMFactoryConfig `yaml:",inline"`
	Temperature      float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
}

// ChatFactoryConfig configures the primary model, its single fallback and
// the pause between them.
type ChatFactoryConfig struct {
	Primary   ChatStageConfig `json:"primary" yaml:"primary"`
	Fallback  ChatStageConfig `json:"fallback" yaml:"fallback"`
	BackoffMs int             `json:"backoff_ms,omitempty" yaml:"backoff_ms,omitempty"`
}

// DefaultChatFactoryConfig is Gemini at 0.7, then Gemini again at 0.6 after 1s.
func DefaultChatFactoryConfig() ChatFactoryConfig {
	return ChatFactoryConfig{
		Primary: ChatStageConfig{
			LLMFactoryConfig: LLMFactoryConfig{GeminiConfig: &geminillm.Config{Model: geminillm.DefaultModel}},
			Temperature:      0.7,
		},
		Fallback: ChatStageConfig{
			LLMFactoryConfig: LLMFactoryConfig{GeminiConfig: &geminillm.Config{Model: geminillm.DefaultModel}},
			Temperature:      0.6,
		},
		BackoffMs: 1000,
	}
}

// applyDefaults fills unset stages from DefaultChatFactoryConfig.
func (c *ChatFactoryConfig) applyDefaults() {
	d := DefaultChatFactoryConfig()
	if !c.Primary.isSet() {
		c.Primary.LLMFactoryConfig = d.Primary.LLMFactoryConfig
	}
	if c.Primary.Temperature == 0 {
		c.Primary.Temperature = d.Primary.Temperature
	}
	if !c.Fallback.isSet() {
		c.Fallback.LLMFactoryConfig = d.Fallback.LLMFactoryConfig
	}
	if c.Fallback.Temperature == 0 {
		c.Fallback.Temperature = d.Fallback.Temperature
	}
	if c.BackoffMs == 0 {
		c.BackoffMs = d.BackoffMs
	}
}

func (c ChatStageConfig) build(logger *core.Logger) (chat.ModelStage, ChatService, error) {
	svc, name, err := BuildLLMService(c.LLMFactoryConfig, logger)
	if err != nil {
		return chat.ModelStage{}, nil, err
	}
	return chat.ModelStage{Name: name, Service: svc, Temperature: c.Temperature}, svc, nil
}

// BuildChatClient constructs the ChatCompletionClient and returns the
// services it owns so the caller can Init and Cleanup them.
func BuildChatClient(config ChatFactoryConfig, persona chat.Persona, logger *core.Logger) (*chat.ChatCompletionClient, []core.IService, error) {
	primary, primarySvc, err := config.Primary.build(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("chat primary: %w", err)
	}
	fallback, fallbackSvc, err := config.Fallback.build(logger)
	if err != nil {
		return nil, nil, fmt.Errorf("chat fallback: %w", err)
	}
	client := chat.NewChatCompletionClient(primary, fallback, persona, chat.CompletionConfig{
		Backoff: time.Duration(config.BackoffMs) * time.Millisecond,
	}, logger)
	return client, []core.IService{primarySvc, fallbackSvc}, nil
}
