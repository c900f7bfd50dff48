package factories

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"avatarvoice/handlers/capture"
	"avatarvoice/handlers/chat"
	"avatarvoice/handlers/conversation"
	"avatarvoice/handlers/playback"
	"avatarvoice/utils/audio"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

const (
	DefaultServerAddr       = ":8080"
	DefaultAvatarEventsAddr = ":19304"
)

// ServerConfig configures the HTTP API and the avatar event broadcaster.
type ServerConfig struct {
	Addr             string `json:"addr,omitempty" yaml:"addr,omitempty"`
	AvatarEventsAddr string `json:"avatar_events_addr,omitempty" yaml:"avatar_events_addr,omitempty"`
	// LogDir, when set, receives one .jsonl file per browser session.
	LogDir string `json:"log_dir,omitempty" yaml:"log_dir,omitempty"`
}

// SettingsConfig is the top-level config loaded from settings.json or
// settings.yaml. Secrets are injected afterwards with InjectAPIKeys.
type SettingsConfig struct {
	Persona  chat.Persona             `json:"persona" yaml:"persona"`
	Username string                   `json:"username,omitempty" yaml:"username,omitempty"`
	Chat     ChatFactoryConfig        `json:"chat" yaml:"chat"`
	TTS      TTSFactoryConfig         `json:"tts" yaml:"tts"`
	STT      STTFactoryConfig         `json:"stt" yaml:"stt"`
	Server   ServerConfig             `json:"server" yaml:"server"`
	Playback playback.PlayerConfig    `json:"playback" yaml:"playback"`
	Capture  capture.ControllerConfig `json:"capture" yaml:"capture"`
	Device   audio.DeviceConfig       `json:"device" yaml:"device"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with provider defaults.
func DefaultSettingsConfig() SettingsConfig {
	var cfg SettingsConfig
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills every unset section. Provider sections are replaced
// wholesale so a configured provider never competes with a default one.
func (c *SettingsConfig) applyDefaults() {
	if c.Persona.Name == "" && c.Persona.SystemPrompt == "" {
		c.Persona = chat.DefaultPersona()
	}
	if c.Username == "" {
		c.Username = c.Persona.DefaultUsername
	}
	if c.Username == "" {
		c.Username = chat.DefaultUsername
	}
	c.Chat.applyDefaults()
	if !c.TTS.isSet() {
		c.TTS = DefaultTTSFactoryConfig()
	}
	if !c.STT.isSet() {
		c.STT = DefaultSTTFactoryConfig()
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.AvatarEventsAddr == "" {
		c.Server.AvatarEventsAddr = DefaultAvatarEventsAddr
	}
	if c.Playback.MouthMsPerChar <= 0 {
		c.Playback.MouthMsPerChar = playback.DefaultMouthMsPerChar
	}
	if c.Capture.MaxRecordingBytes <= 0 {
		c.Capture = capture.DefaultControllerConfig()
	}
}

// OrchestratorConfig is the per-session config derived from the settings.
func (c SettingsConfig) OrchestratorConfig() conversation.OrchestratorConfig {
	return conversation.OrchestratorConfig{
		Username: c.Username,
		Device:   c.Device,
		Player:   c.Playback,
		Capture:  c.Capture,
	}
}

// SettingsConfigFromJSON parses a JSON blob into a SettingsConfig.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	var cfg SettingsConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// SettingsConfigFromYAML parses a YAML document into a SettingsConfig.
func SettingsConfigFromYAML(data []byte) (SettingsConfig, error) {
	var cfg SettingsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

// SettingsConfigFromBase64 decodes base64 JSON, as passed through
// SETTINGS_JSON_B64 in container deployments.
func SettingsConfigFromBase64(encoded string) (SettingsConfig, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: decode base64: %w", err)
	}
	return SettingsConfigFromJSON(data)
}

// SettingsConfigFromFile reads a settings file, choosing the parser by extension.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultSettingsConfig(), fmt.Errorf("settings: read %q: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return SettingsConfigFromYAML(data)
	default:
		return SettingsConfigFromJSON(data)
	}
}

// APIKeys holds API credentials for all supported service providers.
// Pass to SettingsConfig.InjectAPIKeys after loading so that secrets are
// never stored in config files.
type APIKeys struct {
	Gemini     string // Used for Gemini chat.
	OpenAI     string // Used for OpenAI chat, TTS and STT.
	Together   string
	Groq       string
	DeepSeek   string
	OpenRouter string
	Fireworks  string
	Cerebras   string
	XAI        string
	Mistral    string
	Perplexity string
	ElevenLabs string // Used for ElevenLabs TTS and STT.
	VoiceID    string // ElevenLabs voice, when the config names none.
}

// InjectAPIKeys applies credentials to every configured provider, keeping
// values already present in the config file.
func (c *SettingsConfig) InjectAPIKeys(keys APIKeys) {
	injectLLMKeys(&c.Chat.Primary.LLMFactoryConfig, keys)
	injectLLMKeys(&c.Chat.Fallback.LLMFactoryConfig, keys)

	if tts := c.TTS.ElevenLabsConfig; tts != nil {
		setIfEmpty(&tts.APIKey, keys.ElevenLabs)
		setIfEmpty(&tts.VoiceID, keys.VoiceID)
	}
	if tts := c.TTS.OpenAIConfig; tts != nil {
		setIfEmpty(&tts.APIKey, keys.OpenAI)
	}
	if stt := c.STT.ElevenLabsConfig; stt != nil {
		setIfEmpty(&stt.APIKey, keys.ElevenLabs)
	}
	if stt := c.STT.OpenAIConfig; stt != nil {
		setIfEmpty(&stt.APIKey, keys.OpenAI)
	}
}

// injectLLMKeys applies the relevant API key to a single LLMFactoryConfig.
func injectLLMKeys(cfg *LLMFactoryConfig, keys APIKeys) {
	if cfg.GeminiConfig != nil {
		setIfEmpty(&cfg.GeminiConfig.APIKey, keys.Gemini)
	}
	if cfg.OpenAIConfig != nil {
		setIfEmpty(&cfg.OpenAIConfig.APIKey, keys.OpenAI)
	}
	if cfg.TogetherConfig != nil {
		setIfEmpty(&cfg.TogetherConfig.APIKey, keys.Together)
	}
	if cfg.GroqConfig != nil {
		setIfEmpty(&cfg.GroqConfig.APIKey, keys.Groq)
	}
	if cfg.DeepSeekConfig != nil {
		setIfEmpty(&cfg.DeepSeekConfig.APIKey, keys.DeepSeek)
	}
	if cfg.OpenRouterConfig != nil {
		setIfEmpty(&cfg.OpenRouterConfig.APIKey, keys.OpenRouter)
	}
	if cfg.FireworksConfig != nil {
		setIfEmpty(&cfg.FireworksConfig.APIKey, keys.Fireworks)
	}
	if cfg.CerebrasConfig != nil {
		setIfEmpty(&cfg.CerebrasConfig.APIKey, keys.Cerebras)
	}
	if cfg.XAIConfig != nil {
		setIfEmpty(&cfg.XAIConfig.APIKey, keys.XAI)
	}
	if cfg.MistralConfig != nil {
		setIfEmpty(&cfg.MistralConfig.APIKey, keys.Mistral)
	}
	if cfg.PerplexityConfig != nil {
		setIfEmpty(&cfg.PerplexityConfig.APIKey, keys.Perplexity)
	}
}

func setIfEmpty(dst *string, value string) {
	if *dst == "" {
		*dst = value
	}
}
