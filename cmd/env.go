package cmd

import (
	"os"
	"strconv"

	"avatarvoice/core"
	"avatarvoice/factories"

	"github.com/joho/godotenv"
)

// loadEnv reads .env.local and then .env. Variables already set win.
func loadEnv(files ...string) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			core.GetLogger().Debug("env file not loaded", "file", file, "error", err)
		}
	}
}

// configureLogger applies LOG_LEVEL (or --log-level) to the global logger.
func configureLogger(level string) {
	if level == "" {
		return
	}
	parsed, err := core.ParseLevel(level)
	if err != nil {
		core.GetLogger().Warn("unknown log level, keeping default", "level", level)
		return
	}
	core.SetLogger(*core.GetLogger().WithMinLevel(parsed))
}

// loadSettings loads SettingsConfig from SETTINGS_JSON_B64 or a settings
// file, falling back to defaults, and injects API keys from the environment.
func loadSettings(path string) factories.SettingsConfig {
	logger := core.GetLogger()
	var settings factories.SettingsConfig
	var err error

	if b64 := os.Getenv("SETTINGS_JSON_B64"); b64 != "" {
		settings, err = factories.SettingsConfigFromBase64(b64)
		if err != nil {
			logger.Error("failed to parse SETTINGS_JSON_B64", "error", err)
			settings = factories.DefaultSettingsConfig()
		} else {
			logger.Info("loaded settings from SETTINGS_JSON_B64")
		}
	} else {
		settings, err = factories.SettingsConfigFromFile(path)
		if err != nil {
			logger.Warn("failed to load settings, using defaults", "path", path, "error", err)
			settings = factories.DefaultSettingsConfig()
		}
	}

	settings.InjectAPIKeys(apiKeysFromEnv())
	return settings
}

func apiKeysFromEnv() factories.APIKeys {
	return factories.APIKeys{
		Gemini:     getEnv("GEMINI_API_KEY", os.Getenv("GOOGLE_API_KEY")),
		OpenAI:     getEnv("OPENAI_API_KEY", ""),
		Together:   getEnv("TOGETHER_API_KEY", ""),
		Groq:       getEnv("GROQ_API_KEY", ""),
		DeepSeek:   getEnv("DEEPSEEK_API_KEY", ""),
		OpenRouter: getEnv("OPENROUTER_API_KEY", ""),
		Fireworks:  getEnv("FIREWORKS_API_KEY", ""),
		Cerebras:   getEnv("CEREBRAS_API_KEY", ""),
		XAI:        getEnv("XAI_API_KEY", ""),
		Mistral:    getEnv("MISTRAL_API_KEY", ""),
		Perplexity: getEnv("PERPLEXITY_API_KEY", ""),
		ElevenLabs: getEnv("ELEVENLABS_API_KEY", ""),
		VoiceID:    getEnv("ELEVENLABS_VOICE_ID", os.Getenv("VOICE_ID")),
	}
}

// getEnv gets an environment variable with a default fallback
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a default fallback
func getEnvAsInt(key string, defaultValue int) int {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultValue
	}
	return val
}
