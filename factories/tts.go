package factories

import (
	"errors"

	"avatarvoice/core"
	ttshandler "avatarvoice/handlers/tts"
	elevenlabs "avatarvoice/services/elevenlabs/tts"
	openaitts "avatarvoice/services/openai/tts"
)

// TTSService is a speech synthesis backend the factories can build and initialise.
type TTSService interface {
	ttshandler.TTSService
	core.IService
}

// TTSFactoryConfig holds provider-specific configs for TTS service construction.
// Set exactly one provider config; the rest should be left nil.
type TTSFactoryConfig struct {
	ElevenLabsConfig *elevenlabs.ElevenLabsTTSConfig `json:"elevenlabs,omitempty" yaml:"elevenlabs,omitempty"`
	OpenAIConfig     *openaitts.Config               `json:"openai,omitempty" yaml:"openai,omitempty"`
}

func DefaultTTSFactoryConfig() TTSFactoryConfig {
	return TTSFactoryConfig{ElevenLabsConfig: &elevenlabs.ElevenLabsTTSConfig{}}
}

func (c TTSFactoryConfig) isSet() bool {
	return c.ElevenLabsConfig != nil || c.OpenAIConfig != nil
}

// BuildTTSService constructs a TTSService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildTTSService(config TTSFactoryConfig, logger *core.Logger) (TTSService, error) {
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsTTS(*config.ElevenLabsConfig, logger), nil
	}
	if config.OpenAIConfig != nil {
		return openaitts.NewOpenAITTS(*config.OpenAIConfig, logger), nil
	}
	return nil, errors.New("TTSFactoryConfig: no provider config specified")
}
