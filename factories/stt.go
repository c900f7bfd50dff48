package factories

import (
	"errors"

	"avatarvoice/core"
	"avatarvoice/handlers/capture"
	elevenlabs "avatarvoice/services/elevenlabs/stt"
	openaistt "avatarvoice/services/openai/stt"
)

// STTService is a transcription backend the factories can build and initialise.
type STTService interface {
	capture.STTService
	core.IService
}

// STTFactoryConfig holds provider-specific configs for STT service construction.
// Set exactly one provider config; the rest should be left nil.
type STTFactoryConfig struct {
	ElevenLabsConfig *elevenlabs.ElevenLabsSTTConfig `json:"elevenlabs,omitempty" yaml:"elevenlabs,omitempty"`
	OpenAIConfig     *openaistt.Config               `json:"openai,omitempty" yaml:"openai,omitempty"`
}

func DefaultSTTFactoryConfig() STTFactoryConfig {
	return STTFactoryConfig{ElevenLabsConfig: &elevenlabs.ElevenLabsSTTConfig{}}
}

func (c STTFactoryConfig) isSet() bool {
	return c.ElevenLabsConfig != nil || c.OpenAIConfig != nil
}

// BuildSTTService constructs an STTService from the given factory config.
// Exactly one provider config must be non-nil.
func BuildSTTService(config STTFactoryConfig, logger *core.Logger) (STTService, error) {
	if config.ElevenLabsConfig != nil {
		return elevenlabs.NewElevenLabsSTT(*config.ElevenLabsConfig, logger), nil
	}
	if config.OpenAIConfig != nil {
		return openaistt.NewOpenAISTT(*config.OpenAIConfig, logger), nil
	}
	return nil, errors.New("STTFactoryConfig: no provider config specified")
}
