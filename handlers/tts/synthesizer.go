package tts

import (
	"context"
	"fmt"
	"sync"
	"unicode"

	"avatarvoice/core"
)

// TTSService converts one piece of text into one encoded audio clip.
type TTSService interface {
	Synthesize(ctx context.Context, text string) (core.AudioPayload, error)
}

// Decoder turns an encoded clip into a playable buffer. The session's audio
// device provides it.
type Decoder interface {
	Decode(payload core.AudioPayload) (*core.AudioBuffer, error)
}

// SpeechSynthesizer synthesizes speech units. Failures never escape: a failed
// unit yields a SynthesisResult with a nil buffer.
type SpeechSynthesizer struct {
	service TTSService
	logger  *core.Logger
}

func NewSpeechSynthesizer(service TTSService, logger *core.Logger) *SpeechSynthesizer {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &SpeechSynthesizer{
		service: service,
		logger:  logger.With(map[string]interface{}{"component": "speech_synthesizer"}),
	}
}

// Synthesize calls the TTS service for unit and decodes the result.
func (s *SpeechSynthesizer) Synthesize(ctx context.Context, unit core.SpeechUnit, decoder Decoder) core.SynthesisResult {
	result := core.SynthesisResult{Unit: unit}

	text := normalizeTextForTTS(unit.Text)
	if !hasSpeakableRune(text) {
		s.logger.Debug("nothing to speak in unit", "index", unit.Index)
		return result
	}

	buf, err := s.synthesize(ctx, text, decoder)
	if err != nil {
		core.LoggerFromContext(ctx, s.logger).Warn("skipping unit", "index", unit.Index, "error", err)
		return result
	}
	result.Buffer = buf
	return result
}

func (s *SpeechSynthesizer) synthesize(ctx context.Context, text string, decoder Decoder) (*core.AudioBuffer, error) {
	if s.service == nil || decoder == nil {
		return nil, fmt.Errorf("%w: synthesizer not wired", core.ErrSynthesisFailed)
	}
	payload, err := s.service.Synthesize(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSynthesisFailed, err)
	}
	buf, err := decoder.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", core.ErrSynthesisFailed, err)
	}
	return buf, nil
}

// SynthesizeAll starts one synthesis per unit at once and delivers results in
// completion order. The channel is closed after every unit reported.
func (s *SpeechSynthesizer) SynthesizeAll(ctx context.Context, units []core.SpeechUnit, decoder Decoder) <-chan core.SynthesisResult {
	results := make(chan core.SynthesisResult, len(units))

	var wg sync.WaitGroup
	for _, unit := range units {
		wg.Add(1)
		go func(unit core.SpeechUnit) {
			defer wg.Done()
			results <- s.Synthesize(ctx, unit, decoder)
		}(unit)
	}

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

func hasSpeakableRune(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
