package elevenlabs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"avatarvoice/core"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// ElevenLabsTTSConfig holds configuration for the ElevenLabs TTS service
type ElevenLabsTTSConfig struct {
	APIKey  string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	VoiceID string `json:"voice_id,omitempty" yaml:"voice_id,omitempty"`
	ModelID string `json:"model_id,omitempty" yaml:"model_id,omitempty"`

	// Output encoding: "mp3" (default), "pcm" or "ulaw".
	Encoding   string `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty" yaml:"sample_rate,omitempty"`

	// Voice settings
	Stability       float64 `json:"stability,omitempty" yaml:"stability,omitempty"`
	SimilarityBoost float64 `json:"similarity_boost,omitempty" yaml:"similarity_boost,omitempty"`
}

// ElevenLabsTTS synthesizes one sentence per stream-input websocket session:
// BOS, the text, EOS, then audio messages until isFinal.
type ElevenLabsTTS struct {
	config ElevenLabsTTSConfig
	logger *core.Logger
	dialer *websocket.Dialer

	mu            sync.RWMutex
	isInitialized bool
}

// Client messages
type (
	// BOS (Beginning of Stream) - sent once on connect
	elBOSMessage struct {
		Text             string          `json:"text"`
		VoiceSettings    elVoiceSettings `json:"voice_settings"`
		GenerationConfig elGenConfig     `json:"generation_config"`
	}

	elVoiceSettings struct {
		Stability       float64 `json:"stability"`
		SimilarityBoost float64 `json:"similarity_boost"`
	}

	elGenConfig struct {
		ChunkLengthSchedule []int `json:"chunk_length_schedule"`
	}

	elTextMessage struct {
		Text                 string `json:"text"`
		TryTriggerGeneration bool   `json:"try_trigger_generation,omitempty"`
	}
)

// Server messages
type (
	elAudioMessage struct {
		Audio   string `json:"audio"`
		IsFinal bool   `json:"isFinal"`
	}

	elErrorMessage struct {
		Error   string `json:"error"`
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

// NewElevenLabsTTS creates a new ElevenLabs TTS service with the provided config
func NewElevenLabsTTS(config ElevenLabsTTSConfig, logger *core.Logger) *ElevenLabsTTS {
	if config.BaseURL == "" {
		config.BaseURL = "wss://api.elevenlabs.io/v1/text-to-speech"
	}
	if config.VoiceID == "" {
		config.VoiceID = "21m00Tcm4TlvDq8ikWAM" // Default: Rachel
	}
	if config.ModelID == "" {
		config.ModelID = "eleven_flash_v2_5"
	}
	if config.Encoding == "" {
		config.Encoding = "mp3"
	}
	if config.Stability == 0 {
		config.Stability = 0.55
	}
	if config.SimilarityBoost == 0 {
		config.SimilarityBoost = 0.5
	}

	if logger == nil {
		logger = core.GetLogger()
	}
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second
	return &ElevenLabsTTS{
		config: config,
		logger: logger.With(map[string]interface{}{"service": "elevenlabs_tts"}),
		dialer: &dialer,
	}
}

// outputFormatString converts config encoding + sample rate to ElevenLabs output_format param
func outputFormatString(encoding core.AudioEncodingFormat, sampleRate int) string {
	switch encoding {
	case core.MP3:
		return "mp3_44100_128"
	case core.ULAW:
		return "ulaw_8000"
	case core.PCM:
		switch sampleRate {
		case 16000:
			return "pcm_16000"
		case 22050:
			return "pcm_22050"
		case 44100:
			return "pcm_44100"
		default:
			return "pcm_24000"
		}
	default:
		return "pcm_24000"
	}
}

// outputFormat resolves the configured encoding to the payload format and
// the sample rate ElevenLabs will actually produce.
func (e *ElevenLabsTTS) outputFormat() (core.AudioEncodingFormat, int) {
	switch e.config.Encoding {
	case "ulaw":
		return core.ULAW, 8000
	case "pcm":
		switch e.config.SampleRate {
		case 16000, 22050, 44100:
			return core.PCM, e.config.SampleRate
		}
		return core.PCM, 24000
	default:
		return core.MP3, 44100
	}
}

func contentType(format core.AudioEncodingFormat) string {
	switch format {
	case core.MP3:
		return "audio/mpeg"
	case core.ULAW:
		return "audio/basic"
	default:
		return "audio/pcm"
	}
}

func (e *ElevenLabsTTS) Init(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isInitialized {
		return nil
	}
	if e.config.APIKey == "" {
		return errors.New("ElevenLabs API key is required")
	}
	e.isInitialized = true
	return nil
}

func (e *ElevenLabsTTS) Cleanup() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.isInitialized = false
	return nil
}

// Synthesize streams text through one websocket session and returns the
// concatenated audio.
func (e *ElevenLabsTTS) Synthesize(ctx context.Context, text string) (core.AudioPayload, error) {
	e.mu.RLock()
	ready := e.isInitialized
	e.mu.RUnlock()
	if !ready {
		return core.AudioPayload{}, errors.New("service not initialized")
	}

	format, sampleRate := e.outputFormat()
	conn, err := e.dial(ctx, outputFormatString(format, sampleRate))
	if err != nil {
		return core.AudioPayload{}, fmt.Errorf("failed to establish WebSocket connection: %w", err)
	}
	defer conn.Close()

	// Unblock the read loop when the caller gives up.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := e.sendStream(conn, text); err != nil {
		return core.AudioPayload{}, err
	}

	data, err := e.collectAudio(conn)
	if err != nil {
		if ctx.Err() != nil {
			return core.AudioPayload{}, ctx.Err()
		}
		return core.AudioPayload{}, err
	}
	if len(data) == 0 {
		return core.AudioPayload{}, core.ErrSynthesisFailed
	}
	return core.AudioPayload{
		Data:        data,
		Format:      format,
		ContentType: contentType(format),
		SampleRate:  sampleRate,
		Channels:    1,
	}, nil
}

func (e *ElevenLabsTTS) dial(ctx context.Context, outputFormat string) (*websocket.Conn, error) {
	endpoint := fmt.Sprintf("%s/%s/stream-input?model_id=%s&output_format=%s",
		e.config.BaseURL,
		url.PathEscape(e.config.VoiceID),
		url.QueryEscape(e.config.ModelID),
		outputFormat,
	)
	headers := http.Header{"xi-api-key": {e.config.APIKey}}

	conn, _, err := e.dialer.DialContext(ctx, endpoint, headers)
	if err != nil {
		return nil, err
	}
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn, nil
}

// sendStream writes BOS, the sentence and the empty-text EOS marker.
func (e *ElevenLabsTTS) sendStream(conn *websocket.Conn, text string) error {
	bos := elBOSMessage{
		Text: " ",
		VoiceSettings: elVoiceSettings{
			Stability:       e.config.Stability,
			SimilarityBoost: e.config.SimilarityBoost,
		},
		GenerationConfig: elGenConfig{
			ChunkLengthSchedule: []int{120, 160, 250, 290},
		},
	}
	if err := e.sendJSON(conn, bos); err != nil {
		return fmt.Errorf("failed to send BOS: %w", err)
	}
	// ElevenLabs expects each text chunk to end with a space.
	if err := e.sendJSON(conn, elTextMessage{Text: text + " ", TryTriggerGeneration: true}); err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	if err := e.sendJSON(conn, elTextMessage{Text: ""}); err != nil {
		return fmt.Errorf("failed to send EOS: %w", err)
	}
	return nil
}

// collectAudio reads until isFinal or a normal close.
func (e *ElevenLabsTTS) collectAudio(conn *websocket.Conn) ([]byte, error) {
	var audio []byte
	for {
		messageType, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return audio, nil
			}
			return nil, fmt.Errorf("read error: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			audio = append(audio, message...)
		case websocket.TextMessage:
			chunk, final, err := e.handleTextMessage(message)
			if err != nil {
				return nil, err
			}
			audio = append(audio, chunk...)
			if final {
				return audio, nil
			}
		}
	}
}

// handleTextMessage decodes one JSON message: an error, or base64 audio.
func (e *ElevenLabsTTS) handleTextMessage(message []byte) ([]byte, bool, error) {
	var errMsg elErrorMessage
	if err := sonic.Unmarshal(message, &errMsg); err == nil && (errMsg.Error != "" || errMsg.Message != "") {
		if errMsg.Message == "" {
			errMsg.Message = errMsg.Error
		}
		return nil, false, fmt.Errorf("ElevenLabs error: %s (code: %d)", errMsg.Message, errMsg.Code)
	}

	var audioMsg elAudioMessage
	if err := sonic.Unmarshal(message, &audioMsg); err != nil {
		e.logger.Debug("ElevenLabs TTS: ignoring unparseable message", "error", err)
		return nil, false, nil
	}
	if audioMsg.Audio == "" {
		return nil, audioMsg.IsFinal, nil
	}
	data, err := base64.StdEncoding.DecodeString(audioMsg.Audio)
	if err != nil {
		return nil, false, fmt.Errorf("failed to decode audio: %w", err)
	}
	return data, audioMsg.IsFinal, nil
}

func (e *ElevenLabsTTS) sendJSON(conn *websocket.Conn, msg interface{}) error {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
