package protocol

import "encoding/json"

// MessageType enumerates all browser session message types.
type MessageType string

const (
	// Browser -> server
	MsgSubmitText    MessageType = "submit_text"
	MsgRecordStart   MessageType = "record_start"
	MsgRecordStop    MessageType = "record_stop"
	MsgGesture       MessageType = "gesture"
	MsgMicGranted    MessageType = "mic_granted"
	MsgMicDenied     MessageType = "mic_denied"
	MsgPlaybackEnded MessageType = "playback_ended"

	// Server -> browser
	MsgUserMessage      MessageType = "user_message"
	MsgAssistantMessage MessageType = "assistant_message"
	MsgUnitSpeaking     MessageType = "unit_speaking"
	MsgInputBuffer      MessageType = "input_buffer"
	MsgCaptureState     MessageType = "capture_state"
	MsgAlert            MessageType = "alert"
	MsgMicRequest       MessageType = "mic_request"
	MsgAudioUnit        MessageType = "audio_unit"
	MsgPlaybackStop     MessageType = "playback_stop"
)

// Envelope is the outer JSON wrapper for all text WebSocket messages. Audio
// travels in binary frames next to it.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- Browser -> server payloads ---

type SubmitTextPayload struct {
	Text string `json:"text"`
}

// MicGrantedPayload describes the binary frames that follow until
// record_stop. PCM frames are 16-bit little-endian.
type MicGrantedPayload struct {
	MimeType   string `json:"mime_type,omitempty"`
	PCM        bool   `json:"pcm,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type MicDeniedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// PlaybackEndedPayload acknowledges that audio unit Seq finished sounding.
type PlaybackEndedPayload struct {
	Seq uint64 `json:"seq"`
}

// --- Server -> browser payloads ---

type MessagePayload struct {
	Text            string `json:"text"`
	Expression      string `json:"expression,omitempty"`
	MouthDurationMs int64  `json:"mouth_duration_ms,omitempty"`
}

type UnitSpeakingPayload struct {
	Index            int    `json:"index"`
	Text             string `json:"text"`
	ApproxDurationMs int64  `json:"approx_duration_ms"`
}

type InputBufferPayload struct {
	Text string `json:"text"`
}

type CaptureStatePayload struct {
	State string `json:"state"`
}

type AlertPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// AudioUnitPayload announces the binary PCM frame sent right after it.
type AudioUnitPayload struct {
	Seq        uint64 `json:"seq"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Bytes      int    `json:"bytes"`
	DurationMs int64  `json:"duration_ms"`
}

type PlaybackStopPayload struct {
	Seq uint64 `json:"seq"`
}
