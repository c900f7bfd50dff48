package core

import "errors"

var (
	// ErrEmptyConversation: no valid turn survived validation.
	ErrEmptyConversation = errors.New("empty conversation")
	// ErrNoUserTurn: a history without any user turn cannot be prompted.
	ErrNoUserTurn = errors.New("no user turn in history")
	// ErrCompletionExhausted: primary and fallback completion both failed.
	ErrCompletionExhausted = errors.New("chat completion exhausted")
	ErrSynthesisFailed     = errors.New("speech synthesis failed")
	// ErrMicrophoneUnavailable: permission denied or device busy.
	ErrMicrophoneUnavailable = errors.New("microphone unavailable")
	ErrTranscriptionFailed   = errors.New("transcription failed")
	ErrEmptyRecording        = errors.New("recording is empty")
	ErrDeviceClosed          = errors.New("audio device closed")
	// ErrTurnInFlight: a submission arrived while a completion was pending.
	ErrTurnInFlight = errors.New("a turn is already in flight")
)

// FailureKind classifies failures that are surfaced to the user.
type FailureKind string

const (
	FailureCapture       FailureKind = "capture"
	FailureTranscription FailureKind = "transcription"
)
