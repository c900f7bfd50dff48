package capture

import (
	"strings"

	"avatarvoice/core"
)

type State int

const (
	Idle State = iota
	Recording
	Processing
)

func (s State) String() string {
	switch s {
	case Recording:
		return "recording"
	case Processing:
		return "processing"
	default:
		return "idle"
	}
}

// Event is an input to Transition.
type Event interface {
	isCaptureEvent()
}

type StartEvent struct{}

type StopEvent struct{}

// MicReadyEvent: the microphone was acquired and Stream is open.
type MicReadyEvent struct {
	Stream MicStream
}

// MicDeniedEvent: permission refused or the device is busy.
type MicDeniedEvent struct {
	Err error
}

type TranscriptEvent struct {
	Text string
}

type TranscriptFailedEvent struct {
	Err error
}

func (StartEvent) isCaptureEvent()            {}
func (StopEvent) isCaptureEvent()             {}
func (MicReadyEvent) isCaptureEvent()         {}
func (MicDeniedEvent) isCaptureEvent()        {}
func (TranscriptEvent) isCaptureEvent()       {}
func (TranscriptFailedEvent) isCaptureEvent() {}

// Effect is work the Controller performs after a transition.
type Effect interface {
	isCaptureEffect()
}

// AcquireEffect requests the microphone.
type AcquireEffect struct{}

// BeginSessionEffect starts collecting chunks from Stream into a new
// RecordingSession.
type BeginSessionEffect struct {
	Stream MicStream
}

// DiscardStreamEffect closes a stream that was granted after recording was
// already stopped or abandoned.
type DiscardStreamEffect struct {
	Stream MicStream
}

// ReleaseMicEffect closes the active stream and abandons a pending acquire.
type ReleaseMicEffect struct{}

// FinalizeEffect concatenates the session's chunks into one recording.
type FinalizeEffect struct{}

// TranscribeEffect hands the finalized recording to speech-to-text.
type TranscribeEffect struct{}

// AppendInputEffect adds transcript text to the input buffer.
type AppendInputEffect struct {
	Text string
}

// AlertEffect surfaces a failure to the user.
type AlertEffect struct {
	Kind core.FailureKind
	Err  error
}

func (AcquireEffect) isCaptureEffect()       {}
func (BeginSessionEffect) isCaptureEffect()  {}
func (DiscardStreamEffect) isCaptureEffect() {}
func (ReleaseMicEffect) isCaptureEffect()    {}
func (FinalizeEffect) isCaptureEffect()      {}
func (TranscribeEffect) isCaptureEffect()    {}
func (AppendInputEffect) isCaptureEffect()   {}
func (AlertEffect) isCaptureEffect()         {}

// Transition is the recording state machine. Events that do not apply to the
// current state leave it unchanged; a start while Recording or Processing is
// a no-op.
func Transition(state State, ev Event) (State, []Effect) {
	switch ev := ev.(type) {
	case StartEvent:
		if state == Idle {
			return Recording, []Effect{AcquireEffect{}}
		}

	case MicReadyEvent:
		if state == Recording {
			return Recording, []Effect{BeginSessionEffect{Stream: ev.Stream}}
		}
		return state, []Effect{DiscardStreamEffect{Stream: ev.Stream}}

	case MicDeniedEvent:
		if state == Recording {
			return Idle, []Effect{AlertEffect{Kind: core.FailureCapture, Err: micError(ev.Err)}}
		}

	case StopEvent:
		if state == Recording {
			return Processing, []Effect{ReleaseMicEffect{}, FinalizeEffect{}, TranscribeEffect{}}
		}

	case TranscriptEvent:
		if state == Processing {
			text := strings.TrimSpace(ev.Text)
			if text == "" {
				return Idle, nil
			}
			return Idle, []Effect{AppendInputEffect{Text: text}}
		}

	case TranscriptFailedEvent:
		if state == Processing {
			return Idle, []Effect{AlertEffect{Kind: core.FailureTranscription, Err: ev.Err}}
		}
	}
	return state, nil
}

func micError(err error) error {
	if err == nil {
		return core.ErrMicrophoneUnavailable
	}
	return err
}
