package capture

import (
	"errors"
	"reflect"
	"testing"

	"avatarvoice/core"
)

func TestTransitionHappyPath(t *testing.T) {
	stream := &fakeStream{}

	state, effects := Transition(Idle, StartEvent{})
	if state != Recording || !reflect.DeepEqual(effects, []Effect{AcquireEffect{}}) {
		t.Fatalf("start: %v %#v", state, effects)
	}

	state, effects = Transition(state, MicReadyEvent{Stream: stream})
	if state != Recording || len(effects) != 1 {
		t.Fatalf("mic ready: %v %#v", state, effects)
	}
	if begin, ok := effects[0].(BeginSessionEffect); !ok || begin.Stream != stream {
		t.Fatalf("mic ready effect = %#v", effects[0])
	}

	state, effects = Transition(state, StopEvent{})
	want := []Effect{ReleaseMicEffect{}, FinalizeEffect{}, TranscribeEffect{}}
	if state != Processing || !reflect.DeepEqual(effects, want) {
		t.Fatalf("stop: %v %#v", state, effects)
	}

	state, effects = Transition(state, TranscriptEvent{Text: "  xin chào "})
	if state != Idle || !reflect.DeepEqual(effects, []Effect{AppendInputEffect{Text: "xin chào"}}) {
		t.Fatalf("transcript: %v %#v", state, effects)
	}
}

func TestTransitionMicDenied(t *testing.T) {
	state, _ := Transition(Idle, StartEvent{})
	state, effects := Transition(state, MicDeniedEvent{})

	if state != Idle {
		t.Fatalf("state = %v, want idle", state)
	}
	if len(effects) != 1 {
		t.Fatalf("effects = %#v", effects)
	}
	alert, ok := effects[0].(AlertEffect)
	if !ok || alert.Kind != core.FailureCapture || !errors.Is(alert.Err, core.ErrMicrophoneUnavailable) {
		t.Fatalf("alert = %#v", effects[0])
	}
	for _, e := range effects {
		if _, ok := e.(BeginSessionEffect); ok {
			t.Fatal("no recording session may start after a denial")
		}
	}
}

func TestTransitionStartIsGuarded(t *testing.T) {
	for _, s := range []State{Recording, Processing} {
		if next, effects := Transition(s, StartEvent{}); next != s || effects != nil {
			t.Errorf("start in %v: %v %#v", s, next, effects)
		}
	}
}

func TestTransitionTranscriptionFailure(t *testing.T) {
	boom := errors.New("boom")
	state, effects := Transition(Processing, TranscriptFailedEvent{Err: boom})
	if state != Idle || len(effects) != 1 {
		t.Fatalf("%v %#v", state, effects)
	}
	if alert := effects[0].(AlertEffect); alert.Kind != core.FailureTranscription || alert.Err != boom {
		t.Fatalf("alert = %#v", alert)
	}

	if state, effects := Transition(Processing, TranscriptEvent{Text: "   "}); state != Idle || effects != nil {
		t.Fatalf("blank transcript: %v %#v", state, effects)
	}
}

func TestTransitionLateGrantIsDiscarded(t *testing.T) {
	stream := &fakeStream{}
	for _, s := range []State{Idle, Processing} {
		next, effects := Transition(s, MicReadyEvent{Stream: stream})
		if next != s || len(effects) != 1 {
			t.Fatalf("grant in %v: %v %#v", s, next, effects)
		}
		if discard, ok := effects[0].(DiscardStreamEffect); !ok || discard.Stream != stream {
			t.Fatalf("effect = %#v", effects[0])
		}
	}
}
