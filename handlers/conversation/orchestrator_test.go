package conversation

import (
	"context"
	"sync"
	"testing"
	"time"

	"avatarvoice/core"
	captureevents "avatarvoice/events/capture"
	convevents "avatarvoice/events/conversation"
	"avatarvoice/handlers/capture"
	"avatarvoice/handlers/tts"
	"avatarvoice/utils/audio"
)

type fakeCompleter struct {
	mu        sync.Mutex
	reply     string
	histories [][]core.Turn
	release   chan struct{}
}

func (f *fakeCompleter) Complete(ctx context.Context, history []core.Turn, username string) core.Turn {
	f.mu.Lock()
	f.histories = append(f.histories, history)
	release := f.release
	f.mu.Unlock()
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}
	return core.AssistantTurn(f.reply)
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.histories)
}

type pcmTTS struct{}

func (pcmTTS) Synthesize(ctx context.Context, text string) (core.AudioPayload, error) {
	return core.AudioPayload{Data: make([]byte, 16), Format: core.PCM, SampleRate: 8000, Channels: 1}, nil
}

type fakeSink struct {
	mu     sync.Mutex
	plays  int
	block  bool
	closed bool
}

func (s *fakeSink) Play(ctx context.Context, buf *core.AudioBuffer) error {
	s.mu.Lock()
	s.plays++
	block := s.block
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func (s *fakeSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type eventLog chan core.IEvent

func (l eventLog) Emit(ev core.IEvent) { l <- ev }

func waitFor[T core.IEvent](t *testing.T, l eventLog) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-l:
			if match, ok := ev.(T); ok {
				return match
			}
		case <-deadline:
			var zero T
			t.Fatalf("timed out waiting for %T", zero)
			return zero
		}
	}
}

type harness struct {
	o         *Orchestrator
	completer *fakeCompleter
	sink      *fakeSink
	events    eventLog
}

func newHarness(t *testing.T, deps Dependencies) *harness {
	t.Helper()
	h := &harness{
		completer: &fakeCompleter{reply: "Xin chào. Bạn khỏe không?"},
		sink:      &fakeSink{},
		events:    make(eventLog, 256),
	}
	if deps.Completer == nil {
		deps.Completer = h.completer
	}
	if deps.Synthesizer == nil {
		deps.Synthesizer = tts.NewSpeechSynthesizer(pcmTTS{}, core.NewLogger(nil))
	}
	if deps.NewSink == nil {
		deps.NewSink = func(context.Context) (audio.Sink, error) { return h.sink, nil }
	}
	deps.Emitter = h.events

	config := DefaultOrchestratorConfig()
	config.Username = "anh"
	h.o = NewOrchestrator(deps, config, core.NewLogger(nil))
	h.o.Start(context.Background())
	t.Cleanup(h.o.Close)
	return h
}

func TestOrchestratorTurnCycle(t *testing.T) {
	h := newHarness(t, Dependencies{})

	h.o.Submit("  Chào em  ")

	user := waitFor[*convevents.UserMessageAddedEvent](t, h.events)
	if user.Text != "Chào em" {
		t.Fatalf("user message = %q", user.Text)
	}
	assistant := waitFor[*convevents.AssistantMessageAddedEvent](t, h.events)
	if assistant.Text != "Xin chào. Bạn khỏe không?" {
		t.Fatalf("assistant message = %q", assistant.Text)
	}
	if want := int64(len([]rune(assistant.Text))) * 55; assistant.MouthDurationMs != want {
		t.Fatalf("mouth duration = %d, want %d", assistant.MouthDurationMs, want)
	}

	first := waitFor[*convevents.UnitSpeakingEvent](t, h.events)
	second := waitFor[*convevents.UnitSpeakingEvent](t, h.events)
	if first.Index != 0 || first.Text != "Xin chào." || second.Index != 1 || second.Text != "Bạn khỏe không?" {
		t.Fatalf("speaking order: %+v then %+v", first, second)
	}

	history := h.o.History()
	if len(history) != 2 || history[0] != core.UserTurn("Chào em") || history[1].Role != core.RoleAssistant {
		t.Fatalf("history = %+v", history)
	}
	if got := h.completer.histories[0]; len(got) != 1 || got[0].Content != "Chào em" {
		t.Fatalf("completer saw %+v", got)
	}
}

func TestOrchestratorHistoryGrowsByTwoPerExchange(t *testing.T) {
	h := newHarness(t, Dependencies{})

	for i := 1; i <= 2; i++ {
		h.o.Submit("Lặp lại")
		waitFor[*convevents.AssistantMessageAddedEvent](t, h.events)
		if got := len(h.o.History()); got != 2*i {
			t.Fatalf("after exchange %d history has %d turns", i, got)
		}
	}
	if h.completer.calls() != 2 {
		t.Fatalf("completions = %d, want 2", h.completer.calls())
	}
}

func TestOrchestratorDropsSubmitWhileLoading(t *testing.T) {
	completer := &fakeCompleter{reply: "Được.", release: make(chan struct{})}
	h := newHarness(t, Dependencies{Completer: completer})

	h.o.Submit("một")
	waitFor[*convevents.UserMessageAddedEvent](t, h.events)
	h.o.Submit("hai")
	h.o.Submit("   ")
	close(completer.release)
	waitFor[*convevents.AssistantMessageAddedEvent](t, h.events)

	// A follow-up submit is handled after the reply, so the dropped one
	// would have been processed by now.
	h.o.Submit("ba")
	waitFor[*convevents.AssistantMessageAddedEvent](t, h.events)

	history := h.o.History()
	if len(history) != 4 || history[2].Content != "ba" {
		t.Fatalf("history = %+v", history)
	}
	if completer.calls() != 2 {
		t.Fatalf("completions = %d, want 2", completer.calls())
	}
}

type stubStream struct {
	chunks    chan []byte
	closeOnce sync.Once
}

func (s *stubStream) Chunks() <-chan []byte { return s.chunks }
func (s *stubStream) Format() capture.RecordingFormat {
	return capture.RecordingFormat{MimeType: "audio/webm"}
}
func (s *stubStream) Close() error {
	s.closeOnce.Do(func() { close(s.chunks) })
	return nil
}

type stubMic struct {
	mu      sync.Mutex
	streams []*stubStream
}

func (m *stubMic) Open(ctx context.Context) (capture.MicStream, error) {
	s := &stubStream{chunks: make(chan []byte, 4)}
	s.chunks <- []byte("voice")
	m.mu.Lock()
	m.streams = append(m.streams, s)
	m.mu.Unlock()
	return s, nil
}

// started reports whether the n-th stream exists and its chunk was consumed.
func (m *stubMic) started(n int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams) >= n && len(m.streams[n-1].chunks) == 0
}

type queuedSTT struct {
	mu    sync.Mutex
	texts []string
}

func (q *queuedSTT) Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	text := q.texts[0]
	q.texts = q.texts[1:]
	return text, nil
}

func TestOrchestratorTranscriptsAppendToInput(t *testing.T) {
	mic := &stubMic{}
	h := newHarness(t, Dependencies{Microphone: mic, STT: &queuedSTT{texts: []string{"xin chào", "bạn ơi"}}})

	for n, want := range []string{"xin chào", "xin chào bạn ơi"} {
		h.o.StartRecording()
		deadline := time.Now().Add(2 * time.Second)
		for !mic.started(n + 1) {
			if time.Now().After(deadline) {
				t.Fatal("recording never started")
			}
			time.Sleep(time.Millisecond)
		}
		h.o.StopRecording()

		updated := waitFor[*captureevents.InputBufferUpdatedEvent](t, h.events)
		// The controller is idle again before the transcript is appended.
		if updated.Text != want {
			t.Fatalf("input = %q, want %q", updated.Text, want)
		}
	}

	if h.completer.calls() != 0 || len(h.o.History()) != 0 {
		t.Fatal("a transcript must never be submitted automatically")
	}
	if h.o.InputText() != "xin chào bạn ơi" {
		t.Fatalf("InputText() = %q", h.o.InputText())
	}
}

func TestOrchestratorCloseReleasesEverything(t *testing.T) {
	h := newHarness(t, Dependencies{})
	h.sink.block = true

	h.o.Gesture()
	h.o.Submit("Nói dài nhé")
	waitFor[*convevents.UnitSpeakingEvent](t, h.events)

	closed := make(chan struct{})
	go func() {
		h.o.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close hung")
	}
	if !h.sink.isClosed() {
		t.Fatal("audio device not released")
	}
	// Calls after Close are no-ops.
	h.o.Submit("còn đó không?")
	h.o.Close()
}

func TestOrchestratorSpeaksWhenDeviceOpensDuringCompletion(t *testing.T) {
	completer := &fakeCompleter{reply: "Em đây.", release: make(chan struct{})}
	sink := &fakeSink{}
	var mu sync.Mutex
	opens := 0
	newSink := func(context.Context) (audio.Sink, error) {
		mu.Lock()
		defer mu.Unlock()
		opens++
		if opens == 1 {
			return nil, core.ErrDeviceClosed
		}
		return sink, nil
	}
	h := newHarness(t, Dependencies{Completer: completer, NewSink: newSink})

	h.o.Submit("Chào em")
	waitFor[*convevents.UserMessageAddedEvent](t, h.events)
	h.o.Gesture()
	close(completer.release)

	waitFor[*convevents.AssistantMessageAddedEvent](t, h.events)
	unit := waitFor[*convevents.UnitSpeakingEvent](t, h.events)
	if unit.Index != 0 || unit.Text != "Em đây." {
		t.Fatalf("unexpected unit: %+v", unit)
	}
	mu.Lock()
	defer mu.Unlock()
	if opens != 2 {
		t.Fatalf("sink opened %d times, want 2", opens)
	}
}

func TestExpression(t *testing.T) {
	tests := map[string]string{
		"Em yêu anh ❤️":            ExpressionLove,
		"Tôi đang rất tức giận":     ExpressionAngry,
		"Wow, thật tuyệt vời!":      ExpressionExcited,
		"Hôm nay vui quá":           ExpressionHappy,
		"Mình hơi buồn":             ExpressionSad,
		"Bạn ăn cơm chưa?":          ExpressionDefault,
		"This is GREAT and amazing": ExpressionExcited,
	}
	for in, want := range tests {
		if got := Expression(in); got != want {
			t.Errorf("Expression(%q) = %q, want %q", in, got, want)
		}
	}
}
