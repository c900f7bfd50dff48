package playback

import (
	"context"
	"sync"
	"testing"
	"time"

	"avatarvoice/core"
	convevents "avatarvoice/events/conversation"
)

type fakeDevice struct {
	mu       sync.Mutex
	active   int
	overlaps int
	played   []int
	hold     time.Duration
	started  chan int
}

func newFakeDevice(hold time.Duration) *fakeDevice {
	return &fakeDevice{hold: hold, started: make(chan int, 32)}
}

func (d *fakeDevice) Play(ctx context.Context, buf *core.AudioBuffer) error {
	d.mu.Lock()
	d.active++
	if d.active > 1 {
		d.overlaps++
	}
	d.played = append(d.played, int(buf.PCM[0]))
	d.mu.Unlock()
	d.started <- int(buf.PCM[0])

	defer func() {
		d.mu.Lock()
		d.active--
		d.mu.Unlock()
	}()
	select {
	case <-time.After(d.hold):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *fakeDevice) snapshot() ([]int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int(nil), d.played...), d.overlaps
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []core.IEvent
}

func (e *recordingEmitter) Emit(ev core.IEvent) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *recordingEmitter) speaking() []*convevents.UnitSpeakingEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []*convevents.UnitSpeakingEvent
	for _, ev := range e.events {
		if s, ok := ev.(*convevents.UnitSpeakingEvent); ok {
			out = append(out, s)
		}
	}
	return out
}

// unit tags the PCM with its index so the fake device can report play order.
func unit(i int, text string) core.SynthesisResult {
	return core.SynthesisResult{
		Unit:   core.SpeechUnit{Index: i, Text: text},
		Buffer: &core.AudioBuffer{PCM: []byte{byte(i), 0}, SampleRate: 8000, Channels: 1},
	}
}

func waitStarted(t *testing.T, d *fakeDevice, want int) {
	t.Helper()
	select {
	case got := <-d.started:
		if got != want {
			t.Fatalf("device started unit %d, want %d", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for unit %d", want)
	}
}

func TestPlayerPlaysInIndexOrder(t *testing.T) {
	device := newFakeDevice(20 * time.Millisecond)
	emitter := &recordingEmitter{}
	p := NewPlayer(device, emitter, DefaultPlayerConfig(), core.NewLogger(nil))
	p.Start(context.Background())
	defer p.Close()

	p.Reset(1)
	p.Offer(1, unit(1, "World."))
	p.Offer(1, unit(0, "Hello."))

	waitStarted(t, device, 0)
	waitStarted(t, device, 1)

	played, overlaps := device.snapshot()
	if len(played) != 2 || played[0] != 0 || played[1] != 1 {
		t.Fatalf("played = %v", played)
	}
	if overlaps != 0 {
		t.Fatalf("%d overlapping plays", overlaps)
	}

	speaking := emitter.speaking()
	if len(speaking) != 2 {
		t.Fatalf("got %d speaking events", len(speaking))
	}
	if speaking[0].Text != "Hello." || speaking[0].ApproxDurationMs != 6*DefaultMouthMsPerChar {
		t.Fatalf("first speaking event = %+v", speaking[0])
	}
}

func TestPlayerResetStopsSoundingUnit(t *testing.T) {
	device := newFakeDevice(time.Hour)
	p := NewPlayer(device, nil, DefaultPlayerConfig(), core.NewLogger(nil))
	p.Start(context.Background())
	defer p.Close()

	p.Reset(1)
	p.Offer(1, unit(0, "Một câu rất dài."))
	p.Offer(1, unit(1, "Không bao giờ phát."))
	waitStarted(t, device, 0)

	p.Reset(2)
	p.Offer(2, unit(0, "Lượt mới."))
	waitStarted(t, device, 0)

	played, overlaps := device.snapshot()
	if len(played) != 2 {
		t.Fatalf("played = %v, old turn must not continue", played)
	}
	if overlaps != 0 {
		t.Fatalf("new turn overlapped the stopped unit")
	}
}

func TestPlayerCloseSilencesDevice(t *testing.T) {
	device := newFakeDevice(time.Hour)
	p := NewPlayer(device, nil, DefaultPlayerConfig(), core.NewLogger(nil))
	p.Start(context.Background())

	p.Reset(1)
	p.Offer(1, unit(0, "Dài."))
	waitStarted(t, device, 0)

	closed := make(chan struct{})
	go func() {
		p.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the sounding unit")
	}

	// Offers after Close are dropped without blocking.
	p.Offer(1, unit(1, "Sau."))
	p.Close()
}

func TestApproxDurationCountsRunes(t *testing.T) {
	if got := ApproxDurationMs("Chào", 55); got != 4*55 {
		t.Fatalf("ApproxDurationMs = %d", got)
	}
	if got := ApproxDurationMs("", 55); got != 0 {
		t.Fatalf("empty text = %d", got)
	}
}
