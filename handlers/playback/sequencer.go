package playback

import "avatarvoice/core"

type State int

const (
	Idle State = iota
	Playing
)

func (s State) String() string {
	if s == Playing {
		return "playing"
	}
	return "idle"
}

// Event drives the Sequencer. Turn tags every event so that results and
// playback-end notices from a superseded turn are discarded on arrival.
type Event interface {
	isPlaybackEvent()
}

// ResetEvent starts a new turn: next expected index back to 0, pending
// results dropped, sounding unit stopped.
type ResetEvent struct {
	Turn uint64
}

// ResultEvent delivers one synthesis result, in any order.
type ResultEvent struct {
	Turn   uint64
	Result core.SynthesisResult
}

// EndedEvent reports that the unit at Index finished sounding.
type EndedEvent struct {
	Turn  uint64
	Index int
}

func (ResetEvent) isPlaybackEvent()  {}
func (ResultEvent) isPlaybackEvent() {}
func (EndedEvent) isPlaybackEvent()  {}

// Effect is an instruction for whoever owns the audio device.
type Effect interface {
	isPlaybackEffect()
}

// PlayEffect: make Unit audible now.
type PlayEffect struct {
	Turn   uint64
	Unit   core.SpeechUnit
	Buffer *core.AudioBuffer
}

// StopEffect: silence the unit currently sounding.
type StopEffect struct{}

func (PlayEffect) isPlaybackEffect() {}
func (StopEffect) isPlaybackEffect() {}

// Sequencer is the ordering state machine. It holds no goroutines and does no
// I/O; Handle applies one event and returns the resulting effects.
//
// Invariants: at most one unit is playing; units play in strictly increasing
// index order; a nil-buffer result at the next expected index is skipped
// within the same transition.
type Sequencer struct {
	state   State
	turn    uint64
	next    int
	playing int
	pending pendingBuffer
}

func NewSequencer() *Sequencer {
	return &Sequencer{}
}

func (s *Sequencer) State() State { return s.state }

func (s *Sequencer) Turn() uint64 { return s.turn }

// NextIndex is the index that must play next.
func (s *Sequencer) NextIndex() int { return s.next }

func (s *Sequencer) Pending() int { return s.pending.Len() }

func (s *Sequencer) Handle(ev Event) []Effect {
	switch ev := ev.(type) {
	case ResetEvent:
		var effects []Effect
		if s.state == Playing {
			effects = append(effects, StopEffect{})
		}
		s.turn = ev.Turn
		s.state = Idle
		s.next = 0
		s.pending.Clear()
		return effects

	case ResultEvent:
		if ev.Turn != s.turn || ev.Result.Index() < s.next {
			return nil
		}
		s.pending.Insert(ev.Result)
		return s.drain()

	case EndedEvent:
		if ev.Turn != s.turn || s.state != Playing || ev.Index != s.playing {
			return nil
		}
		s.state = Idle
		return s.drain()
	}
	return nil
}

// drain pops results while the smallest pending index is the next expected
// one, skipping failed units, and starts the first playable one.
func (s *Sequencer) drain() []Effect {
	if s.state == Playing {
		return nil
	}
	for {
		idx, ok := s.pending.MinIndex()
		if !ok || idx > s.next {
			return nil
		}
		r := s.pending.PopMin()
		if idx < s.next {
			continue // duplicate of a unit already handled
		}
		s.next++
		if r.Failed() {
			continue
		}
		s.state = Playing
		s.playing = r.Index()
		return []Effect{PlayEffect{Turn: s.turn, Unit: r.Unit, Buffer: r.Buffer}}
	}
}
