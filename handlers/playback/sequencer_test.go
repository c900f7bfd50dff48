package playback

import (
	"math/rand"
	"testing"

	"avatarvoice/core"
)

func okResult(i int) core.SynthesisResult {
	return core.SynthesisResult{
		Unit:   core.SpeechUnit{Index: i, Text: "câu"},
		Buffer: &core.AudioBuffer{PCM: []byte{0, 0}, SampleRate: 8000, Channels: 1},
	}
}

func failedResult(i int) core.SynthesisResult {
	return core.SynthesisResult{Unit: core.SpeechUnit{Index: i, Text: "câu"}}
}

func playedIndex(t *testing.T, effects []Effect) int {
	t.Helper()
	if len(effects) != 1 {
		t.Fatalf("effects = %#v, want one PlayEffect", effects)
	}
	play, ok := effects[0].(PlayEffect)
	if !ok {
		t.Fatalf("effect = %#v, want PlayEffect", effects[0])
	}
	return play.Unit.Index
}

func TestSequencerHoldsOutOfOrderResults(t *testing.T) {
	s := NewSequencer()
	s.Handle(ResetEvent{Turn: 1})

	if effects := s.Handle(ResultEvent{Turn: 1, Result: okResult(1)}); len(effects) != 0 {
		t.Fatalf("index 1 must wait for index 0, got %#v", effects)
	}
	if s.State() != Idle || s.Pending() != 1 {
		t.Fatalf("state=%v pending=%d", s.State(), s.Pending())
	}

	if got := playedIndex(t, s.Handle(ResultEvent{Turn: 1, Result: okResult(0)})); got != 0 {
		t.Fatalf("played %d, want 0", got)
	}
	if s.State() != Playing {
		t.Fatalf("state = %v, want playing", s.State())
	}
	if got := playedIndex(t, s.Handle(EndedEvent{Turn: 1, Index: 0})); got != 1 {
		t.Fatalf("played %d, want 1", got)
	}
	if effects := s.Handle(EndedEvent{Turn: 1, Index: 1}); len(effects) != 0 {
		t.Fatalf("effects = %#v", effects)
	}
	if s.State() != Idle || s.NextIndex() != 2 {
		t.Fatalf("state=%v next=%d", s.State(), s.NextIndex())
	}
}

func TestSequencerSkipsFailedUnits(t *testing.T) {
	s := NewSequencer()
	s.Handle(ResetEvent{Turn: 7})

	s.Handle(ResultEvent{Turn: 7, Result: okResult(2)})
	s.Handle(ResultEvent{Turn: 7, Result: failedResult(1)})
	if got := playedIndex(t, s.Handle(ResultEvent{Turn: 7, Result: failedResult(0)})); got != 2 {
		t.Fatalf("played %d, want 2 after skipping 0 and 1", got)
	}

	if effects := s.Handle(EndedEvent{Turn: 7, Index: 2}); len(effects) != 0 {
		t.Fatalf("effects = %#v", effects)
	}
	if effects := s.Handle(ResultEvent{Turn: 7, Result: failedResult(3)}); len(effects) != 0 || s.NextIndex() != 4 {
		t.Fatalf("failed tail: effects=%#v next=%d", effects, s.NextIndex())
	}
}

func TestSequencerResetDiscardsPreviousTurn(t *testing.T) {
	s := NewSequencer()
	s.Handle(ResetEvent{Turn: 1})
	playedIndex(t, s.Handle(ResultEvent{Turn: 1, Result: okResult(0)}))
	s.Handle(ResultEvent{Turn: 1, Result: okResult(2)})

	effects := s.Handle(ResetEvent{Turn: 2})
	if len(effects) != 1 {
		t.Fatalf("reset while playing: effects = %#v", effects)
	}
	if _, ok := effects[0].(StopEffect); !ok {
		t.Fatalf("effect = %#v, want StopEffect", effects[0])
	}
	if s.State() != Idle || s.Pending() != 0 || s.NextIndex() != 0 {
		t.Fatalf("after reset: state=%v pending=%d next=%d", s.State(), s.Pending(), s.NextIndex())
	}

	if effects := s.Handle(ResultEvent{Turn: 1, Result: okResult(1)}); len(effects) != 0 {
		t.Fatal("stale result must be dropped")
	}
	if effects := s.Handle(EndedEvent{Turn: 1, Index: 0}); len(effects) != 0 {
		t.Fatal("stale playback end must be ignored")
	}
	if got := playedIndex(t, s.Handle(ResultEvent{Turn: 2, Result: okResult(0)})); got != 0 {
		t.Fatalf("played %d, want 0", got)
	}
}

func TestSequencerIgnoresDuplicates(t *testing.T) {
	s := NewSequencer()
	s.Handle(ResetEvent{Turn: 1})
	playedIndex(t, s.Handle(ResultEvent{Turn: 1, Result: okResult(0)}))

	if effects := s.Handle(ResultEvent{Turn: 1, Result: okResult(0)}); len(effects) != 0 {
		t.Fatal("duplicate of the sounding unit must be dropped")
	}
	s.Handle(ResultEvent{Turn: 1, Result: okResult(1)})
	s.Handle(ResultEvent{Turn: 1, Result: okResult(1)})
	if got := playedIndex(t, s.Handle(EndedEvent{Turn: 1, Index: 0})); got != 1 {
		t.Fatalf("played %d, want 1", got)
	}
	if effects := s.Handle(EndedEvent{Turn: 1, Index: 1}); len(effects) != 0 {
		t.Fatalf("duplicate pending result replayed: %#v", effects)
	}
}

// For every delivery order, non-null units play in increasing index order
// and every non-null unit plays exactly once.
func TestSequencerOrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(8)
		results := make([]core.SynthesisResult, n)
		expected := 0
		for i := range results {
			if rng.Intn(4) == 0 {
				results[i] = failedResult(i)
			} else {
				results[i] = okResult(i)
				expected++
			}
		}
		rng.Shuffle(n, func(i, j int) { results[i], results[j] = results[j], results[i] })

		s := NewSequencer()
		s.Handle(ResetEvent{Turn: 1})

		var played []int
		var queue []Effect
		deliver := func(effects []Effect) { queue = append(queue, effects...) }
		for _, r := range results {
			deliver(s.Handle(ResultEvent{Turn: 1, Result: r}))
			// Finish playback at random points to vary the interleaving.
			for len(queue) > 0 && rng.Intn(2) == 0 {
				play := queue[0].(PlayEffect)
				queue = queue[1:]
				played = append(played, play.Unit.Index)
				deliver(s.Handle(EndedEvent{Turn: 1, Index: play.Unit.Index}))
			}
		}
		for len(queue) > 0 {
			play := queue[0].(PlayEffect)
			queue = queue[1:]
			played = append(played, play.Unit.Index)
			deliver(s.Handle(EndedEvent{Turn: 1, Index: play.Unit.Index}))
		}

		if len(played) != expected {
			t.Fatalf("trial %d: played %v, want %d units", trial, played, expected)
		}
		for i := 1; i < len(played); i++ {
			if played[i] <= played[i-1] {
				t.Fatalf("trial %d: out of order playback %v", trial, played)
			}
		}
		if s.NextIndex() != n || s.State() != Idle {
			t.Fatalf("trial %d: next=%d state=%v", trial, s.NextIndex(), s.State())
		}
	}
}
