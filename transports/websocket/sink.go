package websocket

import (
	"context"
	"sync"
	"time"

	"avatarvoice/core"
	"avatarvoice/protocol"
)

// playbackGrace is added to a unit's duration before Play stops waiting for
// the browser's playback_ended.
const playbackGrace = 500 * time.Millisecond

// Sink plays decoded units in the browser. Play sends the PCM and blocks
// until the browser reports playback_ended, the unit's duration plus a grace
// period elapses, or ctx is cancelled, in which case playback_stop is sent.
type Sink struct {
	ws *WebSocketService

	mu      sync.Mutex
	seq     uint64
	waiting map[uint64]chan struct{}
	closed  bool
	done    chan struct{}
}

func newSink(ws *WebSocketService) *Sink {
	return &Sink{
		ws:      ws,
		waiting: make(map[uint64]chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *Sink) Play(ctx context.Context, buf *core.AudioBuffer) error {
	if buf == nil || len(buf.PCM) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return core.ErrDeviceClosed
	}
	s.seq++
	seq := s.seq
	ended := make(chan struct{})
	s.waiting[seq] = ended
	s.mu.Unlock()
	defer s.forget(seq)

	duration := buf.Duration()
	err := s.ws.SendAudio(protocol.AudioUnitPayload{
		Seq:        seq,
		SampleRate: buf.SampleRate,
		Channels:   buf.Channels,
		Bytes:      len(buf.PCM),
		DurationMs: duration.Milliseconds(),
	}, buf.PCM)
	if err != nil {
		return err
	}

	timer := time.NewTimer(duration + playbackGrace)
	defer timer.Stop()
	select {
	case <-ended:
		return nil
	case <-timer.C:
		return nil
	case <-s.done:
		return core.ErrDeviceClosed
	case <-ctx.Done():
		s.ws.SendMessage(protocol.MsgPlaybackStop, protocol.PlaybackStopPayload{Seq: seq})
		return ctx.Err()
	}
}

// ended releases the Play call waiting on seq.
func (s *Sink) ended(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.waiting[seq]; ok {
		close(ch)
		delete(s.waiting, seq)
	}
}

func (s *Sink) forget(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.waiting, seq)
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
	return nil
}
