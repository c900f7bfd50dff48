package playback

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"avatarvoice/core"
	convevents "avatarvoice/events/conversation"
)

const DefaultMouthMsPerChar = 55

// Device is the exclusive audio output used by the Player.
type Device interface {
	Play(ctx context.Context, buf *core.AudioBuffer) error
}

type PlayerConfig struct {
	// MouthMsPerChar converts unit text length into the approximate speaking
	// duration announced to the avatar.
	MouthMsPerChar int `json:"mouth_ms_per_char,omitempty" yaml:"mouth_ms_per_char,omitempty"`
}

func DefaultPlayerConfig() PlayerConfig {
	return PlayerConfig{MouthMsPerChar: DefaultMouthMsPerChar}
}

// ApproxDurationMs is the avatar timing for text: its length times msPerChar.
func ApproxDurationMs(text string, msPerChar int) int64 {
	return int64(utf8.RuneCountInString(text)) * int64(msPerChar)
}

// Player runs a Sequencer on its own goroutine and carries out its effects
// against the device. It is the only writer to the device.
type Player struct {
	device  Device
	emitter core.EventEmitter
	config  PlayerConfig
	logger  *core.Logger

	events chan Event
	seq    *Sequencer

	ctx        context.Context
	cancel     context.CancelFunc
	playCancel context.CancelFunc
	playDone   chan struct{}
	playWG     sync.WaitGroup
	done       chan struct{}
	startOnce  sync.Once
}

func NewPlayer(device Device, emitter core.EventEmitter, config PlayerConfig, logger *core.Logger) *Player {
	if logger == nil {
		logger = core.GetLogger()
	}
	if emitter == nil {
		emitter = core.NopEmitter
	}
	if config.MouthMsPerChar <= 0 {
		config.MouthMsPerChar = DefaultMouthMsPerChar
	}
	return &Player{
		device:  device,
		emitter: emitter,
		config:  config,
		logger:  logger.With(map[string]interface{}{"component": "playback"}),
		events:  make(chan Event, 64),
		seq:     NewSequencer(),
		done:    make(chan struct{}),
	}
}

// Start launches the event loop. It stops when ctx is cancelled or Close is called.
func (p *Player) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		p.ctx, p.cancel = context.WithCancel(ctx)
		go p.loop()
	})
}

// Reset begins turn: anything sounding is stopped and leftovers are dropped.
func (p *Player) Reset(turn uint64) {
	p.send(ResetEvent{Turn: turn})
}

// Offer hands one synthesis result of turn to the sequencer.
func (p *Player) Offer(turn uint64, result core.SynthesisResult) {
	p.send(ResultEvent{Turn: turn, Result: result})
}

// Close stops the sounding unit, drops pending results and waits for the
// loop and any playback goroutine to exit.
func (p *Player) Close() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.playWG.Wait()
}

func (p *Player) send(ev Event) {
	if p.ctx == nil {
		return
	}
	select {
	case p.events <- ev:
	case <-p.ctx.Done():
	}
}

func (p *Player) loop() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.events:
			p.apply(p.seq.Handle(ev))
		case <-p.ctx.Done():
			p.stopSounding()
			p.seq.Handle(ResetEvent{Turn: p.seq.Turn()})
			return
		}
	}
}

func (p *Player) apply(effects []Effect) {
	for _, effect := range effects {
		switch effect := effect.(type) {
		case StopEffect:
			p.stopSounding()
		case PlayEffect:
			p.play(effect)
		}
	}
}

// stopSounding cancels the current unit and waits for the device to let go
// of it, so the next PlayEffect never overlaps.
func (p *Player) stopSounding() {
	if p.playCancel == nil {
		return
	}
	p.playCancel()
	<-p.playDone
	p.playCancel = nil
	p.playDone = nil
}

func (p *Player) play(effect PlayEffect) {
	p.stopSounding()
	playCtx, cancel := context.WithCancel(p.ctx)
	done := make(chan struct{})
	p.playCancel = cancel
	p.playDone = done

	p.emitter.Emit(&convevents.UnitSpeakingEvent{
		Index:            effect.Unit.Index,
		Text:             effect.Unit.Text,
		ApproxDurationMs: ApproxDurationMs(effect.Unit.Text, p.config.MouthMsPerChar),
	})

	p.playWG.Add(1)
	go func() {
		defer p.playWG.Done()
		defer close(done)
		if err := p.device.Play(playCtx, effect.Buffer); err != nil && !errors.Is(err, context.Canceled) {
			p.logger.Warn("playback failed", "index", effect.Unit.Index, "error", err)
		}
		select {
		case p.events <- EndedEvent{Turn: effect.Turn, Index: effect.Unit.Index}:
		case <-playCtx.Done():
		}
	}()
}
