package conversation

import (
	"context"
	"strings"
	"sync"

	"avatarvoice/core"
	captureevents "avatarvoice/events/capture"
	convevents "avatarvoice/events/conversation"
	"avatarvoice/handlers/capture"
	"avatarvoice/handlers/playback"
	"avatarvoice/handlers/tts"
	"avatarvoice/utils/audio"
	"avatarvoice/utils/text"
)

type Completer interface {
	Complete(ctx context.Context, history []core.Turn, username string) core.Turn
}

type Synthesizer interface {
	SynthesizeAll(ctx context.Context, units []core.SpeechUnit, decoder tts.Decoder) <-chan core.SynthesisResult
}

// SinkFactory opens the audio output. It is called at most once per session,
// on the first qualifying gesture.
type SinkFactory func(ctx context.Context) (audio.Sink, error)

// Dependencies are the collaborators of one session.
type Dependencies struct {
	Completer   Completer
	Synthesizer Synthesizer
	NewSink     SinkFactory
	Microphone  capture.Microphone
	STT         capture.STTService
	Emitter     core.EventEmitter
}

type OrchestratorConfig struct {
	Username string                   `json:"username,omitempty" yaml:"username,omitempty"`
	Device   audio.DeviceConfig       `json:"device,omitempty" yaml:"device,omitempty"`
	Player   playback.PlayerConfig    `json:"player,omitempty" yaml:"player,omitempty"`
	Capture  capture.ControllerConfig `json:"capture,omitempty" yaml:"capture,omitempty"`
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		Player:  playback.DefaultPlayerConfig(),
		Capture: capture.DefaultControllerConfig(),
	}
}

// completionDoneEvent returns a completed turn to the loop.
type completionDoneEvent struct {
	turn  uint64
	reply core.Turn
}

func (*completionDoneEvent) GetId() string {
	return "conversation.completion_done"
}

// Orchestrator is one conversation session. It owns the history, the audio
// device, the player and the capture controller; every field below the
// mutex-guarded history is touched only by the loop goroutine.
type Orchestrator struct {
	deps    Dependencies
	config  OrchestratorConfig
	logger  *core.Logger
	emitter core.EventEmitter

	inbox     chan *core.EventPacket
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
	workers   sync.WaitGroup

	historyMu sync.RWMutex
	history   []core.Turn

	input   *inputBuffer
	capture *capture.Controller

	turn    uint64
	loading bool
	device  *audio.DeviceContext
	player  *playback.Player
}

func NewOrchestrator(deps Dependencies, config OrchestratorConfig, logger *core.Logger) *Orchestrator {
	if logger == nil {
		logger = core.GetLogger()
	}
	emitter := deps.Emitter
	if emitter == nil {
		emitter = core.NopEmitter
	}
	if config.Player.MouthMsPerChar <= 0 {
		config.Player.MouthMsPerChar = playback.DefaultMouthMsPerChar
	}
	logger = logger.With(map[string]interface{}{"component": "conversation"})

	o := &Orchestrator{
		deps:    deps,
		config:  config,
		logger:  logger,
		emitter: emitter,
		inbox:   make(chan *core.EventPacket, 32),
		done:    make(chan struct{}),
		input:   &inputBuffer{emitter: emitter},
	}
	o.capture = capture.NewController(deps.Microphone, deps.STT, o.input, emitter, config.Capture, logger)
	return o
}

// Start runs the session loop until Close is called or ctx ends.
func (o *Orchestrator) Start(ctx context.Context) {
	o.startOnce.Do(func() {
		o.ctx, o.cancel = context.WithCancel(ctx)
		o.capture.Start(o.ctx)
		go o.loop()
	})
}

// Input accepts external input events (submit, record, gesture, teardown).
func (o *Orchestrator) Input() chan<- *core.EventPacket {
	return o.inbox
}

func (o *Orchestrator) Submit(text string) {
	o.post(&convevents.SubmitTextEvent{Text: text})
}

func (o *Orchestrator) StartRecording() {
	o.post(&captureevents.StartRecordingEvent{})
}

func (o *Orchestrator) StopRecording() {
	o.post(&captureevents.StopRecordingEvent{})
}

// Gesture marks a user interaction that allows the audio device to open.
func (o *Orchestrator) Gesture() {
	o.post(&convevents.GestureEvent{})
}

// Close tears the session down: playback stops, the device and microphone
// are released and in-flight work is abandoned.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		if o.cancel == nil {
			return
		}
		o.post(&convevents.TeardownEvent{})
		o.cancel()
		<-o.done
		o.workers.Wait()
	})
}

// Done is closed once the session loop has exited and released its devices.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.done
}

// History returns a copy of the conversation so far.
func (o *Orchestrator) History() []core.Turn {
	o.historyMu.RLock()
	defer o.historyMu.RUnlock()
	return append([]core.Turn(nil), o.history...)
}

// InputText is the current draft, including appended transcripts.
func (o *Orchestrator) InputText() string {
	return o.input.Text()
}

func (o *Orchestrator) CaptureState() capture.State {
	return o.capture.State()
}

func (o *Orchestrator) post(event core.IEvent) {
	if o.ctx == nil {
		return
	}
	packet := core.NewEventPacket(event, core.EventRelayDestinationSession, "Orchestrator")
	select {
	case o.inbox <- packet:
	case <-o.ctx.Done():
	}
}

func (o *Orchestrator) loop() {
	defer close(o.done)
	defer o.teardown()
	for {
		select {
		case packet := <-o.inbox:
			if packet == nil {
				continue
			}
			if !o.handle(packet.Event) {
				return
			}
		case <-o.ctx.Done():
			return
		}
	}
}

// handle applies one event; it returns false on teardown.
func (o *Orchestrator) handle(event core.IEvent) bool {
	switch ev := event.(type) {
	case *convevents.SubmitTextEvent:
		o.submit(ev.Text)
	case *completionDoneEvent:
		o.completed(ev.turn, ev.reply)
	case *captureevents.StartRecordingEvent:
		o.ensureDevice()
		o.capture.StartRecording()
	case *captureevents.StopRecordingEvent:
		o.capture.StopRecording()
	case *convevents.GestureEvent:
		o.ensureDevice()
	case *convevents.TeardownEvent:
		return false
	default:
		o.logger.Debug("ignoring event", "event", event.GetId())
	}
	return true
}

func (o *Orchestrator) submit(raw string) {
	content := strings.TrimSpace(raw)
	if content == "" {
		return
	}
	if o.loading {
		o.logger.Warn("submission dropped", "error", core.ErrTurnInFlight)
		return
	}
	o.ensureDevice()

	o.turn++
	turn := o.turn
	if o.player != nil {
		o.player.Reset(turn)
	}

	user := core.UserTurn(content)
	history := o.appendTurn(user)
	o.input.Clear()
	o.emitter.Emit(&convevents.UserMessageAddedEvent{Text: content, Expression: Expression(content)})

	o.loading = true
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		reply := o.deps.Completer.Complete(o.ctx, history, o.config.Username)
		select {
		case o.inbox <- core.NewEventPacket(&completionDoneEvent{turn: turn, reply: reply}, core.EventRelayDestinationSession, "ChatCompletionClient"):
		case <-o.ctx.Done():
		}
	}()
}

func (o *Orchestrator) completed(turn uint64, reply core.Turn) {
	o.loading = false
	if strings.TrimSpace(reply.Content) == "" {
		o.logger.Warn("completion returned an empty turn")
		return
	}
	o.appendTurn(reply)

	o.emitter.Emit(&convevents.AssistantMessageAddedEvent{
		Text:            reply.Content,
		Expression:      Expression(reply.Content),
		MouthDurationMs: playback.ApproxDurationMs(reply.Content, o.config.Player.MouthMsPerChar),
	})

	if o.player == nil || o.device == nil || o.deps.Synthesizer == nil {
		return
	}
	units := text.Segment(reply.Content)
	if len(units) == 0 {
		return
	}
	o.logger.Debug("speaking reply", "units", len(units), "turn", turn)

	player := o.player
	results := o.deps.Synthesizer.SynthesizeAll(o.ctx, units, o.device)
	o.workers.Add(1)
	go func() {
		defer o.workers.Done()
		for result := range results {
			player.Offer(turn, result)
		}
	}()
}

// appendTurn adds t to the history and returns a snapshot including it.
func (o *Orchestrator) appendTurn(t core.Turn) []core.Turn {
	o.historyMu.Lock()
	defer o.historyMu.Unlock()
	o.history = append(o.history, t)
	return append([]core.Turn(nil), o.history...)
}

func (o *Orchestrator) ensureDevice() {
	if o.device != nil || o.deps.NewSink == nil {
		return
	}
	sink, err := o.deps.NewSink(o.ctx)
	if err != nil {
		o.logger.Warn("audio output unavailable", "error", err)
		return
	}
	o.device = audio.NewDeviceContext(sink, o.config.Device, o.logger)
	o.player = playback.NewPlayer(o.device, o.emitter, o.config.Player, o.logger)
	o.player.Start(o.ctx)
	// A device opened while a completion is pending must accept that turn's units.
	o.player.Reset(o.turn)
	o.logger.Debug("audio device created")
}

func (o *Orchestrator) teardown() {
	o.cancel()
	if o.player != nil {
		o.player.Close()
	}
	o.capture.Close()
	if o.device != nil {
		if err := o.device.Close(); err != nil {
			o.logger.Warn("audio device close failed", "error", err)
		}
	}
	o.logger.Debug("session torn down")
}

// inputBuffer mirrors the user's draft. Transcripts are appended after a
// single space.
type inputBuffer struct {
	mu      sync.Mutex
	text    string
	emitter core.EventEmitter
}

func (b *inputBuffer) Append(s string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return
	}
	b.mu.Lock()
	if b.text == "" {
		b.text = s
	} else {
		b.text += " " + s
	}
	current := b.text
	b.mu.Unlock()
	b.emitter.Emit(&captureevents.InputBufferUpdatedEvent{Text: current})
}

func (b *inputBuffer) Clear() {
	b.mu.Lock()
	changed := b.text != ""
	b.text = ""
	b.mu.Unlock()
	if changed {
		b.emitter.Emit(&captureevents.InputBufferUpdatedEvent{Text: ""})
	}
}

func (b *inputBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}
