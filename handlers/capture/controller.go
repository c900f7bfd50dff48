package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"avatarvoice/core"
	captureevents "avatarvoice/events/capture"
	"avatarvoice/utils/audio"
)

// RecordingFormat describes the chunks a MicStream produces. PCM streams are
// wrapped in a WAV header when finalized; anything else (e.g. audio/webm from
// a browser) is concatenated as is.
type RecordingFormat struct {
	MimeType   string
	PCM        bool
	SampleRate int
	Channels   int
}

// MicStream is an open microphone. Close releases the device and must close
// the Chunks channel.
type MicStream interface {
	Chunks() <-chan []byte
	Format() RecordingFormat
	Close() error
}

type Microphone interface {
	// Open blocks until the microphone is granted or refused.
	Open(ctx context.Context) (MicStream, error)
}

type STTService interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (string, error)
}

// InputBuffer is the user's draft text. Transcripts are appended, never submitted.
type InputBuffer interface {
	Append(text string)
}

type ControllerConfig struct {
	MaxRecordingBytes int `json:"max_recording_bytes,omitempty" yaml:"max_recording_bytes,omitempty"`
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{MaxRecordingBytes: DefaultMaxRecordingBytes}
}

// micResult carries the outcome of one acquire attempt back to the loop.
type micResult struct {
	attempt uint64
	stream  MicStream
	err     error
}

func (micResult) isCaptureEvent() {}

// Controller owns the microphone and at most one RecordingSession. All state
// is confined to the loop goroutine; StartRecording and StopRecording only
// post events.
type Controller struct {
	mic     Microphone
	stt     STTService
	input   InputBuffer
	emitter core.EventEmitter
	config  ControllerConfig
	logger  *core.Logger

	events    chan Event
	state     atomic.Int32
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	workers   sync.WaitGroup

	// loop-owned
	attempt       uint64
	acquireCancel context.CancelFunc
	stream        MicStream
	session       *recordingSession
	recording     []byte
	recordingMime string
}

func NewController(mic Microphone, stt STTService, input InputBuffer, emitter core.EventEmitter, config ControllerConfig, logger *core.Logger) *Controller {
	if logger == nil {
		logger = core.GetLogger()
	}
	if emitter == nil {
		emitter = core.NopEmitter
	}
	if config.MaxRecordingBytes <= 0 {
		config.MaxRecordingBytes = DefaultMaxRecordingBytes
	}
	return &Controller{
		mic:     mic,
		stt:     stt,
		input:   input,
		emitter: emitter,
		config:  config,
		logger:  logger.With(map[string]interface{}{"component": "capture"}),
		events:  make(chan Event, 16),
		done:    make(chan struct{}),
	}
}

func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		go c.loop()
	})
}

func (c *Controller) StartRecording() { c.send(StartEvent{}) }

func (c *Controller) StopRecording() { c.send(StopEvent{}) }

func (c *Controller) State() State { return State(c.state.Load()) }

// Close releases the microphone and waits for in-flight work to return.
// A transcription still running is abandoned.
func (c *Controller) Close() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.done
	c.workers.Wait()
}

func (c *Controller) send(ev Event) {
	if c.ctx == nil {
		return
	}
	select {
	case c.events <- ev:
	case <-c.ctx.Done():
	}
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case ev := <-c.events:
			c.handle(ev)
		case <-c.ctx.Done():
			c.releaseMic()
			c.session = nil
			c.recording = nil
			return
		}
	}
}

func (c *Controller) handle(ev Event) {
	if res, ok := ev.(micResult); ok {
		if res.attempt != c.attempt {
			if res.stream != nil {
				_ = res.stream.Close()
			}
			return
		}
		c.acquireCancel = nil
		if res.err != nil {
			ev = MicDeniedEvent{Err: res.err}
		} else {
			ev = MicReadyEvent{Stream: res.stream}
		}
	}

	from := c.State()
	to, effects := Transition(from, ev)
	c.state.Store(int32(to))
	if to != from {
		c.logger.Debug("capture state changed", "from", from.String(), "to", to.String())
		c.emitter.Emit(&captureevents.CaptureStateChangedEvent{State: to.String()})
	}
	for _, effect := range effects {
		c.apply(effect)
	}
}

func (c *Controller) apply(effect Effect) {
	switch effect := effect.(type) {
	case AcquireEffect:
		c.acquire()

	case BeginSessionEffect:
		c.stream = effect.Stream
		c.session = newRecordingSession(effect.Stream, c.config.MaxRecordingBytes, c.logger)
		go c.session.collect()

	case DiscardStreamEffect:
		if effect.Stream != nil {
			_ = effect.Stream.Close()
		}

	case ReleaseMicEffect:
		c.releaseMic()

	case FinalizeEffect:
		c.finalize()

	case TranscribeEffect:
		c.transcribe()

	case AppendInputEffect:
		if c.input != nil {
			c.input.Append(effect.Text)
		}

	case AlertEffect:
		c.logger.Warn("capture failed", "kind", string(effect.Kind), "error", effect.Err)
		c.emitter.Emit(&captureevents.CaptureFailedEvent{
			Kind:    string(effect.Kind),
			Message: alertMessage(effect.Kind),
		})
	}
}

func (c *Controller) acquire() {
	c.attempt++
	attempt := c.attempt
	ctx, cancel := context.WithCancel(c.ctx)
	c.acquireCancel = cancel

	if c.mic == nil {
		cancel()
		c.handle(micResult{attempt: attempt, err: core.ErrMicrophoneUnavailable})
		return
	}

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		defer cancel()
		stream, err := c.mic.Open(ctx)
		if err != nil && !errors.Is(err, core.ErrMicrophoneUnavailable) {
			err = fmt.Errorf("%w: %v", core.ErrMicrophoneUnavailable, err)
		}
		select {
		case c.events <- micResult{attempt: attempt, stream: stream, err: err}:
		case <-c.ctx.Done():
			if stream != nil {
				_ = stream.Close()
			}
		}
	}()
}

// releaseMic closes the active stream and turns any pending grant stale.
func (c *Controller) releaseMic() {
	if c.acquireCancel != nil {
		c.acquireCancel()
		c.acquireCancel = nil
		c.attempt++
	}
	if c.stream != nil {
		if err := c.stream.Close(); err != nil {
			c.logger.Warn("microphone release failed", "error", err)
		}
		c.stream = nil
	}
}

func (c *Controller) finalize() {
	c.recording, c.recordingMime = nil, ""
	session := c.session
	c.session = nil
	if session == nil {
		return
	}

	data, format := session.finalize()
	if len(data) == 0 {
		return
	}
	mime := format.MimeType
	if format.PCM {
		wav, err := audio.PCMBytesToWavBytes(data, format.Channels, format.SampleRate)
		if err != nil {
			c.logger.Warn("recording could not be wrapped as wav", "error", err)
			return
		}
		data, mime = wav, "audio/wav"
	}
	if mime == "" {
		mime = "audio/webm"
	}
	c.recording, c.recordingMime = data, mime
}

func (c *Controller) transcribe() {
	blob, mime := c.recording, c.recordingMime
	c.recording, c.recordingMime = nil, ""

	if len(blob) == 0 {
		c.handle(TranscriptFailedEvent{Err: core.ErrEmptyRecording})
		return
	}
	if c.stt == nil {
		c.handle(TranscriptFailedEvent{Err: core.ErrTranscriptionFailed})
		return
	}

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		var ev Event
		text, err := c.stt.Transcribe(c.ctx, blob, mime)
		if err != nil {
			ev = TranscriptFailedEvent{Err: fmt.Errorf("%w: %v", core.ErrTranscriptionFailed, err)}
		} else {
			ev = TranscriptEvent{Text: text}
		}
		select {
		case c.events <- ev:
		case <-c.ctx.Done():
		}
	}()
}

func alertMessage(kind core.FailureKind) string {
	if kind == core.FailureCapture {
		return MIC_UNAVAILABLE_MESSAGE
	}
	return TRANSCRIPTION_FAILED_MESSAGE
}

// recordingSession collects the chunks of one recording.
type recordingSession struct {
	stream MicStream
	limit  int
	logger *core.Logger

	mu        sync.Mutex
	chunks    [][]byte
	size      int
	truncated bool
	done      chan struct{}
}

func newRecordingSession(stream MicStream, limit int, logger *core.Logger) *recordingSession {
	return &recordingSession{stream: stream, limit: limit, logger: logger, done: make(chan struct{})}
}

func (s *recordingSession) collect() {
	defer close(s.done)
	for chunk := range s.stream.Chunks() {
		s.add(chunk)
	}
}

func (s *recordingSession) add(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size+len(chunk) > s.limit {
		if !s.truncated {
			s.logger.Warn("recording truncated", "max_bytes", s.limit)
			s.truncated = true
		}
		return
	}
	s.chunks = append(s.chunks, chunk)
	s.size += len(chunk)
}

// finalize waits for the stream to drain and concatenates the chunks in
// arrival order. The stream must already be closed.
func (s *recordingSession) finalize() ([]byte, RecordingFormat) {
	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make([]byte, 0, s.size)
	for _, chunk := range s.chunks {
		data = append(data, chunk...)
	}
	s.chunks = nil
	return data, s.stream.Format()
}
