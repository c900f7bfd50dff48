package audio

import (
	"context"
	"fmt"
	"sync"

	"avatarvoice/core"
)

// Sink is the exclusive audio output. Play blocks until the buffer finished
// sounding or ctx is cancelled, which must silence it.
type Sink interface {
	Play(ctx context.Context, buf *core.AudioBuffer) error
	Close() error
}

type DeviceConfig struct {
	// Channels forces decoded buffers to this channel count. Zero keeps the
	// decoder's layout.
	Channels int `json:"channels,omitempty" yaml:"channels,omitempty"`
}

// DeviceContext is one session's audio output device: the decoder used by
// synthesis and the sink used by playback. It is created on the first user
// gesture and closed on teardown.
type DeviceContext struct {
	mu     sync.Mutex
	sink   Sink
	config DeviceConfig
	closed bool
	logger *core.Logger
}

func NewDeviceContext(sink Sink, config DeviceConfig, logger *core.Logger) *DeviceContext {
	if logger == nil {
		logger = core.GetLogger()
	}
	return &DeviceContext{
		sink:   sink,
		config: config,
		logger: logger.With(map[string]interface{}{"component": "audio_device"}),
	}
}

// Decode converts a provider payload into a buffer laid out for this device.
func (d *DeviceContext) Decode(payload core.AudioPayload) (*core.AudioBuffer, error) {
	if d.isClosed() {
		return nil, core.ErrDeviceClosed
	}
	buf, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	if d.config.Channels > 0 && buf.Channels != d.config.Channels {
		pcm, err := ConvertChannels(buf.PCM, buf.Channels, d.config.Channels)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		buf = &core.AudioBuffer{PCM: pcm, SampleRate: buf.SampleRate, Channels: d.config.Channels}
	}
	return buf, nil
}

// Play sounds buf on the sink. Callers serialise access.
func (d *DeviceContext) Play(ctx context.Context, buf *core.AudioBuffer) error {
	if d.isClosed() {
		return core.ErrDeviceClosed
	}
	return d.sink.Play(ctx, buf)
}

// Close releases the sink. Further Decode and Play calls fail with
// core.ErrDeviceClosed.
func (d *DeviceContext) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.logger.Debug("audio device released")
	return d.sink.Close()
}

func (d *DeviceContext) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
