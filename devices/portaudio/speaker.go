//go:build voice

package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"avatarvoice/core"

	"github.com/gordonklaus/portaudio"
)

// framesPerBuffer is the write granularity; cancellation is checked between writes.
const framesPerBuffer = 1024

// Speaker plays PCM through the default output device. The stream is reopened
// only when the sample rate or channel count changes.
type Speaker struct {
	mu         sync.Mutex
	stream     *portaudio.Stream
	buffer     []int16
	sampleRate int
	channels   int
	closed     bool
	logger     *core.Logger
}

// NewSpeaker initializes PortAudio. Close terminates it.
func NewSpeaker(logger *core.Logger) (*Speaker, error) {
	if logger == nil {
		logger = core.GetLogger()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &Speaker{logger: logger.With(map[string]interface{}{"component": "speaker"})}, nil
}

func (s *Speaker) Play(ctx context.Context, buf *core.AudioBuffer) error {
	if buf == nil || len(buf.PCM) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrDeviceClosed
	}
	if err := s.ensureStream(buf.SampleRate, buf.Channels); err != nil {
		return err
	}

	samples := len(buf.PCM) / 2
	for pos := 0; pos < samples; pos += len(s.buffer) {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range s.buffer {
			j := pos + i
			if j < samples {
				s.buffer[i] = int16(binary.LittleEndian.Uint16(buf.PCM[j*2:]))
			} else {
				s.buffer[i] = 0
			}
		}
		if err := s.stream.Write(); err != nil {
			return fmt.Errorf("failed to write to stream: %w", err)
		}
	}
	return nil
}

func (s *Speaker) ensureStream(sampleRate, channels int) error {
	if channels <= 0 {
		channels = 1
	}
	if s.stream != nil && s.sampleRate == sampleRate && s.channels == channels {
		return nil
	}
	s.closeStream()

	s.buffer = make([]int16, framesPerBuffer*channels)
	stream, err := portaudio.OpenDefaultStream(0, channels, float64(sampleRate), framesPerBuffer, s.buffer)
	if err != nil {
		return fmt.Errorf("failed to open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	s.stream = stream
	s.sampleRate = sampleRate
	s.channels = channels
	s.logger.Debug("output stream opened", "sample_rate", sampleRate, "channels", channels)
	return nil
}

func (s *Speaker) closeStream() {
	if s.stream == nil {
		return
	}
	s.stream.Stop()
	s.stream.Close()
	s.stream = nil
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.closeStream()
	return portaudio.Terminate()
}
