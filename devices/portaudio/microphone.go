//go:build voice

package portaudio

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"

	"avatarvoice/core"
	"avatarvoice/handlers/capture"

	"github.com/gordonklaus/portaudio"
)

const (
	// DefaultSampleRate suits speech-to-text providers.
	DefaultSampleRate = 16000
	DefaultChannels   = 1
	captureFrames     = 512
)

type MicrophoneConfig struct {
	SampleRate int
	Channels   int
}

func DefaultMicrophoneConfig() MicrophoneConfig {
	return MicrophoneConfig{SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}

// Microphone records from the default input device as 16-bit PCM.
type Microphone struct {
	config MicrophoneConfig
	logger *core.Logger
}

// NewMicrophone expects PortAudio to be initialized already, by NewSpeaker
// or portaudio.Initialize.
func NewMicrophone(config MicrophoneConfig, logger *core.Logger) *Microphone {
	if logger == nil {
		logger = core.GetLogger()
	}
	if config.SampleRate <= 0 {
		config.SampleRate = DefaultSampleRate
	}
	if config.Channels <= 0 {
		config.Channels = DefaultChannels
	}
	return &Microphone{config: config, logger: logger.With(map[string]interface{}{"component": "microphone"})}
}

func (m *Microphone) Open(ctx context.Context) (capture.MicStream, error) {
	buffer := make([]int16, captureFrames*m.config.Channels)
	stream, err := portaudio.OpenDefaultStream(m.config.Channels, 0, float64(m.config.SampleRate), captureFrames, buffer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMicrophoneUnavailable, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("%w: %v", core.ErrMicrophoneUnavailable, err)
	}

	s := &micStream{
		stream: stream,
		buffer: buffer,
		chunks: make(chan []byte, 100),
		stop:   make(chan struct{}),
		format: capture.RecordingFormat{
			MimeType:   "audio/wav",
			PCM:        true,
			SampleRate: m.config.SampleRate,
			Channels:   m.config.Channels,
		},
		logger: m.logger,
	}
	s.wg.Add(1)
	go s.readLoop()
	return s, nil
}

type micStream struct {
	stream *portaudio.Stream
	buffer []int16
	chunks chan []byte
	format capture.RecordingFormat
	logger *core.Logger

	stop      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func (s *micStream) Chunks() <-chan []byte {
	return s.chunks
}

func (s *micStream) Format() capture.RecordingFormat {
	return s.format
}

// readLoop continuously reads audio from the stream
func (s *micStream) readLoop() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.stream.Read(); err != nil {
			select {
			case <-s.stop:
				return
			default:
			}
			s.logger.Debug("input overflow", "error", err)
			continue
		}
		chunk := make([]byte, len(s.buffer)*2)
		for i, v := range s.buffer {
			binary.LittleEndian.PutUint16(chunk[i*2:], uint16(v))
		}
		select {
		case s.chunks <- chunk:
		case <-s.stop:
			return
		default:
			s.logger.Warn("recording chunk dropped")
		}
	}
}

func (s *micStream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stop)
		err = s.stream.Stop()
		s.wg.Wait()
		s.stream.Close()
		close(s.chunks)
	})
	return err
}
