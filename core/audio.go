package core

import "time"

type AudioEncodingFormat int

const (
	PCM  AudioEncodingFormat = iota // 16-bit little-endian linear PCM.
	ULAW                            // μ-law encoding format.
	ALAW                            // A-law encoding format.
	MP3                             // MPEG layer III (audio/mpeg).
)

func (f AudioEncodingFormat) String() string {
	switch f {
	case PCM:
		return "pcm"
	case ULAW:
		return "ulaw"
	case ALAW:
		return "alaw"
	case MP3:
		return "mp3"
	default:
		return "unknown"
	}
}

// AudioPayload is encoded audio as returned by a speech synthesis provider.
type AudioPayload struct {
	Data        []byte
	Format      AudioEncodingFormat
	ContentType string // e.g. "audio/mpeg"
	SampleRate  int    // Required for headerless formats (PCM, ULAW, ALAW).
	Channels    int
}

// AudioBuffer is decoded, playable 16-bit little-endian PCM.
type AudioBuffer struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

func (b *AudioBuffer) Duration() time.Duration {
	if b == nil || b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	const bytesPerSample = 2
	frames := len(b.PCM) / (bytesPerSample * b.Channels)
	return time.Duration(frames) * time.Second / time.Duration(b.SampleRate)
}
