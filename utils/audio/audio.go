package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"avatarvoice/core"

	"github.com/hajimehoshi/go-mp3"
	"github.com/zaf/g711"
)

const g711SampleRate = 8000

var wavHeaderPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 64))
	},
}

// ULawBytesToPCM converts G.711 μ-law bytes to 16-bit PCM bytes.
func ULawBytesToPCM(uBytes []byte) []byte {
	return g711.DecodeUlaw(uBytes)
}

// ALawBytesToPCM converts G.711 A-law bytes to 16-bit PCM bytes.
func ALawBytesToPCM(aBytes []byte) []byte {
	return g711.DecodeAlaw(aBytes)
}

// PCMBytesToULaw converts 16-bit PCM bytes to μ-law.
func PCMBytesToULaw(pcm []byte) ([]byte, error) {
	if len(pcm)%2 != 0 {
		return nil, errors.New("PCM data must have even length")
	}
	return g711.EncodeUlaw(pcm), nil
}

// MP3BytesToPCM decodes an MPEG layer III stream. go-mp3 always yields
// 16-bit little-endian stereo.
func MP3BytesToPCM(data []byte) ([]byte, int, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("mp3: %w", err)
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, 0, fmt.Errorf("mp3: read: %w", err)
	}
	if len(pcm)%4 != 0 {
		return nil, 0, errors.New("mp3: unexpected decoded length")
	}
	return pcm, dec.SampleRate(), nil
}

// Decode turns a provider payload into playable PCM.
func Decode(payload core.AudioPayload) (*core.AudioBuffer, error) {
	if len(payload.Data) == 0 {
		return nil, errors.New("decode: empty payload")
	}

	switch payload.Format {
	case core.MP3:
		pcm, rate, err := MP3BytesToPCM(payload.Data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		return &core.AudioBuffer{PCM: pcm, SampleRate: rate, Channels: 2}, nil

	case core.ULAW, core.ALAW:
		rate := payload.SampleRate
		if rate == 0 {
			rate = g711SampleRate
		}
		var pcm []byte
		if payload.Format == core.ULAW {
			pcm = ULawBytesToPCM(payload.Data)
		} else {
			pcm = ALawBytesToPCM(payload.Data)
		}
		return &core.AudioBuffer{PCM: pcm, SampleRate: rate, Channels: channelsOrMono(payload.Channels)}, nil

	case core.PCM:
		pcm, rate, channels, err := StripWAVHeader(payload.Data)
		if err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		if rate == 0 {
			rate, channels = payload.SampleRate, channelsOrMono(payload.Channels)
		}
		if rate <= 0 {
			return nil, errors.New("decode: PCM payload without sample rate")
		}
		if err := ValidatePCMData(pcm, channels); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return &core.AudioBuffer{PCM: out, SampleRate: rate, Channels: channels}, nil

	default:
		return nil, fmt.Errorf("decode: unsupported format %s", payload.Format)
	}
}

func channelsOrMono(channels int) int {
	if channels <= 0 {
		return 1
	}
	return channels
}

// PCMBytesToWavBytes wraps 16-bit little-endian PCM in a WAV container.
func PCMBytesToWavBytes(pcm []byte, numChannels, sampleRate int) ([]byte, error) {
	if numChannels <= 0 || numChannels > 2 {
		return nil, errors.New("only mono (1) or stereo (2) channels supported")
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if err := ValidatePCMData(pcm, numChannels); err != nil {
		return nil, err
	}

	buf := wavHeaderPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer wavHeaderPool.Put(buf)

	const (
		bitsPerSample  = 16
		audioFormatPCM = 1
		subchunk1Size  = 16
	)
	blockAlign := numChannels * bitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(subchunk1Size))
	binary.Write(buf, binary.LittleEndian, uint16(audioFormatPCM))
	binary.Write(buf, binary.LittleEndian, uint16(numChannels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))

	result := make([]byte, buf.Len()+len(pcm))
	copy(result, buf.Bytes())
	copy(result[buf.Len():], pcm)
	return result, nil
}

// StripWAVHeader returns the data chunk of a RIFF/WAVE input together with
// its sample rate and channel count. Non-WAV input is returned unchanged with
// a zero sample rate.
func StripWAVHeader(chunk []byte) ([]byte, int, int, error) {
	if len(chunk) < 12 || !bytes.HasPrefix(chunk, []byte("RIFF")) || !bytes.Equal(chunk[8:12], []byte("WAVE")) {
		return chunk, 0, 0, nil
	}

	var sampleRate, channels int
	i := 12
	for i+8 <= len(chunk) {
		id := string(chunk[i : i+4])
		size := int(binary.LittleEndian.Uint32(chunk[i+4 : i+8]))
		body := i + 8
		switch id {
		case "fmt ":
			if body+16 > len(chunk) {
				return nil, 0, 0, errors.New("wav: truncated fmt chunk")
			}
			channels = int(binary.LittleEndian.Uint16(chunk[body+2 : body+4]))
			sampleRate = int(binary.LittleEndian.Uint32(chunk[body+4 : body+8]))
		case "data":
			end := body + size
			if end > len(chunk) {
				end = len(chunk)
			}
			return chunk[body:end], sampleRate, channels, nil
		}
		i = body + size + size%2
	}
	return nil, 0, 0, errors.New("wav: no data chunk")
}

// ValidatePCMData validates PCM byte array for basic integrity
func ValidatePCMData(pcm []byte, numChannels int) error {
	if len(pcm) == 0 {
		return errors.New("PCM data is empty")
	}
	if numChannels <= 0 {
		return errors.New("invalid number of channels")
	}
	if len(pcm)%(2*numChannels) != 0 {
		return errors.New("PCM data length doesn't match channel count")
	}
	return nil
}

// ConvertChannels converts between mono and stereo PCM.
func ConvertChannels(pcm []byte, fromChannels, toChannels int) ([]byte, error) {
	switch {
	case fromChannels == toChannels:
		return pcm, nil
	case fromChannels == 1 && toChannels == 2:
		return monoToStereo(pcm), nil
	case fromChannels == 2 && toChannels == 1:
		return stereoToMono(pcm), nil
	}
	return nil, fmt.Errorf("unsupported channel conversion: %d to %d", fromChannels, toChannels)
}

func monoToStereo(monoPCM []byte) []byte {
	samples := len(monoPCM) / 2
	result := make([]byte, samples*4)
	for i := 0; i < samples; i++ {
		copy(result[i*4:i*4+2], monoPCM[i*2:i*2+2])
		copy(result[i*4+2:i*4+4], monoPCM[i*2:i*2+2])
	}
	return result
}

func stereoToMono(stereoPCM []byte) []byte {
	samples := len(stereoPCM) / 4
	result := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		left := int16(binary.LittleEndian.Uint16(stereoPCM[i*4 : i*4+2]))
		right := int16(binary.LittleEndian.Uint16(stereoPCM[i*4+2 : i*4+4]))
		binary.LittleEndian.PutUint16(result[i*2:], uint16(int16((int(left)+int(right))/2)))
	}
	return result
}
