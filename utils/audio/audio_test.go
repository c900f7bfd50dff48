package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"avatarvoice/core"
)

func pcmTone(samples int) []byte {
	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16((i%64)*256-8192)))
	}
	return pcm
}

func TestDecodeULaw(t *testing.T) {
	ulaw, err := PCMBytesToULaw(pcmTone(800))
	if err != nil {
		t.Fatalf("PCMBytesToULaw() error = %v", err)
	}

	buf, err := Decode(core.AudioPayload{Data: ulaw, Format: core.ULAW})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if buf.SampleRate != 8000 || buf.Channels != 1 {
		t.Fatalf("buf = %d Hz / %d ch, want 8000 Hz / 1 ch", buf.SampleRate, buf.Channels)
	}
	if len(buf.PCM) != 1600 {
		t.Fatalf("len(PCM) = %d, want 1600", len(buf.PCM))
	}
	if got := buf.Duration(); got != 100*time.Millisecond {
		t.Fatalf("Duration() = %v, want 100ms", got)
	}
}

func TestDecodePCM(t *testing.T) {
	pcm := pcmTone(2400)

	if _, err := Decode(core.AudioPayload{Data: pcm, Format: core.PCM}); err == nil {
		t.Fatal("Decode() without sample rate should fail")
	}

	buf, err := Decode(core.AudioPayload{Data: pcm, Format: core.PCM, SampleRate: 24000})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if buf.Duration() != 100*time.Millisecond {
		t.Fatalf("Duration() = %v", buf.Duration())
	}

	wav, err := PCMBytesToWavBytes(pcm, 1, 16000)
	if err != nil {
		t.Fatalf("PCMBytesToWavBytes() error = %v", err)
	}
	buf, err = Decode(core.AudioPayload{Data: wav, Format: core.PCM})
	if err != nil {
		t.Fatalf("Decode(wav) error = %v", err)
	}
	if buf.SampleRate != 16000 || buf.Channels != 1 || len(buf.PCM) != len(pcm) {
		t.Fatalf("wav buf = %d Hz / %d ch / %d bytes", buf.SampleRate, buf.Channels, len(buf.PCM))
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode(core.AudioPayload{Format: core.MP3}); err == nil {
		t.Fatal("Decode(empty) should fail")
	}
	if _, err := Decode(core.AudioPayload{Data: []byte("not an mp3 stream"), Format: core.MP3}); err == nil {
		t.Fatal("Decode(garbage mp3) should fail")
	}
	if _, err := Decode(core.AudioPayload{Data: []byte{1, 2, 3}, Format: core.PCM, SampleRate: 8000}); err == nil {
		t.Fatal("Decode(odd pcm) should fail")
	}
}

func TestConvertChannels(t *testing.T) {
	mono := pcmTone(10)
	stereo, err := ConvertChannels(mono, 1, 2)
	if err != nil {
		t.Fatalf("ConvertChannels(1,2) error = %v", err)
	}
	if len(stereo) != 40 {
		t.Fatalf("len(stereo) = %d", len(stereo))
	}
	back, err := ConvertChannels(stereo, 2, 1)
	if err != nil {
		t.Fatalf("ConvertChannels(2,1) error = %v", err)
	}
	if string(back) != string(mono) {
		t.Fatal("downmix of duplicated channels should equal the original")
	}
	if _, err := ConvertChannels(mono, 1, 6); err == nil {
		t.Fatal("ConvertChannels(1,6) should fail")
	}
}

type recordingSink struct {
	played []*core.AudioBuffer
	closed bool
}

func (s *recordingSink) Play(ctx context.Context, buf *core.AudioBuffer) error {
	s.played = append(s.played, buf)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestDeviceContext(t *testing.T) {
	sink := &recordingSink{}
	device := NewDeviceContext(sink, DeviceConfig{Channels: 2}, core.NewLogger(nil))

	ulaw, _ := PCMBytesToULaw(pcmTone(80))
	buf, err := device.Decode(core.AudioPayload{Data: ulaw, Format: core.ULAW})
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if buf.Channels != 2 || len(buf.PCM) != 320 {
		t.Fatalf("buf = %d ch / %d bytes, want 2 ch / 320 bytes", buf.Channels, len(buf.PCM))
	}
	if err := device.Play(context.Background(), buf); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if len(sink.played) != 1 {
		t.Fatalf("sink played %d buffers", len(sink.played))
	}

	if err := device.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !sink.closed {
		t.Fatal("sink not closed")
	}
	if err := device.Play(context.Background(), buf); !errors.Is(err, core.ErrDeviceClosed) {
		t.Fatalf("Play() after Close error = %v, want ErrDeviceClosed", err)
	}
	if _, err := device.Decode(core.AudioPayload{Data: ulaw, Format: core.ULAW}); !errors.Is(err, core.ErrDeviceClosed) {
		t.Fatalf("Decode() after Close error = %v, want ErrDeviceClosed", err)
	}
}
