// ABOUTME: Tests for the Opus packet decoders
// ABOUTME: Decodes packets produced by the multistream encoder for each topology
package decode

import (
	"testing"

	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/mariotaku/Sunshine/pkg/audio/encode"
)

func encodeOne(t *testing.T, config audio.Config) (*encode.OpusEncoder, []byte) {
	t.Helper()
	enc := encode.NewOpus()
	if err := enc.Init(config); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	t.Cleanup(func() { enc.Close() })

	samples := make([]int16, config.Channels*enc.FrameSize())
	for i := range samples {
		samples[i] = int16((i % 200) * 50)
	}
	packet := audio.NewBuffer(encode.PacketCapacity(encode.CodecOpus, config))
	if err := enc.Encode(samples, packet); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	return enc, packet.Bytes()
}

func TestNewOpusSelectsBackend(t *testing.T) {
	stereo := audio.SelectStreamConfig(2, false)
	dec, err := NewOpus(stereo, 240)
	if err != nil {
		t.Fatalf("NewOpus(stereo) failed: %v", err)
	}
	if _, ok := dec.(*OpusDecoder); !ok {
		t.Errorf("stereo decoder is %T, want *OpusDecoder", dec)
	}

	surround := audio.SelectStreamConfig(6, false)
	dec, err = NewOpus(surround, 240)
	if err != nil {
		t.Fatalf("NewOpus(5.1) failed: %v", err)
	}
	if _, ok := dec.(*MultistreamDecoder); !ok {
		t.Errorf("5.1 decoder is %T, want *MultistreamDecoder", dec)
	}
	if dec.Channels() != 6 {
		t.Errorf("Channels() = %d, want 6", dec.Channels())
	}
}

func TestOpusDecodeRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		config audio.Config
	}{
		{"stereo", audio.Config{PacketDuration: 5, Channels: 2}},
		{"high stereo", audio.Config{PacketDuration: 10, Channels: 2, Flags: audio.FlagHighQuality}},
		{"5.1", audio.Config{PacketDuration: 5, Channels: 6}},
		{"high 7.1", audio.Config{PacketDuration: 10, Channels: 8, Flags: audio.FlagHighQuality}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, packet := encodeOne(t, tt.config)

			dec, err := NewOpus(enc.StreamConfig(), enc.FrameSize())
			if err != nil {
				t.Fatalf("NewOpus() failed: %v", err)
			}
			defer dec.Close()

			pcm, err := dec.Decode(packet)
			if err != nil {
				t.Fatalf("Decode() failed: %v", err)
			}
			if want := tt.config.Channels * enc.FrameSize(); len(pcm) != want {
				t.Errorf("decoded %d samples, want %d", len(pcm), want)
			}
		})
	}
}

func TestOpusDecodeGarbage(t *testing.T) {
	dec, err := NewOpus(audio.SelectStreamConfig(2, false), 240)
	if err != nil {
		t.Fatalf("NewOpus() failed: %v", err)
	}
	if _, err := dec.Decode([]byte{0xff, 0xff, 0xff}); err == nil {
		t.Error("expected error decoding garbage")
	}
}
