// ABOUTME: Tests for the encoder factory and codec helpers
// ABOUTME: Covers codec parsing, dispatch and packet capacity sizing
package encode

import (
	"errors"
	"testing"

	"github.com/mariotaku/Sunshine/pkg/audio"
)

func TestParseCodec(t *testing.T) {
	tests := []struct {
		input   string
		want    Codec
		wantErr bool
	}{
		{"opus", CodecOpus, false},
		{"OPUS", CodecOpus, false},
		{"ac3", CodecAC3, false},
		{"AC-3", CodecAC3, false},
		{"eac3", CodecEAC3, false},
		{"e-ac-3", CodecEAC3, false},
		{"aac", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCodec(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrUnknownCodec) {
					t.Errorf("ParseCodec(%q) error = %v, want ErrUnknownCodec", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCodec(%q) unexpected error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseCodec(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.String() == "" {
				t.Error("empty codec name")
			}
		})
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		codec Codec
		check func(Encoder) bool
	}{
		{CodecOpus, func(e Encoder) bool { _, ok := e.(*OpusEncoder); return ok }},
		{CodecAC3, func(e Encoder) bool { _, ok := e.(*AC3Encoder); return ok }},
		{CodecEAC3, func(e Encoder) bool { _, ok := e.(*EAC3Encoder); return ok }},
	}

	for _, tt := range tests {
		t.Run(tt.codec.String(), func(t *testing.T) {
			enc, err := New(tt.codec)
			if err != nil {
				t.Fatalf("New(%v) unexpected error = %v", tt.codec, err)
			}
			defer enc.Close()
			if !tt.check(enc) {
				t.Errorf("New(%v) returned %T", tt.codec, enc)
			}
			if enc.FrameSize() != 0 {
				t.Errorf("FrameSize() before Init = %d, want 0", enc.FrameSize())
			}
		})
	}

	if _, err := New(Codec(42)); !errors.Is(err, ErrUnknownCodec) {
		t.Errorf("New(42) error = %v, want ErrUnknownCodec", err)
	}
}

func TestPacketCapacity(t *testing.T) {
	tests := []struct {
		name   string
		codec  Codec
		config audio.Config
		want   int
	}{
		{"opus stereo", CodecOpus, audio.Config{Channels: 2}, 4000},
		{"opus 5.1", CodecOpus, audio.Config{Channels: 6}, 16000},
		{"opus high 7.1", CodecOpus, audio.Config{Channels: 8, Flags: audio.FlagHighQuality}, 32000},
		{"ac3", CodecAC3, audio.Config{Channels: 6}, 4096},
		{"eac3", CodecEAC3, audio.Config{Channels: 2}, 4096},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PacketCapacity(tt.codec, tt.config); got != tt.want {
				t.Errorf("PacketCapacity() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	config := audio.Config{PacketDuration: 5, Channels: 6}
	opus := NewOpus()
	if err := opus.Init(config); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer opus.Close()

	info := Describe(CodecOpus, opus, config)
	if info.Streams != 4 || info.CoupledStreams != 2 {
		t.Errorf("streams = %d/%d, want 4/2", info.Streams, info.CoupledStreams)
	}
	if info.FrameSize != 240 || info.Bitrate != 256000 || info.SampleRate != audio.SampleRate {
		t.Errorf("unexpected info %+v", info)
	}
	if len(info.Mapping) != 6 {
		t.Errorf("mapping length = %d, want 6", len(info.Mapping))
	}

	ac3 := &AC3Encoder{newTranscoder(ac3Params, newFakeLibrary(1536))}
	if err := ac3.Init(config); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	defer ac3.Close()

	info = Describe(CodecAC3, ac3, config)
	if info.Bitrate != 320000 || info.FrameSize != 1536 || info.Channels != 6 || info.Streams != 0 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestDescribeReportsNegotiatedChannels(t *testing.T) {
	// an AC-3 codec that only advertises stereo opens with two channels
	ac3 := &AC3Encoder{newTranscoder(ac3Params, newFakeLibrary(1536, 2))}
	defer ac3.Close()
	stereo := audio.Config{PacketDuration: 5, Channels: 2}
	if err := ac3.Init(stereo); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	if info := Describe(CodecAC3, ac3, audio.Config{PacketDuration: 5, Channels: 6}); info.Channels != 2 {
		t.Errorf("Channels = %d, want the negotiated 2", info.Channels)
	}

	opus := NewOpus()
	defer opus.Close()
	if err := opus.Init(audio.Config{PacketDuration: 5, Channels: 4}); !errors.Is(err, ErrChannelLayout) {
		t.Fatalf("Init() error = %v, want ErrChannelLayout", err)
	}
	if err := opus.Encode(make([]int16, 4*240), audio.NewBuffer(4000)); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Encode() after failed Init = %v, want ErrNotInitialized", err)
	}
}
