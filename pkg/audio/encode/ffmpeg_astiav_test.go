//go:build !noffmpeg

// ABOUTME: Tests for the AC-3 and E-AC-3 encoders against the linked FFmpeg
// ABOUTME: Encodes real frames and checks the bitstream sync word
package encode

import (
	"errors"
	"testing"

	"github.com/mariotaku/Sunshine/pkg/audio"
)

const ac3SyncWord = 0x0b77

func TestNativeTranscoders(t *testing.T) {
	tests := []struct {
		name     string
		newEnc   func() Encoder
		channels int
	}{
		{"ac3 stereo", func() Encoder { return NewAC3() }, 2},
		{"ac3 5.1", func() Encoder { return NewAC3() }, 6},
		{"eac3 stereo", func() Encoder { return NewEAC3() }, 2},
		{"eac3 5.1", func() Encoder { return NewEAC3() }, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.newEnc()
			defer enc.Close()

			config := audio.Config{PacketDuration: 5, Channels: tt.channels}
			if err := enc.Init(config); err != nil {
				t.Fatalf("Init() error: %v", err)
			}
			if enc.FrameSize() != 1536 {
				t.Errorf("FrameSize() = %d, want 1536", enc.FrameSize())
			}

			packet := audio.NewBuffer(maxTranscodedPacket)
			samples := sineFrame(tt.channels, enc.FrameSize())

			got := 0
			for i := 0; i < 8 && got < 2; i++ {
				err := enc.Encode(samples, packet)
				if errors.Is(err, ErrPacketNotReady) {
					continue
				}
				if err != nil {
					t.Fatalf("Encode() frame %d error: %v", i, err)
				}
				data := packet.Bytes()
				if len(data) < 2 || int(data[0])<<8|int(data[1]) != ac3SyncWord {
					t.Fatalf("packet %d does not start with the sync word: % x", i, data[:min(len(data), 4)])
				}
				got++
			}
			if got < 2 {
				t.Fatalf("got %d packets from 8 frames, want at least 2", got)
			}
		})
	}
}

func TestNativeTranscoderReinit(t *testing.T) {
	enc := NewAC3()
	config := audio.Config{PacketDuration: 5, Channels: 2}

	for i := 0; i < 3; i++ {
		if err := enc.Init(config); err != nil {
			t.Fatalf("Init() cycle %d error: %v", i, err)
		}
	}
	if err := enc.Encode(make([]int16, 2*enc.FrameSize()), audio.NewBuffer(maxTranscodedPacket)); err != nil &&
		!errors.Is(err, ErrPacketNotReady) {
		t.Fatalf("Encode() after re-init error: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := enc.Init(config); !errors.Is(err, ErrClosed) {
		t.Errorf("Init() after Close = %v, want ErrClosed", err)
	}
}
