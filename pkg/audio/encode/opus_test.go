// ABOUTME: Unit tests for the multistream Opus encoder
// ABOUTME: Encodes every topology and decodes the result back
package encode

import (
	"errors"
	"math"
	"testing"

	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/thesyncim/gopus/multistream"
)

// sineFrame fills one interleaved frame with a different tone per channel
func sineFrame(channels, frameSize int) []int16 {
	samples := make([]int16, channels*frameSize)
	for i := 0; i < frameSize; i++ {
		for ch := 0; ch < channels; ch++ {
			freq := 220.0 * float64(ch+1)
			v := 0.3 * math.Sin(2*math.Pi*freq*float64(i)/audio.SampleRate)
			samples[i*channels+ch] = audio.FloatToInt16(v)
		}
	}
	return samples
}

func TestOpusEncoder_Init(t *testing.T) {
	tests := []struct {
		name          string
		config        audio.Config
		wantFrameSize int
		wantStreams   int
		wantCoupled   int
		wantErr       error
	}{
		{"stereo 5ms", audio.Config{PacketDuration: 5, Channels: 2}, 240, 1, 1, nil},
		{"stereo 10ms", audio.Config{PacketDuration: 10, Channels: 2}, 480, 1, 1, nil},
		{"5.1 5ms", audio.Config{PacketDuration: 5, Channels: 6}, 240, 4, 2, nil},
		{"high 5.1", audio.Config{PacketDuration: 5, Channels: 6, Flags: audio.FlagHighQuality}, 240, 6, 0, nil},
		{"7.1 20ms", audio.Config{PacketDuration: 20, Channels: 8}, 960, 5, 3, nil},
		{"high 7.1", audio.Config{PacketDuration: 5, Channels: 8, Flags: audio.FlagHighQuality}, 240, 8, 0, nil},
		{"illegal duration", audio.Config{PacketDuration: 7, Channels: 2}, 0, 0, 0, ErrFrameSize},
		{"4 channels", audio.Config{PacketDuration: 5, Channels: 4}, 0, 0, 0, ErrChannelLayout},
		{"mono", audio.Config{PacketDuration: 5, Channels: 1}, 0, 0, 0, ErrChannelLayout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := NewOpus()
			defer enc.Close()

			err := enc.Init(tt.config)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Init() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Init() unexpected error = %v", err)
			}
			if enc.FrameSize() != tt.wantFrameSize {
				t.Errorf("FrameSize() = %d, want %d", enc.FrameSize(), tt.wantFrameSize)
			}
			sc := enc.StreamConfig()
			if sc.Streams != tt.wantStreams || sc.CoupledStreams != tt.wantCoupled {
				t.Errorf("topology = %d/%d, want %d/%d", sc.Streams, sc.CoupledStreams, tt.wantStreams, tt.wantCoupled)
			}
		})
	}
}

func TestOpusEncoder_EncodeStereoLowDelay(t *testing.T) {
	config := audio.Config{PacketDuration: 5, Channels: 2, Mask: audio.MaskStereo}
	enc := NewOpus()
	if err := enc.Init(config); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer enc.Close()

	packet := audio.NewBuffer(PacketCapacity(CodecOpus, config))
	samples := sineFrame(2, enc.FrameSize())

	for i := 0; i < 10; i++ {
		if err := enc.Encode(samples, packet); err != nil {
			t.Fatalf("Encode() #%d failed: %v", i, err)
		}
		if packet.Len() == 0 {
			t.Fatalf("Encode() #%d returned empty packet", i)
		}
		if packet.Len() > packet.Cap() {
			t.Fatalf("packet length %d exceeds capacity %d", packet.Len(), packet.Cap())
		}
	}
}

func TestOpusEncoder_RoundTrip(t *testing.T) {
	for _, channels := range []int{2, 6, 8} {
		for _, hq := range []bool{false, true} {
			config := audio.Config{PacketDuration: 10, Channels: channels}
			if hq {
				config.Flags = audio.FlagHighQuality
			}

			enc := NewOpus()
			if err := enc.Init(config); err != nil {
				t.Fatalf("channels=%d hq=%v: Init() failed: %v", channels, hq, err)
			}
			sc := enc.StreamConfig()
			dec, err := multistream.NewDecoder(sc.SampleRate, sc.ChannelCount, sc.Streams, sc.CoupledStreams, sc.Mapping)
			if err != nil {
				t.Fatalf("channels=%d hq=%v: NewDecoder() failed: %v", channels, hq, err)
			}

			packet := audio.NewBuffer(PacketCapacity(CodecOpus, config))
			if err := enc.Encode(sineFrame(channels, enc.FrameSize()), packet); err != nil {
				t.Fatalf("channels=%d hq=%v: Encode() failed: %v", channels, hq, err)
			}

			pcm, err := dec.DecodeToInt16(packet.Bytes(), enc.FrameSize())
			if err != nil {
				t.Fatalf("channels=%d hq=%v: decode failed: %v", channels, hq, err)
			}
			if len(pcm) != channels*enc.FrameSize() {
				t.Errorf("channels=%d hq=%v: decoded %d samples, want %d", channels, hq, len(pcm), channels*enc.FrameSize())
			}
			enc.Close()
		}
	}
}

func TestOpusEncoder_SampleCountMismatch(t *testing.T) {
	enc := NewOpus()
	if err := enc.Init(audio.Config{PacketDuration: 5, Channels: 2}); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer enc.Close()

	packet := audio.NewBuffer(4000)
	packet.SetLen(7)

	err := enc.Encode(make([]int16, 2*enc.FrameSize()-1), packet)
	if !errors.Is(err, ErrSampleCount) {
		t.Fatalf("Encode() error = %v, want ErrSampleCount", err)
	}
	if packet.Len() != 7 {
		t.Errorf("packet length changed to %d", packet.Len())
	}
}

func TestOpusEncoder_Lifecycle(t *testing.T) {
	enc := NewOpus()
	packet := audio.NewBuffer(4000)

	if err := enc.Encode(make([]int16, 480), packet); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("Encode() before Init = %v, want ErrNotInitialized", err)
	}

	if err := enc.Init(audio.Config{PacketDuration: 5, Channels: 2}); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Errorf("Close() unexpected error = %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Errorf("second Close() unexpected error = %v", err)
	}
	if err := enc.Encode(make([]int16, 480), packet); !errors.Is(err, ErrClosed) {
		t.Errorf("Encode() after Close = %v, want ErrClosed", err)
	}
}
