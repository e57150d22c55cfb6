// ABOUTME: Tests for the encoding request
// ABOUTME: Covers flags, default masks and validation
package audio

import (
	"strings"
	"testing"
)

func TestConfigFlags(t *testing.T) {
	c := Config{Flags: FlagHighQuality}
	if !c.HighQuality() || c.HostAudio() {
		t.Errorf("unexpected flags: hq=%v host=%v", c.HighQuality(), c.HostAudio())
	}
	c.Flags |= FlagHostAudio
	if !c.HostAudio() {
		t.Error("expected host audio flag")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		config      Config
		errContains string
	}{
		{"stereo", Config{PacketDuration: 5, Channels: 2, Mask: MaskStereo}, ""},
		{"7.1 without mask", Config{PacketDuration: 10, Channels: 8}, ""},
		{"bad channels", Config{PacketDuration: 5, Channels: 3}, "unsupported channel count"},
		{"zero duration", Config{Channels: 2}, "packet duration"},
		{"mask mismatch", Config{PacketDuration: 5, Channels: 6, Mask: MaskStereo}, "channel mask"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.errContains == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("error = %v, want containing %q", err, tt.errContains)
			}
		})
	}
}

func TestDefaultMask(t *testing.T) {
	for _, channels := range []int{2, 6, 8} {
		mask := DefaultMask(channels)
		c := Config{PacketDuration: 5, Channels: channels, Mask: mask}
		if err := c.Validate(); err != nil {
			t.Errorf("DefaultMask(%d)=%#x invalid: %v", channels, mask, err)
		}
	}
	if DefaultMask(5) != 0 {
		t.Error("expected zero mask for unsupported count")
	}
}
