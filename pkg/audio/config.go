// ABOUTME: Per-stream encoding request handed to an encoder's Init
// ABOUTME: Carries packet duration, channel count, speaker mask and feature flags
package audio

import (
	"errors"
	"fmt"
	"math/bits"
)

// Flags is a small bitset of per-stream feature switches
type Flags uint8

const (
	// FlagHighQuality selects the higher bitrate topology
	FlagHighQuality Flags = 1 << iota
	// FlagHostAudio keeps audio playing on the host; capture-side only
	FlagHostAudio
)

// Speaker positions (WAVE_FORMAT_EXTENSIBLE channel mask bits)
const (
	SpeakerFrontLeft    = 0x1
	SpeakerFrontRight   = 0x2
	SpeakerFrontCenter  = 0x4
	SpeakerLowFrequency = 0x8
	SpeakerBackLeft     = 0x10
	SpeakerBackRight    = 0x20
	SpeakerSideLeft     = 0x200
	SpeakerSideRight    = 0x400
)

const (
	MaskStereo     = SpeakerFrontLeft | SpeakerFrontRight
	MaskSurround51 = MaskStereo | SpeakerFrontCenter | SpeakerLowFrequency | SpeakerBackLeft | SpeakerBackRight
	MaskSurround71 = MaskSurround51 | SpeakerSideLeft | SpeakerSideRight
)

// Config is the encoding request for one stream
type Config struct {
	PacketDuration float64 // milliseconds
	Channels       int
	Mask           int
	AudioFormat    int // opaque to the encoders, forwarded to the transport
	Flags          Flags
}

// HighQuality reports whether FlagHighQuality is set
func (c Config) HighQuality() bool {
	return c.Flags&FlagHighQuality != 0
}

// HostAudio reports whether FlagHostAudio is set
func (c Config) HostAudio() bool {
	return c.Flags&FlagHostAudio != 0
}

// DefaultMask returns the speaker mask for a supported channel count, or 0
func DefaultMask(channels int) int {
	switch channels {
	case 2:
		return MaskStereo
	case 6:
		return MaskSurround51
	case 8:
		return MaskSurround71
	}
	return 0
}

// Validate rejects requests no topology can serve
func (c Config) Validate() error {
	var errs []error
	switch c.Channels {
	case 2, 6, 8:
	default:
		errs = append(errs, fmt.Errorf("unsupported channel count %d (supported: 2, 6, 8)", c.Channels))
	}
	if c.PacketDuration <= 0 {
		errs = append(errs, fmt.Errorf("packet duration %vms must be positive", c.PacketDuration))
	}
	if c.Mask != 0 && bits.OnesCount(uint(c.Mask)) != c.Channels {
		errs = append(errs, fmt.Errorf("channel mask %#x does not describe %d channels", c.Mask, c.Channels))
	}
	return errors.Join(errs...)
}
