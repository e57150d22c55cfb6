// ABOUTME: Encoder interface definition and codec factory
// ABOUTME: Common contract for the Opus and FFmpeg backed encoders
package encode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mariotaku/Sunshine/pkg/audio"
)

// Encoder compresses fixed-size blocks of interleaved int16 PCM.
// An Encoder is owned by a single goroutine.
type Encoder interface {
	// Init allocates native state for config. After an error the caller
	// must Close the encoder and discard it.
	Init(config audio.Config) error

	// Encode compresses exactly Channels*FrameSize() samples into packet
	Encode(samples []int16, packet *audio.Buffer) error

	// FrameSize returns samples per channel per packet, 0 before Init
	FrameSize() int

	// Close releases encoder resources. It is safe to call more than once.
	Close() error
}

var (
	ErrUnknownCodec      = errors.New("unknown codec")
	ErrNotInitialized    = errors.New("encoder not initialized")
	ErrClosed            = errors.New("encoder closed")
	ErrSampleCount       = errors.New("invalid number of samples")
	ErrFrameSize         = errors.New("unsupported frame size")
	ErrFrameSizeMismatch = errors.New("codec frame size mismatch")
	ErrCodecNotFound     = errors.New("codec not found")
	ErrChannelLayout     = errors.New("no channel layout for channel count")
	ErrPacketTooLarge    = errors.New("packet exceeds buffer capacity")
	ErrPacketNotReady    = errors.New("codec did not emit a packet")
)

// Codec names an encoder backend
type Codec int

const (
	CodecOpus Codec = iota
	CodecAC3
	CodecEAC3
)

var codecNames = map[Codec]string{
	CodecOpus: "opus",
	CodecAC3:  "ac3",
	CodecEAC3: "eac3",
}

func (c Codec) String() string {
	if name, ok := codecNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Codec(%d)", int(c))
}

// ParseCodec maps a codec name ("opus", "ac3", "eac3") to a Codec
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "opus":
		return CodecOpus, nil
	case "ac3", "ac-3":
		return CodecAC3, nil
	case "eac3", "e-ac-3", "ec3":
		return CodecEAC3, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// New returns an uninitialized encoder for codec
func New(codec Codec) (Encoder, error) {
	switch codec {
	case CodecOpus:
		return NewOpus(), nil
	case CodecAC3:
		return NewAC3(), nil
	case CodecEAC3:
		return NewEAC3(), nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownCodec, codec)
}

const (
	maxOpusPacketPerStream = 4000
	maxTranscodedPacket    = 4096
)

// PacketCapacity returns the buffer size that holds any packet codec can
// produce for config
func PacketCapacity(codec Codec, config audio.Config) int {
	if codec == CodecOpus {
		sc := audio.SelectStreamConfig(config.Channels, config.HighQuality())
		return maxOpusPacketPerStream * sc.Streams
	}
	return maxTranscodedPacket
}

// StreamInfo describes the packets an initialized encoder produces.
// The multistream fields are only set for Opus.
type StreamInfo struct {
	Codec          Codec
	SampleRate     int
	Channels       int
	FrameSize      int
	Bitrate        int
	Streams        int
	CoupledStreams int
	Mapping        []byte
}

// describer fills in what an initialized variant knows about its packets
type describer interface {
	describe(info *StreamInfo)
}

// Describe returns the StreamInfo of an initialized encoder
func Describe(codec Codec, enc Encoder, config audio.Config) StreamInfo {
	info := StreamInfo{
		Codec:      codec,
		SampleRate: audio.SampleRate,
		Channels:   config.Channels,
		FrameSize:  enc.FrameSize(),
	}
	if d, ok := enc.(describer); ok {
		d.describe(&info)
	}
	return info
}
