// ABOUTME: Low-delay multistream Opus encoder
// ABOUTME: Encodes int16 frames at a constant bitrate using a fixed topology
package encode

import (
	"fmt"
	"log/slog"

	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/thesyncim/gopus/multistream"
)

// OpusEncoder encodes multistream Opus with the CELT low-delay path and VBR off
type OpusEncoder struct {
	encoder   *multistream.Encoder
	stream    audio.StreamConfig
	frameSize int
	pcm       []float32
	closed    bool
	log       *slog.Logger
}

// NewOpus creates an uninitialized Opus encoder
func NewOpus() *OpusEncoder {
	return &OpusEncoder{log: logging.L("opus")}
}

// validOpusFrameSize reports whether n samples is a legal Opus frame at 48kHz
func validOpusFrameSize(n int) bool {
	switch n {
	case 120, 240, 480, 960, 1920, 2880:
		return true
	}
	return false
}

// Init selects the topology for config and creates the multistream encoder
func (e *OpusEncoder) Init(config audio.Config) error {
	if e.closed {
		return ErrClosed
	}
	e.encoder = nil

	stream := audio.SelectStreamConfig(config.Channels, config.HighQuality())
	if stream.ChannelCount != config.Channels {
		e.log.Error("no opus topology for channel count", "channels", config.Channels)
		return fmt.Errorf("%w: %d", ErrChannelLayout, config.Channels)
	}
	frameSize := stream.FrameSize(config.PacketDuration)
	if !validOpusFrameSize(frameSize) {
		return fmt.Errorf("%w: %d samples for %vms", ErrFrameSize, frameSize, config.PacketDuration)
	}

	encoder, err := multistream.NewEncoder(stream.SampleRate, stream.ChannelCount,
		stream.Streams, stream.CoupledStreams, stream.Mapping)
	if err != nil {
		e.log.Error("failed to create multistream encoder", "error", err, "channels", stream.ChannelCount)
		return fmt.Errorf("failed to create opus multistream encoder: %w", err)
	}
	encoder.SetLowDelay(true)
	encoder.SetVBR(false)
	encoder.SetBitrate(stream.Bitrate)

	e.encoder = encoder
	e.stream = stream
	e.frameSize = frameSize
	e.pcm = make([]float32, frameSize*stream.ChannelCount)

	e.log.Debug("opus encoder initialized",
		"channels", stream.ChannelCount,
		"streams", stream.Streams,
		"coupled", stream.CoupledStreams,
		"bitrate", stream.Bitrate,
		"frame_size", frameSize)
	return nil
}

// StreamConfig returns the topology chosen by Init
func (e *OpusEncoder) StreamConfig() audio.StreamConfig {
	return e.stream
}

func (e *OpusEncoder) describe(info *StreamInfo) {
	if e.encoder == nil {
		return
	}
	info.SampleRate = e.stream.SampleRate
	info.Channels = e.stream.ChannelCount
	info.Bitrate = e.stream.Bitrate
	info.Streams = e.stream.Streams
	info.CoupledStreams = e.stream.CoupledStreams
	info.Mapping = e.stream.Mapping
}

// FrameSize returns samples per channel per packet
func (e *OpusEncoder) FrameSize() int {
	return e.frameSize
}

// Encode converts samples to float and encodes one multistream packet
func (e *OpusEncoder) Encode(samples []int16, packet *audio.Buffer) error {
	if e.closed {
		return ErrClosed
	}
	if e.encoder == nil {
		return ErrNotInitialized
	}
	if len(samples) != len(e.pcm) {
		e.log.Error("invalid number of samples", "got", len(samples), "want", len(e.pcm))
		return fmt.Errorf("%w: %d != %d", ErrSampleCount, len(samples), len(e.pcm))
	}

	for i, s := range samples {
		e.pcm[i] = audio.Int16ToFloat32(s)
	}

	data, err := e.encoder.Encode(e.pcm, e.frameSize)
	if err != nil {
		e.log.Error("opus encode failed", "error", err)
		return fmt.Errorf("opus encode error: %w", err)
	}
	if data == nil {
		return ErrPacketNotReady
	}
	if len(data) > packet.Cap() {
		return fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, len(data), packet.Cap())
	}

	n := copy(packet.Space(), data)
	return packet.SetLen(n)
}

// Close releases resources
func (e *OpusEncoder) Close() error {
	e.encoder = nil
	e.pcm = nil
	e.closed = true
	return nil
}
