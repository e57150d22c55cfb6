// ABOUTME: Decoder interface definition
// ABOUTME: Picks the Opus decoder that matches a stream topology
package decode

import (
	"bytes"

	"github.com/mariotaku/Sunshine/pkg/audio"
)

// Decoder decodes packets to interleaved PCM int16 samples
type Decoder interface {
	// Decode converts one packet to Channels()*frameSize samples. The
	// returned slice is reused by the next call.
	Decode(data []byte) ([]int16, error)

	// Channels returns the number of interleaved output channels
	Channels() int

	// Close releases decoder resources
	Close() error
}

// NewOpus returns a decoder for packets produced with stream. A plain
// stereo topology decodes through libopus; the rest use the multistream
// decoder.
func NewOpus(stream audio.StreamConfig, frameSize int) (Decoder, error) {
	if stream.Streams == 1 && stream.CoupledStreams == 1 && bytes.Equal(stream.Mapping, []byte{0, 1}) {
		return newLibopus(stream.SampleRate, stream.ChannelCount)
	}
	return newMultistream(stream, frameSize)
}
