// ABOUTME: Multistream Opus decoder for the surround topologies
// ABOUTME: Decodes coupled and mono streams back to the input channel order
package decode

import (
	"fmt"

	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/thesyncim/gopus/multistream"
)

// MultistreamDecoder decodes multistream Opus packets
type MultistreamDecoder struct {
	decoder   *multistream.Decoder
	channels  int
	frameSize int
}

func newMultistream(stream audio.StreamConfig, frameSize int) (*MultistreamDecoder, error) {
	if frameSize <= 0 {
		return nil, fmt.Errorf("invalid frame size %d", frameSize)
	}
	dec, err := multistream.NewDecoder(stream.SampleRate, stream.ChannelCount,
		stream.Streams, stream.CoupledStreams, stream.Mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create multistream decoder: %w", err)
	}

	return &MultistreamDecoder{
		decoder:   dec,
		channels:  stream.ChannelCount,
		frameSize: frameSize,
	}, nil
}

// Decode converts one multistream packet to int16 samples. A nil packet
// runs packet loss concealment.
func (d *MultistreamDecoder) Decode(data []byte) ([]int16, error) {
	pcm, err := d.decoder.DecodeToInt16(data, d.frameSize)
	if err != nil {
		return nil, fmt.Errorf("multistream decode failed: %w", err)
	}
	return pcm, nil
}

// Channels returns the output channel count
func (d *MultistreamDecoder) Channels() int {
	return d.channels
}

// Close releases decoder resources
func (d *MultistreamDecoder) Close() error {
	return nil
}
