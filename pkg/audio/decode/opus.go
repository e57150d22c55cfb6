// ABOUTME: Single-stream Opus decoder backed by libopus
// ABOUTME: Decodes stereo Opus packets to int16 samples
package decode

import (
	"fmt"

	"gopkg.in/hraban/opus.v2"
)

// maxOpusFrame is 120ms at 48kHz
const maxOpusFrame = 5760

// OpusDecoder decodes single-stream Opus audio
type OpusDecoder struct {
	decoder  *opus.Decoder
	channels int
	pcm      []int16
}

func newLibopus(sampleRate, channels int) (*OpusDecoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	return &OpusDecoder{
		decoder:  dec,
		channels: channels,
		pcm:      make([]int16, maxOpusFrame*channels),
	}, nil
}

// Decode converts Opus bytes to int16 samples
func (d *OpusDecoder) Decode(data []byte) ([]int16, error) {
	n, err := d.decoder.Decode(data, d.pcm)
	if err != nil {
		return nil, fmt.Errorf("opus decode failed: %w", err)
	}
	return d.pcm[:n*d.channels], nil
}

// Channels returns the output channel count
func (d *OpusDecoder) Channels() int {
	return d.channels
}

// Close releases decoder resources
func (d *OpusDecoder) Close() error {
	return nil
}
