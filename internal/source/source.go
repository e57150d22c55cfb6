// ABOUTME: Capture stand-in sources feeding the encoder session
// ABOUTME: Every source yields interleaved int16 frames at 48 kHz
package source

import (
	"fmt"
	"strings"
)

// Source provides interleaved PCM at audio.SampleRate with a fixed channel count
type Source interface {
	// Read fills samples with whole frames and returns the number of
	// samples written. io.EOF means the source is exhausted.
	Read(samples []int16) (int, error)

	// SampleRate returns the output sample rate
	SampleRate() int

	// Channels returns the output channel count
	Channels() int

	// Name describes the source for logs and the status view
	Name() string

	// Close releases the source
	Close() error
}

// ToneSource is the name that selects the generated test tone
const ToneSource = "tone"

// Open returns the source named by name: "tone" or a path to an MP3/FLAC file
func Open(name string, channels int, loop bool) (Source, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if strings.EqualFold(strings.TrimSpace(name), ToneSource) || name == "" {
		return NewTone(channels), nil
	}
	return OpenFile(name, channels, loop)
}
