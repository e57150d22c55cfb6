// ABOUTME: File stream abstraction over the MP3 and FLAC readers
// ABOUTME: Opens a decoded PCM stream by file extension
package decode

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Stream is a decoded audio file at its native rate and channel count
type Stream interface {
	// Read fills samples with interleaved int16 frames and returns the
	// number of samples written. io.EOF marks the end of the file.
	Read(samples []int16) (int, error)

	// SampleRate returns the native sample rate
	SampleRate() int

	// Channels returns the native channel count
	Channels() int

	// Rewind restarts the stream from the first frame
	Rewind() error

	// Close releases the underlying file
	Close() error
}

// OpenFile opens path as a Stream based on its extension
func OpenFile(path string) (Stream, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("audio file not found: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".mp3":
		return OpenMP3(path)
	case ".flac":
		return OpenFLAC(path)
	}
	return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", ext)
}
