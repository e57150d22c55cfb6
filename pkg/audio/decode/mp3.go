// ABOUTME: MP3 file stream
// ABOUTME: Decodes MP3 files to interleaved int16 stereo samples
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"
)

// MP3Stream reads PCM from an MP3 file. go-mp3 always emits 16-bit stereo.
type MP3Stream struct {
	file    *os.File
	decoder *mp3.Decoder
	buf     []byte
}

// OpenMP3 opens an MP3 file
func OpenMP3(path string) (*MP3Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &MP3Stream{file: f, decoder: decoder}, nil
}

func (s *MP3Stream) Read(samples []int16) (int, error) {
	// whole stereo frames only, 4 bytes each
	numBytes := (len(samples) / 2) * 4
	if cap(s.buf) < numBytes {
		s.buf = make([]byte, numBytes)
	}
	buf := s.buf[:numBytes]

	n, err := s.decoder.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := n / 2
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
	if numSamples == 0 && errors.Is(err, io.EOF) {
		return 0, io.EOF
	}
	return numSamples, nil
}

func (s *MP3Stream) SampleRate() int { return s.decoder.SampleRate() }
func (s *MP3Stream) Channels() int   { return 2 }

func (s *MP3Stream) Rewind() error {
	if _, err := s.decoder.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	return nil
}

func (s *MP3Stream) Close() error {
	return s.file.Close()
}
