// ABOUTME: FLAC file stream
// ABOUTME: Decodes FLAC frames of any bit depth to interleaved int16 samples
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
)

// FLACStream reads PCM from a FLAC file
type FLACStream struct {
	file     *os.File
	stream   *flac.Stream
	channels int
	rate     int
	bitDepth int
	pending  []int16
}

// OpenFLAC opens a FLAC file
func OpenFLAC(path string) (*FLACStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	return &FLACStream{
		file:     f,
		stream:   stream,
		channels: int(stream.Info.NChannels),
		rate:     int(stream.Info.SampleRate),
		bitDepth: int(stream.Info.BitsPerSample),
	}, nil
}

// toInt16 scales a sample of the stream's bit depth to 16 bits
func (s *FLACStream) toInt16(sample int32) int16 {
	shift := s.bitDepth - 16
	if shift > 0 {
		return int16(sample >> shift)
	}
	return int16(sample << -shift)
}

func (s *FLACStream) Read(samples []int16) (int, error) {
	read := 0
	for read < len(samples) {
		if len(s.pending) > 0 {
			n := copy(samples[read:], s.pending)
			s.pending = s.pending[n:]
			read += n
			continue
		}

		frame, err := s.stream.ParseNext()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if read == 0 {
					return 0, io.EOF
				}
				return read, nil
			}
			return read, fmt.Errorf("flac decode error: %w", err)
		}

		blockSize := int(frame.BlockSize)
		decoded := make([]int16, 0, blockSize*s.channels)
		for i := 0; i < blockSize; i++ {
			for ch := 0; ch < s.channels; ch++ {
				decoded = append(decoded, s.toInt16(frame.Subframes[ch].Samples[i]))
			}
		}
		s.pending = decoded
	}
	return read, nil
}

func (s *FLACStream) SampleRate() int { return s.rate }
func (s *FLACStream) Channels() int   { return s.channels }

func (s *FLACStream) Rewind() error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to seek to start: %w", err)
	}
	stream, err := flac.New(s.file)
	if err != nil {
		return fmt.Errorf("failed to create new stream: %w", err)
	}
	s.stream = stream
	s.pending = nil
	return nil
}

func (s *FLACStream) Close() error {
	return s.file.Close()
}
