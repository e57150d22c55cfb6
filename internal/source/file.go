// ABOUTME: File-backed source over the MP3 and FLAC decoders
// ABOUTME: Resamples to 48 kHz, remixes to the requested channel count and loops at EOF
package source

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/mariotaku/Sunshine/pkg/audio/decode"
	"github.com/mariotaku/Sunshine/pkg/audio/resample"
)

// readFrames is how many native frames are pulled from the decoder at once
const readFrames = 1024

// File adapts a decoded stream to the output rate and channel count
type File struct {
	stream    decode.Stream
	name      string
	channels  int
	loop      bool
	resampler *resample.Resampler

	native    []int16 // decoder output at native rate
	resampled []int16 // native channels at output rate
	remixed   []int16
	pending   []int16 // output frames not yet handed to Read

	eof bool
	log *slog.Logger
}

// OpenFile decodes path and adapts it to channels at audio.SampleRate
func OpenFile(path string, channels int, loop bool) (*File, error) {
	stream, err := decode.OpenFile(path)
	if err != nil {
		return nil, err
	}
	return NewFile(stream, filepath.Base(path), channels, loop), nil
}

// NewFile wraps an already opened stream
func NewFile(stream decode.Stream, name string, channels int, loop bool) *File {
	nativeCh := stream.Channels()
	f := &File{
		stream:    stream,
		name:      name,
		channels:  channels,
		loop:      loop,
		resampler: resample.New(stream.SampleRate(), audio.SampleRate, nativeCh),
		native:    make([]int16, readFrames*nativeCh),
		log:       logging.L("source"),
	}
	f.resampled = make([]int16, f.resampler.OutputSamplesNeeded(len(f.native))+2*nativeCh)
	f.remixed = make([]int16, (len(f.resampled)/nativeCh)*channels)

	if !f.resampler.Passthrough() {
		f.log.Info("resampling source", "name", name, "from", stream.SampleRate(), "to", audio.SampleRate)
	}
	if nativeCh != channels {
		f.log.Info("remixing source", "name", name, "from_channels", nativeCh, "to_channels", channels)
	}
	return f
}

// fill decodes one chunk into pending. It returns io.EOF once the stream
// ends and looping is off or the stream is empty.
func (f *File) fill() error {
	n, err := f.stream.Read(f.native)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read %s: %w", f.name, err)
	}

	if n > 0 {
		out := f.resampler.Resample(f.native[:n], f.resampled)
		m := audio.Remix(f.remixed, f.channels, f.resampled[:out], f.stream.Channels())
		f.pending = append(f.pending, f.remixed[:m]...)
	}

	if errors.Is(err, io.EOF) || n == 0 {
		if !f.loop {
			return io.EOF
		}
		if n == 0 && f.eof {
			// rewound and still nothing to read
			return io.EOF
		}
		f.eof = n == 0
		if rerr := f.stream.Rewind(); rerr != nil {
			return fmt.Errorf("rewind %s: %w", f.name, rerr)
		}
		f.log.Debug("looping source", "name", f.name)
		return nil
	}

	f.eof = false
	return nil
}

func (f *File) Read(samples []int16) (int, error) {
	want := (len(samples) / f.channels) * f.channels

	for len(f.pending) < want {
		if err := f.fill(); err != nil {
			if !errors.Is(err, io.EOF) {
				return 0, err
			}
			if len(f.pending) == 0 {
				return 0, io.EOF
			}
			// final partial block is padded with silence
			n := copy(samples, f.pending)
			clear(samples[n:want])
			f.pending = f.pending[:0]
			return want, nil
		}
	}

	copy(samples, f.pending[:want])
	f.pending = append(f.pending[:0], f.pending[want:]...)
	return want, nil
}

func (f *File) SampleRate() int { return audio.SampleRate }
func (f *File) Channels() int   { return f.channels }
func (f *File) Name() string    { return f.name }

func (f *File) Close() error {
	return f.stream.Close()
}
