// ABOUTME: Shared FFmpeg transcoding pipeline for the AC-3 and E-AC-3 encoders
// ABOUTME: Owns resampler, codec and scratch frames and drives resample/send/receive
package encode

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/pkg/audio"
)

type codecID int

const (
	codecIDAC3 codecID = iota
	codecIDEAC3
)

func (id codecID) String() string {
	switch id {
	case codecIDAC3:
		return "ac3"
	case codecIDEAC3:
		return "eac3"
	}
	return fmt.Sprintf("codecID(%d)", int(id))
}

type sampleFormat int

const (
	sampleFormatS16 sampleFormat = iota
	sampleFormatFLTP
)

// codecParams is what the pipeline asks the native library to open
type codecParams struct {
	id         codecID
	sampleRate int
	bitrate    int
	channels   int
}

// ffLibrary is the native surface the transcoder needs
type ffLibrary interface {
	newResampler() (ffResampler, error)
	openCodec(params codecParams) (ffCodec, error)
}

type ffResampler interface {
	convert(dst, src ffFrame) error
	free()
}

type ffCodec interface {
	name() string
	frameSize() int
	channels() int
	// newFrame allocates frameSize() samples in the codec's layout
	newFrame(format sampleFormat) (ffFrame, error)
	send(frame ffFrame) error
	// receive copies one packet into dst; ErrPacketNotReady when the codec
	// needs more input
	receive(dst []byte) (int, error)
	free()
}

type ffFrame interface {
	makeWritable() error
	fill(samples []int16) error
	free()
}

// chooseLayout picks the index of the advertised layout with the requested
// channel count. -1 means the codec advertises nothing and the default
// layout for channels should be used.
func chooseLayout(advertised []int, channels int) (int, error) {
	if len(advertised) == 0 {
		return -1, nil
	}
	for i, n := range advertised {
		if n == channels {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %d", ErrChannelLayout, channels)
}

// transcoderParams fixes one FFmpeg backed variant
type transcoderParams struct {
	codec           codecID
	bitrate         int
	samplesPerFrame int
	// strict requires the opened codec to use exactly samplesPerFrame
	strict bool
}

// transcoder converts S16 interleaved PCM to the codec's planar float
// format and encodes one packet per call
type transcoder struct {
	params transcoderParams
	lib    ffLibrary

	resampler handle[ffResampler]
	codec     handle[ffCodec]
	frame     handle[ffFrame] // FLTP, codec input
	frameS16  handle[ffFrame] // S16, raw PCM

	channels  int
	frameSize int
	ready     bool
	closed    bool
	log       *slog.Logger
}

func newTranscoder(params transcoderParams, lib ffLibrary) *transcoder {
	return &transcoder{
		params: params,
		lib:    lib,
		log:    logging.L(params.codec.String()),
	}
}

// Init acquires resampler, codec and frames in that order. On error the
// resources acquired so far stay owned until Close.
func (t *transcoder) Init(config audio.Config) error {
	if t.closed {
		return ErrClosed
	}
	t.releaseAll()
	t.ready = false

	resampler, err := t.lib.newResampler()
	if err != nil {
		t.log.Error("could not allocate resampler context", "error", err)
		return fmt.Errorf("failed to allocate resampler: %w", err)
	}
	t.resampler.own(resampler, ffResampler.free)

	codec, err := t.lib.openCodec(codecParams{
		id:         t.params.codec,
		sampleRate: audio.SampleRate,
		bitrate:    t.params.bitrate,
		channels:   config.Channels,
	})
	if err != nil {
		t.log.Error("failed to open codec", "error", err, "channels", config.Channels)
		return fmt.Errorf("failed to open %s encoder: %w", t.params.codec, err)
	}
	t.codec.own(codec, ffCodec.free)

	if t.params.strict && codec.frameSize() != t.params.samplesPerFrame {
		t.log.Error("codec frame size mismatch",
			"codec", codec.name(),
			"frame_size", codec.frameSize(),
			"expected", t.params.samplesPerFrame)
		return fmt.Errorf("%w: %s uses %d samples, expected %d",
			ErrFrameSizeMismatch, codec.name(), codec.frameSize(), t.params.samplesPerFrame)
	}
	if codec.frameSize() <= 0 {
		return fmt.Errorf("%w: %s reports %d samples", ErrFrameSize, codec.name(), codec.frameSize())
	}

	frame, err := codec.newFrame(sampleFormatFLTP)
	if err != nil {
		t.log.Error("could not allocate frame", "error", err)
		return fmt.Errorf("failed to allocate codec frame: %w", err)
	}
	t.frame.own(frame, ffFrame.free)

	frameS16, err := codec.newFrame(sampleFormatS16)
	if err != nil {
		t.log.Error("could not allocate frame", "error", err)
		return fmt.Errorf("failed to allocate s16 frame: %w", err)
	}
	t.frameS16.own(frameS16, ffFrame.free)

	t.channels = codec.channels()
	t.frameSize = codec.frameSize()
	t.ready = true

	t.log.Debug("transcoder initialized",
		"codec", codec.name(),
		"channels", t.channels,
		"frame_size", t.frameSize,
		"bitrate", t.params.bitrate)
	return nil
}

// outputChannels returns the negotiated channel count, or fallback before Init
func (t *transcoder) outputChannels(fallback int) int {
	if t.ready {
		return t.channels
	}
	return fallback
}

func (t *transcoder) describe(info *StreamInfo) {
	info.Bitrate = t.params.bitrate
	info.Channels = t.outputChannels(info.Channels)
}

// FrameSize returns the negotiated samples per channel
func (t *transcoder) FrameSize() int {
	return t.frameSize
}

// Encode resamples one block and retrieves one packet
func (t *transcoder) Encode(samples []int16, packet *audio.Buffer) error {
	if t.closed {
		return ErrClosed
	}
	if !t.ready {
		return ErrNotInitialized
	}
	if want := t.channels * t.frameSize; len(samples) != want {
		t.log.Error("invalid number of samples", "got", len(samples), "want", want)
		return fmt.Errorf("%w: %d != %d", ErrSampleCount, len(samples), want)
	}

	frameS16 := t.frameS16.get()
	frame := t.frame.get()
	codec := t.codec.get()

	if err := frameS16.makeWritable(); err != nil {
		t.log.Error("could not make s16 frame writable", "error", err)
		return fmt.Errorf("make s16 frame writable: %w", err)
	}
	if err := frameS16.fill(samples); err != nil {
		t.log.Error("could not fill audio frame", "error", err)
		return fmt.Errorf("fill audio frame: %w", err)
	}
	if err := frame.makeWritable(); err != nil {
		t.log.Error("could not make frame writable", "error", err)
		return fmt.Errorf("make frame writable: %w", err)
	}
	if err := t.resampler.get().convert(frame, frameS16); err != nil {
		t.log.Error("could not convert frame", "error", err)
		return fmt.Errorf("convert frame: %w", err)
	}
	if err := codec.send(frame); err != nil {
		t.log.Error("could not send frame", "error", err)
		return fmt.Errorf("send frame: %w", err)
	}

	n, err := codec.receive(packet.Space())
	if errors.Is(err, ErrPacketNotReady) {
		return err
	}
	if err != nil {
		t.log.Error("could not receive packet", "error", err)
		return fmt.Errorf("receive packet: %w", err)
	}
	return packet.SetLen(n)
}

// releaseAll frees in reverse acquisition order
func (t *transcoder) releaseAll() {
	t.frameS16.release()
	t.frame.release()
	t.codec.release()
	t.resampler.release()
}

// Close releases all native resources
func (t *transcoder) Close() error {
	t.releaseAll()
	t.ready = false
	t.closed = true
	return nil
}
