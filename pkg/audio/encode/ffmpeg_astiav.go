//go:build !noffmpeg

// ABOUTME: FFmpeg native library binding for the transcoding pipeline
// ABOUTME: Wraps libavcodec through go-astiav and libswresample through cgo
package encode

/*
#cgo pkg-config: libavutil libswresample

#include <errno.h>
#include <string.h>
#include <libavutil/error.h>
#include <libavutil/frame.h>
#include <libswresample/swresample.h>

// fillPacked copies size bytes of interleaved samples into the first plane.
static int fillPacked(AVFrame *frame, const void *src, int size) {
    if (frame->data[0] == NULL || frame->linesize[0] < size) {
        return AVERROR(EINVAL);
    }
    memcpy(frame->data[0], src, size);
    return 0;
}

static void freeResampler(SwrContext *ctx) {
    swr_free(&ctx);
}
*/
import "C"

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/asticode/go-astiav"
)

var astiavCodecIDs = map[codecID]astiav.CodecID{
	codecIDAC3:  astiav.CodecIDAc3,
	codecIDEAC3: astiav.CodecIDEac3,
}

var astiavSampleFormats = map[sampleFormat]astiav.SampleFormat{
	sampleFormatS16:  astiav.SampleFormatS16,
	sampleFormatFLTP: astiav.SampleFormatFltp,
}

type astiavLibrary struct{}

func nativeLibrary() ffLibrary {
	return astiavLibrary{}
}

// newResampler allocates an unconfigured context. swr_convert_frame
// configures it from the first pair of frames.
func (astiavLibrary) newResampler() (ffResampler, error) {
	ctx := C.swr_alloc()
	if ctx == nil {
		return nil, errors.New("could not allocate resampler context")
	}
	return &astiavResampler{ctx: ctx}, nil
}

// defaultLayout is used when a codec advertises no channel layouts
func defaultLayout(channels int) (astiav.ChannelLayout, error) {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	case 6:
		return astiav.ChannelLayout5Point1, nil
	case 8:
		return astiav.ChannelLayout7Point1, nil
	}
	return astiav.ChannelLayout{}, fmt.Errorf("%w: %d", ErrChannelLayout, channels)
}

func codecLayout(codec *astiav.Codec, channels int) (astiav.ChannelLayout, error) {
	layouts := codec.ChannelLayouts()
	counts := make([]int, len(layouts))
	for i, l := range layouts {
		counts[i] = l.Channels()
	}

	idx, err := chooseLayout(counts, channels)
	if err != nil {
		return astiav.ChannelLayout{}, err
	}
	if idx < 0 {
		return defaultLayout(channels)
	}
	return layouts[idx], nil
}

func (astiavLibrary) openCodec(params codecParams) (ffCodec, error) {
	id, ok := astiavCodecIDs[params.id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotFound, params.id)
	}
	codec := astiav.FindEncoder(id)
	if codec == nil {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotFound, params.id)
	}

	layout, err := codecLayout(codec, params.channels)
	if err != nil {
		return nil, err
	}

	ctx := astiav.AllocCodecContext(codec)
	if ctx == nil {
		return nil, errors.New("could not allocate codec context")
	}
	ctx.SetSampleRate(params.sampleRate)
	ctx.SetSampleFormat(astiav.SampleFormatFltp)
	ctx.SetBitRate(int64(params.bitrate))
	ctx.SetChannelLayout(layout)

	if err := ctx.Open(codec, nil); err != nil {
		ctx.Free()
		return nil, fmt.Errorf("avcodec open: %w", err)
	}

	pkt := astiav.AllocPacket()
	if pkt == nil {
		ctx.Free()
		return nil, errors.New("could not allocate packet")
	}

	return &astiavCodec{
		codec:      codec,
		ctx:        ctx,
		pkt:        pkt,
		layout:     layout,
		sampleRate: params.sampleRate,
	}, nil
}

type astiavCodec struct {
	codec      *astiav.Codec
	ctx        *astiav.CodecContext
	pkt        *astiav.Packet
	layout     astiav.ChannelLayout
	sampleRate int
}

func (c *astiavCodec) name() string { return c.codec.Name() }

func (c *astiavCodec) frameSize() int { return c.ctx.FrameSize() }

func (c *astiavCodec) channels() int { return c.layout.Channels() }

func (c *astiavCodec) newFrame(format sampleFormat) (ffFrame, error) {
	f := astiav.AllocFrame()
	if f == nil {
		return nil, errors.New("could not allocate frame")
	}
	f.SetNbSamples(c.ctx.FrameSize())
	f.SetSampleFormat(astiavSampleFormats[format])
	f.SetChannelLayout(c.layout)
	f.SetSampleRate(c.sampleRate)
	if err := f.AllocBuffer(0); err != nil {
		f.Free()
		return nil, fmt.Errorf("frame get buffer: %w", err)
	}
	return &astiavFrame{frame: f}, nil
}

func (c *astiavCodec) send(frame ffFrame) error {
	return c.ctx.SendFrame(frame.(*astiavFrame).frame)
}

func (c *astiavCodec) receive(dst []byte) (int, error) {
	if err := c.ctx.ReceivePacket(c.pkt); err != nil {
		if errors.Is(err, astiav.ErrEagain) {
			return 0, ErrPacketNotReady
		}
		return 0, err
	}
	defer c.pkt.Unref()

	data := c.pkt.Data()
	if len(data) > len(dst) {
		return 0, fmt.Errorf("%w: %d > %d", ErrPacketTooLarge, len(data), len(dst))
	}
	return copy(dst, data), nil
}

func (c *astiavCodec) free() {
	c.pkt.Free()
	c.ctx.Free()
}

type astiavFrame struct {
	frame *astiav.Frame
}

func (f *astiavFrame) c() *C.AVFrame {
	return (*C.AVFrame)(f.frame.UnsafePointer())
}

func (f *astiavFrame) makeWritable() error {
	if ret := C.av_frame_make_writable(f.c()); ret < 0 {
		return astiav.Error(ret)
	}
	return nil
}

// fill copies interleaved S16 samples into the frame's single plane
func (f *astiavFrame) fill(samples []int16) error {
	if len(samples) == 0 {
		return nil
	}
	size := len(samples) * 2
	if ret := C.fillPacked(f.c(), unsafe.Pointer(&samples[0]), C.int(size)); ret < 0 {
		return fmt.Errorf("%d bytes do not fit the frame: %w", size, astiav.Error(ret))
	}
	return nil
}

func (f *astiavFrame) free() {
	f.frame.Free()
}

type astiavResampler struct {
	ctx *C.SwrContext
}

func (r *astiavResampler) convert(dst, src ffFrame) error {
	ret := C.swr_convert_frame(r.ctx, dst.(*astiavFrame).c(), src.(*astiavFrame).c())
	if ret < 0 {
		return astiav.Error(ret)
	}
	return nil
}

func (r *astiavResampler) free() {
	C.freeResampler(r.ctx)
	r.ctx = nil
}
