// ABOUTME: Encoding session driving a source through an encoder into a sink
// ABOUTME: Paces frames, skips empty packets and re-creates the encoder after repeated failures
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/source"
	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/mariotaku/Sunshine/pkg/audio/encode"
)

// Packet is one encoded packet handed to a Sink. Data is only valid until
// WritePacket returns.
type Packet struct {
	Sequence    uint32
	TimestampUs int64 // media time of the first sample
	Data        []byte
}

// Sink receives encoded packets in order
type Sink interface {
	WritePacket(p Packet) error
}

// SinkFunc adapts a function to a Sink
type SinkFunc func(p Packet) error

func (f SinkFunc) WritePacket(p Packet) error { return f(p) }

// Config selects the codec and pacing of a session
type Config struct {
	Codec                  encode.Codec
	Request                audio.Config
	MaxConsecutiveFailures int

	// Realtime paces frames with a ticker at the packet duration.
	// Otherwise frames are encoded as fast as the source yields them.
	Realtime bool
}

// Stats is a snapshot of session counters
type Stats struct {
	Frames   uint64
	Packets  uint64
	Bytes    uint64
	Skipped  uint64
	Failures uint64
	Reinits  uint64
}

// Session owns one encoder and its packet buffer
type Session struct {
	config Config
	src    source.Source
	sink   Sink

	newEncoder func(encode.Codec) (encode.Encoder, error)

	mu     sync.RWMutex
	enc    encode.Encoder
	info   encode.StreamInfo
	packet *audio.Buffer
	pcm    []int16

	seq         uint32
	mediaFrames uint64
	consecutive int

	frames   atomic.Uint64
	packets  atomic.Uint64
	bytes    atomic.Uint64
	skipped  atomic.Uint64
	failures atomic.Uint64
	reinits  atomic.Uint64

	log *slog.Logger
}

// New creates a session. The encoder is created by Start or the first Run.
func New(config Config, src source.Source, sink Sink) *Session {
	if config.MaxConsecutiveFailures < 1 {
		config.MaxConsecutiveFailures = 1
	}
	return &Session{
		config:     config,
		src:        src,
		sink:       sink,
		newEncoder: encode.New,
		log:        logging.L("session").With(logging.KeyCodec, config.Codec.String()),
	}
}

// Start creates and initializes the encoder and sizes the buffers
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openLocked()
}

func (s *Session) openLocked() error {
	if s.src.Channels() != s.config.Request.Channels {
		return fmt.Errorf("source has %d channels, stream needs %d", s.src.Channels(), s.config.Request.Channels)
	}

	enc, err := s.newEncoder(s.config.Codec)
	if err != nil {
		return err
	}
	if err := enc.Init(s.config.Request); err != nil {
		enc.Close()
		return fmt.Errorf("failed to initialize %s encoder: %w", s.config.Codec, err)
	}

	s.enc = enc
	s.info = encode.Describe(s.config.Codec, enc, s.config.Request)
	s.packet = audio.NewBuffer(encode.PacketCapacity(s.config.Codec, s.config.Request))
	if n := s.info.Channels * enc.FrameSize(); cap(s.pcm) < n {
		s.pcm = make([]int16, n)
	} else {
		s.pcm = s.pcm[:n]
	}

	s.log.Info("encoder ready",
		"channels", s.info.Channels,
		"frame_size", s.info.FrameSize,
		"bitrate", s.info.Bitrate,
		"streams", s.info.Streams,
		"coupled_streams", s.info.CoupledStreams)
	return nil
}

func (s *Session) closeLocked() {
	if s.enc != nil {
		s.enc.Close()
		s.enc = nil
	}
}

// reinit discards the encoder and builds a fresh one with the same request
func (s *Session) reinit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeLocked()
	s.reinits.Add(1)
	s.consecutive = 0
	s.log.Warn("re-creating encoder after consecutive failures", "limit", s.config.MaxConsecutiveFailures)
	return s.openLocked()
}

// Info returns the stream description of the current encoder
func (s *Session) Info() encode.StreamInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// FrameDuration returns the wall time covered by one packet
func (s *Session) FrameDuration() time.Duration {
	info := s.Info()
	if info.SampleRate == 0 {
		return 0
	}
	return time.Duration(info.FrameSize) * time.Second / time.Duration(info.SampleRate)
}

// Stats returns a snapshot of the counters
func (s *Session) Stats() Stats {
	return Stats{
		Frames:   s.frames.Load(),
		Packets:  s.packets.Load(),
		Bytes:    s.bytes.Load(),
		Skipped:  s.skipped.Load(),
		Failures: s.failures.Load(),
		Reinits:  s.reinits.Load(),
	}
}

// Run encodes until ctx ends or the source is exhausted. It returns nil in
// both cases and an error when the encoder cannot be (re)built or the sink fails.
func (s *Session) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.enc == nil {
		if err := s.openLocked(); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	s.mu.Unlock()

	var tick <-chan time.Time
	if s.config.Realtime {
		ticker := time.NewTicker(s.FrameDuration())
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}

		done, err := s.step()
		if err != nil {
			return err
		}
		if done {
			s.log.Info("source exhausted", "source", s.src.Name())
			return nil
		}
	}
}

// step reads and encodes one frame. done reports source exhaustion.
func (s *Session) step() (done bool, err error) {
	n, err := s.src.Read(s.pcm)
	if errors.Is(err, io.EOF) {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("source read failed: %w", err)
	}
	if n < len(s.pcm) {
		clear(s.pcm[n:])
	}
	s.frames.Add(1)

	ts := int64(s.mediaFrames) * 1_000_000 / int64(s.info.SampleRate)
	s.mediaFrames += uint64(s.info.FrameSize)

	s.packet.Reset()
	err = s.enc.Encode(s.pcm, s.packet)
	switch {
	case err == nil:
	case errors.Is(err, encode.ErrPacketNotReady):
		s.skipped.Add(1)
		return false, nil
	default:
		s.failures.Add(1)
		s.consecutive++
		s.log.Warn("encode failed", logging.KeyError, err, "consecutive", s.consecutive)
		if s.consecutive >= s.config.MaxConsecutiveFailures {
			if rerr := s.reinit(); rerr != nil {
				return false, rerr
			}
		}
		return false, nil
	}
	s.consecutive = 0

	p := Packet{Sequence: s.seq, TimestampUs: ts, Data: s.packet.Bytes()}
	s.seq++
	if err := s.sink.WritePacket(p); err != nil {
		return false, fmt.Errorf("sink write failed: %w", err)
	}
	s.packets.Add(1)
	s.bytes.Add(uint64(len(p.Data)))
	return false, nil
}

// Close releases the encoder. The source stays owned by the caller.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
	return nil
}
