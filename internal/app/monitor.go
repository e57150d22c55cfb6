// ABOUTME: Monitor application orchestration
// ABOUTME: Connects to a server, decodes the stream, folds it to stereo and plays it on schedule
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/mariotaku/Sunshine/internal/client"
	"github.com/mariotaku/Sunshine/internal/discovery"
	"github.com/mariotaku/Sunshine/internal/logging"
	"github.com/mariotaku/Sunshine/internal/player"
	"github.com/mariotaku/Sunshine/internal/protocol"
	internalsync "github.com/mariotaku/Sunshine/internal/sync"
	"github.com/mariotaku/Sunshine/internal/ui"
	"github.com/mariotaku/Sunshine/internal/version"
	"github.com/mariotaku/Sunshine/pkg/audio"
	"github.com/mariotaku/Sunshine/pkg/audio/decode"
	"github.com/mariotaku/Sunshine/pkg/audio/encode"
	"github.com/mariotaku/Sunshine/pkg/audio/output"
	tea "github.com/charmbracelet/bubbletea"
)

const (
	outputChannels  = 2
	syncInterval    = time.Second
	syncTimeout     = 2 * time.Second
	defaultDelay    = 150 * time.Millisecond
	defaultDiscover = 10 * time.Second
	defaultStats    = time.Second
)

// ErrNoServer is returned when discovery finds nothing in time
var ErrNoServer = errors.New("no server found")

// Config holds monitor configuration
type Config struct {
	ServerAddr string // empty means discover over mDNS
	Name       string
	ClientID   string

	// Delay is added to every packet's play time to absorb jitter
	Delay            time.Duration
	DiscoveryTimeout time.Duration
	StatsInterval    time.Duration
	UseTUI           bool
}

// Monitor plays one server's stream through the local audio device
type Monitor struct {
	config    Config
	client    *client.Client
	clock     *internalsync.ClockSync
	scheduler *player.Scheduler
	output    output.Output

	mu      sync.Mutex
	start   protocol.StreamStart
	decoder decode.Decoder
	stereo  []int16
	nextSeq uint32
	started bool

	received     atomic.Uint64
	decoded      atomic.Uint64
	lost         atomic.Uint64
	decodeErrors atomic.Uint64

	tuiProg    *tea.Program
	volumeCtrl *ui.VolumeControl

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	log    *slog.Logger
}

// New creates a monitor that plays through out
func New(config Config, out output.Output) *Monitor {
	if config.Delay <= 0 {
		config.Delay = defaultDelay
	}
	if config.DiscoveryTimeout <= 0 {
		config.DiscoveryTimeout = defaultDiscover
	}
	if config.StatsInterval <= 0 {
		config.StatsInterval = defaultStats
	}
	if config.ClientID == "" {
		config.ClientID = uuid.New().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	clock := internalsync.NewClockSync()
	return &Monitor{
		config:    config,
		clock:     clock,
		scheduler: player.NewScheduler(clock, config.Delay),
		output:    out,
		ctx:       ctx,
		cancel:    cancel,
		log:       logging.WithClient(logging.L("monitor"), config.ClientID),
	}
}

// Run monitors until Stop, a TUI quit, the end of the stream or a lost connection
func (m *Monitor) Run() error {
	if m.config.UseTUI {
		m.volumeCtrl = ui.NewVolumeControl()
		m.tuiProg = ui.Run(m.volumeCtrl)
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			if _, err := m.tuiProg.Run(); err != nil {
				m.log.Error("TUI failed", logging.KeyError, err)
			}
		}()
	}

	addr, path, err := m.resolve()
	if err != nil {
		m.shutdown()
		return err
	}

	m.client = client.NewClient(client.Config{
		ServerAddr: addr,
		Path:       path,
		ClientID:   m.config.ClientID,
		Name:       m.config.Name,
		Codecs:     []string{encode.CodecOpus.String(), encode.CodecAC3.String(), encode.CodecEAC3.String()},
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product + " Monitor",
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})
	if err := m.client.Connect(); err != nil {
		m.shutdown()
		return fmt.Errorf("connection failed: %w", err)
	}

	connected := true
	m.updateTUI(ui.StatusMsg{Connected: &connected, ServerName: m.client.Server().Name})

	m.spawn(m.clockSyncLoop)
	m.spawn(m.receiveLoop)
	m.spawn(m.playbackLoop)
	m.spawn(m.statsLoop)
	m.spawn(func() { m.scheduler.Run(m.ctx) })
	if m.volumeCtrl != nil {
		m.spawn(m.volumeLoop)
	}

	var quit <-chan struct{}
	if m.volumeCtrl != nil {
		quit = m.volumeCtrl.Quit
	}

	select {
	case <-m.ctx.Done():
	case <-quit:
		m.log.Info("quit requested")
	case end := <-m.client.StreamEnd:
		m.log.Info("stream ended", "reason", end.Reason)
	case <-m.client.Done():
		m.log.Warn("connection lost")
	}

	m.shutdown()
	return nil
}

func (m *Monitor) spawn(f func()) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		f()
	}()
}

// resolve returns the server address and WebSocket path
func (m *Monitor) resolve() (addr, path string, err error) {
	if m.config.ServerAddr != "" {
		return m.config.ServerAddr, "", nil
	}

	m.log.Info("starting server discovery")
	disc := discovery.NewManager(discovery.Config{ServiceName: m.config.Name})
	if err := disc.Browse(); err != nil {
		return "", "", err
	}
	defer disc.Stop()

	select {
	case server := <-disc.Servers():
		m.log.Info("discovered server", "name", server.Name, "addr", server.Addr(), "codec", server.TXT["codec"])
		return server.Addr(), server.TXT["path"], nil
	case <-time.After(m.config.DiscoveryTimeout):
		return "", "", fmt.Errorf("%w after %v", ErrNoServer, m.config.DiscoveryTimeout)
	case <-m.ctx.Done():
		return "", "", m.ctx.Err()
	}
}

// clockSyncLoop exchanges client/time messages once per interval
func (m *Monitor) clockSyncLoop() {
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()

	for {
		t1 := m.clock.ClientMicros()
		if err := m.client.SendTimeSync(t1); err != nil {
			return
		}

		select {
		case resp := <-m.client.TimeSyncResp:
			t4 := m.clock.ClientMicros()
			m.clock.ProcessSyncResponse(resp.ClientTransmitted, resp.ServerReceived, resp.ServerTransmitted, t4)
		case <-time.After(syncTimeout):
			m.log.Warn("time sync timeout")
		case <-m.ctx.Done():
			return
		}

		offset, rtt, _ := m.clock.GetStats()
		quality := m.clock.CheckQuality()
		m.updateTUI(ui.StatusMsg{SyncOffset: offset, SyncRTT: rtt, SyncQuality: &quality})

		select {
		case <-ticker.C:
		case <-m.ctx.Done():
			return
		}
	}
}

// receiveLoop handles stream/start and audio packets
func (m *Monitor) receiveLoop() {
	for {
		select {
		case start := <-m.client.StreamStart:
			if err := m.setupStream(start); err != nil {
				m.log.Error("failed to set up stream", logging.KeyError, err)
			}
		case p := <-m.client.Packets:
			m.handlePacket(p)
		case <-m.ctx.Done():
			return
		}
	}
}

// setupStream prepares decoding for start. Only Opus is decoded; the
// transcoded codecs are counted but not played.
func (m *Monitor) setupStream(start protocol.StreamStart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.decoder != nil {
		m.decoder.Close()
		m.decoder = nil
	}
	m.start = start
	m.started = false

	playing := false
	defer func() {
		m.updateTUI(ui.StatusMsg{
			Codec:          start.Codec,
			Channels:       start.Channels,
			Streams:        start.Streams,
			CoupledStreams: start.CoupledStreams,
			Bitrate:        start.Bitrate,
			FrameSize:      start.FrameSize,
			Playing:        playing,
		})
	}()

	m.log.Info("stream starting",
		logging.KeyCodec, start.Codec,
		"channels", start.Channels,
		"streams", start.Streams,
		"coupled_streams", start.CoupledStreams,
		"bitrate", start.Bitrate,
		"frame_size", start.FrameSize)

	if start.Codec != encode.CodecOpus.String() {
		m.log.Warn("codec cannot be played, counting packets only", logging.KeyCodec, start.Codec)
		return nil
	}

	decoder, err := decode.NewOpus(streamConfig(start), start.FrameSize)
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := m.output.Open(start.SampleRate, outputChannels); err != nil {
		decoder.Close()
		return fmt.Errorf("failed to open output: %w", err)
	}

	m.decoder = decoder
	playing = true
	return nil
}

// streamConfig rebuilds the topology described by start
func streamConfig(start protocol.StreamStart) audio.StreamConfig {
	mapping := make([]byte, len(start.Mapping))
	for i, v := range start.Mapping {
		mapping[i] = byte(v)
	}
	if len(mapping) == 0 {
		for i := 0; i < start.Channels; i++ {
			mapping = append(mapping, byte(i))
		}
	}
	streams, coupled := start.Streams, start.CoupledStreams
	if streams == 0 {
		streams, coupled = 1, start.Channels/2
	}
	return audio.StreamConfig{
		SampleRate:     start.SampleRate,
		ChannelCount:   start.Channels,
		Streams:        streams,
		CoupledStreams: coupled,
		Mapping:        mapping,
		Bitrate:        start.Bitrate,
	}
}

// handlePacket tracks sequence gaps, decodes and schedules one packet
func (m *Monitor) handlePacket(p protocol.AudioPacket) {
	m.received.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started && p.Sequence > m.nextSeq {
		m.lost.Add(uint64(p.Sequence - m.nextSeq))
	}
	if !m.started || p.Sequence >= m.nextSeq {
		m.nextSeq = p.Sequence + 1
		m.started = true
	}

	if m.decoder == nil {
		return
	}

	pcm, err := m.decoder.Decode(p.Payload)
	if err != nil {
		m.decodeErrors.Add(1)
		m.log.Debug("decode failed", "seq", p.Sequence, logging.KeyError, err)
		return
	}
	m.decoded.Add(1)

	channels := m.decoder.Channels()
	stereo := make([]int16, len(pcm)/channels*outputChannels)
	audio.Remix(stereo, outputChannels, pcm, channels)

	m.scheduler.Schedule(player.Buffer{
		Sequence:  p.Sequence,
		Timestamp: m.start.EpochUs + p.TimestampUs,
		Samples:   stereo,
	})
}

// playbackLoop writes released buffers to the output
func (m *Monitor) playbackLoop() {
	for {
		select {
		case buf := <-m.scheduler.Output():
			if err := m.output.Write(buf.Samples); err != nil {
				m.log.Warn("playback error", logging.KeyError, err)
			}
		case <-m.ctx.Done():
			return
		}
	}
}

// Stats returns the counters reported in client/stats
func (m *Monitor) Stats() protocol.ClientStats {
	return protocol.ClientStats{
		Received: m.received.Load(),
		Decoded:  m.decoded.Load(),
		Lost:     m.lost.Load(),
	}
}

func (m *Monitor) statsLoop() {
	ticker := time.NewTicker(m.config.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			stats := m.Stats()
			if err := m.client.SendStats(stats); err != nil {
				m.log.Debug("failed to send stats", logging.KeyError, err)
			}
			sched := m.scheduler.Stats()
			m.updateTUI(ui.StatusMsg{
				Received:     int64(stats.Received),
				Played:       sched.Played,
				Dropped:      sched.Dropped + int64(stats.Lost),
				DecodeErrors: int64(m.decodeErrors.Load()),
				Pending:      m.scheduler.Pending(),
			})
		case <-m.ctx.Done():
			return
		}
	}
}

type volumeSetter interface {
	SetVolume(volume int)
	SetMuted(muted bool)
}

// volumeLoop applies volume changes from the TUI
func (m *Monitor) volumeLoop() {
	setter, ok := m.output.(volumeSetter)
	for {
		select {
		case change := <-m.volumeCtrl.Changes:
			if ok {
				setter.SetVolume(change.Volume)
				setter.SetMuted(change.Muted)
			}
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Monitor) updateTUI(msg ui.StatusMsg) {
	if m.tuiProg != nil {
		m.tuiProg.Send(msg)
	}
}

// Stop ends Run
func (m *Monitor) Stop() {
	m.cancel()
}

func (m *Monitor) shutdown() {
	m.cancel()
	if m.client != nil {
		m.client.Close()
	}
	if m.tuiProg != nil {
		m.tuiProg.Quit()
	}
	m.wg.Wait()

	m.mu.Lock()
	if m.decoder != nil {
		m.decoder.Close()
		m.decoder = nil
	}
	m.mu.Unlock()

	if err := m.output.Close(); err != nil {
		m.log.Warn("error closing output", logging.KeyError, err)
	}
	stats := m.Stats()
	m.log.Info("monitor stopped", "received", stats.Received, "decoded", stats.Decoded, "lost", stats.Lost)
}
