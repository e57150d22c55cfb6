// ABOUTME: Bubbletea model for the monitor TUI
// ABOUTME: Shows connection, clock sync, stream topology and playback counters
package ui

import (
	"fmt"
	"strings"

	"github.com/mariotaku/Sunshine/internal/sync"
	tea "github.com/charmbracelet/bubbletea"
)

const volumeStep = 5

// Model represents the TUI state
type Model struct {
	// Connection
	connected  bool
	serverName string

	// Sync
	syncOffset  int64
	syncRTT     int64
	syncQuality sync.Quality

	// Stream
	codec          string
	channels       int
	streams        int
	coupledStreams int
	bitrate        int
	frameSize      int
	playing        bool

	// Playback
	volume     int
	muted      bool
	volumeCtrl *VolumeControl

	// Stats
	received     int64
	played       int64
	dropped      int64
	decodeErrors int64
	pending      int

	showDebug bool

	width  int
	height int
}

// StatusMsg updates TUI state. Zero fields are left unchanged.
type StatusMsg struct {
	Connected  *bool
	ServerName string

	SyncOffset  int64
	SyncRTT     int64
	SyncQuality *sync.Quality

	Codec          string
	Channels       int
	Streams        int
	CoupledStreams int
	Bitrate        int
	FrameSize      int
	Playing        bool

	Received     int64
	Played       int64
	Dropped      int64
	DecodeErrors int64
	Pending      int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderStreamInfo())
	b.WriteString(m.renderControls())
	b.WriteString(m.renderStats())
	if m.showDebug {
		b.WriteString(m.renderDebug())
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	connStatus := "Disconnected"
	if m.connected {
		connStatus = "Connected to " + m.serverName
	}

	syncIcon := "✗"
	syncText := "Lost"
	switch m.syncQuality {
	case sync.QualityGood:
		syncIcon = "✓"
		syncText = fmt.Sprintf("Synced (rtt %.1fms)", float64(m.syncRTT)/1000.0)
	case sync.QualityDegraded:
		syncIcon = "⚠"
		syncText = fmt.Sprintf("Degraded (rtt %.1fms)", float64(m.syncRTT)/1000.0)
	}

	return fmt.Sprintf(`┌─ Sunshine Audio Monitor ─────────────────────────────┐
│ Status: %-44s │
│ Sync:   %s %-42s │
├──────────────────────────────────────────────────────┤
`, truncate(connStatus, 44), syncIcon, truncate(syncText, 42))
}

func (m Model) renderStreamInfo() string {
	if !m.connected || m.codec == "" {
		return "│ No stream                                            │\n"
	}

	s := fmt.Sprintf("│ Stream: %-44s │\n", truncate(fmt.Sprintf("%s %s, %d kbps", m.codec, channelName(m.channels), m.bitrate/1000), 44))
	if m.streams > 0 {
		s += fmt.Sprintf("│ Layout: %-44s │\n", fmt.Sprintf("%d streams (%d coupled), %d samples/frame", m.streams, m.coupledStreams, m.frameSize))
	} else {
		s += fmt.Sprintf("│ Frame:  %-44s │\n", fmt.Sprintf("%d samples", m.frameSize))
	}
	if !m.playing {
		s += "│ Playback: not supported for this codec               │\n"
	}
	return s
}

func (m Model) renderControls() string {
	muteText := ""
	if m.muted {
		muteText = " (muted)"
	}

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: %-44s │\n",
		fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteText))
}

func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  %-44s │
│         %-44s │
`, fmt.Sprintf("RX: %d  Played: %d  Dropped: %d", m.received, m.played, m.dropped),
		fmt.Sprintf("Decode errors: %d  Queued: %d", m.decodeErrors, m.pending))
}

func (m Model) renderHelp() string {
	return `│ ↑/↓:Volume  m:Mute  d:Debug  q:Quit                  │
└──────────────────────────────────────────────────────┘
`
}

func (m Model) renderDebug() string {
	return fmt.Sprintf(`│ DEBUG:                                               │
│   Clock offset: %-36s │
`, fmt.Sprintf("%+dμs", m.syncOffset))
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		m.volume = min(m.volume+volumeStep, 100)
		m.notifyVolume()
	case "down":
		m.volume = max(m.volume-volumeStep, 0)
		m.notifyVolume()
	case "m":
		m.muted = !m.muted
		m.notifyVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

func (m Model) notifyVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Connected != nil {
		m.connected = *msg.Connected
	}
	if msg.ServerName != "" {
		m.serverName = msg.ServerName
	}
	if msg.SyncQuality != nil {
		m.syncOffset = msg.SyncOffset
		m.syncRTT = msg.SyncRTT
		m.syncQuality = *msg.SyncQuality
	}
	if msg.Codec != "" {
		m.codec = msg.Codec
		m.channels = msg.Channels
		m.streams = msg.Streams
		m.coupledStreams = msg.CoupledStreams
		m.bitrate = msg.Bitrate
		m.frameSize = msg.FrameSize
		m.playing = msg.Playing
	}
	if msg.Received != 0 {
		m.received = msg.Received
		m.played = msg.Played
		m.dropped = msg.Dropped
		m.decodeErrors = msg.DecodeErrors
		m.pending = msg.Pending
	}
}

func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len([]rune(s)) <= length {
		return s
	}
	return string([]rune(s)[:length-3]) + "..."
}

func channelName(channels int) string {
	switch channels {
	case 1:
		return "Mono"
	case 2:
		return "Stereo"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	}
	return fmt.Sprintf("%dch", channels)
}
