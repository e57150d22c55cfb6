// ABOUTME: Server TUI for displaying the stream, session counters and clients
// ABOUTME: Real-time server status display using bubbletea
package server

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mariotaku/Sunshine/internal/protocol"
	"github.com/mariotaku/Sunshine/internal/session"
)

// ServerTUI manages the server TUI
type ServerTUI struct {
	program  *tea.Program
	updates  chan ServerStatus
	quitChan chan struct{} // Signal to stop the server
	ready    chan struct{}
}

// ServerStatus holds server state for TUI
type ServerStatus struct {
	Name    string
	Port    int
	Source  string
	Stream  protocol.StreamStart
	Session session.Stats
	Peers   int
	Dropped uint64
	Clients []ClientInfo
}

// ClientInfo holds client information for display
type ClientInfo struct {
	Name    string
	ID      string
	Dropped uint64
	Lost    uint64
}

// tuiModel is the bubbletea model for server TUI
type tuiModel struct {
	status    ServerStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type statusMsg ServerStatus

func (m tuiModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case statusMsg:
		m.status = ServerStatus(msg)
		return m, nil
	}

	return m, nil
}

// describeStream renders the topology line, e.g. "opus 6ch 4 streams (2 coupled) 256 kbps"
func describeStream(st protocol.StreamStart) string {
	if st.Codec == "" {
		return "starting..."
	}
	desc := fmt.Sprintf("%s %dch", st.Codec, st.Channels)
	if st.Streams > 0 {
		desc += fmt.Sprintf(" %d streams (%d coupled)", st.Streams, st.CoupledStreams)
	}
	desc += fmt.Sprintf(" %d kbps, %d samples/frame", st.Bitrate/1000, st.FrameSize)
	return desc
}

func (m tuiModel) View() string {
	if m.quitting {
		return "Shutting down server...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	warnStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("203"))

	clientHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("220"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Sunshine Audio Server"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(headerStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	row("Server: ", m.status.Name)
	row("Port: ", fmt.Sprintf("%d", m.status.Port))
	row("Uptime: ", time.Since(m.startTime).Round(time.Second).String())
	row("Source: ", m.status.Source)
	row("Stream: ", describeStream(m.status.Stream))

	st := m.status.Session
	row("Packets: ", fmt.Sprintf("%d (%d KiB), %d skipped", st.Packets, st.Bytes/1024, st.Skipped))
	if st.Failures > 0 || st.Reinits > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("Failures: %d, encoder re-created %d times", st.Failures, st.Reinits)))
		b.WriteString("\n")
	}
	if m.status.Peers > 0 {
		row("WebRTC peers: ", fmt.Sprintf("%d", m.status.Peers))
	}
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Clients (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No clients connected"))
		b.WriteString("\n")
	} else {
		for _, client := range m.status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", client.Name))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (dropped %d, lost %d)", client.Dropped, client.Lost)))
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewServerTUI creates a new server TUI
func NewServerTUI() *ServerTUI {
	return &ServerTUI{
		updates:  make(chan ServerStatus, 10),
		quitChan: make(chan struct{}, 1),
		ready:    make(chan struct{}),
	}
}

// Start runs the TUI until Stop or a quit key
func (t *ServerTUI) Start(initial ServerStatus) error {
	m := tuiModel{
		status:    initial,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}

	t.program = tea.NewProgram(m, tea.WithAltScreen())
	close(t.ready)

	go func() {
		for status := range t.updates {
			t.program.Send(statusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *ServerTUI) Update(status ServerStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *ServerTUI) Stop() {
	<-t.ready
	t.program.Quit()
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *ServerTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
